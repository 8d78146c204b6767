package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	DefaultTaskTimeout = 30 * time.Minute
	maxRetryDelay      = 30 * time.Second
	queueSize          = 32
)

var _ TaskSchedulerInterface = (*Scheduler)(nil)

// Trigger enqueues a fresh task each time its cron schedule fires.
type Trigger struct {
	Name     string
	Schedule string
	NewTask  func() TaskInterface
}

type Options struct {
	// Workers defaults to one so that ingestion runs stay strictly sequential.
	Workers     int
	TaskTimeout time.Duration
	RetryBase   time.Duration
	Triggers    []Trigger
}

type Scheduler struct {
	cron        *cron.Cron
	triggers    []Trigger
	workerCount int
	taskTimeout time.Duration
	retryBase   time.Duration
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	taskQueue   chan TaskInterface
}

func NewScheduler(opts Options) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())

	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = DefaultTaskTimeout
	}
	if opts.RetryBase <= 0 {
		opts.RetryBase = time.Second
	}

	return &Scheduler{
		cron:        cron.New(),
		triggers:    opts.Triggers,
		workerCount: opts.Workers,
		taskTimeout: opts.TaskTimeout,
		retryBase:   opts.RetryBase,
		ctx:         ctx,
		cancel:      cancel,
		taskQueue:   make(chan TaskInterface, queueSize),
	}
}

// Start registers the cron triggers and launches the workers.
// An invalid schedule is reported before anything runs.
func (s *Scheduler) Start() error {
	for _, tr := range s.triggers {
		if _, err := s.cron.AddFunc(tr.Schedule, func() {
			if err := s.EnqueueTask(tr.NewTask()); err != nil {
				slog.Warn("Failed to enqueue scheduled task", "trigger", tr.Name, "error", err)
			}
		}); err != nil {
			return fmt.Errorf("invalid schedule %q for %s: %w", tr.Schedule, tr.Name, err)
		}
		slog.Info("Scheduled task registered", "trigger", tr.Name, "schedule", tr.Schedule)
	}

	for i := 0; i < s.workerCount; i++ {
		s.wg.Add(1)
		go s.worker(i)
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) EnqueueTask(task TaskInterface) error {
	select {
	case s.taskQueue <- task:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	default:
		return fmt.Errorf("task queue is full")
	}
}

func (s *Scheduler) worker(id int) {
	defer s.wg.Done()

	for {
		select {
		case task := <-s.taskQueue:
			s.executeTask(id, task)

		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Scheduler) executeTask(workerID int, task TaskInterface) {
	task.Start()

	taskCtx, cancel := context.WithTimeout(s.ctx, s.taskTimeout)
	defer cancel()

	err := task.Execute(taskCtx)
	if err == nil {
		return
	}

	slog.Error("Worker task execution failed", "worker_id", workerID, "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", err)

	if !task.CanRetry() {
		slog.Error("Task failed after maximum retries", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "last_error", err)
		return
	}

	task.IncrementRetryCount()
	retryDelay := s.retryDelay(task.GetRetryCount())

	slog.Warn("Task retry scheduled", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "max_retries", task.GetMaxRetries(), "delay", retryDelay.String())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case <-s.ctx.Done():
			slog.Debug("Scheduler stopped, skipping task retry", "type", string(task.GetType()), "id", task.GetID())
		case <-time.After(retryDelay):
			if retryErr := s.EnqueueTask(task); retryErr != nil {
				slog.Error("Failed to re-enqueue task for retry", "type", string(task.GetType()), "id", task.GetID(), "retry_count", task.GetRetryCount(), "error", retryErr)
			}
		}
	}()
}

// retryDelay doubles from the base on every attempt, capped at 30s.
func (s *Scheduler) retryDelay(attempt int) time.Duration {
	if attempt > 16 {
		return maxRetryDelay
	}
	d := s.retryBase << uint(attempt-1)
	if d <= 0 || d > maxRetryDelay {
		return maxRetryDelay
	}
	return d
}
