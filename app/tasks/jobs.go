package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/constituant/constituant/app/ingest"
)

type IngestRunner interface {
	Run(ctx context.Context) (*ingest.RunReport, error)
}

type StatusRunner interface {
	Run(ctx context.Context) (ingest.StatusResult, error)
}

type ReclassifyRunner interface {
	Run(ctx context.Context, limit int, force bool) (*ingest.ReclassifyReport, error)
}

var (
	_ IngestRunner     = (*ingest.Orchestrator)(nil)
	_ StatusRunner     = (*ingest.StatusJob)(nil)
	_ ReclassifyRunner = (*ingest.Reclassifier)(nil)
)

// IngestTask runs one full ingestion pass. A failing source is recorded in the
// import log and does not fail the task; only errors that stop the whole run do.
type IngestTask struct {
	Task
	runner IngestRunner
}

func NewIngestTask(runner IngestRunner) *IngestTask {
	return &IngestTask{Task: NewTask(TaskTypeIngest), runner: runner}
}

func (t *IngestTask) Execute(ctx context.Context) error {
	report, err := t.runner.Run(ctx)
	if err != nil {
		return fmt.Errorf("failed to run ingestion: %w", err)
	}

	failed := 0
	for _, s := range report.Sources {
		if s.Status == ingest.StatusFailed {
			failed++
		}
	}

	slog.Info("Task completed",
		"type", string(t.Type),
		"run_id", report.RunID,
		"duration", t.GetDuration(),
		"sources", len(report.Sources),
		"failed_sources", failed)

	return nil
}

type StatusUpdateTask struct {
	Task
	runner StatusRunner
}

func NewStatusUpdateTask(runner StatusRunner) *StatusUpdateTask {
	return &StatusUpdateTask{Task: NewTask(TaskTypeStatusUpdate), runner: runner}
}

func (t *StatusUpdateTask) Execute(ctx context.Context) error {
	res, err := t.runner.Run(ctx)
	if err != nil {
		return err
	}

	slog.Info("Task completed",
		"type", string(t.Type),
		"duration", t.GetDuration(),
		"completed", res.Completed,
		"voting_now", res.VotingNow,
		"upcoming", res.Upcoming)

	return nil
}

type ReclassifyTask struct {
	Task
	runner ReclassifyRunner
	limit  int
	force  bool
}

func NewReclassifyTask(runner ReclassifyRunner, limit int, force bool) *ReclassifyTask {
	return &ReclassifyTask{Task: NewTask(TaskTypeReclassify), runner: runner, limit: limit, force: force}
}

func (t *ReclassifyTask) Execute(ctx context.Context) error {
	report, err := t.runner.Run(ctx, t.limit, t.force)
	if err != nil {
		return fmt.Errorf("failed to reclassify: %w", err)
	}

	slog.Info("Task completed",
		"type", string(t.Type),
		"duration", t.GetDuration(),
		"selected", report.Selected,
		"classified", report.Classified,
		"failed", report.Failed)

	return nil
}
