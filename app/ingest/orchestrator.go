package ingest

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/constituant/constituant/app/database"
	"github.com/constituant/constituant/app/fetch"
	"github.com/constituant/constituant/app/metrics"
	"github.com/constituant/constituant/app/normalize"
	"github.com/constituant/constituant/app/sources"
	"github.com/oklog/ulid/v2"
)

const (
	DefaultSourceDelay = 2 * time.Second

	StatusSuccess = "success"
	StatusPartial = "partial"
	StatusFailed  = "failed"

	maxLoggedErrors = 10
)

type SourceReport struct {
	Source   string        `json:"source"`
	Status   string        `json:"status"`
	Fetched  int           `json:"fetched"`
	New      int           `json:"new"`
	Updated  int           `json:"updated"`
	Skipped  int           `json:"skipped"`
	Errors   []string      `json:"errors,omitempty"`
	Duration time.Duration `json:"duration"`
}

func (r *SourceReport) count(a Action) {
	switch a {
	case ActionInserted:
		r.New++
	case ActionUpdated:
		r.Updated++
	default:
		r.Skipped++
	}
}

type RunReport struct {
	RunID        string         `json:"run_id"`
	StartedAt    time.Time      `json:"started_at"`
	StatusUpdate StatusResult   `json:"status_update"`
	Sources      []SourceReport `json:"sources"`
}

// Failed reports whether at least one source failed outright.
func (r *RunReport) Failed() bool {
	for _, s := range r.Sources {
		if s.Status == StatusFailed {
			return true
		}
	}
	return false
}

// Orchestrator drains the sources one after another, in priority order.
type Orchestrator struct {
	sources     []sources.Source
	normalizer  *normalize.Normalizer
	strategy    Strategy
	statusJob   *StatusJob
	logs        database.ImportLogRepository
	sourceDelay time.Duration
}

func NewOrchestrator(srcs []sources.Source, normalizer *normalize.Normalizer, strategy Strategy,
	statusJob *StatusJob, logs database.ImportLogRepository, sourceDelay time.Duration) *Orchestrator {
	ordered := slices.Clone(srcs)
	slices.SortStableFunc(ordered, func(a, b sources.Source) int {
		return cmp.Compare(a.Config().Priority, b.Config().Priority)
	})
	return &Orchestrator{
		sources:     ordered,
		normalizer:  normalizer,
		strategy:    strategy,
		statusJob:   statusJob,
		logs:        logs,
		sourceDelay: sourceDelay,
	}
}

// Run executes one ingestion cycle. Source failures are reported, not returned;
// the error is only set when the run cannot proceed at all.
func (o *Orchestrator) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{
		RunID:     ulid.Make().String(),
		StartedAt: time.Now(),
	}
	slog.Info("Ingestion run started", "run_id", report.RunID, "sources", len(o.sources))

	if o.statusJob != nil {
		res, err := o.statusJob.Run(ctx)
		if err != nil {
			return report, err
		}
		report.StatusUpdate = res
	}

	for i, src := range o.sources {
		if i > 0 {
			if err := fetch.Sleep(ctx, o.sourceDelay); err != nil {
				return report, err
			}
		}

		sr := o.runSource(ctx, src)
		report.Sources = append(report.Sources, sr)
		o.record(ctx, report.RunID, sr)
	}

	slog.Info("Ingestion run completed", "run_id", report.RunID, "failed", report.Failed(), "duration", time.Since(report.StartedAt))
	return report, nil
}

func (o *Orchestrator) runSource(ctx context.Context, src sources.Source) SourceReport {
	start := time.Now()
	sr := SourceReport{Source: src.Name()}

	slog.Info("Source started", "source", src.Name())

	batch, err := src.Fetch(ctx)
	if err != nil {
		slog.Error("Source failed", "source", src.Name(), "error", err)
		sr.Status = StatusFailed
		sr.Errors = append(sr.Errors, err.Error())
		sr.Duration = time.Since(start)
		return sr
	}

	sr.Fetched = batch.Fetched()
	sr.Skipped = batch.Skipped
	metrics.RecordsTotal.WithLabelValues(src.Name(), "filtered").Add(float64(batch.Skipped))

	opts := UpsertOptions{ProvisionalVoteDate: src.Config().ProvisionalVoteDate}
	for _, item := range batch.Items {
		if ctx.Err() != nil {
			sr.Errors = append(sr.Errors, ctx.Err().Error())
			break
		}

		draft, ok := o.normalizer.Run(item.Record, *item.Profile)
		if !ok {
			sr.Skipped++
			metrics.RecordsTotal.WithLabelValues(src.Name(), string(ActionSkipped)).Inc()
			continue
		}

		action, err := o.strategy.Upsert(ctx, draft, opts)
		if err != nil {
			slog.Warn("Failed to store record", "source", src.Name(), "external_id", draft.ExternalID, "error", err)
			sr.Errors = append(sr.Errors, fmt.Sprintf("%s: %v", draft.ExternalID, err))
			metrics.RecordsTotal.WithLabelValues(src.Name(), "error").Inc()
			continue
		}

		sr.count(action)
		metrics.RecordsTotal.WithLabelValues(src.Name(), string(action)).Inc()
		slog.Debug("Record stored", "source", src.Name(), "external_id", draft.ExternalID, "action", action)
	}

	sr.Status = StatusSuccess
	if len(sr.Errors) > 0 {
		sr.Status = StatusPartial
	}
	sr.Duration = time.Since(start)

	slog.Info("Source completed", "source", src.Name(), "status", sr.Status, "fetched", sr.Fetched,
		"new", sr.New, "updated", sr.Updated, "skipped", sr.Skipped, "errors", len(sr.Errors), "duration", sr.Duration)
	return sr
}

func (o *Orchestrator) record(ctx context.Context, runID string, sr SourceReport) {
	metrics.SourceRunsTotal.WithLabelValues(sr.Source, sr.Status).Inc()
	metrics.SourceRunDuration.WithLabelValues(sr.Source).Observe(sr.Duration.Seconds())

	if o.logs == nil {
		return
	}

	messages := sr.Errors
	if len(messages) > maxLoggedErrors {
		messages = messages[:maxLoggedErrors]
	}

	err := o.logs.InsertImportLog(context.WithoutCancel(ctx), database.ImportLog{
		RunID:        runID,
		Source:       sr.Source,
		Status:       sr.Status,
		Fetched:      sr.Fetched,
		New:          sr.New,
		Updated:      sr.Updated,
		Skipped:      sr.Skipped,
		Errors:       len(sr.Errors),
		ErrorMessage: strings.Join(messages, "; "),
		Duration:     sr.Duration,
		StartedAt:    time.Now().Add(-sr.Duration),
	})
	if err != nil {
		slog.Warn("Failed to write import log", "source", sr.Source, "error", err)
	}
}
