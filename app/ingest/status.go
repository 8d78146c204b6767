package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/constituant/constituant/app/bill"
	"github.com/constituant/constituant/app/database"
	"github.com/constituant/constituant/app/metrics"
)

type StatusResult struct {
	Completed int64 `json:"completed"`
	VotingNow int64 `json:"voting_now"`
	Upcoming  int64 `json:"upcoming"`
}

// StatusJob keeps bill statuses in line with the clock. It never reopens a completed bill.
type StatusJob struct {
	bills     database.BillRepository
	lookahead time.Duration
	now       func() time.Time
}

func NewStatusJob(bills database.BillRepository, lookahead time.Duration) *StatusJob {
	if lookahead <= 0 {
		lookahead = bill.DefaultLookahead
	}
	return &StatusJob{bills: bills, lookahead: lookahead, now: time.Now}
}

func (j *StatusJob) Run(ctx context.Context) (StatusResult, error) {
	changes, err := j.bills.UpdateStatuses(ctx, j.now(), j.lookahead)
	if err != nil {
		return StatusResult{}, fmt.Errorf("failed to update bill statuses: %w", err)
	}

	metrics.StatusTransitionsTotal.WithLabelValues(string(bill.StatusCompleted)).Add(float64(changes.Completed))
	metrics.StatusTransitionsTotal.WithLabelValues(string(bill.StatusVotingNow)).Add(float64(changes.VotingNow))
	metrics.StatusTransitionsTotal.WithLabelValues(string(bill.StatusUpcoming)).Add(float64(changes.Upcoming))
	slog.Info("Bill statuses updated", "completed", changes.Completed, "voting_now", changes.VotingNow, "upcoming", changes.Upcoming)

	return StatusResult{Completed: changes.Completed, VotingNow: changes.VotingNow, Upcoming: changes.Upcoming}, nil
}
