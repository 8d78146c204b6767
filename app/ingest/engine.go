package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/constituant/constituant/app/bill"
	"github.com/constituant/constituant/app/classify"
	"github.com/constituant/constituant/app/database"
)

type Action string

const (
	ActionInserted Action = "inserted"
	ActionUpdated  Action = "updated"
	ActionSkipped  Action = "skipped"
)

type Mode string

const (
	ModeReview Mode = "review"
	ModeDirect Mode = "direct"
)

func (m Mode) Valid() bool {
	return m == ModeReview || m == ModeDirect
}

const (
	provisionalMinDays = 30
	provisionalMaxDays = 90
)

// UpsertOptions carries the per-source switches that affect persistence.
type UpsertOptions struct {
	ProvisionalVoteDate bool
}

// Strategy is the terminal step of the pipeline, keyed on (source, external id).
type Strategy interface {
	Upsert(ctx context.Context, draft bill.Draft, opts UpsertOptions) (Action, error)
}

// ReviewQueue stores drafts as pending bills awaiting a human decision.
type ReviewQueue struct {
	pending  database.PendingBillRepository
	bills    database.BillRepository
	enricher *Enricher
	now      func() time.Time
}

func NewReviewQueue(pending database.PendingBillRepository, bills database.BillRepository, enricher *Enricher) *ReviewQueue {
	return &ReviewQueue{pending: pending, bills: bills, enricher: enricher, now: time.Now}
}

func (q *ReviewQueue) Upsert(ctx context.Context, draft bill.Draft, _ UpsertOptions) (Action, error) {
	published, err := q.bills.GetBillBySource(ctx, draft.Source, draft.ExternalID)
	if err != nil {
		return "", err
	}
	if published != nil {
		return ActionSkipped, nil
	}

	existing, err := q.pending.GetPendingBillBySource(ctx, draft.Source, draft.ExternalID)
	if err != nil {
		return "", err
	}

	if existing == nil {
		id, err := q.pending.InsertPendingBill(ctx, draft, q.now())
		if errors.Is(err, database.ErrDuplicate) {
			return ActionSkipped, nil
		}
		if err != nil {
			return "", err
		}
		q.classify(ctx, id, draft)
		return ActionInserted, nil
	}

	if existing.Status != bill.ReviewPending {
		return ActionSkipped, nil
	}

	if err := q.pending.UpdatePendingBill(ctx, existing.ID, draft, q.now()); err != nil {
		return "", err
	}
	if bill.NeedsClassification(existing.AI.ProcessedAt != nil, existing.AI.Theme) {
		q.classify(ctx, existing.ID, draft)
	}
	return ActionUpdated, nil
}

func (q *ReviewQueue) classify(ctx context.Context, id int64, draft bill.Draft) {
	if q.enricher == nil {
		return
	}
	c, ok := q.enricher.Classify(ctx, classify.Input{
		Title:    draft.Title,
		Summary:  draft.Summary,
		FullText: q.enricher.FullText(ctx, draft.FullTextURL),
	})
	if !ok {
		return
	}
	if err := q.pending.UpdatePendingClassification(ctx, id, c); err != nil {
		slog.Warn("Failed to store classification", "pending_id", id, "error", err)
	}
}

// Direct publishes drafts straight to production bills.
type Direct struct {
	bills     database.BillRepository
	enricher  *Enricher
	lookahead time.Duration
	now       func() time.Time
	randDays  func() int
}

func NewDirect(bills database.BillRepository, enricher *Enricher, lookahead time.Duration) *Direct {
	if lookahead <= 0 {
		lookahead = bill.DefaultLookahead
	}
	return &Direct{
		bills:     bills,
		enricher:  enricher,
		lookahead: lookahead,
		now:       time.Now,
		randDays: func() int {
			return provisionalMinDays + rand.IntN(provisionalMaxDays-provisionalMinDays+1)
		},
	}
}

func (d *Direct) Upsert(ctx context.Context, draft bill.Draft, opts UpsertOptions) (Action, error) {
	existing, err := d.bills.GetBillBySource(ctx, draft.Source, draft.ExternalID)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return ActionSkipped, nil
	}

	now := d.now()
	var vote time.Time
	switch {
	case draft.VoteDatetime != nil:
		vote = *draft.VoteDatetime
	case opts.ProvisionalVoteDate:
		vote = now.Add(time.Duration(d.randDays()) * 24 * time.Hour)
	default:
		slog.Debug("Draft without vote date skipped", "source", draft.Source, "external_id", draft.ExternalID)
		return ActionSkipped, nil
	}

	id := bill.BillID(draft.Level, draft.Title, now)
	taken, err := d.bills.BillExists(ctx, id)
	if err != nil {
		return "", err
	}
	if taken {
		id = bill.UniqueBillID(id, now)
	}

	b := database.Bill{
		ID:           id,
		Title:        draft.Title,
		Summary:      draft.Summary,
		AI:           database.Classification{Theme: bill.SentinelTheme},
		FullTextURL:  draft.FullTextURL,
		Level:        draft.Level,
		Chamber:      draft.Chamber,
		VoteDatetime: vote,
		Status:       bill.StatusAt(now, vote, d.lookahead),
		Source:       draft.Source,
		ExternalID:   draft.ExternalID,
	}

	if d.enricher != nil {
		if c, ok := d.enricher.Classify(ctx, classify.Input{
			Title:    draft.Title,
			Summary:  draft.Summary,
			FullText: d.enricher.FullText(ctx, draft.FullTextURL),
		}); ok {
			b.AI = c
		}
	}

	if err := d.bills.CreateBill(ctx, b); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return ActionSkipped, nil
		}
		return "", fmt.Errorf("failed to publish %s: %w", id, err)
	}
	return ActionInserted, nil
}
