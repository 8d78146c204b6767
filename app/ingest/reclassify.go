package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/constituant/constituant/app/classify"
	"github.com/constituant/constituant/app/database"
)

const DefaultReclassifyLimit = 10

type ReclassifyReport struct {
	Selected   int `json:"selected"`
	Classified int `json:"classified"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
}

// Reclassifier retries classification for pending bills left on the sentinel theme.
type Reclassifier struct {
	pending  database.PendingBillRepository
	enricher *Enricher
}

func NewReclassifier(pending database.PendingBillRepository, enricher *Enricher) *Reclassifier {
	return &Reclassifier{pending: pending, enricher: enricher}
}

// Run selects at most limit rows, newest first. With force every pending row is eligible.
func (r *Reclassifier) Run(ctx context.Context, limit int, force bool) (*ReclassifyReport, error) {
	if limit <= 0 {
		limit = DefaultReclassifyLimit
	}

	rows, err := r.pending.ListForClassification(ctx, limit, force)
	if err != nil {
		return nil, fmt.Errorf("failed to select bills: %w", err)
	}

	report := &ReclassifyReport{Selected: len(rows)}
	slog.Info("Reclassification started", "bills", len(rows), "force", force)

	for _, p := range rows {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		fullText := r.enricher.FullText(ctx, p.FullTextURL)
		if p.Summary == "" && fullText == "" {
			slog.Debug("Bill has no content to classify", "pending_id", p.ID)
			report.Skipped++
			continue
		}

		c, ok := r.enricher.Classify(ctx, classify.Input{
			Title:    p.Title,
			Summary:  p.Summary,
			FullText: fullText,
		})
		if !ok {
			report.Failed++
			continue
		}

		if err := r.pending.UpdatePendingClassification(ctx, p.ID, c); err != nil {
			slog.Warn("Failed to store classification", "pending_id", p.ID, "error", err)
			report.Failed++
			continue
		}

		slog.Info("Bill classified", "pending_id", p.ID, "theme", c.Theme)
		report.Classified++
	}

	slog.Info("Reclassification completed", "classified", report.Classified, "failed", report.Failed, "skipped", report.Skipped)
	return report, nil
}
