package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/constituant/constituant/app/classify"
	"github.com/constituant/constituant/app/database"
	"github.com/constituant/constituant/app/fetch"
	"github.com/constituant/constituant/app/metrics"
)

// TextFetcher downloads the readable text behind a bill URL.
type TextFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Enricher runs the classifier for ingestion and reclassification.
// Calls are spaced by delay; it is meant for the single ingestion worker.
type Enricher struct {
	classifier classify.Classifier
	texts      TextFetcher
	delay      time.Duration
	calls      int
	now        func() time.Time
}

// NewEnricher builds an enricher. texts may be nil to classify on title and summary only.
func NewEnricher(classifier classify.Classifier, texts TextFetcher, delay time.Duration) *Enricher {
	return &Enricher{
		classifier: classifier,
		texts:      texts,
		delay:      delay,
		now:        time.Now,
	}
}

// FullText returns the page text behind url, or "" when it cannot be fetched.
func (e *Enricher) FullText(ctx context.Context, url string) string {
	if e.texts == nil || url == "" {
		return ""
	}
	text, err := e.texts.Fetch(ctx, url)
	if err != nil {
		slog.Debug("Full text unavailable", "url", url, "error", err)
		return ""
	}
	return text
}

// Classify reports false when the classifier fell back; callers then keep the
// record under the sentinel theme so it is picked up again later.
func (e *Enricher) Classify(ctx context.Context, in classify.Input) (database.Classification, bool) {
	if e.calls > 0 {
		if err := fetch.Sleep(ctx, e.delay); err != nil {
			return database.Classification{}, false
		}
	}
	e.calls++

	res, err := e.classifier.Classify(ctx, in)
	switch {
	case errors.Is(err, classify.ErrDisabled):
		metrics.ClassificationsTotal.WithLabelValues("disabled").Inc()
		return database.Classification{}, false
	case err != nil || res.Fallback:
		metrics.ClassificationsTotal.WithLabelValues("fallback").Inc()
		slog.Warn("Classification failed, keeping sentinel theme", "title", in.Title, "error", err)
		return database.Classification{}, false
	}

	metrics.ClassificationsTotal.WithLabelValues("success").Inc()
	processedAt := e.now()
	return database.Classification{
		Theme:       res.Theme,
		Summary:     res.Summary,
		Abstract:    res.Abstract,
		Pros:        res.Pros,
		Cons:        res.Cons,
		Affected:    res.Affected,
		Confidence:  res.Confidence,
		ProcessedAt: &processedAt,
	}, true
}
