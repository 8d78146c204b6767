package classify

import (
	"context"
	"errors"

	"github.com/constituant/constituant/app/bill"
	"github.com/constituant/constituant/app/normalize"
)

// ErrDisabled is returned when no API key is configured; the fallback result is still usable.
var ErrDisabled = errors.New("classification disabled: no API key configured")

type Input struct {
	Title    string
	Summary  string
	FullText string
}

type Result struct {
	Theme      string
	Abstract   string
	Summary    string
	Pros       []string
	Cons       []string
	Affected   []string
	Confidence float64
	// Fallback is true when the result was not produced by the model.
	Fallback bool
}

type Classifier interface {
	Classify(ctx context.Context, in Input) (Result, error)
}

// FallbackResult is what callers persist when classification is unavailable.
func FallbackResult(in Input) Result {
	return Result{
		Theme:      bill.SentinelTheme,
		Summary:    normalize.Truncate(in.Summary, normalize.SummaryMaxLen),
		Confidence: 0,
		Fallback:   true,
	}
}
