package sources

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/constituant/constituant/app/bill"
	"github.com/constituant/constituant/app/fetch"
	"github.com/constituant/constituant/app/normalize"
)

const (
	colTitle      = "Titre"
	colURL        = "URL du dossier"
	colStartDate  = "Date initiale"
	colShortTitle = "short_title"
	colThemes     = "Thèmes"

	// derived key written by the adapter
	keySummary = "summary"
)

var laFabriqueProfile = normalize.Profile{
	Source:         bill.SourceLaFabrique,
	TitleKeys:      []string{colTitle, "title"},
	SummaryKeys:    []string{keySummary},
	IDKeys:         []string{"id"},
	URLKeys:        []string{colURL, "url"},
	DefaultLevel:   bill.LevelFrance,
	DefaultChamber: normalize.ChamberAssemblee,
	HashTitle:      true,
}

// LaFabrique reads the semicolon separated dossier export of La Fabrique de la Loi.
// The export carries no vote date.
type LaFabrique struct {
	cfg      Config
	deps     Deps
	filterer *Filterer
}

func NewLaFabrique(cfg Config, deps Deps) Source {
	return &LaFabrique{cfg: cfg, deps: deps, filterer: NewFilterer()}
}

func (s *LaFabrique) Name() string   { return s.cfg.Name }
func (s *LaFabrique) Config() Config { return s.cfg }

func (s *LaFabrique) Fetch(ctx context.Context) (*Batch, error) {
	records, err := s.fetchCSV(ctx)
	if err != nil {
		return nil, err
	}

	kept, dropped := s.filterer.Run(records, s.cfg.Filters)
	batch := &Batch{Skipped: dropped}

	fresh := make([]bill.RawRecord, 0, len(kept))
	for _, r := range kept {
		if s.isStale(r) {
			batch.Skipped++
			continue
		}
		r[keySummary] = buildSummary(r)
		fresh = append(fresh, r)
	}

	batch.add(capRecords(fresh, s.cfg.MaxItems), &laFabriqueProfile)
	return batch, nil
}

func (s *LaFabrique) fetchCSV(ctx context.Context) ([]bill.RawRecord, error) {
	urls := []string{s.cfg.Endpoint("dossiers"), s.cfg.FallbackURL}

	var lastErr error
	attempt := 0
	for _, url := range urls {
		if url == "" {
			continue
		}
		opts := fetch.RequestOptions{Accept: "text/csv", Timeout: s.cfg.TimeoutDuration()}
		if attempt > 0 {
			opts.Delay = s.cfg.DelayDuration()
		}
		attempt++

		resp, err := s.deps.Client.Get(ctx, url, opts)
		if err != nil {
			slog.Warn("CSV endpoint failed", "source", s.Name(), "url", url, "error", err)
			lastErr = err
			continue
		}

		records, err := s.deps.Parser.CSV(resp.Body, ';')
		if err != nil {
			slog.Warn("CSV payload rejected", "source", s.Name(), "url", url, "error", err)
			lastErr = err
			continue
		}

		slog.Info("Dossiers fetched", "source", s.Name(), "url", url, "count", len(records))
		return records, nil
	}

	if lastErr == nil {
		return nil, fmt.Errorf("no CSV endpoint configured")
	}
	return nil, fmt.Errorf("all CSV endpoints failed: %w", lastErr)
}

// isStale reports whether the dossier started before the staleness threshold.
// Records without a readable start date are kept.
func (s *LaFabrique) isStale(r bill.RawRecord) bool {
	if s.cfg.StaleDays <= 0 {
		return false
	}
	raw, ok := r.Lookup(colStartDate)
	if !ok {
		return false
	}
	started, ok := normalize.ParseDate(raw, s.deps.Location)
	if !ok {
		return false
	}
	threshold := s.deps.now().Add(-time.Duration(s.cfg.StaleDays) * 24 * time.Hour)
	return started.Before(threshold)
}

func buildSummary(r bill.RawRecord) string {
	title, _ := r.Lookup(colTitle, "title")
	if short, ok := r.Lookup(colShortTitle); ok && short != title {
		return short
	}
	if themes, ok := r.Lookup(colThemes); ok {
		return "Dossier législatif concernant : " + strings.ReplaceAll(themes, ",", ", ")
	}
	return "Dossier législatif en cours d'examen à l'Assemblée nationale"
}
