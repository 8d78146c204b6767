package sources

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/constituant/constituant/app/bill"
	"github.com/constituant/constituant/app/fetch"
	"github.com/constituant/constituant/app/normalize"
)

const maxScrutins = 20

var nosDeputesProfile = normalize.Profile{
	Source:         bill.SourceNosDeputes,
	TitleKeys:      []string{"titre", "title"},
	SummaryKeys:    []string{"resume", "description"},
	HTMLBodyKeys:   []string{"texte"},
	IDKeys:         []string{"id", "numero"},
	URLKeys:        []string{"url", "url_dossier_assemblee", "url_texte"},
	DateKeys:       []string{"date_scrutin", "date"},
	ChamberKeys:    []string{"assemblee"},
	DefaultLevel:   bill.LevelFrance,
	DefaultChamber: normalize.ChamberAssemblee,
	IDFromURL:      regexp.MustCompile(`/dossiers/(\w+)`),
	HashTitle:      true,
}

var scrutinProfile = normalize.Profile{
	Source:         bill.SourceNosDeputes,
	TitleKeys:      []string{"titre", "objet"},
	SummaryKeys:    []string{"contexte", "demandeur"},
	IDKeys:         []string{"external_id"},
	URLKeys:        []string{"url"},
	DateKeys:       []string{"date"},
	DefaultLevel:   bill.LevelFrance,
	DefaultChamber: normalize.ChamberAssemblee,
}

// NosDeputes reads legislative dossiers and recent scrutins from NosDéputés.fr.
type NosDeputes struct {
	cfg      Config
	deps     Deps
	filterer *Filterer
}

func NewNosDeputes(cfg Config, deps Deps) Source {
	return &NosDeputes{cfg: cfg, deps: deps, filterer: NewFilterer()}
}

func (s *NosDeputes) Name() string   { return s.cfg.Name }
func (s *NosDeputes) Config() Config { return s.cfg }

func (s *NosDeputes) Fetch(ctx context.Context) (*Batch, error) {
	records, err := s.fetchDossiers(ctx)
	if err != nil {
		return nil, err
	}

	batch := &Batch{}
	kept := make([]bill.RawRecord, 0, len(records))
	for _, r := range records {
		if isAmendment(r) {
			batch.Skipped++
			continue
		}
		kept = append(kept, r)
	}

	kept, dropped := s.filterer.Run(kept, s.cfg.Filters)
	batch.Skipped += dropped
	batch.add(kept, &nosDeputesProfile)
	batch.add(s.fetchScrutins(ctx), &scrutinProfile)

	// max_items bounds the whole batch; dossiers come first.
	batch.truncate(s.cfg.MaxItems)

	return batch, nil
}

func (s *NosDeputes) fetchDossiers(ctx context.Context) ([]bill.RawRecord, error) {
	endpoints := []string{s.cfg.Endpoint("dossiers"), s.cfg.Endpoint("dossiers_fallback")}

	var lastErr error
	attempt := 0
	for _, url := range endpoints {
		if url == "" {
			continue
		}
		opts := fetch.RequestOptions{Timeout: s.cfg.TimeoutDuration()}
		if attempt > 0 {
			opts.Delay = s.cfg.DelayDuration()
		}
		attempt++

		resp, err := s.deps.Client.Get(ctx, url, opts)
		if err != nil {
			slog.Warn("Dossier endpoint failed", "source", s.Name(), "url", url, "error", err)
			lastErr = err
			continue
		}

		records, err := s.deps.Parser.JSON(resp.Body, "dossiers_legislatif", "dossiers")
		if err != nil {
			slog.Warn("Dossier payload rejected", "source", s.Name(), "url", url, "error", err)
			lastErr = err
			continue
		}

		slog.Info("Dossiers fetched", "source", s.Name(), "url", url, "count", len(records))
		return records, nil
	}

	if lastErr == nil {
		return nil, fmt.Errorf("no dossier endpoint configured")
	}
	return nil, fmt.Errorf("all dossier endpoints failed: %w", lastErr)
}

// fetchScrutins is best effort: a failure only loses the secondary records.
func (s *NosDeputes) fetchScrutins(ctx context.Context) []bill.RawRecord {
	url := s.cfg.Endpoint("scrutins")
	if url == "" {
		return nil
	}

	resp, err := s.deps.Client.Get(ctx, url, fetch.RequestOptions{
		Delay:   s.cfg.DelayDuration(),
		Timeout: s.cfg.TimeoutDuration(),
	})
	if err != nil {
		slog.Warn("Failed to fetch scrutins", "source", s.Name(), "error", err)
		return nil
	}

	records, err := s.deps.Parser.JSON(resp.Body, "scrutins")
	if err != nil {
		slog.Warn("Failed to parse scrutins", "source", s.Name(), "error", err)
		return nil
	}

	records = capRecords(records, maxScrutins)
	for _, r := range records {
		if numero, ok := r.Lookup("numero"); ok {
			r["external_id"] = "scrutin-" + numero
		} else if title, ok := r.Lookup(scrutinProfile.TitleKeys...); ok {
			r["external_id"] = "scrutin-" + md5Hex(title)
		}
	}

	slog.Info("Scrutins fetched", "source", s.Name(), "count", len(records))
	return records
}

func isAmendment(r bill.RawRecord) bool {
	title, _ := r.Lookup(nosDeputesProfile.TitleKeys...)
	return strings.HasPrefix(strings.ToLower(title), "amendement")
}
