package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strconv"

	"github.com/constituant/constituant/app/bill"
	"github.com/constituant/constituant/app/fetch"
	"github.com/constituant/constituant/app/normalize"
)

const celexURL = "https://eur-lex.europa.eu/legal-content/EN/ALL/?uri=CELEX:"

var (
	procedureRef  = regexp.MustCompile(`\b\d{4}/\d{4}\(COD\)`)
	commissionRef = regexp.MustCompile(`\bCOM\(\d{4}\)\s*\d+\b`)
)

var europarlProfile = normalize.Profile{
	Source:         bill.SourceEuroparl,
	TitleKeys:      []string{"title", "label"},
	SummaryKeys:    []string{"description", "summary", "abstract"},
	IDKeys:         []string{"id", "reference", "guid"},
	URLKeys:        []string{"link", "url"},
	DateKeys:       []string{"date", "pubDate", "adoptionDate"},
	ChamberKeys:    []string{"chamber", "body"},
	DefaultLevel:   bill.LevelEU,
	DefaultChamber: normalize.ChamberParliament,
	HashTitle:      true,
}

// Europarl reads legislative procedures from the European Parliament open data
// API, retrying as JSON-LD and then falling back to the OEIL RSS feed.
type Europarl struct {
	cfg      Config
	deps     Deps
	filterer *Filterer
}

func NewEuroparl(cfg Config, deps Deps) Source {
	return &Europarl{cfg: cfg, deps: deps, filterer: NewFilterer()}
}

func (s *Europarl) Name() string   { return s.cfg.Name }
func (s *Europarl) Config() Config { return s.cfg }

func (s *Europarl) Fetch(ctx context.Context) (*Batch, error) {
	records, err := s.fetchDocuments(ctx)
	if err != nil {
		return nil, err
	}

	kept, dropped := s.filterer.Run(records, s.cfg.Filters)
	kept = capRecords(kept, s.cfg.MaxItems)
	for _, r := range kept {
		prepareEURecord(r)
	}

	batch := &Batch{Skipped: dropped}
	batch.add(kept, &europarlProfile)
	return batch, nil
}

func (s *Europarl) documentsURL() string {
	base := s.cfg.Endpoint("documents")
	if base == "" {
		return ""
	}
	q := url.Values{}
	q.Set("type", "LEGISLATIVE_PROCEDURE")
	q.Set("limit", strconv.Itoa(s.cfg.MaxItems))
	q.Set("offset", "0")
	q.Set("sort", "-date")
	q.Set("format", "application/json")
	return base + "?" + q.Encode()
}

type endpointAttempt struct {
	url    string
	accept string
	feed   bool
}

func (s *Europarl) fetchDocuments(ctx context.Context) ([]bill.RawRecord, error) {
	api := s.documentsURL()
	attempts := []endpointAttempt{
		{url: api, accept: "application/json"},
		{url: api, accept: "application/ld+json"},
		{url: s.cfg.FallbackURL, accept: "application/rss+xml, application/xml", feed: true},
	}

	var lastErr error
	tried := 0
	for _, a := range attempts {
		if a.url == "" {
			continue
		}
		opts := fetch.RequestOptions{
			Accept:  a.accept,
			Timeout: s.cfg.TimeoutDuration(),
			Headers: map[string]string{"Accept-Language": "en"},
		}
		if tried > 0 {
			opts.Delay = s.cfg.DelayDuration()
		}
		tried++

		records, err := s.try(ctx, a, opts)
		if err != nil {
			slog.Warn("EU endpoint failed", "source", s.Name(), "url", a.url, "accept", a.accept, "error", err)
			lastErr = err
			continue
		}

		slog.Info("Documents fetched", "source", s.Name(), "url", a.url, "count", len(records))
		return records, nil
	}

	if lastErr == nil {
		return nil, fmt.Errorf("no EU endpoint configured")
	}
	return nil, fmt.Errorf("all EU endpoints failed: %w", lastErr)
}

func (s *Europarl) try(ctx context.Context, a endpointAttempt, opts fetch.RequestOptions) ([]bill.RawRecord, error) {
	resp, err := s.deps.Client.Get(ctx, a.url, opts)
	if err != nil {
		return nil, err
	}

	var records []bill.RawRecord
	if a.feed {
		records, err = s.deps.Parser.Feed(resp.Body)
	} else {
		records, err = s.deps.Parser.JSON(resp.Body, "data", "items")
	}
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	return records, nil
}

// prepareEURecord strips procedure references from the title and derives an
// EUR-Lex link from the reference when the document has none.
func prepareEURecord(r bill.RawRecord) {
	for _, key := range europarlProfile.TitleKeys {
		if title, ok := r[key].(string); ok {
			r[key] = readableTitle(title)
		}
	}

	if _, ok := r.Lookup(europarlProfile.URLKeys...); ok {
		return
	}
	if ref, ok := r.Lookup("reference"); ok {
		r["link"] = celexURL + ref
	}
}

func readableTitle(title string) string {
	title = procedureRef.ReplaceAllString(title, "")
	title = commissionRef.ReplaceAllString(title, "")
	return normalize.CleanText(title, normalize.TitleMaxLen)
}
