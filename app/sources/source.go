package sources

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/constituant/constituant/app/bill"
	"github.com/constituant/constituant/app/fetch"
	"github.com/constituant/constituant/app/normalize"
	"github.com/constituant/constituant/app/parser"
)

// ErrNoRecords is returned when every endpoint of a source answered without usable records.
var ErrNoRecords = errors.New("no records retrieved")

// Getter is the part of fetch.Client the adapters depend on.
type Getter interface {
	Get(ctx context.Context, url string, opts fetch.RequestOptions) (*fetch.Response, error)
}

// Item is a raw record along with the field profile used to normalize it.
type Item struct {
	Record  bill.RawRecord
	Profile *normalize.Profile
}

// Batch is the result of one source fetch. Skipped counts records dropped by
// business filters before normalization.
type Batch struct {
	Items   []Item
	Skipped int
}

func (b *Batch) Fetched() int {
	return len(b.Items) + b.Skipped
}

func (b *Batch) add(records []bill.RawRecord, profile *normalize.Profile) {
	for _, r := range records {
		b.Items = append(b.Items, Item{Record: r, Profile: profile})
	}
}

// truncate keeps the first limit items. A limit <= 0 keeps everything.
func (b *Batch) truncate(limit int) {
	if limit > 0 && len(b.Items) > limit {
		b.Items = b.Items[:limit]
	}
}

// Source fetches raw records from one external provider.
// Fetch only fails when the primary endpoint and every fallback failed.
type Source interface {
	Name() string
	Config() Config
	Fetch(ctx context.Context) (*Batch, error)
}

// Deps are the collaborators shared by every adapter.
type Deps struct {
	Client   Getter
	Parser   *parser.Parser
	Location *time.Location
	Now      func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// Factory builds a source from its configuration.
type Factory func(cfg Config, deps Deps) Source

// Registry keeps a mapping from source names to their constructors.
type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// DefaultRegistry knows the three built-in sources.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(string(bill.SourceNosDeputes), NewNosDeputes)
	r.Register(string(bill.SourceLaFabrique), NewLaFabrique)
	r.Register(string(bill.SourceEuroparl), NewEuroparl)
	return r
}

// Register adds or replaces a source constructor.
func (r *Registry) Register(name string, f Factory) {
	if r.factories == nil {
		r.factories = map[string]Factory{}
	}
	r.factories[name] = f
}

func (r *Registry) Build(cfg Config, deps Deps) (Source, error) {
	f, ok := r.factories[cfg.Name]
	if !ok {
		return nil, fmt.Errorf("source %s is not registered", cfg.Name)
	}
	if deps.Parser == nil {
		deps.Parser = parser.NewParser()
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	return f(cfg, deps), nil
}

// BuildEnabled builds the enabled sources in configuration order.
func (r *Registry) BuildEnabled(configs []Config, deps Deps) ([]Source, error) {
	var out []Source
	for _, c := range Enabled(configs) {
		s, err := r.Build(c, deps)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func capRecords(records []bill.RawRecord, limit int) []bill.RawRecord {
	if limit > 0 && len(records) > limit {
		return records[:limit]
	}
	return records
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}
