package sources

import (
	"cmp"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/constituant/constituant/app/bill"
	"gopkg.in/yaml.v3"
)

const (
	DefaultMaxItems = 50
	DefaultTimeout  = 30
)

// Config is the settings of one source as read from sources.yml.
type Config struct {
	Name                string            `yaml:"-"`
	Enabled             bool              `yaml:"enabled"`
	Priority            int               `yaml:"priority"`
	Level               bill.Level        `yaml:"level"`
	BaseURL             string            `yaml:"base_url"`
	Endpoints           map[string]string `yaml:"endpoints"`
	FallbackURL         string            `yaml:"fallback_url"`
	Delay               int               `yaml:"delay"`   // seconds
	Timeout             int               `yaml:"timeout"` // seconds
	MaxItems            int               `yaml:"max_items"`
	StaleDays           int               `yaml:"stale_days"`
	ProvisionalVoteDate bool              `yaml:"provisional_vote_date"`
	Filters             []Filter          `yaml:"filters"`
}

func (c Config) DelayDuration() time.Duration {
	return time.Duration(c.Delay) * time.Second
}

func (c Config) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// Endpoint joins the base URL with the named endpoint. Absolute endpoints are returned as is.
func (c Config) Endpoint(name string) string {
	path, ok := c.Endpoints[name]
	if !ok || path == "" {
		return ""
	}
	if len(path) > 4 && path[:4] == "http" {
		return path
	}
	return c.BaseURL + path
}

// DefaultConfigs returns the built-in table used when sources.yml is absent.
// Each call returns fresh values.
func DefaultConfigs() map[string]Config {
	return map[string]Config{
		string(bill.SourceNosDeputes): {
			Name:     string(bill.SourceNosDeputes),
			Enabled:  true,
			Priority: 1,
			Level:    bill.LevelFrance,
			BaseURL:  "https://www.nosdeputes.fr",
			Endpoints: map[string]string{
				"dossiers":          "/dossiers/date/json",
				"dossiers_fallback": "/dossiers/json",
				"scrutins":          "/17/scrutins/json",
			},
			Delay:    2,
			Timeout:  DefaultTimeout,
			MaxItems: DefaultMaxItems,
		},
		string(bill.SourceLaFabrique): {
			Name:     string(bill.SourceLaFabrique),
			Enabled:  true,
			Priority: 2,
			Level:    bill.LevelFrance,
			BaseURL:  "https://www.lafabriquedelaloi.fr",
			Endpoints: map[string]string{
				"dossiers": "/api/dossiers.csv",
			},
			Delay:               3,
			Timeout:             DefaultTimeout,
			MaxItems:            DefaultMaxItems,
			StaleDays:           730,
			ProvisionalVoteDate: true,
			Filters: []Filter{
				{
					Field:      "État du dossier",
					Excludes:   []string{"adopté", "rejeté", "promulgué", "abandon"},
					Includes:   []string{"en cours", "dépos"},
					AllowEmpty: true,
				},
			},
		},
		string(bill.SourceEuroparl): {
			Name:     string(bill.SourceEuroparl),
			Enabled:  true,
			Priority: 3,
			Level:    bill.LevelEU,
			BaseURL:  "https://data.europarl.europa.eu",
			Endpoints: map[string]string{
				"documents": "/api/v2/documents",
			},
			FallbackURL: "https://oeil.secure.europarl.europa.eu/oeil/rss/search.do?type=legislative",
			Delay:       1,
			Timeout:     DefaultTimeout,
			MaxItems:    DefaultMaxItems,
		},
	}
}

type configFile struct {
	Sources map[string]yaml.Node `yaml:"sources"`
}

// LoadConfigs reads the source table from path. A missing file yields the
// built-in defaults. Values present in the file override the defaults of the
// same source. The result is sorted by priority.
func LoadConfigs(path string) ([]Config, error) {
	configs := DefaultConfigs()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		slog.Debug("Sources file not found, using defaults", "path", path)
		return sorted(configs), nil
	case err != nil:
		return nil, fmt.Errorf("failed to read sources file: %w", err)
	}

	configs, err = ParseConfigs(data, configs)
	if err != nil {
		return nil, fmt.Errorf("invalid sources file %s: %w", path, err)
	}

	out := sorted(configs)
	for _, c := range out {
		slog.Debug("Source configuration loaded", "source", c.Name, "enabled", c.Enabled, "priority", c.Priority)
	}
	return out, nil
}

// ParseConfigs overlays YAML data onto base and validates the result.
func ParseConfigs(data []byte, base map[string]Config) (map[string]Config, error) {
	var file configFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for name, node := range file.Sources {
		c, ok := base[name]
		if !ok {
			return nil, fmt.Errorf("unknown source %q", name)
		}
		if err := node.Decode(&c); err != nil {
			return nil, fmt.Errorf("failed to decode source %s: %w", name, err)
		}
		c.Name = name
		if c.MaxItems == 0 {
			c.MaxItems = DefaultMaxItems
		}
		if c.Timeout == 0 {
			c.Timeout = DefaultTimeout
		}
		base[name] = c
	}

	for _, c := range base {
		if err := validateConfig(c); err != nil {
			return nil, fmt.Errorf("source %s: %w", c.Name, err)
		}
	}
	return base, nil
}

func validateConfig(c Config) error {
	if !c.Level.Valid() {
		return fmt.Errorf("invalid level %q", c.Level)
	}
	if c.Enabled && c.BaseURL == "" {
		return fmt.Errorf("base URL is required")
	}

	nonNegativeFields := map[string]int{
		"priority":   c.Priority,
		"delay":      c.Delay,
		"timeout":    c.Timeout,
		"max items":  c.MaxItems,
		"stale days": c.StaleDays,
	}
	for fieldName, fieldValue := range nonNegativeFields {
		if fieldValue < 0 {
			return fmt.Errorf("%s must be non-negative", fieldName)
		}
	}

	for i, filter := range c.Filters {
		if filter.Field == "" {
			return fmt.Errorf("filter at index %d has no field", i)
		}
		if len(filter.Includes) == 0 && len(filter.Excludes) == 0 {
			return fmt.Errorf("filter at index %d must have at least one include or exclude rule", i)
		}
	}
	return nil
}

// sorted orders configs by priority; 1 runs first.
func sorted(configs map[string]Config) []Config {
	out := make([]Config, 0, len(configs))
	for _, c := range configs {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b Config) int {
		return cmp.Or(cmp.Compare(a.Priority, b.Priority), cmp.Compare(a.Name, b.Name))
	})
	return out
}

// Enabled keeps the enabled configs, preserving order.
func Enabled(configs []Config) []Config {
	out := make([]Config, 0, len(configs))
	for _, c := range configs {
		if c.Enabled {
			out = append(out, c)
		}
	}
	return out
}
