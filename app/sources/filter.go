package sources

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/constituant/constituant/app/bill"
)

// Filter keeps or drops a record by a case-insensitive substring match on one field.
type Filter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes"`
	Excludes []string `yaml:"excludes"`
	// AllowEmpty lets a record with an empty field through the include rule.
	AllowEmpty bool `yaml:"allow_empty"`
}

type Filterer struct{}

func NewFilterer() *Filterer {
	return &Filterer{}
}

// Run returns the records passing every filter and the number dropped.
func (f *Filterer) Run(records []bill.RawRecord, filters []Filter) ([]bill.RawRecord, int) {
	if len(filters) == 0 {
		return records, 0
	}

	kept := make([]bill.RawRecord, 0, len(records))
	dropped := 0
	for _, record := range records {
		if isFiltered, reason := f.applyFilters(record, filters); isFiltered {
			slog.Debug("Record filtered", "reason", reason)
			dropped++
			continue
		}
		kept = append(kept, record)
	}

	return kept, dropped
}

func (f *Filterer) applyFilters(record bill.RawRecord, filters []Filter) (bool, string) {
	for _, filter := range filters {
		value, _ := record.Lookup(filter.Field)

		for _, exclude := range filter.Excludes {
			if f.matchesFilter(value, exclude) {
				return true, fmt.Sprintf("Excluded by %s filter: contains '%s'", filter.Field, exclude)
			}
		}

		if len(filter.Includes) > 0 {
			if filter.AllowEmpty && strings.TrimSpace(value) == "" {
				continue
			}
			matched := false
			for _, include := range filter.Includes {
				if f.matchesFilter(value, include) {
					matched = true
					break
				}
			}
			if !matched {
				return true, fmt.Sprintf("Excluded by %s filter: does not contain any of %v", filter.Field, filter.Includes)
			}
		}
	}

	return false, ""
}

func (f *Filterer) matchesFilter(value, pattern string) bool {
	return strings.Contains(strings.ToLower(value), strings.ToLower(pattern))
}
