package database

import (
	"database/sql"
	"encoding/json"
)

func encodeList(list []string) any {
	if len(list) == 0 {
		return nil
	}
	data, err := json.Marshal(list)
	if err != nil {
		return nil
	}
	return string(data)
}

func decodeList(ns sql.NullString) []string {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(ns.String), &list); err != nil {
		return nil
	}
	return list
}

// classificationColumns are read and written in this order by every repository.
var classificationColumns = []string{
	"theme", "ai_summary", "ai_abstract", "ai_pros", "ai_cons", "ai_affected", "ai_confidence", "ai_processed_at",
}

type classificationScan struct {
	theme       string
	summary     sql.NullString
	abstract    sql.NullString
	pros        sql.NullString
	cons        sql.NullString
	affected    sql.NullString
	confidence  sql.NullFloat64
	processedAt sql.NullTime
}

func (c *classificationScan) dest() []any {
	return []any{&c.theme, &c.summary, &c.abstract, &c.pros, &c.cons, &c.affected, &c.confidence, &c.processedAt}
}

func (c *classificationScan) value() Classification {
	return Classification{
		Theme:       c.theme,
		Summary:     c.summary.String,
		Abstract:    c.abstract.String,
		Pros:        decodeList(c.pros),
		Cons:        decodeList(c.cons),
		Affected:    decodeList(c.affected),
		Confidence:  c.confidence.Float64,
		ProcessedAt: timePtr(c.processedAt),
	}
}

func classificationValues(c Classification) map[string]any {
	var confidence any
	if c.ProcessedAt != nil {
		confidence = c.Confidence
	}
	return map[string]any{
		"theme":           c.Theme,
		"ai_summary":      nullString(c.Summary),
		"ai_abstract":     nullString(c.Abstract),
		"ai_pros":         encodeList(c.Pros),
		"ai_cons":         encodeList(c.Cons),
		"ai_affected":     encodeList(c.Affected),
		"ai_confidence":   confidence,
		"ai_processed_at": nullTime(c.ProcessedAt),
	}
}
