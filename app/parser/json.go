package parser

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/constituant/constituant/app/bill"
)

// JSON decodes either a top-level array or the array stored under the first
// present key. Elements shaped like {"dossier": {...}} are unwrapped.
func (p *Parser) JSON(data []byte, keys ...string) ([]bill.RawRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var root any
	if err := dec.Decode(&root); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}

	var items []any
	switch v := root.(type) {
	case []any:
		items = v
	case map[string]any:
		found := false
		for _, key := range keys {
			if arr, ok := v[key].([]any); ok {
				items = arr
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("no array found under keys %v", keys)
		}
	default:
		return nil, fmt.Errorf("unexpected JSON root type %T", root)
	}

	records := make([]bill.RawRecord, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		records = append(records, bill.RawRecord(unwrap(obj)))
	}

	return records, nil
}

func unwrap(obj map[string]any) map[string]any {
	if len(obj) != 1 {
		return obj
	}
	for _, v := range obj {
		if inner, ok := v.(map[string]any); ok {
			return inner
		}
	}
	return obj
}
