package bill

import (
	"encoding/json"
	"strconv"
	"strings"
)

// RawRecord is one loosely-typed item as decoded from a source payload.
type RawRecord map[string]any

// Lookup returns the first candidate key holding a non-blank scalar value.
// Numbers are rendered without exponent; nested objects and arrays are ignored.
func (r RawRecord) Lookup(keys ...string) (string, bool) {
	for _, key := range keys {
		v, ok := r[key]
		if !ok || v == nil {
			continue
		}
		if s, ok := scalarString(v); ok {
			if s = strings.TrimSpace(s); s != "" {
				return s, true
			}
		}
	}
	return "", false
}

// Record returns a nested object stored under key.
func (r RawRecord) Record(key string) (RawRecord, bool) {
	switch v := r[key].(type) {
	case map[string]any:
		return RawRecord(v), true
	case RawRecord:
		return v, true
	}
	return nil, false
}

func (r RawRecord) JSON() json.RawMessage {
	data, err := json.Marshal(r)
	if err != nil {
		return nil
	}
	return data
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case int:
		return strconv.Itoa(t), true
	case int64:
		return strconv.FormatInt(t, 10), true
	case bool:
		return strconv.FormatBool(t), true
	}
	return "", false
}
