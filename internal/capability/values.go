package capability

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// Values is a decoded JSON object, used for both task payloads and agent
// config. Accessors fall back to the given default when a key is missing or
// holds the wrong type.
type Values map[string]any

// String returns the string at key.
func (v Values) String(key, def string) string {
	if s, ok := v[key].(string); ok {
		return s
	}
	return def
}

// Int returns the integer at key. JSON numbers decode as float64.
func (v Values) Int(key string, def int) int {
	switch n := v[key].(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i)
		}
	}
	return def
}

// Float returns the number at key.
func (v Values) Float(key string, def float64) float64 {
	switch n := v[key].(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
	}
	return def
}

// Bool returns the boolean at key.
func (v Values) Bool(key string, def bool) bool {
	if b, ok := v[key].(bool); ok {
		return b
	}
	return def
}

// Strings returns the list of strings at key. Non-string elements are
// formatted with fmt.
func (v Values) Strings(key string, def []string) []string {
	switch list := v[key].(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			} else {
				out = append(out, fmt.Sprint(item))
			}
		}
		return out
	}
	return def
}

// Map returns the object at key, or an empty Values.
func (v Values) Map(key string) Values {
	switch m := v[key].(type) {
	case map[string]any:
		return Values(m)
	case Values:
		return m
	}
	return Values{}
}

// Records returns the list of objects at key. Elements that are not
// objects are skipped.
func (v Values) Records(key string) []map[string]any {
	switch list := v[key].(type) {
	case []map[string]any:
		return list
	case []any:
		out := make([]map[string]any, 0, len(list))
		for _, item := range list {
			if m, ok := item.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return []map[string]any{}
}

// Has reports whether key is present.
func (v Values) Has(key string) bool {
	_, ok := v[key]
	return ok
}

// round1 rounds to one decimal place.
func round1(f float64) float64 {
	return math.Round(f*10) / 10
}

// round2 rounds to two decimal places.
func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// percent returns part/max(total,1) as a percentage with one decimal.
func percent(part, total int) float64 {
	if total < 1 {
		total = 1
	}
	return round1(float64(part) / float64(total) * 100)
}

// stringify renders a record value the way it would be compared or shown.
func stringify(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// containsAny reports whether text contains any of the keywords.
func containsAny(text string, keywords ...string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
