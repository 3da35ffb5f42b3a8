package postgres

import (
	"encoding/json"
	"fmt"
	"time"
)

// encodeJSONB marshals v for a JSONB parameter. A nil value maps to SQL NULL.
func encodeJSONB(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode jsonb value: %w", err)
	}
	return string(b), nil
}

// decodeJSONBMap unmarshals a JSONB object column. NULL yields an empty map.
func decodeJSONBMap(raw []byte) (map[string]any, error) {
	m := map[string]any{}
	if len(raw) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to decode jsonb object: %w", err)
	}
	return m, nil
}

// decodeJSONBValue unmarshals an arbitrary JSONB column. NULL yields nil.
func decodeJSONBValue(raw []byte) (any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("failed to decode jsonb value: %w", err)
	}
	return v, nil
}

// nullableTime maps a nil timestamp to SQL NULL.
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
