package repository

import (
	"encoding/json"
	"time"
)

// marshalNullable encodes v for a JSONB column, returning nil (SQL NULL) for nil input.
func marshalNullable(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

// unmarshalNullable decodes a JSONB column into dst, leaving dst untouched on NULL.
func unmarshalNullable(raw []byte, dst any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
