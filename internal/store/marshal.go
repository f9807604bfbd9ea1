package store

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/fieldsync/internal/mutation"
)

// marshalPayload converts a payload to JSON TEXT for storage.
// HTML escaping is disabled so the stored text matches what the client wrote.
// A nil payload is stored as "{}".
func marshalPayload(p mutation.Payload) (string, error) {
	if p == nil {
		return "{}", nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(map[string]any(p)); err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalPayload parses stored JSON TEXT back into a payload.
// Numbers decode as json.Number to avoid float64 precision loss for
// integers > 2^53.
func unmarshalPayload(data string) (mutation.Payload, error) {
	if data == "" || data == "{}" {
		return mutation.Payload{}, nil
	}
	dec := json.NewDecoder(strings.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	if m == nil {
		m = map[string]any{}
	}
	return mutation.Payload(m), nil
}

func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func nullableNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toNanos(*t), Valid: true}
}

func nullableString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
