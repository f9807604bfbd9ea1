package store

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/fieldsync/internal/mutation"
)

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// createTestStore creates a new store in a temp directory for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRecord creates a pending record with minimal required fields.
// seq offsets created_at by seq seconds and seeds a unique idempotency key.
func createTestRecord(tenantID, recordID string, seq int) mutation.Record {
	return mutation.Record{
		IdempotencyKey: fmt.Sprintf("key-%s-%s-%d", tenantID, recordID, seq),
		TenantID:       tenantID,
		Resource:       "plots",
		Operation:      mutation.OpUpdate,
		RecordID:       recordID,
		Payload:        mutation.Payload{"seq": seq},
		CreatedAt:      baseTime.Add(time.Duration(seq) * time.Second),
		Status:         mutation.StatusPending,
	}
}

// pragma returns the current value of a pragma as text.
func (s *Store) pragma(name string) (string, error) {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return "", fmt.Errorf("query %s: %w", name, err)
	}
	return value, nil
}
