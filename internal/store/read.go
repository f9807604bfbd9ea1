package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/fieldsync/internal/mutation"
)

const selectColumns = `
	SELECT id, idempotency_key, tenant_id, resource, operation, record_id, payload,
	       created_at, status, attempts, last_attempt_at, last_error
	FROM mutations`

// GetByID retrieves a single record. The boolean is false when no record
// with that id exists.
func (s *Store) GetByID(ctx context.Context, id int64) (mutation.Record, bool, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return mutation.Record{}, false, nil
	}
	if err != nil {
		return mutation.Record{}, false, fmt.Errorf("get mutation %d: %w", id, err)
	}
	return rec, true, nil
}

// QueryPendingForTenant returns the tenant's pending records in FIFO order
// (created_at ASC, id ASC).
//
// Returns an empty slice (not nil) if there are none.
func (s *Store) QueryPendingForTenant(ctx context.Context, tenantID string) ([]mutation.Record, error) {
	return s.queryRecords(ctx, "query pending mutations", selectColumns+`
		WHERE tenant_id = ? AND status = ?
		ORDER BY created_at ASC, id ASC
	`, tenantID, string(mutation.StatusPending))
}

// ListOutstandingForTenant returns the tenant's pending and failed records
// in FIFO order. This is what a user sees as "not yet on the server".
func (s *Store) ListOutstandingForTenant(ctx context.Context, tenantID string) ([]mutation.Record, error) {
	return s.queryRecords(ctx, "list outstanding mutations", selectColumns+`
		WHERE tenant_id = ? AND status IN (?, ?)
		ORDER BY created_at ASC, id ASC
	`, tenantID, string(mutation.StatusPending), string(mutation.StatusFailed))
}

// CountOutstandingForTenant counts the tenant's pending and failed records.
func (s *Store) CountOutstandingForTenant(ctx context.Context, tenantID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM mutations
		WHERE tenant_id = ? AND status IN (?, ?)
	`, tenantID, string(mutation.StatusPending), string(mutation.StatusFailed)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count outstanding mutations: %w", err)
	}
	return count, nil
}

func (s *Store) queryRecords(ctx context.Context, op, query string, args ...any) ([]mutation.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	records := []mutation.Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}
	return records, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord scans one row produced by selectColumns.
func scanRecord(row rowScanner) (mutation.Record, error) {
	var (
		rec           mutation.Record
		operation     string
		status        string
		payloadJSON   string
		createdAt     int64
		lastAttemptAt sql.NullInt64
		lastError     sql.NullString
	)

	if err := row.Scan(
		&rec.ID, &rec.IdempotencyKey, &rec.TenantID, &rec.Resource, &operation,
		&rec.RecordID, &payloadJSON, &createdAt, &status, &rec.Attempts,
		&lastAttemptAt, &lastError,
	); err != nil {
		return mutation.Record{}, err
	}

	payload, err := unmarshalPayload(payloadJSON)
	if err != nil {
		return mutation.Record{}, fmt.Errorf("record %d: %w", rec.ID, err)
	}

	rec.Operation = mutation.Operation(operation)
	rec.Status = mutation.Status(status)
	rec.Payload = payload
	rec.CreatedAt = fromNanos(createdAt)
	if lastAttemptAt.Valid {
		t := fromNanos(lastAttemptAt.Int64)
		rec.LastAttemptAt = &t
	}
	if lastError.Valid {
		msg := lastError.String
		rec.LastError = &msg
	}
	return rec, nil
}
