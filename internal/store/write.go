package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/fieldsync/internal/mutation"
)

// Insert writes a new mutation record and returns its store-assigned id.
// The record's ID field is ignored. A duplicate idempotency key is an error:
// keys are generated fresh at enqueue time and must never collide.
func (s *Store) Insert(ctx context.Context, rec mutation.Record) (int64, error) {
	payloadJSON, err := marshalPayload(rec.Payload)
	if err != nil {
		return 0, fmt.Errorf("insert mutation: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO mutations
		(idempotency_key, tenant_id, resource, operation, record_id, payload,
		 created_at, status, attempts, last_attempt_at, last_error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.IdempotencyKey,
		rec.TenantID,
		rec.Resource,
		string(rec.Operation),
		rec.RecordID,
		payloadJSON,
		toNanos(rec.CreatedAt),
		string(rec.Status),
		rec.Attempts,
		nullableNanos(rec.LastAttemptAt),
		nullableString(rec.LastError),
	)
	if err != nil {
		return 0, fmt.Errorf("insert mutation: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert mutation: last insert id: %w", err)
	}
	return id, nil
}

// UpdateStatus writes the set fields of u onto record id.
// Updating an id that does not exist is a no-op, as is an empty update.
func (s *Store) UpdateStatus(ctx context.Context, id int64, u mutation.Update) error {
	if u.Empty() {
		return nil
	}

	var (
		sets []string
		args []any
	)
	if u.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*u.Status))
	}
	if u.Attempts != nil {
		sets = append(sets, "attempts = ?")
		args = append(args, *u.Attempts)
	}
	if u.LastAttemptAt != nil {
		sets = append(sets, "last_attempt_at = ?")
		args = append(args, toNanos(*u.LastAttemptAt))
	}
	switch {
	case u.ClearLastError:
		sets = append(sets, "last_error = NULL")
	case u.LastError != nil:
		sets = append(sets, "last_error = ?")
		args = append(args, *u.LastError)
	}
	args = append(args, id)

	query := "UPDATE mutations SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update mutation %d: %w", id, err)
	}
	return nil
}

// DeleteSyncedForTenant purges every synced record of a tenant and returns
// the number of rows removed.
func (s *Store) DeleteSyncedForTenant(ctx context.Context, tenantID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM mutations
		WHERE tenant_id = ? AND status = ?
	`, tenantID, string(mutation.StatusSynced))
	if err != nil {
		return 0, fmt.Errorf("purge synced mutations: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge synced mutations: rows affected: %w", err)
	}
	return n, nil
}

// ResetSyncingForTenant returns a tenant's syncing records to pending and
// reports how many were reset. A record is only left in syncing when the
// process stopped mid-pass, so this runs before each pass.
func (s *Store) ResetSyncingForTenant(ctx context.Context, tenantID string) (int64, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE mutations SET status = ?
		WHERE tenant_id = ? AND status = ?
	`, string(mutation.StatusPending), tenantID, string(mutation.StatusSyncing))
	if err != nil {
		return 0, fmt.Errorf("reset syncing mutations: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset syncing mutations: rows affected: %w", err)
	}
	return n, nil
}

// Delete removes one record. Reports whether a row was deleted.
func (s *Store) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM mutations WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete mutation %d: %w", id, err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete mutation %d: rows affected: %w", id, err)
	}
	return n > 0, nil
}
