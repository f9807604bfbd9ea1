package queue

import (
	"context"
	"fmt"

	"github.com/roach88/fieldsync/internal/mutation"
)

// MarkSyncing moves a pending record to syncing and stamps the attempt time.
// An absent id is a no-op.
func (q *Queue) MarkSyncing(ctx context.Context, id int64) error {
	rec, ok, err := q.repo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("mark syncing %d: %w", id, err)
	}
	if !ok {
		return nil
	}
	if rec.Status != mutation.StatusPending {
		return newError(ErrCodeInvalidTransition, id, "cannot start syncing a %s record", rec.Status)
	}

	now := q.clock.Now()
	err = q.repo.UpdateStatus(ctx, id, mutation.Update{
		Status:        mutation.StatusPtr(mutation.StatusSyncing),
		LastAttemptAt: &now,
	})
	if err != nil {
		return fmt.Errorf("mark syncing %d: %w", id, err)
	}
	return nil
}

// MarkSynced marks a record as accepted by the server. An absent id is a
// no-op.
func (q *Queue) MarkSynced(ctx context.Context, id int64) error {
	err := q.repo.UpdateStatus(ctx, id, mutation.Update{
		Status: mutation.StatusPtr(mutation.StatusSynced),
	})
	if err != nil {
		return fmt.Errorf("mark synced %d: %w", id, err)
	}
	return nil
}

// MarkFailed records a failed attempt. The record returns to pending for the
// next pass, or becomes failed once attempts reach mutation.MaxRetries.
// Returns the resulting status, or "" when the id is absent.
func (q *Queue) MarkFailed(ctx context.Context, id int64, msg string) (mutation.Status, error) {
	rec, ok, err := q.repo.GetByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("mark failed %d: %w", id, err)
	}
	if !ok {
		return "", nil
	}

	attempts := rec.Attempts + 1
	next := mutation.StatusPending
	if attempts >= mutation.MaxRetries {
		next = mutation.StatusFailed
	}
	now := q.clock.Now()

	err = q.repo.UpdateStatus(ctx, id, mutation.Update{
		Status:        &next,
		Attempts:      &attempts,
		LastAttemptAt: &now,
		LastError:     &msg,
	})
	if err != nil {
		return "", fmt.Errorf("mark failed %d: %w", id, err)
	}

	if next == mutation.StatusFailed {
		q.logger.Warn("mutation exhausted retries",
			"id", id, "tenant", rec.TenantID, "attempts", attempts, "error", msg)
	}
	return next, nil
}

// RetryItem returns a failed record to pending with a fresh attempt budget.
// The last error is kept so it can still be shown next to the record.
func (q *Queue) RetryItem(ctx context.Context, tenantID string, id int64) error {
	if _, err := q.failedRecord(ctx, tenantID, id); err != nil {
		return err
	}

	zero := 0
	err := q.repo.UpdateStatus(ctx, id, mutation.Update{
		Status:   mutation.StatusPtr(mutation.StatusPending),
		Attempts: &zero,
	})
	if err != nil {
		return fmt.Errorf("retry %d: %w", id, err)
	}

	q.logger.Info("mutation queued for retry", "id", id, "tenant", tenantID)
	return nil
}

// DiscardItem permanently deletes a failed record.
func (q *Queue) DiscardItem(ctx context.Context, tenantID string, id int64) error {
	if _, err := q.failedRecord(ctx, tenantID, id); err != nil {
		return err
	}

	if _, err := q.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("discard %d: %w", id, err)
	}

	q.logger.Info("mutation discarded", "id", id, "tenant", tenantID)
	return nil
}

// failedRecord loads id and checks that it belongs to tenantID and is
// failed. Records of other tenants are reported as not found.
func (q *Queue) failedRecord(ctx context.Context, tenantID string, id int64) (mutation.Record, error) {
	rec, ok, err := q.repo.GetByID(ctx, id)
	if err != nil {
		return mutation.Record{}, fmt.Errorf("load %d: %w", id, err)
	}
	if !ok || rec.TenantID != tenantID {
		return mutation.Record{}, newError(ErrCodeNotFound, id, "no mutation for tenant %q", tenantID)
	}
	if rec.Status != mutation.StatusFailed {
		return mutation.Record{}, newError(ErrCodeInvalidTransition, id, "only failed mutations can be retried or discarded, status is %s", rec.Status)
	}
	return rec, nil
}
