package queue

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/fieldsync/internal/clock"
	"github.com/roach88/fieldsync/internal/mutation"
)

// Queue is the local mutation queue for all tenants sharing one store.
type Queue struct {
	repo   Repository
	clock  clock.Clock
	keys   KeyGenerator
	logger *slog.Logger
}

// Option configures a Queue.
type Option func(*Queue)

// WithClock sets the clock used for created_at and last_attempt_at.
func WithClock(c clock.Clock) Option {
	return func(q *Queue) { q.clock = c }
}

// WithKeyGenerator sets the idempotency key generator.
func WithKeyGenerator(g KeyGenerator) Option {
	return func(q *Queue) { q.keys = g }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// New creates a Queue over repo.
func New(repo Repository, opts ...Option) *Queue {
	q := &Queue{
		repo:   repo,
		clock:  clock.Real(),
		keys:   UUIDv7Generator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue persists a new pending record and returns it with its assigned
// local id.
//
// Resource and record id are NFC-normalized so that visually identical
// identifiers typed on different devices hash to the same entity when
// collapsing. The payload must be non-nil; an empty object is accepted so
// deletes need not carry a body.
func (q *Queue) Enqueue(ctx context.Context, in mutation.Input) (mutation.Record, error) {
	if err := validateInput(in); err != nil {
		return mutation.Record{}, err
	}

	rec := mutation.Record{
		IdempotencyKey: q.keys.Generate(),
		TenantID:       in.TenantID,
		Resource:       norm.NFC.String(in.Resource),
		Operation:      in.Operation,
		RecordID:       norm.NFC.String(in.RecordID),
		Payload:        in.Payload,
		CreatedAt:      q.clock.Now(),
		Status:         mutation.StatusPending,
	}

	id, err := q.repo.Insert(ctx, rec)
	if err != nil {
		return mutation.Record{}, fmt.Errorf("enqueue %s/%s: %w", rec.Resource, rec.RecordID, err)
	}
	rec.ID = id

	q.logger.Debug("mutation enqueued",
		"id", rec.ID,
		"tenant", rec.TenantID,
		"resource", rec.Resource,
		"operation", rec.Operation,
		"record_id", rec.RecordID,
	)
	return rec, nil
}

func validateInput(in mutation.Input) error {
	switch {
	case strings.TrimSpace(in.TenantID) == "":
		return newError(ErrCodeInvalidInput, 0, "tenant id is required")
	case strings.TrimSpace(in.Resource) == "":
		return newError(ErrCodeInvalidInput, 0, "resource is required")
	case strings.TrimSpace(in.RecordID) == "":
		return newError(ErrCodeInvalidInput, 0, "record id is required")
	case !in.Operation.Valid():
		return newError(ErrCodeInvalidInput, 0, "unknown operation %q", in.Operation)
	case in.Payload == nil:
		return newError(ErrCodeInvalidInput, 0, "payload is required")
	}
	return nil
}

// Pending returns the tenant's pending records in FIFO order. This is the
// work list for a sync pass.
func (q *Queue) Pending(ctx context.Context, tenantID string) ([]mutation.Record, error) {
	recs, err := q.repo.QueryPendingForTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query pending for %s: %w", tenantID, err)
	}
	return recs, nil
}

// PendingItems returns the tenant's pending and failed records in FIFO
// order, for review screens.
func (q *Queue) PendingItems(ctx context.Context, tenantID string) ([]mutation.Record, error) {
	recs, err := q.repo.ListOutstandingForTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list outstanding for %s: %w", tenantID, err)
	}
	return recs, nil
}

// PendingCount returns the number of pending and failed records for the
// tenant.
func (q *Queue) PendingCount(ctx context.Context, tenantID string) (int, error) {
	n, err := q.repo.CountOutstandingForTenant(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("count outstanding for %s: %w", tenantID, err)
	}
	return n, nil
}

// PurgeSynced deletes the tenant's synced records and returns how many were
// removed.
func (q *Queue) PurgeSynced(ctx context.Context, tenantID string) (int64, error) {
	n, err := q.repo.DeleteSyncedForTenant(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("purge synced for %s: %w", tenantID, err)
	}
	if n > 0 {
		q.logger.Debug("purged synced mutations", "tenant", tenantID, "count", n)
	}
	return n, nil
}

// RecoverInterrupted returns records left in syncing by an interrupted pass
// to pending. Attempts are unchanged: an interrupted attempt is not counted.
// Call it only while no pass is running for the tenant.
func (q *Queue) RecoverInterrupted(ctx context.Context, tenantID string) (int64, error) {
	n, err := q.repo.ResetSyncingForTenant(ctx, tenantID)
	if err != nil {
		return 0, fmt.Errorf("recover syncing for %s: %w", tenantID, err)
	}
	if n > 0 {
		q.logger.Warn("recovered interrupted mutations", "tenant", tenantID, "count", n)
	}
	return n, nil
}
