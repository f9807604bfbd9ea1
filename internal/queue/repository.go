package queue

import (
	"context"

	"github.com/roach88/fieldsync/internal/mutation"
)

// Repository is the durable storage the queue is built on.
// *store.Store implements it.
type Repository interface {
	Insert(ctx context.Context, rec mutation.Record) (int64, error)
	GetByID(ctx context.Context, id int64) (mutation.Record, bool, error)
	QueryPendingForTenant(ctx context.Context, tenantID string) ([]mutation.Record, error)
	ListOutstandingForTenant(ctx context.Context, tenantID string) ([]mutation.Record, error)
	CountOutstandingForTenant(ctx context.Context, tenantID string) (int, error)
	UpdateStatus(ctx context.Context, id int64, u mutation.Update) error
	DeleteSyncedForTenant(ctx context.Context, tenantID string) (int64, error)
	ResetSyncingForTenant(ctx context.Context, tenantID string) (int64, error)
	Delete(ctx context.Context, id int64) (bool, error)
}
