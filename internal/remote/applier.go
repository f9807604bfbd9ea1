// Package remote delivers queued mutations to the backend.
package remote

import (
	"context"

	"github.com/roach88/fieldsync/internal/mutation"
)

// Applier sends one mutation to the backend. A nil error means the backend
// accepted it. Every error is treated as retryable by the sync driver.
type Applier interface {
	Apply(ctx context.Context, rec mutation.Record) error
}

// ApplierFunc adapts a plain function to Applier.
type ApplierFunc func(ctx context.Context, rec mutation.Record) error

// Apply calls f(ctx, rec).
func (f ApplierFunc) Apply(ctx context.Context, rec mutation.Record) error {
	return f(ctx, rec)
}
