package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fieldsync/internal/mutation"
)

func (tq testQueue) mustGet(t *testing.T, id int64) mutation.Record {
	t.Helper()
	rec, ok, err := tq.store.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.True(t, ok, "record %d missing", id)
	return rec
}

// failN drives id through n MarkSyncing/MarkFailed rounds.
func (tq testQueue) failN(t *testing.T, id int64, n int) mutation.Status {
	t.Helper()
	ctx := context.Background()
	var st mutation.Status
	for i := 0; i < n; i++ {
		require.NoError(t, tq.MarkSyncing(ctx, id))
		var err error
		st, err = tq.MarkFailed(ctx, id, "503 service unavailable")
		require.NoError(t, err)
	}
	return st
}

func TestMarkSyncing_StampsAttemptTime(t *testing.T) {
	tq := newTestQueue(t)
	rec := tq.enqueueN(t, "tenant-a", 1)[0]

	require.NoError(t, tq.MarkSyncing(context.Background(), rec.ID))

	got := tq.mustGet(t, rec.ID)
	assert.Equal(t, mutation.StatusSyncing, got.Status)
	require.NotNil(t, got.LastAttemptAt)
	assert.Equal(t, tq.clock.Now(), *got.LastAttemptAt)
}

func TestMarkSyncing_RejectsNonPending(t *testing.T) {
	tq := newTestQueue(t)
	ctx := context.Background()
	rec := tq.enqueueN(t, "tenant-a", 1)[0]
	require.NoError(t, tq.MarkSynced(ctx, rec.ID))

	err := tq.MarkSyncing(ctx, rec.ID)
	require.Error(t, err)
	assert.True(t, IsInvalidTransition(err))
	assert.Equal(t, mutation.StatusSynced, tq.mustGet(t, rec.ID).Status)
}

func TestTransitions_AbsentIDIsNoOp(t *testing.T) {
	tq := newTestQueue(t)
	ctx := context.Background()

	assert.NoError(t, tq.MarkSyncing(ctx, 999))
	assert.NoError(t, tq.MarkSynced(ctx, 999))

	st, err := tq.MarkFailed(ctx, 999, "boom")
	require.NoError(t, err)
	assert.Equal(t, mutation.Status(""), st)
}

func TestMarkFailed_ThreeAttemptsToFailed(t *testing.T) {
	tq := newTestQueue(t)
	ctx := context.Background()
	rec := tq.enqueueN(t, "tenant-a", 1)[0]

	for attempt := 1; attempt <= mutation.MaxRetries; attempt++ {
		require.NoError(t, tq.MarkSyncing(ctx, rec.ID))
		st, err := tq.MarkFailed(ctx, rec.ID, "connection refused")
		require.NoError(t, err)

		got := tq.mustGet(t, rec.ID)
		assert.Equal(t, attempt, got.Attempts)
		require.NotNil(t, got.LastError)
		assert.Equal(t, "connection refused", *got.LastError)

		if attempt < mutation.MaxRetries {
			assert.Equal(t, mutation.StatusPending, st, "attempt %d", attempt)
			assert.Equal(t, mutation.StatusPending, got.Status)
		} else {
			assert.Equal(t, mutation.StatusFailed, st)
			assert.Equal(t, mutation.StatusFailed, got.Status)
		}
		tq.clock.Advance(time.Minute)
	}

	count, err := tq.PendingCount(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, 1, count, "failed records stay outstanding")

	pending, err := tq.Pending(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Empty(t, pending, "failed records leave automatic processing")
}

func TestRetryItem_ResetsAttemptsKeepsError(t *testing.T) {
	tq := newTestQueue(t)
	ctx := context.Background()
	rec := tq.enqueueN(t, "tenant-a", 1)[0]
	require.Equal(t, mutation.StatusFailed, tq.failN(t, rec.ID, mutation.MaxRetries))

	require.NoError(t, tq.RetryItem(ctx, "tenant-a", rec.ID))

	got := tq.mustGet(t, rec.ID)
	assert.Equal(t, mutation.StatusPending, got.Status)
	assert.Equal(t, 0, got.Attempts)
	require.NotNil(t, got.LastError)
	assert.Equal(t, "503 service unavailable", *got.LastError)

	// A full new cycle is available.
	assert.Equal(t, mutation.StatusPending, tq.failN(t, rec.ID, mutation.MaxRetries-1))
	assert.Equal(t, mutation.StatusFailed, tq.failN(t, rec.ID, 1))
}

func TestDiscardItem_DeletesFailedRecord(t *testing.T) {
	tq := newTestQueue(t)
	ctx := context.Background()
	recs := tq.enqueueN(t, "tenant-a", 2)
	tq.failN(t, recs[0].ID, mutation.MaxRetries)

	require.NoError(t, tq.DiscardItem(ctx, "tenant-a", recs[0].ID))

	_, ok, err := tq.store.GetByID(ctx, recs[0].ID)
	require.NoError(t, err)
	assert.False(t, ok)

	count, err := tq.PendingCount(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestManualActions_RequireFailedStatus(t *testing.T) {
	tq := newTestQueue(t)
	ctx := context.Background()
	rec := tq.enqueueN(t, "tenant-a", 1)[0]

	err := tq.RetryItem(ctx, "tenant-a", rec.ID)
	assert.True(t, IsInvalidTransition(err), "got %v", err)

	err = tq.DiscardItem(ctx, "tenant-a", rec.ID)
	assert.True(t, IsInvalidTransition(err), "got %v", err)

	assert.Equal(t, mutation.StatusPending, tq.mustGet(t, rec.ID).Status)
}

func TestManualActions_OtherTenantIsNotFound(t *testing.T) {
	tq := newTestQueue(t)
	ctx := context.Background()
	rec := tq.enqueueN(t, "tenant-b", 1)[0]
	tq.failN(t, rec.ID, mutation.MaxRetries)

	err := tq.RetryItem(ctx, "tenant-a", rec.ID)
	assert.True(t, IsNotFound(err), "got %v", err)

	err = tq.DiscardItem(ctx, "tenant-a", rec.ID)
	assert.True(t, IsNotFound(err), "got %v", err)

	got := tq.mustGet(t, rec.ID)
	assert.Equal(t, mutation.StatusFailed, got.Status, "tenant-b record must be untouched")
	assert.Equal(t, mutation.MaxRetries, got.Attempts)

	err = tq.RetryItem(ctx, "tenant-a", 12345)
	assert.True(t, IsNotFound(err))
}

func TestError_Format(t *testing.T) {
	err := newError(ErrCodeNotFound, 7, "no mutation for tenant %q", "t")
	assert.Equal(t, `NOT_FOUND: no mutation for tenant "t" (id=7)`, err.Error())

	err = newError(ErrCodeInvalidInput, 0, "resource is required")
	assert.Equal(t, "INVALID_INPUT: resource is required", err.Error())
	assert.False(t, IsNotFound(err))
}
