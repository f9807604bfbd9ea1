package queue

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fieldsync/internal/clock"
	"github.com/roach88/fieldsync/internal/mutation"
	"github.com/roach88/fieldsync/internal/store"
)

var baseTime = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

var _ Repository = (*store.Store)(nil)

type testQueue struct {
	*Queue
	store *store.Store
	clock *clock.FakeClock
}

// newTestQueue creates a queue over a fresh store with a fake clock and
// deterministic keys.
func newTestQueue(t *testing.T) testQueue {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	c := clock.Fake(baseTime)
	q := New(s, WithClock(c), WithKeyGenerator(NewFixedGenerator()))
	return testQueue{Queue: q, store: s, clock: c}
}

func input(tenant, recordID string) mutation.Input {
	return mutation.Input{
		TenantID:  tenant,
		Resource:  "plots",
		Operation: mutation.OpUpdate,
		RecordID:  recordID,
		Payload:   mutation.Payload{"crop": "barley"},
	}
}

// enqueueN enqueues n records one second apart.
func (tq testQueue) enqueueN(t *testing.T, tenant string, n int) []mutation.Record {
	t.Helper()
	recs := make([]mutation.Record, 0, n)
	for i := 0; i < n; i++ {
		rec, err := tq.Enqueue(context.Background(), input(tenant, "A"))
		require.NoError(t, err)
		recs = append(recs, rec)
		tq.clock.Advance(time.Second)
	}
	return recs
}

func TestEnqueue_PersistsPendingRecord(t *testing.T) {
	tq := newTestQueue(t)
	ctx := context.Background()

	rec, err := tq.Enqueue(ctx, input("tenant-a", "plot-7"))
	require.NoError(t, err)

	assert.NotZero(t, rec.ID)
	assert.Equal(t, "key-1", rec.IdempotencyKey)
	assert.Equal(t, mutation.StatusPending, rec.Status)
	assert.Equal(t, 0, rec.Attempts)
	assert.Equal(t, baseTime, rec.CreatedAt)
	assert.Nil(t, rec.LastAttemptAt)
	assert.Nil(t, rec.LastError)

	stored, ok, err := tq.store.GetByID(ctx, rec.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "tenant-a", stored.TenantID)
	assert.Equal(t, "plot-7", stored.RecordID)
	assert.Equal(t, "barley", stored.Payload["crop"])
}

func TestEnqueue_EmptyPayloadAccepted(t *testing.T) {
	tq := newTestQueue(t)
	in := input("tenant-a", "A")
	in.Operation = mutation.OpDelete
	in.Payload = mutation.Payload{}

	rec, err := tq.Enqueue(context.Background(), in)
	require.NoError(t, err)
	assert.NotNil(t, rec.Payload)
	assert.Empty(t, rec.Payload)
}

func TestEnqueue_NormalizesIdentifiers(t *testing.T) {
	tq := newTestQueue(t)
	in := input("tenant-a", "cafe\u0301")
	in.Resource = "re\u0301colte"

	rec, err := tq.Enqueue(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "caf\u00e9", rec.RecordID)
	assert.Equal(t, "r\u00e9colte", rec.Resource)
}

func TestEnqueue_RejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*mutation.Input)
	}{
		{"missing tenant", func(in *mutation.Input) { in.TenantID = "" }},
		{"blank tenant", func(in *mutation.Input) { in.TenantID = "  " }},
		{"missing resource", func(in *mutation.Input) { in.Resource = "" }},
		{"missing record id", func(in *mutation.Input) { in.RecordID = "" }},
		{"unknown operation", func(in *mutation.Input) { in.Operation = "upsert" }},
		{"nil payload", func(in *mutation.Input) { in.Payload = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tq := newTestQueue(t)
			in := input("tenant-a", "A")
			tt.mutate(&in)

			_, err := tq.Enqueue(context.Background(), in)
			require.Error(t, err)
			assert.True(t, IsInvalidInput(err), "got %v", err)

			n, err := tq.PendingCount(context.Background(), "tenant-a")
			require.NoError(t, err)
			assert.Equal(t, 0, n, "nothing may be stored on rejected input")
		})
	}
}

func TestEnqueue_NPendingItemsInCreationOrder(t *testing.T) {
	for _, n := range []int{0, 1, 5, 20} {
		tq := newTestQueue(t)
		ctx := context.Background()
		tq.enqueueN(t, "tenant-a", n)

		items, err := tq.PendingItems(ctx, "tenant-a")
		require.NoError(t, err)
		require.Len(t, items, n)
		for i := 1; i < len(items); i++ {
			assert.True(t, items[i-1].CreatedAt.Before(items[i].CreatedAt))
		}

		count, err := tq.PendingCount(ctx, "tenant-a")
		require.NoError(t, err)
		assert.Equal(t, n, count)
	}
}

func TestEnqueue_IdenticalInputsGetDistinctKeys(t *testing.T) {
	tq := newTestQueue(t)
	ctx := context.Background()

	first, err := tq.Enqueue(ctx, input("tenant-a", "A"))
	require.NoError(t, err)
	second, err := tq.Enqueue(ctx, input("tenant-a", "A"))
	require.NoError(t, err)

	assert.NotEqual(t, first.IdempotencyKey, second.IdempotencyKey)
	assert.NotEqual(t, first.ID, second.ID)

	count, err := tq.PendingCount(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestUUIDv7Generator_Unique(t *testing.T) {
	gen := UUIDv7Generator{}
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		k := gen.Generate()
		require.Len(t, k, 36)
		require.False(t, seen[k], "duplicate key %s", k)
		seen[k] = true
	}
}

func TestFixedGenerator_Sequence(t *testing.T) {
	gen := NewFixedGenerator("alpha", "beta")
	assert.Equal(t, "alpha", gen.Generate())
	assert.Equal(t, "beta", gen.Generate())
	assert.Equal(t, "key-3", gen.Generate())
}

func TestPurgeSynced_LeavesPendingUntouched(t *testing.T) {
	tq := newTestQueue(t)
	ctx := context.Background()
	recs := tq.enqueueN(t, "tenant-a", 2)

	require.NoError(t, tq.MarkSynced(ctx, recs[0].ID))

	n, err := tq.PurgeSynced(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, ok, err := tq.store.GetByID(ctx, recs[0].ID)
	require.NoError(t, err)
	assert.False(t, ok, "synced record must be removed")

	other, ok, err := tq.store.GetByID(ctx, recs[1].ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, mutation.StatusPending, other.Status)
}

func TestTenantIsolation_QueueReads(t *testing.T) {
	tq := newTestQueue(t)
	ctx := context.Background()
	tq.enqueueN(t, "tenant-a", 3)
	b := tq.enqueueN(t, "tenant-b", 1)

	itemsB, err := tq.PendingItems(ctx, "tenant-b")
	require.NoError(t, err)
	require.Len(t, itemsB, 1)
	assert.Equal(t, b[0].ID, itemsB[0].ID)

	pendingA, err := tq.Pending(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Len(t, pendingA, 3)

	n, err := tq.PurgeSynced(ctx, "tenant-b")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRecoverInterrupted(t *testing.T) {
	tq := newTestQueue(t)
	ctx := context.Background()
	rec := tq.enqueueN(t, "tenant-a", 1)[0]
	require.NoError(t, tq.MarkSyncing(ctx, rec.ID))

	pending, err := tq.Pending(ctx, "tenant-a")
	require.NoError(t, err)
	require.Empty(t, pending, "syncing records are not pending")

	n, err := tq.RecoverInterrupted(ctx, "tenant-a")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	pending, err = tq.Pending(ctx, "tenant-a")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, 0, pending[0].Attempts)
}
