package testutil

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/fieldsync/internal/clock"
	"github.com/roach88/fieldsync/internal/mutation"
	"github.com/roach88/fieldsync/internal/queue"
	"github.com/roach88/fieldsync/internal/store"
)

// Epoch is the fake clock's starting time in every Env.
var Epoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// Env is a queue over a fresh database in t.TempDir().
//
// Time only moves when the test advances Clock, and idempotency keys are
// "key-1", "key-2", ... so output is byte-identical across runs.
type Env struct {
	Store *store.Store
	Queue *queue.Queue
	Clock *clock.FakeClock
	Path  string
}

// NewEnv creates an Env. The database is closed on test cleanup.
func NewEnv(t *testing.T) *Env {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fieldsync.db")
	s, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	c := clock.Fake(Epoch)
	q := queue.New(s, queue.WithClock(c), queue.WithKeyGenerator(queue.NewFixedGenerator()))
	return &Env{Store: s, Queue: q, Clock: c, Path: path}
}

// Enqueue adds an update for (resource, recordID) in tenant and advances the
// clock by one second, so consecutive calls get increasing timestamps.
func (e *Env) Enqueue(t *testing.T, tenant, resource, recordID string, payload mutation.Payload) mutation.Record {
	t.Helper()
	return e.EnqueueOp(t, tenant, mutation.OpUpdate, resource, recordID, payload)
}

// EnqueueOp is Enqueue with an explicit operation. A nil payload is sent
// as an empty object.
func (e *Env) EnqueueOp(t *testing.T, tenant string, op mutation.Operation, resource, recordID string, payload mutation.Payload) mutation.Record {
	t.Helper()
	if payload == nil {
		payload = mutation.Payload{}
	}
	rec, err := e.Queue.Enqueue(context.Background(), mutation.Input{
		TenantID:  tenant,
		Resource:  resource,
		Operation: op,
		RecordID:  recordID,
		Payload:   payload,
	})
	require.NoError(t, err)
	e.Clock.Advance(time.Second)
	return rec
}

// Get loads a record and fails the test if it is missing.
func (e *Env) Get(t *testing.T, id int64) mutation.Record {
	t.Helper()
	rec, ok, err := e.Store.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.True(t, ok, "record %d not found", id)
	return rec
}

// Exists reports whether a record is still stored.
func (e *Env) Exists(t *testing.T, id int64) bool {
	t.Helper()
	_, ok, err := e.Store.GetByID(context.Background(), id)
	require.NoError(t, err)
	return ok
}
