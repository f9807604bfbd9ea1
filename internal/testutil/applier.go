package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/roach88/fieldsync/internal/mutation"
)

// ErrRemoteUnavailable is the default error returned for a scripted failure.
var ErrRemoteUnavailable = errors.New("remote unavailable")

// ScriptedApplier is a remote.Applier whose outcome is scripted per entity
// record id. Every call is recorded in order.
//
// Thread-safety: all methods are safe for concurrent use.
type ScriptedApplier struct {
	mu      sync.Mutex
	calls   []mutation.Record
	fail    map[string]error
	failAll error
	gate    chan struct{}
	entered chan struct{}
}

// NewScriptedApplier creates an applier that accepts every mutation.
func NewScriptedApplier() *ScriptedApplier {
	return &ScriptedApplier{fail: make(map[string]error)}
}

// FailRecord makes every apply for recordID return err
// (ErrRemoteUnavailable when err is nil).
func (a *ScriptedApplier) FailRecord(recordID string, err error) *ScriptedApplier {
	if err == nil {
		err = ErrRemoteUnavailable
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fail[recordID] = err
	return a
}

// FailAll makes every apply return err. Pass nil to accept again.
func (a *ScriptedApplier) FailAll(err error) *ScriptedApplier {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failAll = err
	return a
}

// Block makes Apply wait until Release (or ctx cancellation). Entered
// receives a value each time a call starts waiting.
func (a *ScriptedApplier) Block() *ScriptedApplier {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.gate = make(chan struct{})
	a.entered = make(chan struct{}, 16)
	return a
}

// Entered signals each blocked call. Nil unless Block was called.
func (a *ScriptedApplier) Entered() <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.entered
}

// Release unblocks all current and future calls.
func (a *ScriptedApplier) Release() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.gate != nil {
		close(a.gate)
		a.gate = nil
	}
}

// Apply implements remote.Applier.
func (a *ScriptedApplier) Apply(ctx context.Context, rec mutation.Record) error {
	a.mu.Lock()
	a.calls = append(a.calls, rec)
	gate, entered := a.gate, a.entered
	err := a.failAll
	if e, ok := a.fail[rec.RecordID]; ok {
		err = e
	}
	a.mu.Unlock()

	if gate != nil {
		entered <- struct{}{}
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// Calls returns the records applied so far, in call order.
func (a *ScriptedApplier) Calls() []mutation.Record {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]mutation.Record, len(a.calls))
	copy(out, a.calls)
	return out
}

// CallCount returns the number of Apply calls.
func (a *ScriptedApplier) CallCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}
