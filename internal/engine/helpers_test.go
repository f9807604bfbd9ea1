package engine

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/roach88/fieldsync/internal/testutil"
)

const tenantT = "tenant-t"

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type harness struct {
	env     *testutil.Env
	applier *testutil.ScriptedApplier
	state   *State
	driver  *Driver
}

func newHarness(t *testing.T, tenants TenantProvider, opts ...DriverOption) *harness {
	t.Helper()
	env := testutil.NewEnv(t)
	applier := testutil.NewScriptedApplier()
	state := NewState()

	base := []DriverOption{WithDriverClock(env.Clock), WithDriverLogger(quietLogger)}
	d := NewDriver(env.Queue, applier, tenants, state, append(base, opts...)...)
	return &harness{env: env, applier: applier, state: state, driver: d}
}

func (h *harness) coordinator(opts ...CoordinatorOption) *Coordinator {
	base := []CoordinatorOption{WithCoordinatorClock(h.env.Clock), WithCoordinatorLogger(quietLogger)}
	return NewCoordinator(h.driver, append(base, opts...)...)
}

// collectUntil reads states from ch until done returns true for one of them.
func collectUntil(t *testing.T, ch <-chan RunState, done func(RunState) bool) []RunState {
	t.Helper()
	var seen []RunState
	timeout := time.After(5 * time.Second)
	for {
		select {
		case st, ok := <-ch:
			if !ok {
				t.Fatalf("subscription closed before condition; saw %d states", len(seen))
			}
			seen = append(seen, st)
			if done(st) {
				return seen
			}
		case <-timeout:
			t.Fatalf("timed out waiting for state; saw %v", statusSequence(seen))
		}
	}
}

// statusSequence returns the statuses in states with consecutive repeats
// removed.
func statusSequence(states []RunState) []Status {
	var out []Status
	for _, st := range states {
		if len(out) == 0 || out[len(out)-1] != st.Status {
			out = append(out, st.Status)
		}
	}
	return out
}

func statusIs(s Status) func(RunState) bool {
	return func(st RunState) bool { return st.Status == s }
}
