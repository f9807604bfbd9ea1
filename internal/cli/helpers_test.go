package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/fieldsync/internal/clock"
	"github.com/roach88/fieldsync/internal/config"
	"github.com/roach88/fieldsync/internal/queue"
	"github.com/roach88/fieldsync/internal/testutil"
)

const testTenant = "farm-7"

// cliEnv runs commands against one database with a fake clock, fixed
// idempotency keys and a scripted backend.
type cliEnv struct {
	db      string
	clock   *clock.FakeClock
	keys    *queue.FixedGenerator
	applier *testutil.ScriptedApplier
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	t.Setenv(config.EnvVar, "")
	return &cliEnv{
		db:      filepath.Join(t.TempDir(), "fieldsync.db"),
		clock:   clock.Fake(testutil.Epoch),
		keys:    queue.NewFixedGenerator(),
		applier: testutil.NewScriptedApplier(),
	}
}

type cliResult struct {
	stdout string
	stderr string
	err    error
}

func (e *cliEnv) options() *RootOptions {
	return &RootOptions{Clock: e.clock, Keys: e.keys, Applier: e.applier}
}

// exec runs the root command with --db and --tenant appended to args.
func (e *cliEnv) exec(t *testing.T, args ...string) cliResult {
	t.Helper()
	return e.execContext(t, context.Background(), e.options(), args...)
}

func (e *cliEnv) execContext(t *testing.T, ctx context.Context, opts *RootOptions, args ...string) cliResult {
	t.Helper()
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := newRootCommand(opts)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(append(args, "--db", e.db, "--tenant", testTenant))
	err := cmd.ExecuteContext(ctx)
	return cliResult{stdout: out.String(), stderr: errOut.String(), err: err}
}

// enqueue adds an update through the CLI and advances the clock by one
// second.
func (e *cliEnv) enqueue(t *testing.T, resource, recordID string, extra ...string) {
	t.Helper()
	args := append([]string{"enqueue", "--resource", resource, "--record", recordID}, extra...)
	res := e.exec(t, args...)
	require.NoError(t, res.err, res.stdout+res.stderr)
	e.clock.Advance(time.Second)
}

// decode parses a JSON envelope from stdout.
func decode(t *testing.T, stdout string, data any) CLIResponse {
	t.Helper()
	var resp struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp), stdout)
	if data != nil && len(resp.Data) > 0 {
		require.NoError(t, json.Unmarshal(resp.Data, data))
	}
	return CLIResponse{Status: resp.Status, Error: resp.Error}
}
