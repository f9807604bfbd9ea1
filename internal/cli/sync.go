package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/fieldsync/internal/engine"
)

// SyncResult is the JSON payload of the sync command.
type SyncResult struct {
	Pass         engine.PassResult `json:"pass"`
	PendingCount int               `json:"pending_count"`
}

// NewSyncCommand creates the sync command.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run one sync pass now",
		Long: `Send the active tenant's pending mutations to the backend once.

Mutations are applied oldest first. A failed mutation is retried on later
passes until it has failed 3 times, after which it waits for retry or
discard. Exits 1 if any mutation failed or the pass was aborted.

Example:
  fieldsync sync --tenant farm-7
  fieldsync sync --config ./fieldsync.yaml --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return syncOnce(rootOpts, cmd)
		},
	}
}

func syncOnce(opts *RootOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	a, err := openApp(opts, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	tenant, err := a.tenant()
	if err != nil {
		return err
	}
	applier, err := a.applier(opts)
	if err != nil {
		return err
	}

	driver := a.newDriver(engine.StaticTenant(tenant), applier)
	formatter.VerboseLog("Syncing tenant %s", tenant)

	pass, err := driver.RunPass(commandContext(cmd))
	if err != nil {
		_ = formatter.Error(ErrCodeSyncFailed, err.Error(), pass)
		return reported(WrapExitError(ExitFailure, "sync pass aborted", err))
	}

	state := driver.State().Snapshot()
	result := SyncResult{Pass: pass, PendingCount: state.PendingCount}

	if state.Status == engine.StatusError {
		if formatter.Format != "json" {
			writeSyncSummary(formatter.Writer, tenant, result)
		}
		_ = formatter.Error(ErrCodeSyncFailed, state.LastError, result)
		return reported(NewExitError(ExitFailure, state.LastError))
	}

	return formatter.Render(result, func(w io.Writer) error {
		writeSyncSummary(w, tenant, result)
		return nil
	})
}

func writeSyncSummary(w io.Writer, tenant string, r SyncResult) {
	if !r.Pass.Ran() {
		fmt.Fprintf(w, "Sync skipped for tenant %s: %s\n", tenant, r.Pass.Skipped)
		return
	}
	fmt.Fprintf(w, "Synced %d of %d mutation(s) for tenant %s", r.Pass.Synced, r.Pass.Total, tenant)
	if r.Pass.Superseded > 0 {
		fmt.Fprintf(w, ", %d superseded", r.Pass.Superseded)
	}
	fmt.Fprintf(w, " (%d outstanding)\n", r.PendingCount)
}
