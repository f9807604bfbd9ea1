package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/fieldsync/internal/engine"
	"github.com/roach88/fieldsync/internal/netwatch"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	SyncOnStart bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the sync daemon",
		Long: `Run the sync daemon for the active tenant.

The daemon watches connectivity and drains the queue every time the
backend becomes reachable. Connectivity comes from, in order of
preference:

  sync.signal_file   a file containing "online" or "offline"
  remote.health_url  polled every sync.probe_interval; 2xx means online

With neither configured the backend is assumed reachable. The pending
count is refreshed every sync.refresh_interval.

Example:
  fieldsync run --config ./fieldsync.yaml
  fieldsync run --tenant farm-7 --db ./queue.db --verbose`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.SyncOnStart, "sync-on-start", true, "run a pass at startup when already online")

	return cmd
}

func runDaemon(opts *RunOptions, cmd *cobra.Command) error {
	a, err := openApp(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	prevLogger := slog.Default()
	slog.SetDefault(a.logger)
	defer slog.SetDefault(prevLogger)

	tenant, err := a.tenant()
	if err != nil {
		return err
	}
	applier, err := a.applier(opts.RootOptions)
	if err != nil {
		return err
	}

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			a.logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	signals, source, err := connectivitySource(ctx, opts.RootOptions, a)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start connectivity source", err)
	}

	driver := a.newDriver(engine.StaticTenant(tenant), applier)
	coordinator := engine.NewCoordinator(driver,
		engine.WithRefreshInterval(a.cfg.Sync.RefreshInterval.D()),
		engine.WithSyncOnStart(opts.SyncOnStart),
		engine.WithInitialOnline(signals == nil),
		engine.WithCoordinatorClock(a.clock),
		engine.WithCoordinatorLogger(a.logger),
	)

	states, unsubscribe := coordinator.State().Subscribe()
	logged := make(chan struct{})
	go func() {
		defer close(logged)
		logTransitions(a.logger, states)
	}()
	defer func() {
		unsubscribe()
		<-logged
	}()

	a.logger.Info("sync daemon starting", "tenant", tenant, "db", a.cfg.Database, "connectivity", source)
	fmt.Fprintf(cmd.OutOrStdout(), "Sync daemon started for tenant %s (connectivity: %s).\n", tenant, source)
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	if err := coordinator.Run(ctx, signals); err != nil && !isCancellation(err) {
		return WrapExitError(ExitFailure, "sync daemon error", err)
	}

	snap := coordinator.State().Snapshot()
	a.logger.Info("sync daemon stopped gracefully", "pending", snap.PendingCount)
	fmt.Fprintf(cmd.OutOrStdout(), "Sync daemon stopped (%d outstanding).\n", snap.PendingCount)
	return nil
}

// connectivitySource picks where online/offline events come from. A nil
// channel means there is no source and the backend is assumed reachable.
func connectivitySource(ctx context.Context, opts *RootOptions, a *app) (<-chan bool, string, error) {
	switch {
	case opts.Signals != nil:
		return opts.Signals, "injected", nil

	case a.cfg.Sync.SignalFile != "":
		fs := netwatch.NewFileSignal(a.cfg.Sync.SignalFile, a.logger)
		ch, err := fs.Run(ctx)
		if err != nil {
			return nil, "", err
		}
		return ch, "signal file " + a.cfg.Sync.SignalFile, nil

	case a.cfg.Remote.HealthURL != "":
		p := netwatch.NewProber(a.cfg.Remote.HealthURL, a.cfg.Sync.ProbeInterval.D(),
			netwatch.WithProbeClock(a.clock),
			netwatch.WithProbeLogger(a.logger),
		)
		return p.Run(ctx), "health probe " + a.cfg.Remote.HealthURL, nil

	default:
		return nil, "always online", nil
	}
}

// logTransitions logs engine status changes until states is closed.
func logTransitions(logger *slog.Logger, states <-chan engine.RunState) {
	var last engine.Status
	for st := range states {
		if st.Status == last {
			continue
		}
		last = st.Status
		if st.Status == engine.StatusError {
			logger.Warn("sync status changed", "status", st.Status, "error", st.LastError, "pending", st.PendingCount)
			continue
		}
		logger.Info("sync status changed", "status", st.Status, "pending", st.PendingCount)
	}
}
