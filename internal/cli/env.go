package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/roach88/fieldsync/internal/clock"
	"github.com/roach88/fieldsync/internal/config"
	"github.com/roach88/fieldsync/internal/engine"
	"github.com/roach88/fieldsync/internal/queue"
	"github.com/roach88/fieldsync/internal/remote"
	"github.com/roach88/fieldsync/internal/store"
)

// app is the wiring shared by every command: resolved config, logger,
// the open store and the queue over it.
type app struct {
	cfg    *config.Config
	clock  clock.Clock
	logger *slog.Logger
	store  *store.Store
	queue  *queue.Queue

	logCloser io.Closer
}

// openApp loads configuration, applies flag overrides and opens the store.
// The caller must Close the returned app.
func openApp(opts *RootOptions, cmd *cobra.Command) (*app, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Database = opts.Database
	}
	if opts.Tenant != "" {
		cfg.Tenant = opts.Tenant
	}

	logger, logCloser := newLogger(cfg.Log, opts.Verbose, cmd.ErrOrStderr())

	cl := opts.Clock
	if cl == nil {
		cl = clock.Real()
	}

	logger.Debug("opening database", "path", cfg.Database)
	st, err := store.Open(cfg.Database)
	if err != nil {
		_ = logCloser.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	qopts := []queue.Option{queue.WithClock(cl), queue.WithLogger(logger)}
	if opts.Keys != nil {
		qopts = append(qopts, queue.WithKeyGenerator(opts.Keys))
	}

	return &app{
		cfg:       cfg,
		clock:     cl,
		logger:    logger,
		store:     st,
		queue:     queue.New(st, qopts...),
		logCloser: logCloser,
	}, nil
}

// Close closes the store and the log file, if any.
func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Error("error closing database", "error", err)
	}
	_ = a.logCloser.Close()
}

// tenant returns the active tenant or a command error when none is set.
func (a *app) tenant() (string, error) {
	t := strings.TrimSpace(a.cfg.Tenant)
	if t == "" {
		return "", NewExitError(ExitCommandError, "no tenant: set --tenant or tenant in the config file")
	}
	return t, nil
}

// applier returns the override from opts or an HTTP applier for the
// configured backend.
func (a *app) applier(opts *RootOptions) (remote.Applier, error) {
	if opts.Applier != nil {
		return opts.Applier, nil
	}
	if a.cfg.Remote.BaseURL == "" {
		return nil, NewExitError(ExitCommandError, "remote.base_url is not configured")
	}
	httpClient := &http.Client{Timeout: a.cfg.Remote.Timeout.D()}
	return remote.NewHTTPApplier(a.cfg.Remote.BaseURL, a.cfg.Remote.Token, httpClient), nil
}

// newDriver builds a driver for the given tenant source from the sync
// config.
func (a *app) newDriver(tenants engine.TenantProvider, applier remote.Applier) *engine.Driver {
	return engine.NewDriver(a.queue, applier, tenants, engine.NewState(),
		engine.WithCollapse(a.cfg.Sync.Collapse),
		engine.WithApplyTimeout(a.cfg.Sync.ApplyTimeout.D()),
		engine.WithSuccessDisplay(a.cfg.Sync.SuccessDisplay.D()),
		engine.WithDriverClock(a.clock),
		engine.WithDriverLogger(a.logger),
	)
}

// newLogger builds a text logger. --verbose forces debug level. With
// log.file set, output goes to a size-rotated file instead of stderr.
func newLogger(cfg config.LogConfig, verbose bool, stderr io.Writer) (*slog.Logger, io.Closer) {
	level := cfg.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}

	var w io.Writer = stderr
	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		w, closer = lj, lj
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler), closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// parseID parses a local record id argument.
func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, NewExitError(ExitCommandError, "invalid id "+strconv.Quote(arg)+": must be a positive integer")
	}
	return id, nil
}

// isCancellation reports whether err is a context cancellation or deadline.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// commandContext returns the command's context, or Background when the
// command was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
