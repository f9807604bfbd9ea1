package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/roach88/fieldsync/internal/clock"
)

// DefaultRefreshInterval is how often the coordinator reloads the pending
// count while running.
const DefaultRefreshInterval = 10 * time.Second

// Coordinator mirrors connectivity into the engine state and decides when
// passes run. It never mutates the queue itself; all record changes go
// through the Driver.
//
// Thread-safety model:
//   - SetOnline, TriggerSyncNow, RefreshPendingCount: safe from any goroutine
//   - Run: call from exactly one goroutine
type Coordinator struct {
	driver *Driver
	state  *State

	clock           clock.Clock
	logger          *slog.Logger
	refreshInterval time.Duration
	syncOnStart     bool

	mu     sync.Mutex
	online bool

	passes sync.WaitGroup
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithRefreshInterval sets the pending count refresh period.
//
// Default: 10s (DefaultRefreshInterval)
func WithRefreshInterval(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) { c.refreshInterval = d }
}

// WithSyncOnStart makes Run start a pass immediately when already online.
func WithSyncOnStart(enabled bool) CoordinatorOption {
	return func(c *Coordinator) { c.syncOnStart = enabled }
}

// WithInitialOnline sets the connectivity assumed before the first signal.
// It does not trigger a pass.
func WithInitialOnline(online bool) CoordinatorOption {
	return func(c *Coordinator) { c.online = online }
}

// WithCoordinatorClock sets the clock that drives the refresh ticker.
func WithCoordinatorClock(cl clock.Clock) CoordinatorOption {
	return func(c *Coordinator) { c.clock = cl }
}

// WithCoordinatorLogger sets the logger. Defaults to slog.Default().
func WithCoordinatorLogger(l *slog.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.logger = l }
}

// NewCoordinator creates a Coordinator for driver. It publishes to the
// driver's State.
func NewCoordinator(driver *Driver, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		driver:          driver,
		state:           driver.State(),
		clock:           clock.Real(),
		logger:          slog.Default(),
		refreshInterval: DefaultRefreshInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.state.setOnline(c.online)
	return c
}

// State returns the observable engine state.
func (c *Coordinator) State() *State { return c.state }

// Online reports the last known connectivity.
func (c *Coordinator) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.online
}

// SetOnline records a connectivity change. Going from offline to online
// starts one pass in the background under ctx; use Wait to join it.
// Repeated signals with the same value do nothing.
func (c *Coordinator) SetOnline(ctx context.Context, online bool) {
	c.mu.Lock()
	was := c.online
	c.online = online
	c.mu.Unlock()

	if was == online {
		return
	}
	c.state.setOnline(online)
	c.logger.Info("connectivity changed", "online", online)

	if online {
		c.startPass(ctx, "reconnect")
	}
}

// TriggerSyncNow runs one pass synchronously, whatever the connectivity.
func (c *Coordinator) TriggerSyncNow(ctx context.Context) (PassResult, error) {
	return c.driver.RunPass(ctx)
}

// RefreshPendingCount reloads the pending count for the active tenant.
func (c *Coordinator) RefreshPendingCount(ctx context.Context) error {
	return c.driver.RefreshPendingCount(ctx)
}

// Wait blocks until every background pass started by the coordinator has
// returned.
func (c *Coordinator) Wait() {
	c.passes.Wait()
}

// Run consumes connectivity signals and refreshes the pending count every
// refresh interval until ctx is cancelled or signals is closed. Background
// passes are joined before Run returns.
//
// Returns ctx.Err() on cancellation and nil when signals is closed.
func (c *Coordinator) Run(ctx context.Context, signals <-chan bool) error {
	c.refresh(ctx)

	ticker := c.clock.NewTicker(c.refreshInterval)
	defer ticker.Stop()

	if c.syncOnStart && c.Online() {
		c.startPass(ctx, "startup")
	}

	c.logger.Info("coordinator started", "online", c.Online(), "refresh_interval", c.refreshInterval)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("coordinator stopping: context cancelled")
			c.Wait()
			return ctx.Err()

		case online, ok := <-signals:
			if !ok {
				c.logger.Info("coordinator stopping: signal source closed")
				c.Wait()
				return nil
			}
			c.SetOnline(ctx, online)

		case <-ticker.C:
			c.refresh(ctx)
		}
	}
}

func (c *Coordinator) refresh(ctx context.Context) {
	if err := c.driver.RefreshPendingCount(ctx); err != nil && ctx.Err() == nil {
		c.logger.Error("pending count refresh failed", "error", err)
	}
}

func (c *Coordinator) startPass(ctx context.Context, trigger string) {
	c.passes.Add(1)
	go func() {
		defer c.passes.Done()

		result, err := c.driver.RunPass(ctx)
		switch {
		case err != nil:
			c.logger.Error("sync pass failed", "trigger", trigger, "error", err)
		case !result.Ran():
			c.logger.Debug("sync pass skipped", "trigger", trigger, "reason", result.Skipped)
		}
	}()
}
