package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/roach88/fieldsync/internal/clock"
	"github.com/roach88/fieldsync/internal/mutation"
	"github.com/roach88/fieldsync/internal/remote"
)

// DefaultSuccessDisplay is how long StatusSuccess is shown before the
// state reverts to StatusIdle.
const DefaultSuccessDisplay = 3000 * time.Millisecond

// Queue is the part of queue.Queue the driver needs.
type Queue interface {
	Pending(ctx context.Context, tenantID string) ([]mutation.Record, error)
	PendingCount(ctx context.Context, tenantID string) (int, error)
	MarkSyncing(ctx context.Context, id int64) error
	MarkSynced(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, msg string) (mutation.Status, error)
	PurgeSynced(ctx context.Context, tenantID string) (int64, error)
	RecoverInterrupted(ctx context.Context, tenantID string) (int64, error)
}

// SkipReason explains why RunPass did not process anything.
type SkipReason string

const (
	SkipNoTenant       SkipReason = "no active tenant"
	SkipPassRunning    SkipReason = "pass already running"
	SkipNothingPending SkipReason = "nothing pending"
)

// PassResult summarizes one call to RunPass.
type PassResult struct {
	// Skipped is set when the pass did not run.
	Skipped SkipReason `json:"skipped,omitempty"`

	Tenant string `json:"tenant,omitempty"`

	// Total is the number of records applied after collapsing.
	Total int `json:"total"`

	Synced int `json:"synced"`
	Failed int `json:"failed"`

	// Superseded counts older updates retired because a newer update to
	// the same entity synced or exhausted its retries.
	Superseded int `json:"superseded"`

	// Exhausted counts records that reached MaxRetries during this pass.
	Exhausted int `json:"exhausted"`

	Purged int64 `json:"purged"`
}

// Ran reports whether the pass processed records.
func (r PassResult) Ran() bool { return r.Skipped == "" }

// Driver runs sync passes for the active tenant.
//
// Thread-safety: RunPass may be called from any goroutine. Concurrent calls
// are collapsed by the guard; the losers return SkipPassRunning.
type Driver struct {
	queue   Queue
	applier remote.Applier
	tenants TenantProvider
	state   *State
	guard   Guard

	clock          clock.Clock
	logger         *slog.Logger
	collapse       bool
	applyTimeout   time.Duration
	successDisplay time.Duration

	// epoch increments at every pass start. A pending success revert only
	// applies if no pass has started since it was scheduled.
	epoch atomic.Uint64
}

// DriverOption configures a Driver.
type DriverOption func(*Driver)

// WithCollapse enables or disables last-write-wins collapsing of pending
// updates before a pass. Enabled by default.
func WithCollapse(enabled bool) DriverOption {
	return func(d *Driver) { d.collapse = enabled }
}

// WithApplyTimeout bounds each Apply call. Zero (the default) means no
// limit beyond the pass context.
func WithApplyTimeout(timeout time.Duration) DriverOption {
	return func(d *Driver) { d.applyTimeout = timeout }
}

// WithSuccessDisplay sets how long StatusSuccess is held before reverting
// to StatusIdle.
//
// Default: 3000ms (DefaultSuccessDisplay)
func WithSuccessDisplay(d time.Duration) DriverOption {
	return func(dr *Driver) { dr.successDisplay = d }
}

// WithDriverClock sets the clock used for the success revert timer and
// LastSyncAt.
func WithDriverClock(c clock.Clock) DriverOption {
	return func(d *Driver) { d.clock = c }
}

// WithDriverLogger sets the logger. Defaults to slog.Default().
func WithDriverLogger(l *slog.Logger) DriverOption {
	return func(d *Driver) { d.logger = l }
}

// NewDriver creates a Driver that publishes to state.
func NewDriver(q Queue, applier remote.Applier, tenants TenantProvider, state *State, opts ...DriverOption) *Driver {
	d := &Driver{
		queue:          q,
		applier:        applier,
		tenants:        tenants,
		state:          state,
		clock:          clock.Real(),
		logger:         slog.Default(),
		collapse:       true,
		successDisplay: DefaultSuccessDisplay,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// State returns the state the driver publishes to.
func (d *Driver) State() *State { return d.state }

// Running reports whether a pass is in progress.
func (d *Driver) Running() bool { return d.guard.Running() }

// RefreshPendingCount reloads the pending count for the active tenant.
// With no active tenant the count is zero.
func (d *Driver) RefreshPendingCount(ctx context.Context) error {
	tenant := d.tenants.ActiveTenant()
	if tenant == "" {
		d.state.setPendingCount(0)
		return nil
	}
	n, err := d.queue.PendingCount(ctx, tenant)
	if err != nil {
		return err
	}
	d.state.setPendingCount(n)
	return nil
}

// RunPass drains the active tenant's pending records once.
//
// Per-record failures are recorded on the record and never abort the pass.
// A storage error or context cancellation aborts the pass, leaves already
// processed records in their new state, sets StatusError and is returned.
func (d *Driver) RunPass(ctx context.Context) (PassResult, error) {
	tenant := d.tenants.ActiveTenant()
	if tenant == "" {
		return PassResult{Skipped: SkipNoTenant}, nil
	}
	if !d.guard.TryAcquire() {
		d.logger.Debug("sync pass skipped: already running", "tenant", tenant)
		return PassResult{Skipped: SkipPassRunning}, nil
	}
	defer d.guard.Release()

	result := PassResult{Tenant: tenant}

	if _, err := d.queue.RecoverInterrupted(ctx, tenant); err != nil {
		d.abort(ctx, tenant, err)
		return result, err
	}

	items, err := d.queue.Pending(ctx, tenant)
	if err != nil {
		d.abort(ctx, tenant, err)
		return result, err
	}
	if len(items) == 0 {
		return PassResult{Skipped: SkipNothingPending, Tenant: tenant}, nil
	}

	superseded := map[int64][]int64{}
	if d.collapse {
		items, superseded = mutation.CollapseWithSuperseded(items)
	}
	result.Total = len(items)

	epoch := d.epoch.Add(1)
	d.state.update(func(rs *RunState) {
		rs.Status = StatusSyncing
		rs.LastError = ""
		rs.Progress = &Progress{Current: 0, Total: result.Total}
	})

	d.logger.Info("sync pass starting", "tenant", tenant, "items", result.Total)

	for i, rec := range items {
		if err := ctx.Err(); err != nil {
			d.abort(ctx, tenant, err)
			return result, err
		}
		d.state.setProgress(i, result.Total)

		status, err := d.applyOne(ctx, rec)
		if err != nil {
			d.abort(ctx, tenant, err)
			return result, err
		}

		switch status {
		case mutation.StatusSynced:
			result.Synced++
			n, err := d.retire(ctx, superseded[rec.ID])
			result.Superseded += n
			if err != nil {
				d.abort(ctx, tenant, err)
				return result, err
			}
		case mutation.StatusFailed:
			result.Failed++
			result.Exhausted++
			// The losers must not be sent once the winner leaves the
			// pending set, or a stale update would reach the backend after
			// a newer one was attempted. Retrying the winner resends it.
			n, err := d.retire(ctx, superseded[rec.ID])
			result.Superseded += n
			if err != nil {
				d.abort(ctx, tenant, err)
				return result, err
			}
		default:
			result.Failed++
		}
	}

	d.state.setProgress(result.Total, result.Total)

	purged, err := d.queue.PurgeSynced(ctx, tenant)
	if err != nil {
		d.abort(ctx, tenant, err)
		return result, err
	}
	result.Purged = purged

	if err := d.RefreshPendingCount(ctx); err != nil {
		d.abort(ctx, tenant, err)
		return result, err
	}

	d.finish(result, epoch)
	return result, nil
}

// applyOne moves rec through syncing and applies it. It returns the status
// the record ended in, or an error if the queue itself failed.
func (d *Driver) applyOne(ctx context.Context, rec mutation.Record) (mutation.Status, error) {
	if err := d.queue.MarkSyncing(ctx, rec.ID); err != nil {
		return "", err
	}

	applyCtx := ctx
	if d.applyTimeout > 0 {
		var cancel context.CancelFunc
		applyCtx, cancel = context.WithTimeout(ctx, d.applyTimeout)
		defer cancel()
	}

	// The outcome is recorded even if ctx was cancelled during Apply, so the
	// record never stays in syncing.
	bookkeeping := context.WithoutCancel(ctx)

	if applyErr := d.applier.Apply(applyCtx, rec); applyErr != nil {
		status, err := d.queue.MarkFailed(bookkeeping, rec.ID, applyErr.Error())
		if err != nil {
			return "", err
		}
		d.logger.Warn("mutation apply failed",
			"id", rec.ID,
			"resource", rec.Resource,
			"record_id", rec.RecordID,
			"attempt", rec.Attempts+1,
			"status", status,
			"error", applyErr,
		)
		return status, nil
	}

	if err := d.queue.MarkSynced(bookkeeping, rec.ID); err != nil {
		return "", err
	}
	d.logger.Debug("mutation synced", "id", rec.ID, "resource", rec.Resource, "record_id", rec.RecordID)
	return mutation.StatusSynced, nil
}

// retire moves superseded records through syncing to synced.
func (d *Driver) retire(ctx context.Context, ids []int64) (int, error) {
	n := 0
	for _, id := range ids {
		if err := d.queue.MarkSyncing(ctx, id); err != nil {
			return n, err
		}
		if err := d.queue.MarkSynced(ctx, id); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// finish publishes the outcome of a completed pass.
func (d *Driver) finish(result PassResult, epoch uint64) {
	now := d.clock.Now()

	var msg string
	switch {
	case result.Failed == 0:
	case result.Synced == 0:
		msg = fmt.Sprintf("%d item(s) failed to sync", result.Failed)
	default:
		msg = fmt.Sprintf("%d synced, %d failed", result.Synced, result.Failed)
	}

	d.state.update(func(rs *RunState) {
		rs.Progress = nil
		rs.LastSyncAt = &now
		if msg == "" {
			rs.Status = StatusSuccess
			rs.LastError = ""
		} else {
			rs.Status = StatusError
			rs.LastError = msg
		}
	})

	d.logger.Info("sync pass finished",
		"tenant", result.Tenant,
		"synced", result.Synced,
		"failed", result.Failed,
		"superseded", result.Superseded,
		"purged", result.Purged,
	)

	if msg == "" {
		d.clock.AfterFunc(d.successDisplay, func() { d.revertToIdle(epoch) })
	}
}

func (d *Driver) revertToIdle(epoch uint64) {
	if d.epoch.Load() != epoch {
		return
	}
	d.state.update(func(rs *RunState) {
		if rs.Status == StatusSuccess {
			rs.Status = StatusIdle
		}
	})
}

// abort publishes a pass-level failure. The pending count is refreshed on
// a best-effort basis so the badge reflects records already processed.
func (d *Driver) abort(ctx context.Context, tenant string, err error) {
	d.logger.Error("sync pass aborted", "tenant", tenant, "error", err)

	if ctx.Err() == nil {
		if refreshErr := d.RefreshPendingCount(ctx); refreshErr != nil {
			d.logger.Debug("pending count refresh failed", "tenant", tenant, "error", refreshErr)
		}
	}

	now := d.clock.Now()
	d.state.update(func(rs *RunState) {
		rs.Status = StatusError
		rs.LastError = err.Error()
		rs.Progress = nil
		rs.LastSyncAt = &now
	})
}
