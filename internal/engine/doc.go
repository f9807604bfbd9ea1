// Package engine drives queued mutations to the backend.
//
// A Driver runs sync passes: it drains the active tenant's pending records
// in FIFO order, collapses superseded updates, applies each survivor
// through a remote.Applier, and moves records through the queue's state
// machine. A Coordinator owns the Driver on behalf of the application. It
// mirrors connectivity, starts a pass when the device comes back online,
// and refreshes the pending count on a timer.
//
// Observable state lives in a State value that is passed to whoever needs
// it. There is no package-level state, so tests can run engines side by
// side.
//
// Concurrency model:
//   - At most one pass runs at a time per Driver (Guard).
//   - Within a pass, records are processed strictly sequentially.
//   - Records enqueued during a pass wait for the next pass; the pending
//     list is read once at pass start.
//   - State is safe for concurrent readers and subscribers.
package engine
