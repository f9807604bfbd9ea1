// Package queue implements the local mutation queue: enqueueing new records
// and the retry/status state machine that moves them toward the server.
//
// The queue owns no storage. It is built on a Repository, which the SQLite
// store implements, and on an injected clock and idempotency key generator
// so tests control every timestamp and key.
//
// State machine:
//
//	MarkSyncing  pending -> syncing            (stamps last_attempt_at)
//	MarkSynced   any     -> synced
//	MarkFailed   *       -> pending | failed   (attempts++, failed at MaxRetries)
//	RetryItem    failed  -> pending            (attempts reset, new retry cycle)
//	DiscardItem  failed  -> deleted
//
// Transitions on an id that does not exist are no-ops. The sync driver is
// the only caller of the first three and serializes them with its pass
// guard, so no per-record locking is done here.
package queue
