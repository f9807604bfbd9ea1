// Package mutation defines the queued mutation record and the pure
// functions that operate on batches of records.
//
// A Record is one locally captured intent to create, update or delete an
// entity on the remote backend. Records are owned by the store; this
// package only describes their shape and lifecycle.
//
// # Lifecycle
//
//	pending -> syncing -> synced            (terminal, purged by the driver)
//	                   -> pending           (retry, attempts < MaxRetries)
//	                   -> failed            (terminal, attempts == MaxRetries)
//
// A failed record stays visible until the user discards it or re-admits it
// with a retry.
//
// # Ordering
//
// CreatedAt is the FIFO key. Records with equal CreatedAt are ordered by ID,
// which the store assigns in insertion order.
package mutation
