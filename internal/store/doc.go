// Package store provides SQLite-backed durable storage for the local
// mutation queue.
//
// The store owns one table, mutations, keyed by an autoincrement id and
// indexed for the queries the sync driver runs:
//   - pending records of one tenant in FIFO order
//   - outstanding (pending + failed) count of one tenant
//   - purge of synced records of one tenant
//
// # Ordering
//
// Every list query orders by created_at ASC, id ASC. The id tiebreak keeps
// records with equal timestamps in insertion order.
//
// # Tenant scoping
//
// Every list, count and purge query filters by tenant_id. Lookups and
// updates by id are unscoped; callers that act on behalf of a tenant check
// ownership on the returned record.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - One open connection: SQLite serializes writers anyway
//
// Every write is committed before the call returns, so subsequent reads
// observe it.
package store
