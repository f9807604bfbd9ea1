// Package testutil provides deterministic fixtures shared by the engine and
// CLI tests: a queue over a temporary database with fake time and fixed
// idempotency keys, and a scriptable remote applier.
package testutil
