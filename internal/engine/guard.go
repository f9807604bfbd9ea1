package engine

import "sync/atomic"

// Guard ensures a single active sync pass. It is a non-blocking try-lock:
// a caller that loses the race returns immediately instead of queueing.
//
// Guard is in-process only. Two processes sharing a database file are not
// serialized by it.
type Guard struct {
	running atomic.Bool
}

// TryAcquire claims the guard. Returns false if a pass already holds it.
func (g *Guard) TryAcquire() bool {
	return g.running.CompareAndSwap(false, true)
}

// Release frees the guard. Call it with defer right after a successful
// TryAcquire so panics and early returns release it too.
func (g *Guard) Release() {
	g.running.Store(false)
}

// Running reports whether a pass currently holds the guard.
func (g *Guard) Running() bool {
	return g.running.Load()
}
