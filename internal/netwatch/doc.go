// Package netwatch produces connectivity signals for the sync coordinator.
//
// Each source emits its current state once at start and then only on
// change. Values are true for online, false for offline. Channels are closed
// when the source's context ends.
package netwatch
