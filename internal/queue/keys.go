package queue

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// KeyGenerator produces idempotency keys for new records.
// Implemented by UUIDv7Generator (production) and FixedGenerator (tests).
type KeyGenerator interface {
	Generate() string
}

// UUIDv7Generator generates time-sortable UUIDv7 idempotency keys.
//
// The backend deduplicates on this key, so it must be globally unique. The
// embedded timestamp also makes keys roughly sortable by enqueue time, which
// helps when reading server logs.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined keys, then "<prefix>-<n>" once the
// list is used up. Safe for concurrent use.
//
//	gen := NewFixedGenerator("key-1", "key-2")
//	gen.Generate() // "key-1"
//	gen.Generate() // "key-2"
//	gen.Generate() // "key-3"
type FixedGenerator struct {
	mu     sync.Mutex
	keys   []string
	prefix string
	n      int
}

// NewFixedGenerator creates a generator that returns keys in order.
func NewFixedGenerator(keys ...string) *FixedGenerator {
	return &FixedGenerator{keys: keys, prefix: "key"}
}

// Generate returns the next key.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.n++
	if g.n <= len(g.keys) {
		return g.keys[g.n-1]
	}
	return fmt.Sprintf("%s-%d", g.prefix, g.n)
}
