package engine

import (
	"math/rand/v2"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// KeyGenerator generates entity keys for Create calls without an explicit key.
// Implemented by Base36Generator (default), UUIDv7Generator and
// FixedGenerator (tests).
type KeyGenerator interface {
	Generate() string
}

// Base36Generator generates short keys: two four-character base-36
// fragments, each derived from a random fraction of the current Unix time in
// milliseconds. Keys are not cryptographically random; collisions are
// unlikely at the scale of one local database.
//
// Thread-safety: Base36Generator is stateless and safe for concurrent use.
type Base36Generator struct{}

// Generate returns an eight-character key.
func (Base36Generator) Generate() string {
	return base36Fragment() + base36Fragment()
}

func base36Fragment() string {
	n := uint32(uint64(rand.Float64() * float64(time.Now().UnixMilli())))
	s := "0000" + strconv.FormatUint(uint64(n), 36)
	return s[len(s)-4:]
}

// UUIDv7Generator generates time-sortable UUIDv7 keys.
//
// Thread-safety: UUIDv7Generator is stateless and safe for concurrent use.
type UUIDv7Generator struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedGenerator returns predetermined keys for testing.
//
// Thread-safety: FixedGenerator is safe for concurrent use via internal mutex.
type FixedGenerator struct {
	mu   sync.Mutex
	keys []string
	idx  int
}

// NewFixedGenerator creates a generator that returns keys in order.
//
//	gen := NewFixedGenerator("a", "b")
//	gen.Generate() // "a"
//	gen.Generate() // "b"
//	gen.Generate() // panic: all keys exhausted
func NewFixedGenerator(keys ...string) *FixedGenerator {
	return &FixedGenerator{keys: keys}
}

// Generate returns the next predetermined key.
//
// Panics if all keys have been consumed, which catches tests creating more
// entities than expected.
func (g *FixedGenerator) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.keys) {
		panic("FixedGenerator: all keys exhausted")
	}
	key := g.keys[g.idx]
	g.idx++
	return key
}
