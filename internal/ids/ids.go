// Package ids generates the lexicographically-sortable, time-ordered
// identifiers used for every persistent entity in the memory core.
package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator produces monotonically increasing ULIDs even across regressing
// system clocks, by wrapping ulid.Monotonic with a dedicated entropy source
// guarded by a mutex (ulid.Monotonic is not itself safe for concurrent use)
// and holding the last issued timestamp when the clock goes backwards.
type Generator struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	lastMS  uint64
}

// NewGenerator creates a Generator with cryptographically random entropy.
func NewGenerator() *Generator {
	return &Generator{
		entropy: ulid.Monotonic(rand.Reader, 0),
	}
}

// New returns a new ULID string for the current time.
func (g *Generator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	ms := ulid.Timestamp(time.Now())
	if ms < g.lastMS {
		ms = g.lastMS
	}
	g.lastMS = ms
	return ulid.MustNew(ms, g.entropy).String()
}

var defaultGenerator = NewGenerator()

// New returns a new ULID string using the package-level default generator.
// Safe for concurrent use.
func New() string {
	return defaultGenerator.New()
}

// Valid reports whether s parses as a well-formed ULID.
func Valid(s string) bool {
	_, err := ulid.ParseStrict(s)
	return err == nil
}
