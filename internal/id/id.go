// Package id issues the time-sortable identifiers used for accounts, orders,
// trades and backtest runs. Orders and runs are journaled to SQLite, so
// append-friendly keys keep those indexes cheap.
package id

import (
	cryptoRand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Generator produces ULID strings. Within one millisecond the monotonic
// entropy keeps generation order and lexical order aligned.
type Generator struct {
	mu      sync.Mutex
	entropy io.Reader
	now     func() time.Time
}

// NewGenerator seeds a PRNG from crypto/rand so the entropy is
// unpredictable. The now function is injectable for tests; nil means
// time.Now.
func NewGenerator(now func() time.Time) *Generator {
	if now == nil {
		now = time.Now
	}
	var seed int64
	if err := binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed); err != nil || seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{
		entropy: ulid.Monotonic(rand.New(rand.NewSource(seed)), 0),
		now:     now,
	}
}

// New returns the next identifier as a 26-character ULID string.
func (g *Generator) New() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(g.now().UTC()), g.entropy).String()
}

var defaultGen = NewGenerator(nil)

// New returns an identifier from the package-wide generator.
func New() string { return defaultGen.New() }
