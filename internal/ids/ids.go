// Package ids generates primary-key identifiers for identity records.
// ULIDs sort by creation time, so listings ordered by ID match
// insertion order.
package ids

import (
	cryptorand "crypto/rand"
	"sync"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	// Identity IDs appear in URLs and tokens, so the random component
	// comes from crypto/rand rather than a seeded PRNG.
	entropy = ulid.Monotonic(cryptorand.Reader, 0)
)

// New returns a lexicographically sortable identifier suitable for
// primary keys.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Now(), entropy).String()
}
