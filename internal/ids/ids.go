package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Session IDs are bearer-adjacent, so the entropy source is crypto/rand;
// a seeded PRNG would make them guessable.
var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewSessionID returns a lexicographically sortable session identifier.
func NewSessionID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// NewTokenID returns a random token identifier.
func NewTokenID() string {
	return uuid.NewString()
}
