// Package nonce generates request correlation identifiers for presence
// commands. Every outbound command frame (AUTHORIZE, AUTHENTICATE,
// SET_ACTIVITY) carries a nonce so its response can be matched to it.
package nonce

import (
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a new lexicographically sortable, globally unique nonce.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
