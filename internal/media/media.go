// Package media observes the operating system's "now playing" media
// session and normalizes it into a single cross-platform NowPlaying
// snapshot, either as a one-shot read or a live subscription.
package media

import (
	"context"
	"encoding/hex"
	"time"

	"lukechampine.com/blake3"
)

// NowPlaying is one normalized media observation. All fields come from
// a single OS read; there are no partial updates.
type NowPlaying struct {
	Title        string
	Artist       string
	Start        time.Time
	End          time.Time
	ArtworkMIME  string
	ArtworkBytes []byte
	ArtworkHash  string // hex BLAKE3-256 of ArtworkBytes
}

// hashArtwork computes the content hash used for artwork addressing.
func hashArtwork(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Source is a platform media adaptor.
type Source interface {
	// Get returns the current snapshot, or nil if nothing is playing.
	Get(ctx context.Context) (*NowPlaying, error)
	// Subscribe emits a value each time the snapshot changes; a nil
	// value means playback stopped. The channel closes when ctx is
	// canceled or the underlying OS session terminates unexpectedly.
	Subscribe(ctx context.Context) (<-chan *NowPlaying, error)
}
