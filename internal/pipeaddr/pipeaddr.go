// Package pipeaddr resolves and opens the per-slot local transport used
// to reach a rich-presence client: a Unix domain socket on macOS/Linux,
// a named pipe on Windows. Both sides agree on the slot-indexed name
// "discord-ipc-<id>" as part of the wire contract; it is not a branding
// choice and must not be changed per slot platform.
package pipeaddr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
)

// MaxSlots is the number of presence connection slots tried by callers
// that scan id 0..MaxSlots-1 looking for a listening peer.
const MaxSlots = 10

// ErrNotFound indicates no peer is listening at the resolved address.
// Callers treat this as terminal for the slot (see internal/presence).
var ErrNotFound = errors.New("pipeaddr: not found")

// Resolve returns the platform address for the given slot id (0-9).
func Resolve(slot int) string {
	return resolve(slot)
}

func unixRuntimeDir() string {
	for _, key := range []string{"XDG_RUNTIME_DIR", "TMPDIR", "TMP", "TEMP"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return "/tmp"
}

func socketName(slot int) string {
	return fmt.Sprintf("discord-ipc-%d", slot)
}

// Open dials the slot's address, classifying a missing peer as
// ErrNotFound so callers can distinguish a terminal condition from a
// transient dial failure worth retrying with backoff.
func Open(ctx context.Context, slot int) (net.Conn, error) {
	return open(ctx, slot)
}
