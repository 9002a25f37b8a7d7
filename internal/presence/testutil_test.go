package presence

import (
	"github.com/nowcast-run/agent/internal/pipeaddr"
	"github.com/nowcast-run/agent/internal/secmem"
)

func newTestSecret(s string) *secmem.SecureString {
	return secmem.NewSecureString(s)
}

var errNotFoundForTest = pipeaddr.ErrNotFound
