//go:build windows

package pipeaddr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/Microsoft/go-winio"
	"golang.org/x/sys/windows"
)

func resolve(slot int) string {
	return fmt.Sprintf(`\\?\pipe\%s`, socketName(slot))
}

const pipeBusyRetryDelay = 500 * time.Millisecond

func open(ctx context.Context, slot int) (net.Conn, error) {
	addr := resolve(slot)

	for {
		conn, err := winio.DialPipeContext(ctx, addr)
		if err == nil {
			return conn, nil
		}
		if errors.Is(err, windows.ERROR_PIPE_BUSY) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(pipeBusyRetryDelay):
				continue
			}
		}
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, os.ErrNotExist) || errors.Is(err, windows.ERROR_FILE_NOT_FOUND)
}
