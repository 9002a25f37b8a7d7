//go:build !windows

package pipeaddr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
)

func resolve(slot int) string {
	return fmt.Sprintf("%s/%s", unixRuntimeDir(), socketName(slot))
}

func open(ctx context.Context, slot int) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", resolve(slot))
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return conn, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ENOENT) || errors.Is(err, syscall.ECONNREFUSED)
}
