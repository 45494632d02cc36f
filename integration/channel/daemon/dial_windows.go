//go:build windows

package daemon

import (
	"context"
	"net"

	"github.com/Microsoft/go-winio"
)

// DefaultSocketDir is unused on Windows; daemons listen on named pipes.
func DefaultSocketDir() string {
	return ""
}

func socketAddress(_, name string) string {
	return `\\.\pipe\photon-` + name
}

// Named pipes cannot be probed without connecting, so a missing daemon
// surfaces as a dial error instead.
func socketExists(string) bool {
	return true
}

func dial(ctx context.Context, addr string) (net.Conn, error) {
	return winio.DialPipeContext(ctx, addr)
}
