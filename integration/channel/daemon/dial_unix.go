//go:build !windows

package daemon

import (
	"context"
	"net"
	"os"
	"path/filepath"
)

// DefaultSocketDir returns ~/.photon/daemons.
func DefaultSocketDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.TempDir()
	}
	return filepath.Join(home, ".photon", "daemons")
}

func socketAddress(dir, name string) string {
	if dir == "" {
		dir = DefaultSocketDir()
	}
	return filepath.Join(dir, name+".sock")
}

func socketExists(addr string) bool {
	_, err := os.Stat(addr)
	return err == nil
}

func dial(ctx context.Context, addr string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "unix", addr)
}
