// +build !windows

package node

import (
	"net"
	"os"
)

// ListenAdmin opens the admin introspection listener at path, removing
// any stale socket file left behind by a crashed prior instance.
func ListenAdmin(path string) (net.Listener, error) {
	os.Remove(path)
	return net.Listen("unix", path)
}
