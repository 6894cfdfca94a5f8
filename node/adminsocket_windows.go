// +build windows

package node

import (
	"net"

	"github.com/Microsoft/go-winio"
)

// ListenAdmin opens the admin introspection listener as a named pipe,
// the Windows counterpart of a Unix domain socket (mirrors the
// teacher's socket_windows.go AgentListen).
func ListenAdmin(path string) (net.Listener, error) {
	return winio.ListenPipe(path, nil)
}
