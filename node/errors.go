package node

import "github.com/pkg/errors"

// Error kinds from spec.md §7 that the node runtime can produce
// directly (decode_error/encode_error/format_error/auth_failed/
// epmd_error/protocol_error surface from the term/dist/epmd packages
// unchanged).
var (
	ErrNoProc       = errors.New("node: noproc")
	ErrNoConnection = errors.New("node: noconnection")
	ErrTimeout      = errors.New("node: timeout")
	ErrClosed       = errors.New("node: closed")
	ErrBadArgument  = errors.New("node: bad_argument")
)
