package node

import (
	"os"
	"strings"

	"github.com/pkg/errors"
)

// splitNodeName splits "name@host" into its parts, mirroring how
// erl/epmd distinguish the short name registered with EPMD from the
// host used to dial it (spec.md §4.5). A missing or empty host
// ("name" or "name@") defaults to the machine's own hostname, the way
// `erl -name node` lets the runtime fill in `@$(hostname)` itself.
func splitNodeName(full string) (name, host string, err error) {
	i := strings.IndexByte(full, '@')
	switch {
	case i < 0:
		name = full
	default:
		name, host = full[:i], full[i+1:]
	}
	if name == "" {
		return "", "", errors.Errorf("node: %q is not a valid node atom", full)
	}
	if host == "" {
		host, err = localHostname()
		if err != nil {
			return "", "", errors.Wrap(err, "node: could not determine local hostname")
		}
	}
	return name, host, nil
}

// localHostname reports the machine's hostname, grounded on the
// teacher's MachineName (common/util/machine_name_unix.go), adapted
// to a single cross-platform implementation since os.Hostname needs
// no platform split here.
func localHostname() (string, error) {
	return os.Hostname()
}
