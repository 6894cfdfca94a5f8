// Package version carries this module's release version, grounded on
// the teacher's common/version.CURRENT_VERSION pattern (a semver.Version
// compared against peers rather than a bare string).
package version

import "github.com/blang/semver"

// Current is this build's release version. Bumped by hand per release,
// same as the teacher's CURRENT_VERSION.
var Current = semver.MustParse("0.1.0")

// AtLeast reports whether Current satisfies a minimum required version,
// e.g. for refusing to interoperate with an admin client built against
// an incompatible release.
func AtLeast(min semver.Version) bool {
	return Current.GTE(min)
}
