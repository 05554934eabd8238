//go:build !windows && !linux && !freebsd && !openbsd && !netbsd

package xcap

// New reports that no native backend exists for this platform. Callers can
// still run against Virtual.
func New() (Facility, error) {
	return nil, ErrUnsupportedPlatform
}
