package maxage

import (
	"fmt"
	"strconv"
	"time"
)

// MaxAge is a number of seconds a response may be cached, or Permanent.
type MaxAge int64

// Permanent means "cache indefinitely, subject to the policy cap".
const Permanent MaxAge = -1

// DefaultSentinel is the raw value hosts conventionally use for Permanent.
const DefaultSentinel int64 = -1

// Seconds returns a finite max-age.
func Seconds(n int64) MaxAge {
	return MaxAge(n)
}

// FromDuration converts d to whole seconds, truncating.
func FromDuration(d time.Duration) MaxAge {
	return MaxAge(d / time.Second)
}

// FromRaw maps a host value to a MaxAge, treating sentinel as Permanent.
// The sentinel must be negative so it never shadows a real lifetime; any
// other negative raw value is rejected, including -1 under a custom
// sentinel.
func FromRaw(raw, sentinel int64) (MaxAge, error) {
	if sentinel >= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidSentinel, sentinel)
	}
	if raw == sentinel {
		return Permanent, nil
	}
	if raw < 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidMaxAge, raw)
	}
	return MaxAge(raw), nil
}

// IsPermanent reports whether m is Permanent.
func (m MaxAge) IsPermanent() bool {
	return m == Permanent
}

// Validate reports ErrInvalidMaxAge for negative values other than Permanent.
func (m MaxAge) Validate() error {
	if m < 0 && m != Permanent {
		return fmt.Errorf("%w: %d", ErrInvalidMaxAge, int64(m))
	}
	return nil
}

// Duration returns m as a time.Duration. Permanent returns 0 and false.
func (m MaxAge) Duration() (time.Duration, bool) {
	if m.IsPermanent() {
		return 0, false
	}
	return time.Duration(m) * time.Second, true
}

// String returns "permanent" or the number of seconds.
func (m MaxAge) String() string {
	if m.IsPermanent() {
		return "permanent"
	}
	return strconv.FormatInt(int64(m), 10)
}

// Min returns the more restrictive of a and b. Permanent loses to any
// finite value.
func Min(a, b MaxAge) MaxAge {
	switch {
	case a.IsPermanent():
		return b
	case b.IsPermanent():
		return a
	case b < a:
		return b
	default:
		return a
	}
}
