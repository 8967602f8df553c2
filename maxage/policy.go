package maxage

import (
	"context"
	"strconv"
	"time"
)

// PermanentSeconds is emitted for Permanent when the policy is uncapped.
const PermanentSeconds int64 = 365 * 24 * 60 * 60

// Policy is the externally configured cap applied at emission time.
type Policy struct {
	// Cap is the maximum cacheable age. Permanent values are replaced by Cap.
	// A Cap of Permanent disables capping.
	// Default: 1 hour
	Cap MaxAge
}

// DefaultPolicy returns a policy capped at one hour.
func DefaultPolicy() Policy {
	return Policy{Cap: 3600}
}

// Apply clamps m to the cap. Permanent and values above the cap become the
// cap.
func (p Policy) Apply(m MaxAge) MaxAge {
	if p.Cap.IsPermanent() {
		return m
	}
	if m.IsPermanent() || m > p.Cap {
		return p.Cap
	}
	return m
}

// Seconds returns the capped value in seconds. An uncapped Permanent value
// maps to PermanentSeconds.
func (p Policy) Seconds(m MaxAge) int64 {
	capped := p.Apply(m)
	if capped.IsPermanent() {
		return PermanentSeconds
	}
	return int64(capped)
}

// TTL returns the capped value as a duration suitable for a local store.
func (p Policy) TTL(m MaxAge) time.Duration {
	return time.Duration(p.Seconds(m)) * time.Second
}

// HeaderSetter is the narrow view of an outgoing header map.
// http.Header satisfies it.
type HeaderSetter interface {
	Set(key, value string)
}

// SessionDetector reports whether the current request is bound to a user
// session, in which case shared caches must not store the response.
type SessionDetector interface {
	SessionBound(ctx context.Context) bool
}

// SessionFunc adapts a function to SessionDetector.
type SessionFunc func(ctx context.Context) bool

// SessionBound implements SessionDetector.
func (f SessionFunc) SessionBound(ctx context.Context) bool {
	return f(ctx)
}

// CacheControlObserver returns an EmitFunc that caps the final value with
// policy and writes "Cache-Control: public, max-age=N". Nothing is written
// for session-bound requests. session may be nil.
func CacheControlObserver(policy Policy, session SessionDetector, h HeaderSetter) EmitFunc {
	return func(ctx context.Context, m MaxAge) {
		if session != nil && session.SessionBound(ctx) {
			return
		}
		h.Set("Cache-Control", "public, max-age="+strconv.FormatInt(policy.Seconds(m), 10))
	}
}
