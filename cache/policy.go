package cache

import (
	"context"
	"strings"

	"github.com/herbdool/d8cache/maxage"
)

// SkipRule determines whether to bypass the cache for a route.
// Returns true if the response must be rendered fresh and not stored.
type SkipRule func(ctx context.Context, route string) bool

// SessionSkipRule bypasses the cache for session-bound requests, whose
// responses must not be shared.
func SessionSkipRule(session maxage.SessionDetector) SkipRule {
	return func(ctx context.Context, _ string) bool {
		return session != nil && session.SessionBound(ctx)
	}
}

// PrefixSkipRule bypasses the cache for routes under any of the prefixes,
// such as administrative pages.
func PrefixSkipRule(prefixes ...string) SkipRule {
	return func(_ context.Context, route string) bool {
		for _, p := range prefixes {
			if strings.HasPrefix(route, p) {
				return true
			}
		}
		return false
	}
}

// AnySkipRule combines rules; the cache is bypassed if any rule says so.
func AnySkipRule(rules ...SkipRule) SkipRule {
	return func(ctx context.Context, route string) bool {
		for _, r := range rules {
			if r != nil && r(ctx, route) {
				return true
			}
		}
		return false
	}
}
