package resilience

import (
	"context"
	"time"
)

// Guard composes a breaker, a retry policy and a per-attempt timeout. Any
// of them may be absent.
type Guard struct {
	breaker *Breaker
	retry   *Retry
	timeout *Timeout
}

// GuardOption configures a Guard.
type GuardOption func(*Guard)

// NewGuard creates a guard. With no options Execute calls op directly.
func NewGuard(opts ...GuardOption) *Guard {
	g := &Guard{}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// WithBreaker adds a breaker. A nil breaker is ignored.
func WithBreaker(b *Breaker) GuardOption {
	return func(g *Guard) {
		g.breaker = b
	}
}

// WithRetry adds a retry policy. A nil policy is ignored.
func WithRetry(r *Retry) GuardOption {
	return func(g *Guard) {
		g.retry = r
	}
}

// WithTimeout bounds each attempt. A non-positive d disables the bound.
func WithTimeout(d time.Duration) GuardOption {
	return func(g *Guard) {
		if d > 0 {
			g.timeout = NewTimeout(d)
		} else {
			g.timeout = nil
		}
	}
}

// Execute runs op through the breaker, then the retry policy, then the
// timeout.
func (g *Guard) Execute(ctx context.Context, op func(context.Context) error) error {
	call := op
	if t := g.timeout; t != nil {
		inner := call
		call = func(ctx context.Context) error { return t.Execute(ctx, inner) }
	}
	if r := g.retry; r != nil {
		inner := call
		call = func(ctx context.Context) error { return r.Execute(ctx, inner) }
	}
	if b := g.breaker; b != nil {
		inner := call
		call = func(ctx context.Context) error { return b.Execute(ctx, inner) }
	}
	return call(ctx)
}
