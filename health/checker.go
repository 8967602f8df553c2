package health

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/herbdool/d8cache/resilience"
)

// Status represents the health status of a component.
type Status int

const (
	// StatusHealthy indicates the component is functioning normally.
	StatusHealthy Status = iota
	// StatusDegraded indicates the component works but slowly or partially.
	StatusDegraded
	// StatusUnhealthy indicates the component is not functioning.
	StatusUnhealthy
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Worst returns the more severe of a and b.
func Worst(a, b Status) Status {
	if b > a {
		return b
	}
	return a
}

// Result contains the outcome of a health check.
type Result struct {
	Status  Status
	Message string

	// Duration is how long the check took.
	Duration time.Duration

	// Err is the failure behind an unhealthy result.
	Err error
}

// Healthy creates a healthy result.
func Healthy(message string) Result {
	return Result{Status: StatusHealthy, Message: message}
}

// Degraded creates a degraded result.
func Degraded(message string) Result {
	return Result{Status: StatusDegraded, Message: message}
}

// Unhealthy creates an unhealthy result.
func Unhealthy(message string, err error) Result {
	return Result{Status: StatusUnhealthy, Message: message, Err: err}
}

// Checker is the interface for health checks.
type Checker interface {
	// Name returns the name of this checker.
	Name() string

	// Check performs the health check and returns the result.
	Check(ctx context.Context) Result
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc struct {
	name string
	fn   func(context.Context) Result
}

// NewCheckerFunc creates a new CheckerFunc.
func NewCheckerFunc(name string, fn func(context.Context) Result) *CheckerFunc {
	return &CheckerFunc{name: name, fn: fn}
}

// Name implements Checker.
func (f *CheckerFunc) Name() string { return f.name }

// Check implements Checker.
func (f *CheckerFunc) Check(ctx context.Context) Result { return f.fn(ctx) }

// Pinger is a component that can be probed for reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker reports a Pinger as unhealthy when Ping fails and as
// degraded when it answers slower than SlowThreshold.
type PingChecker struct {
	name   string
	pinger Pinger

	// SlowThreshold marks slow answers degraded. Zero disables it.
	SlowThreshold time.Duration
}

// NewPingChecker creates a checker for p.
func NewPingChecker(name string, p Pinger) *PingChecker {
	return &PingChecker{name: name, pinger: p}
}

// Name implements Checker.
func (c *PingChecker) Name() string { return c.name }

// Check implements Checker.
func (c *PingChecker) Check(ctx context.Context) Result {
	start := time.Now()
	err := c.pinger.Ping(ctx)
	elapsed := time.Since(start)

	switch {
	case err != nil:
		return Unhealthy("unreachable", err)
	case c.SlowThreshold > 0 && elapsed > c.SlowThreshold:
		return Degraded(fmt.Sprintf("slow: answered in %s", elapsed.Round(time.Millisecond)))
	default:
		return Healthy("reachable")
	}
}

// BreakerChecker reports the circuit breakers guarding invalidation
// backends. Any open breaker is unhealthy; any half-open one is degraded.
type BreakerChecker struct {
	name     string
	breakers *resilience.Breakers
}

// NewBreakerChecker creates a checker over b.
func NewBreakerChecker(name string, b *resilience.Breakers) *BreakerChecker {
	return &BreakerChecker{name: name, breakers: b}
}

// Name implements Checker.
func (c *BreakerChecker) Name() string { return c.name }

// Check implements Checker.
func (c *BreakerChecker) Check(context.Context) Result {
	if c.breakers == nil {
		return Healthy("no breakers")
	}

	var open, probing []string
	for name, state := range c.breakers.States() {
		switch state {
		case resilience.StateOpen:
			open = append(open, name)
		case resilience.StateHalfOpen:
			probing = append(probing, name)
		}
	}
	sort.Strings(open)
	sort.Strings(probing)

	switch {
	case len(open) > 0:
		return Unhealthy("circuit open: "+strings.Join(open, ", "), resilience.ErrCircuitOpen)
	case len(probing) > 0:
		return Degraded("circuit half-open: " + strings.Join(probing, ", "))
	default:
		return Healthy("all circuits closed")
	}
}
