package resilience

import (
	"context"
	"sync"
	"time"
)

// State is the position of a Breaker.
type State int

const (
	// StateClosed lets every call through.
	StateClosed State = iota
	// StateOpen rejects calls with ErrCircuitOpen.
	StateOpen
	// StateHalfOpen lets a limited number of probe calls through.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configures a Breaker.
type BreakerConfig struct {
	// Threshold is the number of consecutive failures that opens the
	// breaker.
	// Default: 5
	Threshold int

	// Cooldown is how long the breaker stays open before probing.
	// Default: 30 seconds
	Cooldown time.Duration

	// Probes is the number of calls allowed while half-open.
	// Default: 1
	Probes int

	// OnStateChange is called with the breaker lock held; it must not call
	// back into the breaker.
	OnStateChange func(from, to State)
}

// Breaker stops calling an operation that keeps failing.
type Breaker struct {
	config BreakerConfig
	now    func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	inflight int
	// gen changes on every transition; calls admitted under an older
	// generation do not affect the current state.
	gen uint64
}

// ticket records how a call was admitted.
type ticket struct {
	gen   uint64
	probe bool
}

// NewBreaker creates a closed breaker.
func NewBreaker(config BreakerConfig) *Breaker {
	if config.Threshold <= 0 {
		config.Threshold = 5
	}
	if config.Cooldown <= 0 {
		config.Cooldown = 30 * time.Second
	}
	if config.Probes <= 0 {
		config.Probes = 1
	}
	return &Breaker{config: config, now: time.Now}
}

// Execute runs op unless the breaker is open. A context cancellation is
// not counted as a failure of the operation.
func (b *Breaker) Execute(ctx context.Context, op func(context.Context) error) error {
	t, err := b.acquire()
	if err != nil {
		return err
	}
	err = op(ctx)
	b.release(t, err)
	return err
}

// State returns the current position, moving open to half-open once the
// cool-down has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

// Failures returns the current run of consecutive failures.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// Reset closes the breaker.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.inflight = 0
	b.transition(StateClosed)
}

func (b *Breaker) acquire() (ticket, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.stateLocked() {
	case StateOpen:
		return ticket{}, ErrCircuitOpen
	case StateHalfOpen:
		if b.inflight >= b.config.Probes {
			return ticket{}, ErrCircuitOpen
		}
		b.inflight++
		return ticket{gen: b.gen, probe: true}, nil
	}
	return ticket{gen: b.gen}, nil
}

func (b *Breaker) release(t ticket, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if t.gen != b.gen {
		return
	}
	failed := err != nil && !Permanent(err)
	if t.probe {
		b.inflight--
		if failed {
			b.trip()
			return
		}
		if err == nil {
			b.failures = 0
			b.transition(StateClosed)
		}
		return
	}
	if !failed {
		if err == nil {
			b.failures = 0
		}
		return
	}
	b.failures++
	if b.failures >= b.config.Threshold {
		b.trip()
	}
}

func (b *Breaker) trip() {
	b.openedAt = b.now()
	b.transition(StateOpen)
}

func (b *Breaker) stateLocked() State {
	if b.state == StateOpen && b.now().Sub(b.openedAt) >= b.config.Cooldown {
		b.inflight = 0
		b.transition(StateHalfOpen)
	}
	return b.state
}

func (b *Breaker) transition(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.gen++
	if b.config.OnStateChange != nil {
		b.config.OnStateChange(from, to)
	}
}

// Breakers keeps one Breaker per backend name. The zero value is not
// usable; use NewBreakers.
type Breakers struct {
	config BreakerConfig

	mu sync.Mutex
	m  map[string]*Breaker
}

// NewBreakers creates an empty set sharing config.
func NewBreakers(config BreakerConfig) *Breakers {
	return &Breakers{config: config, m: make(map[string]*Breaker)}
}

// Get returns the breaker for name, creating it on first use.
func (s *Breakers) Get(name string) *Breaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.m[name]
	if !ok {
		b = NewBreaker(s.config)
		s.m[name] = b
	}
	return b
}

// States returns the current state of every known breaker.
func (s *Breakers) States() map[string]State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]State, len(s.m))
	for name, b := range s.m {
		out[name] = b.State()
	}
	return out
}
