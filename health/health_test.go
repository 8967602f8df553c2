package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/herbdool/d8cache/resilience"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestStatus_String(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{StatusHealthy, "healthy"},
		{StatusDegraded, "degraded"},
		{StatusUnhealthy, "unhealthy"},
		{Status(99), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.status.String(); got != tt.want {
			t.Errorf("Status(%d).String() = %q, want %q", tt.status, got, tt.want)
		}
	}
}

func TestPingChecker(t *testing.T) {
	down := errors.New("connection refused")
	slowPing := func(context.Context) error {
		time.Sleep(5 * time.Millisecond)
		return nil
	}

	tests := []struct {
		name string
		ping pingFunc
		slow time.Duration
		want Status
	}{
		{"reachable", func(context.Context) error { return nil }, 0, StatusHealthy},
		{"unreachable", func(context.Context) error { return down }, 0, StatusUnhealthy},
		{"slow", slowPing, time.Millisecond, StatusDegraded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewPingChecker("redis", tt.ping)
			c.SlowThreshold = tt.slow
			r := c.Check(context.Background())
			if r.Status != tt.want {
				t.Errorf("Status = %v, want %v (%s)", r.Status, tt.want, r.Message)
			}
			if tt.want == StatusUnhealthy && !errors.Is(r.Err, down) {
				t.Errorf("Err = %v, want %v", r.Err, down)
			}
		})
	}
}

func TestBreakerChecker(t *testing.T) {
	ctx := context.Background()
	breakers := resilience.NewBreakers(resilience.BreakerConfig{Threshold: 1, Cooldown: time.Hour})
	c := NewBreakerChecker("breakers", breakers)

	if r := c.Check(ctx); r.Status != StatusHealthy {
		t.Fatalf("no breakers: Status = %v", r.Status)
	}

	_ = breakers.Get("http").Execute(ctx, func(context.Context) error { return nil })
	if r := c.Check(ctx); r.Status != StatusHealthy {
		t.Fatalf("closed: Status = %v", r.Status)
	}

	_ = breakers.Get("redis").Execute(ctx, func(context.Context) error { return errors.New("down") })
	r := c.Check(ctx)
	if r.Status != StatusUnhealthy {
		t.Fatalf("open: Status = %v", r.Status)
	}
	if r.Message != "circuit open: redis" {
		t.Errorf("Message = %q", r.Message)
	}
	if !errors.Is(r.Err, resilience.ErrCircuitOpen) {
		t.Errorf("Err = %v", r.Err)
	}

	if r := NewBreakerChecker("none", nil).Check(ctx); r.Status != StatusHealthy {
		t.Errorf("nil breakers: Status = %v", r.Status)
	}
}

func TestAggregator_RegisterDuplicate(t *testing.T) {
	a := NewAggregator(AggregatorConfig{})
	ok := NewCheckerFunc("redis", func(context.Context) Result { return Healthy("") })
	if err := a.Register(ok); err != nil {
		t.Fatal(err)
	}
	if err := a.Register(ok); !errors.Is(err, ErrDuplicateChecker) {
		t.Errorf("error = %v, want ErrDuplicateChecker", err)
	}
}

func TestAggregator_RunOrderAndWorstStatus(t *testing.T) {
	a := NewAggregator(AggregatorConfig{Timeout: time.Second})
	_ = a.Register(NewCheckerFunc("redis", func(context.Context) Result { return Healthy("ok") }))
	_ = a.Register(NewCheckerFunc("http", func(context.Context) Result { return Degraded("slow") }))
	_ = a.Register(NewCheckerFunc("memory", func(context.Context) Result { return Healthy("ok") }))

	report := a.Run(context.Background())
	if report.Status != StatusDegraded {
		t.Errorf("Status = %v, want degraded", report.Status)
	}
	want := []string{"redis", "http", "memory"}
	if len(report.Results) != len(want) {
		t.Fatalf("got %d results", len(report.Results))
	}
	for i, name := range want {
		if report.Results[i].Name != name {
			t.Errorf("Results[%d].Name = %q, want %q", i, report.Results[i].Name, name)
		}
	}
	if got := a.Names(); len(got) != 3 || got[0] != "redis" {
		t.Errorf("Names() = %v", got)
	}
}

func TestAggregator_Timeout(t *testing.T) {
	a := NewAggregator(AggregatorConfig{Timeout: 20 * time.Millisecond})
	release := make(chan struct{})
	defer close(release)
	_ = a.Register(NewCheckerFunc("hung", func(context.Context) Result {
		<-release
		return Healthy("late")
	}))

	report := a.Run(context.Background())
	if report.Status != StatusUnhealthy {
		t.Fatalf("Status = %v, want unhealthy", report.Status)
	}
	if !errors.Is(report.Results[0].Err, ErrCheckTimeout) {
		t.Errorf("Err = %v, want ErrCheckTimeout", report.Results[0].Err)
	}
}

func TestAggregator_EmptyIsHealthy(t *testing.T) {
	if s := NewAggregator(AggregatorConfig{}).Run(context.Background()).Status; s != StatusHealthy {
		t.Errorf("Status = %v, want healthy", s)
	}
}

func TestAggregator_Check(t *testing.T) {
	a := NewAggregator(AggregatorConfig{})
	_ = a.Register(NewPingChecker("http", pingFunc(func(context.Context) error { return nil })))

	r, err := a.Check(context.Background(), "http")
	if err != nil || r.Status != StatusHealthy {
		t.Errorf("Check(http) = %v, %v", r.Status, err)
	}
	if _, err := a.Check(context.Background(), "nope"); !errors.Is(err, ErrCheckerNotFound) {
		t.Errorf("error = %v, want ErrCheckerNotFound", err)
	}
}
