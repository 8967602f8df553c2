package hooks

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
)

type testFn func(*[]string) error

func appendName(name string) testFn {
	return func(calls *[]string) error {
		*calls = append(*calls, name)
		return nil
	}
}

func TestChain_RegistrationOrder(t *testing.T) {
	var c Chain[testFn]
	for _, name := range []string{"first", "second", "third"} {
		if err := c.Register(name, appendName(name)); err != nil {
			t.Fatalf("Register(%q) error = %v", name, err)
		}
	}

	var calls []string
	err := Run(EmitCacheTags, c.Snapshot(), func(fn testFn) error { return fn(&calls) })
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	want := []string{"first", "second", "third"}
	if !reflect.DeepEqual(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}
	if !reflect.DeepEqual(c.Names(), want) {
		t.Errorf("Names() = %v, want %v", c.Names(), want)
	}
}

func TestChain_RegisterValidation(t *testing.T) {
	var c Chain[testFn]

	tests := []struct {
		name    string
		regName string
		fn      testFn
		wantErr error
	}{
		{"empty name", "", appendName("x"), ErrInvalidName},
		{"whitespace name", "   ", appendName("x"), ErrInvalidName},
		{"nil callback", "nil", nil, ErrNilCallback},
		{"valid", "ok", appendName("ok"), nil},
		{"duplicate", "ok", appendName("ok"), ErrDuplicateName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Register(tt.regName, tt.fn)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Register() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestChain_ZeroValue(t *testing.T) {
	var c Chain[testFn]
	if c.Len() != 0 {
		t.Errorf("Len() = %d, want 0", c.Len())
	}
	if c.Snapshot() != nil {
		t.Errorf("Snapshot() = %v, want nil", c.Snapshot())
	}
	if c.Unregister("missing") {
		t.Error("Unregister on empty chain should return false")
	}
}

func TestChain_Unregister(t *testing.T) {
	var c Chain[testFn]
	c.MustRegister("a", appendName("a"))
	c.MustRegister("b", appendName("b"))
	c.MustRegister("c", appendName("c"))

	if !c.Unregister("b") {
		t.Fatal("Unregister(b) = false, want true")
	}
	if got, want := c.Names(), []string{"a", "c"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Names() = %v, want %v", got, want)
	}

	// Name is free again.
	if err := c.Register("b", appendName("b")); err != nil {
		t.Errorf("re-Register(b) error = %v", err)
	}
}

func TestChain_SnapshotIsolation(t *testing.T) {
	var c Chain[testFn]
	c.MustRegister("a", appendName("a"))

	snap := c.Snapshot()
	c.MustRegister("b", appendName("b"))
	c.Unregister("a")

	if len(snap) != 1 || snap[0].Name != "a" {
		t.Errorf("snapshot changed after registration: %v", snap)
	}
}

func TestChain_MustRegisterPanics(t *testing.T) {
	var c Chain[testFn]
	c.MustRegister("a", appendName("a"))

	defer func() {
		if recover() == nil {
			t.Error("MustRegister with duplicate name should panic")
		}
	}()
	c.MustRegister("a", appendName("a"))
}

func TestChain_ConcurrentRegisterAndSnapshot(t *testing.T) {
	var c Chain[testFn]
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = c.Register(fmt.Sprintf("hook-%d", i), appendName("x"))
		}(i)
		go func() {
			defer wg.Done()
			for _, e := range c.Snapshot() {
				if e.Name == "" {
					t.Error("snapshot contained an empty entry")
				}
			}
		}()
	}
	wg.Wait()

	if c.Len() != 50 {
		t.Errorf("Len() = %d, want 50", c.Len())
	}
}

func TestRun_AggregatesFailuresAndContinues(t *testing.T) {
	var c Chain[testFn]
	errA := errors.New("a failed")
	c.MustRegister("a", func(calls *[]string) error {
		*calls = append(*calls, "a")
		return errA
	})
	c.MustRegister("b", func(calls *[]string) error {
		*calls = append(*calls, "b")
		panic("boom")
	})
	c.MustRegister("c", appendName("c"))

	var calls []string
	err := Run(PreEmitCacheTagsAlter, c.Snapshot(), func(fn testFn) error { return fn(&calls) })

	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}

	var chainErr *ChainError
	if !errors.As(err, &chainErr) {
		t.Fatalf("Run() error = %T, want *ChainError", err)
	}
	if chainErr.Point != PreEmitCacheTagsAlter {
		t.Errorf("Point = %q, want %q", chainErr.Point, PreEmitCacheTagsAlter)
	}
	if got, want := chainErr.Failed(), []string{"a", "b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Failed() = %v, want %v", got, want)
	}
	if !errors.Is(err, errA) {
		t.Error("errors.Is(err, errA) = false")
	}
	if !errors.Is(err, ErrCallbackPanic) {
		t.Error("errors.Is(err, ErrCallbackPanic) = false")
	}
}

func TestRun_EmptyEntries(t *testing.T) {
	if err := Run[testFn](EmitCacheTags, nil, func(testFn) error { return errors.New("unreachable") }); err != nil {
		t.Errorf("Run(nil) error = %v", err)
	}
}

func TestPoints(t *testing.T) {
	points := Points()
	if len(points) != 6 {
		t.Fatalf("len(Points()) = %d, want 6", len(points))
	}
	seen := make(map[Point]bool)
	for _, p := range points {
		if seen[p] {
			t.Errorf("duplicate point %q", p)
		}
		seen[p] = true
	}
}
