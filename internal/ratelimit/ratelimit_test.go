package ratelimit

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 5, 13, 14, 30, 0, 0, time.UTC)}
}

func TestBucket_AllowsCapacityThenLimits(t *testing.T) {
	clock := newFakeClock()
	b := NewBucket(5, time.Second, clock.Now())

	for i := 0; i < 5; i++ {
		if _, ok := b.Take(clock.Now()); !ok {
			t.Fatalf("Take #%d denied, want allowed", i+1)
		}
	}

	wait, ok := b.Take(clock.Now())
	if ok {
		t.Fatal("Take #6 allowed, want denied")
	}
	if wait <= 0 {
		t.Errorf("wait = %v, want > 0", wait)
	}
	if tokens := b.Tokens(clock.Now()); tokens < 0 {
		t.Errorf("Tokens = %v, want >= 0", tokens)
	}
}

func TestBucket_Refill(t *testing.T) {
	clock := newFakeClock()
	b := NewBucket(2, time.Second, clock.Now())
	b.Take(clock.Now())
	b.Take(clock.Now())

	clock.Advance(500 * time.Millisecond)
	if _, ok := b.Take(clock.Now()); !ok {
		t.Error("Take after half window denied, want one token refilled")
	}
	if _, ok := b.Take(clock.Now()); ok {
		t.Error("second Take after half window allowed")
	}

	clock.Advance(10 * time.Second)
	if got := b.Tokens(clock.Now()); got != 2 {
		t.Errorf("Tokens after long idle = %v, want capped at 2", got)
	}
}

func TestController_LimitedThenRecovers(t *testing.T) {
	clock := newFakeClock()
	cfg := Config{Quotes: Limit{Capacity: 3, Window: time.Minute}}
	c := NewController(cfg, WithClock(clock.Now))

	for i := 0; i < 3; i++ {
		if err := c.Allow(ClassQuotes); err != nil {
			t.Fatalf("Allow #%d error = %v", i+1, err)
		}
	}

	err := c.Allow(ClassQuotes)
	var limited *LimitedError
	if !errors.As(err, &limited) {
		t.Fatalf("Allow #4 error = %v, want *LimitedError", err)
	}
	if limited.Class != ClassQuotes {
		t.Errorf("Class = %v, want quotes", limited.Class)
	}
	if limited.RetryAfter <= 0 || limited.RetryAfter > time.Minute {
		t.Errorf("RetryAfter = %v, want in (0, 1m]", limited.RetryAfter)
	}

	clock.Advance(time.Minute)
	if err := c.Allow(ClassQuotes); err != nil {
		t.Errorf("Allow after window error = %v, want nil", err)
	}
}

func TestController_ClassesAreIndependent(t *testing.T) {
	clock := newFakeClock()
	cfg := Config{
		Orders:  Limit{Capacity: 1, Window: time.Minute},
		Account: Limit{Capacity: 1, Window: time.Minute},
	}
	c := NewController(cfg, WithClock(clock.Now))

	if err := c.Allow(ClassOrders); err != nil {
		t.Fatalf("Allow(orders) error = %v", err)
	}
	if err := c.Allow(ClassAccount); err != nil {
		t.Errorf("Allow(account) error = %v, want independent budget", err)
	}
	if err := c.Allow(ClassOrders); err == nil {
		t.Error("second Allow(orders) succeeded")
	}

	// Zero capacity means unlimited.
	for i := 0; i < 100; i++ {
		if err := c.Allow(ClassQuotes); err != nil {
			t.Fatalf("Allow(quotes) error = %v, want unlimited", err)
		}
	}
	if got := c.Tokens(ClassQuotes); got != -1 {
		t.Errorf("Tokens(quotes) = %v, want -1", got)
	}

	if err := c.Allow(Class(42)); err == nil {
		t.Error("Allow(unknown class) succeeded")
	}
}

func TestLocked_ConcurrentAllow(t *testing.T) {
	cfg := Config{Quotes: Limit{Capacity: 50, Window: time.Hour}}
	l := NewLocked(NewController(cfg))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				if l.Allow(ClassQuotes) == nil {
					mu.Lock()
					allowed++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	if allowed != 50 {
		t.Errorf("allowed = %d, want 50", allowed)
	}
}

func TestBackoff_NonDecreasingAndCapped(t *testing.T) {
	b := NewBackoff(BackoffConfig{
		Initial:    100 * time.Millisecond,
		Max:        300 * time.Millisecond,
		Multiplier: 2,
		Jitter:     0,
	})

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		300 * time.Millisecond,
		300 * time.Millisecond,
	}
	var prev time.Duration
	for i, w := range want {
		got := b.Next()
		if got != w {
			t.Errorf("Next() #%d = %v, want %v", i+1, got, w)
		}
		if got < prev {
			t.Errorf("Next() #%d = %v decreased from %v", i+1, got, prev)
		}
		prev = got
	}
	if b.Attempts() != len(want) {
		t.Errorf("Attempts() = %d, want %d", b.Attempts(), len(want))
	}
}

func TestBackoff_JitterNeverExceedsMax(t *testing.T) {
	b := NewBackoff(BackoffConfig{
		Initial:    time.Second,
		Max:        2 * time.Second,
		Multiplier: 2,
		Jitter:     0.5,
	})
	for i := 0; i < 50; i++ {
		if d := b.Next(); d <= 0 || d > 2*time.Second {
			t.Fatalf("Next() = %v, want in (0, 2s]", d)
		}
	}
}

func TestBackoff_JitterNonDecreasingPastCap(t *testing.T) {
	cfg := DefaultBackoffConfig()
	for trial := 0; trial < 100; trial++ {
		b := NewBackoff(cfg)
		var prev time.Duration
		for i := 0; i < 12; i++ {
			d := b.Next()
			if d < prev {
				t.Fatalf("trial %d: Next() #%d = %v, want >= %v", trial, i+1, d, prev)
			}
			if d > cfg.Max {
				t.Fatalf("trial %d: Next() #%d = %v, want <= %v", trial, i+1, d, cfg.Max)
			}
			prev = d
		}
		if prev != cfg.Max {
			t.Errorf("trial %d: last delay = %v, want %v", trial, prev, cfg.Max)
		}
	}
}

func TestBackoff_ResetClearsFloor(t *testing.T) {
	b := NewBackoff(BackoffConfig{
		Initial:    time.Second,
		Max:        10 * time.Second,
		Multiplier: 2,
		Jitter:     0.3,
	})
	for i := 0; i < 8; i++ {
		b.Next()
	}
	b.Reset()
	if d := b.Next(); d > 1300*time.Millisecond {
		t.Errorf("Next() after Reset = %v, want <= 1.3s", d)
	}
}

func TestBackoff_ResetAfterSustainedStreaming(t *testing.T) {
	b := NewBackoff(BackoffConfig{
		Initial:    time.Second,
		Max:        time.Minute,
		Multiplier: 2,
		ResetAfter: 30 * time.Second,
	})
	b.Next()
	b.Next()
	b.Next()

	if b.Streamed(5 * time.Second) {
		t.Error("Streamed(5s) reset the schedule")
	}
	if b.Attempts() != 3 {
		t.Errorf("Attempts() = %d, want 3", b.Attempts())
	}

	if !b.Streamed(30 * time.Second) {
		t.Error("Streamed(30s) did not reset the schedule")
	}
	if b.Attempts() != 0 {
		t.Errorf("Attempts() after reset = %d, want 0", b.Attempts())
	}
	if d := b.Next(); d != time.Second {
		t.Errorf("Next() after reset = %v, want 1s", d)
	}
}

func TestClassString(t *testing.T) {
	tests := map[Class]string{
		ClassQuotes:        "quotes",
		ClassOrders:        "orders",
		ClassAccount:       "account",
		ClassStreamConnect: "stream_connect",
		Class(9):           "class(9)",
	}
	for c, want := range tests {
		if got := c.String(); got != want {
			t.Errorf("Class(%d).String() = %q, want %q", int(c), got, want)
		}
	}
}
