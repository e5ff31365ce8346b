package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// Class groups endpoints that share a budget.
type Class int

const (
	ClassQuotes Class = iota
	ClassOrders
	ClassAccount
	ClassStreamConnect

	numClasses
)

func (c Class) String() string {
	switch c {
	case ClassQuotes:
		return "quotes"
	case ClassOrders:
		return "orders"
	case ClassAccount:
		return "account"
	case ClassStreamConnect:
		return "stream_connect"
	default:
		return fmt.Sprintf("class(%d)", int(c))
	}
}

// Classes lists every endpoint class.
func Classes() []Class {
	return []Class{ClassQuotes, ClassOrders, ClassAccount, ClassStreamConnect}
}

// LimitedError is returned when a class has no budget left. It is not fatal:
// the caller retries after RetryAfter.
type LimitedError struct {
	Class      Class
	RetryAfter time.Duration
}

func (e *LimitedError) Error() string {
	return fmt.Sprintf("rate limited: %s, retry after %s", e.Class, e.RetryAfter)
}

// Limit is the budget for one class. Capacity 0 disables limiting.
type Limit struct {
	Capacity int
	Window   time.Duration
}

// Config holds per-class limits.
type Config struct {
	Quotes        Limit
	Orders        Limit
	Account       Limit
	StreamConnect Limit
}

// DefaultConfig returns Tradier's published per-minute limits for market
// data, trading and account endpoints.
func DefaultConfig() Config {
	return Config{
		Quotes:        Limit{Capacity: 120, Window: time.Minute},
		Orders:        Limit{Capacity: 60, Window: time.Minute},
		Account:       Limit{Capacity: 120, Window: time.Minute},
		StreamConnect: Limit{Capacity: 10, Window: time.Minute},
	}
}

func (c Config) limit(class Class) Limit {
	switch class {
	case ClassQuotes:
		return c.Quotes
	case ClassOrders:
		return c.Orders
	case ClassAccount:
		return c.Account
	case ClassStreamConnect:
		return c.StreamConnect
	}
	return Limit{}
}

// Limiter is implemented by Controller and Locked.
type Limiter interface {
	Allow(class Class) error
}

// Option configures a Controller.
type Option func(*Controller)

// WithClock sets the time source. Tests use it to step time manually.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// Controller tracks one bucket per class. It is not safe for concurrent
// use; see Locked.
type Controller struct {
	buckets [numClasses]*Bucket
	now     func() time.Time
}

// NewController creates a controller with full buckets.
func NewController(cfg Config, opts ...Option) *Controller {
	c := &Controller{now: time.Now}
	for _, opt := range opts {
		opt(c)
	}

	now := c.now()
	for _, class := range Classes() {
		l := cfg.limit(class)
		if l.Capacity > 0 {
			c.buckets[class] = NewBucket(l.Capacity, l.Window, now)
		}
	}
	return c
}

// Allow takes one token from class. It never blocks; when the budget is
// exhausted it returns a *LimitedError.
func (c *Controller) Allow(class Class) error {
	if class < 0 || class >= numClasses {
		return fmt.Errorf("unknown rate class %d", int(class))
	}
	b := c.buckets[class]
	if b == nil {
		return nil
	}
	if wait, ok := b.Take(c.now()); !ok {
		return &LimitedError{Class: class, RetryAfter: wait}
	}
	return nil
}

// Tokens returns the remaining budget of class, or -1 if it is unlimited.
func (c *Controller) Tokens(class Class) float64 {
	if class < 0 || class >= numClasses || c.buckets[class] == nil {
		return -1
	}
	return c.buckets[class].Tokens(c.now())
}

// Locked serializes access to a Controller shared by several goroutines.
type Locked struct {
	mu sync.Mutex
	c  *Controller
}

// NewLocked wraps c.
func NewLocked(c *Controller) *Locked {
	return &Locked{c: c}
}

// Allow is Controller.Allow under a mutex.
func (l *Locked) Allow(class Class) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.c.Allow(class)
}

// Tokens is Controller.Tokens under a mutex.
func (l *Locked) Tokens(class Class) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.c.Tokens(class)
}
