package ratelimit

import (
	"time"

	"github.com/cenkalti/backoff/v5"
)

// BackoffConfig configures reconnect delays.
type BackoffConfig struct {
	Initial    time.Duration // First delay
	Max        time.Duration // Ceiling, applied after jitter
	Multiplier float64
	Jitter     float64       // Randomization factor in [0, 1)
	ResetAfter time.Duration // Streaming this long resets the schedule
}

// DefaultBackoffConfig returns sensible defaults.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:    1 * time.Second,
		Max:        60 * time.Second,
		Multiplier: 2,
		Jitter:     0.2,
		ResetAfter: 60 * time.Second,
	}
}

// Backoff produces exponentially growing, capped reconnect delays.
type Backoff struct {
	cfg      BackoffConfig
	exp      *backoff.ExponentialBackOff
	attempts int
	prev     time.Duration // Last delay handed out; delays never shrink until Reset
}

// NewBackoff creates a backoff at its baseline.
func NewBackoff(cfg BackoffConfig) *Backoff {
	def := DefaultBackoffConfig()
	if cfg.Initial <= 0 {
		cfg.Initial = def.Initial
	}
	if cfg.Max < cfg.Initial {
		cfg.Max = cfg.Initial
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = def.Multiplier
	}
	if cfg.Jitter < 0 || cfg.Jitter >= 1 {
		cfg.Jitter = def.Jitter
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = cfg.Initial
	exp.MaxInterval = cfg.Max
	exp.Multiplier = cfg.Multiplier
	exp.RandomizationFactor = cfg.Jitter
	exp.Reset()

	return &Backoff{cfg: cfg, exp: exp}
}

// Next returns the delay before the next attempt and counts the attempt.
// Jitter never makes a delay shorter than the one before it.
func (b *Backoff) Next() time.Duration {
	d := b.exp.NextBackOff()
	if d < b.prev {
		d = b.prev
	}
	if d > b.cfg.Max || d < 0 {
		d = b.cfg.Max
	}
	b.prev = d
	b.attempts++
	return d
}

// Attempts returns the number of delays handed out since the last reset.
func (b *Backoff) Attempts() int {
	return b.attempts
}

// Reset returns the schedule to its baseline.
func (b *Backoff) Reset() {
	b.exp.Reset()
	b.attempts = 0
	b.prev = 0
}

// Streamed records how long the last connection streamed. A connection that
// lasted at least ResetAfter resets the schedule; it reports whether it did.
func (b *Backoff) Streamed(d time.Duration) bool {
	if b.cfg.ResetAfter > 0 && d >= b.cfg.ResetAfter {
		b.Reset()
		return true
	}
	return false
}

// Config returns the effective configuration.
func (b *Backoff) Config() BackoffConfig {
	return b.cfg
}
