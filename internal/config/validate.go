package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rickgao/tradier-stream/internal/fixed"
)

// Validate checks that all values are usable. Database settings are only
// checked by ValidateDatabase, since most commands never connect.
func (c *Config) Validate() error {
	if c.API.RestURL == "" {
		return errors.New("api.rest_url is required")
	}
	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be > 0")
	}

	if err := c.Stream.validate("stream"); err != nil {
		return err
	}

	limits := []struct {
		name string
		l    LimitConfig
	}{
		{"limits.quotes", c.Limits.Quotes},
		{"limits.orders", c.Limits.Orders},
		{"limits.account", c.Limits.Account},
		{"limits.stream_connect", c.Limits.StreamConnect},
	}
	for _, l := range limits {
		if l.l.Capacity > 0 && l.l.Window <= 0 {
			return fmt.Errorf("%s.window must be > 0", l.name)
		}
	}

	if c.Poller.Interval <= 0 {
		return errors.New("poller.interval must be > 0")
	}
	if c.Poller.SymbolsPerRequest < 1 {
		return errors.New("poller.symbols_per_request must be >= 1")
	}

	if c.Writer.BatchSize < 1 {
		return errors.New("writer.batch_size must be >= 1")
	}
	if c.Writer.BufferSize < 1 {
		return errors.New("writer.buffer_size must be >= 1")
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	if _, err := ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}

	return nil
}

// ValidateDatabase checks the TimescaleDB settings used by the recorder.
func (c *Config) ValidateDatabase() error {
	return c.Database.Timescale.validate("database.timescale")
}

func (s *StreamConfig) validate(prefix string) error {
	if s.Transport != "websocket" && s.Transport != "http" {
		return fmt.Errorf("%s.transport must be websocket or http, got %q", prefix, s.Transport)
	}
	for _, f := range s.Filters {
		switch f {
		case "quote", "trade", "summary", "timesale", "tradex":
		default:
			return fmt.Errorf("%s.filters: unknown event type %q", prefix, f)
		}
	}
	if s.ArenaSize < 1 {
		return fmt.Errorf("%s.arena_size must be >= 1", prefix)
	}
	if s.ArenaMaxSize < s.ArenaSize {
		return fmt.Errorf("%s.arena_max_size (%d) cannot be less than arena_size (%d)", prefix, s.ArenaMaxSize, s.ArenaSize)
	}
	if s.ArenaPolicy != "grow" && s.ArenaPolicy != "fail" {
		return fmt.Errorf("%s.arena_policy must be grow or fail, got %q", prefix, s.ArenaPolicy)
	}
	if s.MaxFrame < 1 {
		return fmt.Errorf("%s.max_frame must be >= 1", prefix)
	}
	if s.ReadSize < 1 || s.ReadSize > s.ArenaSize {
		return fmt.Errorf("%s.read_size must be between 1 and arena_size", prefix)
	}
	if s.PriceDecimals < 0 || s.PriceDecimals > fixed.MaxDecimals {
		return fmt.Errorf("%s.price_decimals must be between 0 and %d", prefix, fixed.MaxDecimals)
	}
	if s.StaleAfter < 0 {
		return fmt.Errorf("%s.stale_after must be >= 0", prefix)
	}
	if s.BackoffInitial <= 0 || s.BackoffMax < s.BackoffInitial {
		return fmt.Errorf("%s.backoff_max must be >= backoff_initial > 0", prefix)
	}
	if s.BackoffJitter < 0 || s.BackoffJitter >= 1 {
		return fmt.Errorf("%s.backoff_jitter must be in [0, 1)", prefix)
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown level %q", s)
}
