package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultRestURL           = "https://api.tradier.com/v1"
	DefaultStreamURL         = "https://stream.tradier.com/v1/markets/events"
	DefaultWSURL             = "wss://ws.tradier.com/v1/markets/events"
	DefaultAPITimeout        = 30 * time.Second
	DefaultTransport         = "websocket"
	DefaultArenaSize         = 64 << 10
	DefaultArenaMaxSize      = 4 << 20
	DefaultArenaPolicy       = "grow"
	DefaultMaxFrame          = 1 << 20
	DefaultReadSize          = 4096
	DefaultPriceDecimals     = 2
	DefaultStaleAfter        = 100 * time.Second
	DefaultPingInterval      = 15 * time.Second
	DefaultBackoffInitial    = 1 * time.Second
	DefaultBackoffMax        = 60 * time.Second
	DefaultBackoffResetAfter = 60 * time.Second
	DefaultBackoffJitter     = 0.2
	DefaultLimitWindow       = time.Minute
	DefaultQuotesPerWindow   = 120
	DefaultOrdersPerWindow   = 60
	DefaultAccountPerWindow  = 120
	DefaultConnectsPerWindow = 10
	DefaultPollInterval      = 1 * time.Minute
	DefaultSymbolsPerRequest = 100
	DefaultPollTimeout       = 10 * time.Second
	DefaultDBPort            = 5432
	DefaultDBSSLMode         = "prefer"
	DefaultMaxConns          = 10
	DefaultMinConns          = 2
	DefaultBatchSize         = 1000
	DefaultFlushInterval     = 1 * time.Second
	DefaultBufferSize        = 10000
	DefaultMetricsPort       = 9090
	DefaultMetricsPath       = "/metrics"
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
)

func (c *Config) applyDefaults() {
	// API defaults
	if c.API.RestURL == "" {
		c.API.RestURL = DefaultRestURL
	}
	if c.API.StreamURL == "" {
		c.API.StreamURL = DefaultStreamURL
	}
	if c.API.WSURL == "" {
		c.API.WSURL = DefaultWSURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}

	// Stream defaults
	s := &c.Stream
	if s.Transport == "" {
		s.Transport = DefaultTransport
	}
	if s.ArenaSize == 0 {
		s.ArenaSize = DefaultArenaSize
	}
	if s.ArenaMaxSize == 0 {
		s.ArenaMaxSize = DefaultArenaMaxSize
	}
	if s.ArenaPolicy == "" {
		s.ArenaPolicy = DefaultArenaPolicy
	}
	if s.MaxFrame == 0 {
		s.MaxFrame = DefaultMaxFrame
	}
	if s.ReadSize == 0 {
		s.ReadSize = DefaultReadSize
	}
	if s.PriceDecimals == 0 {
		s.PriceDecimals = DefaultPriceDecimals
	}
	if s.StaleAfter == 0 {
		s.StaleAfter = DefaultStaleAfter
	}
	if s.PingInterval == 0 {
		s.PingInterval = DefaultPingInterval
	}
	if s.BackoffInitial == 0 {
		s.BackoffInitial = DefaultBackoffInitial
	}
	if s.BackoffMax == 0 {
		s.BackoffMax = DefaultBackoffMax
	}
	if s.BackoffResetAfter == 0 {
		s.BackoffResetAfter = DefaultBackoffResetAfter
	}
	if s.BackoffJitter == 0 {
		s.BackoffJitter = DefaultBackoffJitter
	}

	// Limits defaults
	applyLimitDefaults(&c.Limits.Quotes, DefaultQuotesPerWindow)
	applyLimitDefaults(&c.Limits.Orders, DefaultOrdersPerWindow)
	applyLimitDefaults(&c.Limits.Account, DefaultAccountPerWindow)
	applyLimitDefaults(&c.Limits.StreamConnect, DefaultConnectsPerWindow)

	// Poller defaults
	if c.Poller.Interval == 0 {
		c.Poller.Interval = DefaultPollInterval
	}
	if c.Poller.SymbolsPerRequest == 0 {
		c.Poller.SymbolsPerRequest = DefaultSymbolsPerRequest
	}
	if c.Poller.Timeout == 0 {
		c.Poller.Timeout = DefaultPollTimeout
	}

	// Database defaults
	applyDBDefaults(&c.Database.Timescale)

	// Writer defaults
	if c.Writer.BatchSize == 0 {
		c.Writer.BatchSize = DefaultBatchSize
	}
	if c.Writer.FlushInterval == 0 {
		c.Writer.FlushInterval = DefaultFlushInterval
	}
	if c.Writer.BufferSize == 0 {
		c.Writer.BufferSize = DefaultBufferSize
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}
}

func applyLimitDefaults(l *LimitConfig, capacity int) {
	if l.Capacity == 0 {
		l.Capacity = capacity
	}
	if l.Window == 0 {
		l.Window = DefaultLimitWindow
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
