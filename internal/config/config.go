package config

import "time"

// Config is the root configuration for the tradier CLI.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Stream   StreamConfig   `yaml:"stream"`
	Limits   LimitsConfig   `yaml:"limits"`
	Poller   PollerConfig   `yaml:"poller"`
	Database DatabaseConfig `yaml:"database"`
	Writer   WriterConfig   `yaml:"writer"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Log      LogConfig      `yaml:"log"`
}

// APIConfig holds Tradier endpoint and credential settings.
type APIConfig struct {
	RestURL   string        `yaml:"rest_url"`
	StreamURL string        `yaml:"stream_url"` // HTTP chunked stream
	WSURL     string        `yaml:"ws_url"`
	Token     string        `yaml:"token"`      // Usually ${TRADIER_API_KEY}
	TokenFile string        `yaml:"token_file"` // Read on every request when Token is empty
	AccountID string        `yaml:"account_id"`
	Timeout   time.Duration `yaml:"timeout"`
}

// StreamConfig holds streaming session settings.
type StreamConfig struct {
	Transport         string        `yaml:"transport"` // websocket or http
	Symbols           []string      `yaml:"symbols"`
	Filters           []string      `yaml:"filters"` // quote, trade, summary, timesale, tradex
	ArenaSize         int           `yaml:"arena_size"`
	ArenaMaxSize      int           `yaml:"arena_max_size"`
	ArenaPolicy       string        `yaml:"arena_policy"` // grow or fail
	MaxFrame          int           `yaml:"max_frame"`
	ReadSize          int           `yaml:"read_size"`
	PriceDecimals     int           `yaml:"price_decimals"`
	StaleAfter        time.Duration `yaml:"stale_after"`
	PingInterval      time.Duration `yaml:"ping_interval"`
	BackoffInitial    time.Duration `yaml:"backoff_initial"`
	BackoffMax        time.Duration `yaml:"backoff_max"`
	BackoffResetAfter time.Duration `yaml:"backoff_reset_after"`
	BackoffJitter     float64       `yaml:"backoff_jitter"`
}

// LimitsConfig holds the per-class request budgets.
type LimitsConfig struct {
	Quotes        LimitConfig `yaml:"quotes"`
	Orders        LimitConfig `yaml:"orders"`
	Account       LimitConfig `yaml:"account"`
	StreamConnect LimitConfig `yaml:"stream_connect"`
}

// LimitConfig is one token bucket. A negative capacity disables the limit.
type LimitConfig struct {
	Capacity int           `yaml:"capacity"`
	Window   time.Duration `yaml:"window"`
}

// PollerConfig holds REST quote poller settings.
type PollerConfig struct {
	Interval          time.Duration `yaml:"interval"`
	Symbols           []string      `yaml:"symbols"`
	SymbolsPerRequest int           `yaml:"symbols_per_request"`
	Timeout           time.Duration `yaml:"timeout"`
}

// DatabaseConfig holds the TimescaleDB connection for recorded events.
type DatabaseConfig struct {
	Timescale DBConfig `yaml:"timescale"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// WriterConfig holds batch writer settings.
type WriterConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}
