package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rickgao/tradier-stream/internal/arena"
)

func TestLoad(t *testing.T) {
	yaml := `
api:
  rest_url: https://sandbox.tradier.com/v1
  account_id: VA000001
stream:
  transport: http
  symbols: [SPY, AAPL]
  filters: [quote, trade]
  stale_after: 30s
limits:
  orders:
    capacity: 5
    window: 1s
database:
  timescale:
    host: localhost
    port: 5432
    name: test_ts
    user: testuser
    password: testpass
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.API.RestURL != "https://sandbox.tradier.com/v1" {
		t.Errorf("API.RestURL = %q, want %q", cfg.API.RestURL, "https://sandbox.tradier.com/v1")
	}
	if cfg.API.AccountID != "VA000001" {
		t.Errorf("API.AccountID = %q, want VA000001", cfg.API.AccountID)
	}
	if len(cfg.Stream.Symbols) != 2 || cfg.Stream.Symbols[1] != "AAPL" {
		t.Errorf("Stream.Symbols = %v, want [SPY AAPL]", cfg.Stream.Symbols)
	}
	if cfg.Stream.StaleAfter != 30*time.Second {
		t.Errorf("Stream.StaleAfter = %v, want 30s", cfg.Stream.StaleAfter)
	}
	if cfg.Limits.Orders.Capacity != 5 || cfg.Limits.Orders.Window != time.Second {
		t.Errorf("Limits.Orders = %+v", cfg.Limits.Orders)
	}
	if cfg.Database.Timescale.Host != "localhost" {
		t.Errorf("Database.Timescale.Host = %q, want %q", cfg.Database.Timescale.Host, "localhost")
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_TRADIER_TOKEN", "secret123")
	t.Setenv("TEST_DB_PASSWORD", "dbsecret")

	yaml := `
api:
  token: ${TEST_TRADIER_TOKEN}
database:
  timescale:
    host: localhost
    name: test_ts
    user: testuser
    password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.API.Token != "secret123" {
		t.Errorf("API.Token = %q, want %q", cfg.API.Token, "secret123")
	}
	if cfg.Database.Timescale.Password != "dbsecret" {
		t.Errorf("Database.Timescale.Password = %q, want %q", cfg.Database.Timescale.Password, "dbsecret")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	path := writeTempFile(t, "api:\n  account_id: VA1\n")

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.API.RestURL != DefaultRestURL {
		t.Errorf("API.RestURL = %q, want default %q", cfg.API.RestURL, DefaultRestURL)
	}
	if cfg.API.Timeout != DefaultAPITimeout {
		t.Errorf("API.Timeout = %v, want default %v", cfg.API.Timeout, DefaultAPITimeout)
	}
	if cfg.Stream.StaleAfter != DefaultStaleAfter {
		t.Errorf("Stream.StaleAfter = %v, want default %v", cfg.Stream.StaleAfter, DefaultStaleAfter)
	}
	if cfg.Stream.PriceDecimals != DefaultPriceDecimals {
		t.Errorf("Stream.PriceDecimals = %d, want default %d", cfg.Stream.PriceDecimals, DefaultPriceDecimals)
	}
	if cfg.Limits.StreamConnect.Capacity != DefaultConnectsPerWindow {
		t.Errorf("Limits.StreamConnect.Capacity = %d, want default %d", cfg.Limits.StreamConnect.Capacity, DefaultConnectsPerWindow)
	}
	if cfg.Database.Timescale.Port != DefaultDBPort {
		t.Errorf("Database.Timescale.Port = %d, want default %d", cfg.Database.Timescale.Port, DefaultDBPort)
	}
	if cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Metrics.Port = %d, want default %d", cfg.Metrics.Port, DefaultMetricsPort)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestLoadAndValidate(t *testing.T) {
	path := writeTempFile(t, "stream:\n  transport: carrier-pigeon\n")
	if _, err := LoadAndValidate(path); err == nil {
		t.Error("expected validation error")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	if _, err := Parse([]byte("api: [unterminated")); err == nil {
		t.Error("expected error for invalid yaml")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: "",
		},
		{
			name:    "bad transport",
			mutate:  func(c *Config) { c.Stream.Transport = "grpc" },
			wantErr: `stream.transport must be websocket or http, got "grpc"`,
		},
		{
			name:    "unknown filter",
			mutate:  func(c *Config) { c.Stream.Filters = []string{"quote", "news"} },
			wantErr: `stream.filters: unknown event type "news"`,
		},
		{
			name:    "arena max below size",
			mutate:  func(c *Config) { c.Stream.ArenaMaxSize = 1024 },
			wantErr: "stream.arena_max_size (1024) cannot be less than arena_size (65536)",
		},
		{
			name:    "read size larger than arena",
			mutate:  func(c *Config) { c.Stream.ReadSize = 1 << 20 },
			wantErr: "stream.read_size must be between 1 and arena_size",
		},
		{
			name:    "price decimals out of range",
			mutate:  func(c *Config) { c.Stream.PriceDecimals = 12 },
			wantErr: "stream.price_decimals must be between 0 and 9",
		},
		{
			name:    "jitter out of range",
			mutate:  func(c *Config) { c.Stream.BackoffJitter = 1.5 },
			wantErr: "stream.backoff_jitter must be in [0, 1)",
		},
		{
			name:    "limit without window",
			mutate:  func(c *Config) { c.Limits.Orders.Window = 0 },
			wantErr: "limits.orders.window must be > 0",
		},
		{
			name:    "bad metrics port",
			mutate:  func(c *Config) { c.Metrics.Port = 70000 },
			wantErr: "metrics.port must be between 1 and 65535, got 70000",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Log.Format = "xml" },
			wantErr: `log.format must be text or json, got "xml"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func TestValidateDatabase(t *testing.T) {
	tests := []struct {
		name    string
		db      DBConfig
		wantErr string
	}{
		{
			name:    "missing host",
			db:      DBConfig{},
			wantErr: "database.timescale.host is required",
		},
		{
			name:    "missing password",
			db:      DBConfig{Host: "localhost", Name: "db", User: "user"},
			wantErr: "database.timescale.password is required",
		},
		{
			name:    "min_conns exceeds max_conns",
			db:      DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 5, MinConns: 10},
			wantErr: "database.timescale.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name: "valid",
			db:   DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 10, MinConns: 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Database: DatabaseConfig{Timescale: tt.db}}
			err := cfg.ValidateDatabase()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("ValidateDatabase() unexpected error: %v", err)
				}
			} else if err == nil || err.Error() != tt.wantErr {
				t.Errorf("ValidateDatabase() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseLevel(%q) = (%v, %v), want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("ParseLevel(verbose) expected error")
	}
}

func TestConversions(t *testing.T) {
	cfg := Default()
	cfg.Stream.ArenaPolicy = "fail"
	cfg.Limits.Account.Capacity = -1

	sc := cfg.Stream.SessionConfig()
	if sc.Arena.Policy != arena.PolicyFail {
		t.Errorf("Arena.Policy = %v, want fail", sc.Arena.Policy)
	}
	if sc.Arena.Size != DefaultArenaSize || sc.Arena.MaxSize != DefaultArenaMaxSize {
		t.Errorf("Arena = %+v", sc.Arena)
	}
	if sc.Decoder.PriceDecimals != DefaultPriceDecimals {
		t.Errorf("Decoder.PriceDecimals = %d", sc.Decoder.PriceDecimals)
	}
	if sc.Backoff.Initial != DefaultBackoffInitial || sc.Backoff.Max != DefaultBackoffMax || sc.Backoff.Multiplier != 2 {
		t.Errorf("Backoff = %+v", sc.Backoff)
	}

	rc := cfg.Limits.RateConfig()
	if rc.Quotes.Capacity != DefaultQuotesPerWindow || rc.Quotes.Window != DefaultLimitWindow {
		t.Errorf("Quotes = %+v", rc.Quotes)
	}
	if rc.Account.Capacity != 0 {
		t.Errorf("Account = %+v, want unlimited", rc.Account)
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
