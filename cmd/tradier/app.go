package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/rickgao/tradier-stream/internal/api"
	"github.com/rickgao/tradier-stream/internal/auth"
	"github.com/rickgao/tradier-stream/internal/config"
	"github.com/rickgao/tradier-stream/internal/connection"
	"github.com/rickgao/tradier-stream/internal/metrics"
	"github.com/rickgao/tradier-stream/internal/ratelimit"
	"github.com/rickgao/tradier-stream/internal/stream"
	"github.com/rickgao/tradier-stream/internal/transport"
	"github.com/rickgao/tradier-stream/internal/version"
)

// app holds state shared by every subcommand.
type app struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
}

// load reads and validates configuration and installs the logger.
func (a *app) load() error {
	cfg := config.Default()
	if a.configPath != "" {
		var err error
		cfg, err = config.LoadAndValidate(a.configPath)
		if err != nil {
			return err
		}
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}

	logger, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	a.cfg = cfg
	a.logger = logger

	logger.Debug("configuration loaded",
		"version", version.Version,
		"config", a.configPath,
		"rest_url", cfg.API.RestURL,
		"transport", cfg.Stream.Transport,
	)
	return nil
}

// newLogger builds the process logger from log settings.
func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}
	opts := &slog.HandlerOptions{Level: level}

	switch cfg.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("log.format must be text or json, got %q", cfg.Format)
	}
}

func (a *app) tokens() auth.TokenSource {
	return auth.Resolve(a.cfg.API.Token, a.cfg.API.TokenFile)
}

// limiter returns the request budget shared by every caller in the process.
func (a *app) limiter() *ratelimit.Locked {
	return ratelimit.NewLocked(ratelimit.NewController(a.cfg.Limits.RateConfig()))
}

func (a *app) client(lim ratelimit.Limiter, m *metrics.Metrics, decimals int) *api.Client {
	opts := []api.ClientOption{
		api.WithLogger(a.logger),
		api.WithTimeout(a.cfg.API.Timeout),
		api.WithPriceDecimals(decimals),
		api.WithMetrics(m),
	}
	if lim != nil {
		opts = append(opts, api.WithLimiter(lim))
	}
	return api.NewClient(a.cfg.API.RestURL, a.tokens(), opts...)
}

// transport builds the configured stream transport. The WebSocket feed is
// authenticated by the session id alone.
func (a *app) transport() connection.Transport {
	switch a.cfg.Stream.Transport {
	case "http":
		cfg := transport.DefaultHTTPStreamConfig()
		cfg.URL = a.cfg.API.StreamURL
		cfg.ReadSize = a.cfg.Stream.ReadSize
		return transport.NewHTTPStream(cfg, a.tokens(), nil, a.logger)
	default:
		cfg := transport.DefaultWebSocketConfig()
		cfg.URL = a.cfg.API.WSURL
		cfg.PingInterval = a.cfg.Stream.PingInterval
		return transport.NewWebSocket(cfg, nil, a.logger)
	}
}

func (a *app) session(t connection.Transport, lim ratelimit.Limiter) *stream.Session {
	opts := []stream.Option{stream.WithLogger(a.logger)}
	if lim != nil {
		opts = append(opts, stream.WithLimiter(lim))
	}
	return stream.New(t, a.cfg.Stream.SessionConfig(), opts...)
}

func (a *app) managerConfig(symbols []string) connection.ManagerConfig {
	cfg := connection.DefaultManagerConfig()
	cfg.Symbols = symbols
	cfg.Filter = a.cfg.Stream.Filters
	return cfg
}
