package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/tradier-stream/internal/api"
	"github.com/rickgao/tradier-stream/internal/metrics"
	"github.com/rickgao/tradier-stream/internal/ratelimit"
)

// QuoteSource fetches quotes. *api.Client satisfies it.
type QuoteSource interface {
	GetQuotes(ctx context.Context, symbols []string, greeks bool) ([]api.Quote, error)
}

// QuoteHandler receives fetched quotes.
type QuoteHandler interface {
	HandleQuotes(quotes []api.Quote) error
}

// QuoteHandlerFunc is a function adapter for QuoteHandler.
type QuoteHandlerFunc func([]api.Quote) error

func (f QuoteHandlerFunc) HandleQuotes(q []api.Quote) error {
	return f(q)
}

// Config holds poller configuration.
type Config struct {
	Interval          time.Duration // Poll interval (default: 1m)
	SymbolsPerRequest int           // Max symbols per request (default: 100)
	Concurrency       int           // Max concurrent requests (default: 4)
	Timeout           time.Duration // Per-request timeout (default: 10s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:          time.Minute,
		SymbolsPerRequest: 100,
		Concurrency:       4,
		Timeout:           10 * time.Second,
	}
}

// Poll cycle results, as reported to metrics.
const (
	ResultOK      = "ok"
	ResultError   = "error"
	ResultLimited = "limited"
)

// Cycle summarizes one poll cycle.
type Cycle struct {
	Requests int64
	Quotes   int64
	Errors   int64
	Skipped  int64 // Requests not sent because the budget ran out
	Limited  bool
	Duration time.Duration
}

// Result classifies the cycle for metrics.
func (c Cycle) Result() string {
	switch {
	case c.Limited:
		return ResultLimited
	case c.Errors > 0:
		return ResultError
	}
	return ResultOK
}

// Poller periodically fetches quotes via the REST API.
type Poller struct {
	cfg     Config
	source  QuoteSource
	symbols []string
	handler QuoteHandler
	metrics *metrics.Metrics
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller.
func New(cfg Config, source QuoteSource, symbols []string, handler QuoteHandler, m *metrics.Metrics, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.SymbolsPerRequest <= 0 {
		cfg.SymbolsPerRequest = def.SymbolsPerRequest
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Poller{
		cfg:     cfg,
		source:  source,
		symbols: symbols,
		handler: handler,
		metrics: m,
		logger:  logger,
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("quote poller started",
		"interval", p.cfg.Interval,
		"symbols", len(p.symbols),
	)
	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("quote poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Poll immediately on start.
	p.Poll(p.ctx)

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.Poll(p.ctx)
		}
	}
}

// Poll runs one cycle over every symbol. Once a request is refused by the
// rate limiter the remaining requests of the cycle are skipped.
func (p *Poller) Poll(ctx context.Context) Cycle {
	start := time.Now()
	var cycle Cycle

	chunks := Chunk(p.symbols, p.cfg.SymbolsPerRequest)
	if len(chunks) == 0 {
		p.logger.Debug("no symbols to poll")
		return cycle
	}

	var requests, quotes, errs, skipped atomic.Int64
	var limited atomic.Bool

	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)

	for _, chunk := range chunks {
		g.Go(func() error {
			if limited.Load() || ctx.Err() != nil {
				skipped.Add(1)
				return nil
			}

			requests.Add(1)
			n, err := p.pollChunk(ctx, chunk)
			if err != nil {
				var le *ratelimit.LimitedError
				if errors.As(err, &le) {
					if !limited.Swap(true) {
						p.logger.Warn("quotes budget exhausted, skipping cycle",
							"retry_after", le.RetryAfter,
						)
					}
					return nil
				}
				p.logger.Warn("failed to poll quotes",
					"symbols", len(chunk),
					"err", err,
				)
				errs.Add(1)
				return nil
			}
			quotes.Add(int64(n))
			return nil
		})
	}
	g.Wait()

	cycle = Cycle{
		Requests: requests.Load(),
		Quotes:   quotes.Load(),
		Errors:   errs.Load(),
		Skipped:  skipped.Load(),
		Limited:  limited.Load(),
		Duration: time.Since(start),
	}
	p.metrics.RecordPoll(cycle.Result(), cycle.Duration)

	p.logger.Info("poll cycle complete",
		"requests", cycle.Requests,
		"quotes", cycle.Quotes,
		"errors", cycle.Errors,
		"skipped", cycle.Skipped,
		"duration", cycle.Duration,
	)
	return cycle
}

// pollChunk fetches and handles one request's worth of symbols.
func (p *Poller) pollChunk(ctx context.Context, symbols []string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	quotes, err := p.source.GetQuotes(ctx, symbols, false)
	if err != nil {
		return 0, err
	}

	if p.handler != nil {
		if err := p.handler.HandleQuotes(quotes); err != nil {
			return 0, err
		}
	}
	return len(quotes), nil
}

// Chunk splits symbols into slices of at most size elements.
func Chunk(symbols []string, size int) [][]string {
	if size <= 0 {
		size = len(symbols)
	}
	var chunks [][]string
	for len(symbols) > 0 {
		n := min(size, len(symbols))
		chunks = append(chunks, symbols[:n:n])
		symbols = symbols[n:]
	}
	return chunks
}
