package connection

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rickgao/tradier-stream/internal/api"
	"github.com/rickgao/tradier-stream/internal/event"
	"github.com/rickgao/tradier-stream/internal/metrics"
	"github.com/rickgao/tradier-stream/internal/ratelimit"
	"github.com/rickgao/tradier-stream/internal/stream"
	"github.com/rickgao/tradier-stream/internal/transport"
)

// Manager drives a stream.Session: it connects, subscribes, polls and
// reconnects until its context is cancelled. The session must have been
// created over the manager's transport and is owned by Run.
type Manager struct {
	cfg       ManagerConfig
	transport Transport
	session   *stream.Session
	sessions  SessionSource
	handler   Handler
	subs      *Subscriptions
	observer  *metrics.StreamObserver
	logger    *slog.Logger

	// Owned by Run
	sessionID  string
	subscribed uint64 // Subscriptions version carried by the stream

	mu    sync.Mutex
	stats ManagerStats
}

// NewManager creates a connection manager. m may be nil.
func NewManager(
	cfg ManagerConfig,
	t Transport,
	session *stream.Session,
	sessions SessionSource,
	handler Handler,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultManagerConfig()
	if cfg.PollWait <= 0 {
		cfg.PollWait = def.PollWait
	}
	if cfg.StatsInterval <= 0 {
		cfg.StatsInterval = def.StatsInterval
	}
	if cfg.SessionRetry <= 0 {
		cfg.SessionRetry = def.SessionRetry
	}
	if handler == nil {
		handler = HandlerFunc(func(*stream.Session, *event.Event) {})
	}
	subs := NewSubscriptions()
	if len(cfg.Symbols) > 0 {
		subs.Subscribe(ConfigClient, cfg.Symbols...)
	}
	return &Manager{
		cfg:       cfg,
		transport: t,
		session:   session,
		sessions:  sessions,
		handler:   handler,
		subs:      subs,
		observer:  m.NewStreamObserver(),
		logger:    logger,
	}
}

// Subscriptions returns the live subscription set. Changes are applied to
// the stream by Run.
func (m *Manager) Subscriptions() *Subscriptions {
	return m.subs
}

// Run blocks until ctx is done, then closes the session. It returns nil on
// cancellation; connection failures are retried, not returned.
func (m *Manager) Run(ctx context.Context) error {
	defer m.shutdown()

	statsTicker := time.NewTicker(m.cfg.StatsInterval)
	defer statsTicker.Stop()

	m.logger.Info("connection manager started",
		"symbols", m.subs.Len(),
		"filter", m.cfg.Filter,
	)

	for ctx.Err() == nil {
		select {
		case <-statsTicker.C:
			m.publish()
		default:
		}

		if m.session.State() == stream.StateStreaming {
			if m.subs.Version() != m.subscribed {
				m.resubscribe()
				continue
			}
			m.poll(ctx)
			continue
		}
		m.connect(ctx)
	}
	return nil
}

// Stats returns the statistics published by the last stats tick.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats
}

// connect waits out any backoff, requests a session id, connects and
// subscribes. Failures leave the session disconnected or in backoff for the
// next iteration.
func (m *Manager) connect(ctx context.Context) {
	if d := m.session.RetryAfter(); d > 0 {
		sleep(ctx, d)
		return
	}

	symbols, version := m.subs.Symbols()
	if len(symbols) == 0 {
		// Nothing to stream until a client subscribes.
		select {
		case <-m.subs.Changed():
		case <-ctx.Done():
		}
		return
	}

	info, err := m.requestSession(ctx)
	if err != nil {
		delay := m.cfg.SessionRetry
		var le *ratelimit.LimitedError
		if errors.As(err, &le) && le.RetryAfter > delay {
			delay = le.RetryAfter
		}
		if ctx.Err() == nil {
			m.logger.Warn("stream session request failed", "error", err, "retry_in", delay)
		}
		sleep(ctx, delay)
		return
	}

	if err := m.session.Connect(ctx); err != nil {
		var le *ratelimit.LimitedError
		if errors.As(err, &le) {
			m.logger.Debug("stream connect refused", "retry_after", le.RetryAfter)
			sleep(ctx, le.RetryAfter)
			return
		}
		m.logger.Warn("stream connect failed", "error", err)
		return
	}

	m.sessionID = info.SessionID
	if err := m.subscribe(symbols, version); err != nil {
		m.logger.Warn("stream subscribe failed", "error", err)
	}
}

func (m *Manager) subscribe(symbols []string, version uint64) error {
	sub := stream.Subscription{
		Symbols:         symbols,
		SessionID:       m.sessionID,
		Filter:          m.cfg.Filter,
		Linebreak:       true,
		ValidOnly:       m.cfg.ValidOnly,
		AdvancedDetails: m.cfg.AdvancedDetails,
	}
	if err := m.session.Subscribe(sub); err != nil {
		return err
	}
	m.subscribed = version

	m.mu.Lock()
	m.stats.Symbols = len(symbols)
	m.mu.Unlock()
	return nil
}

// resubscribe applies a changed subscription set to the live stream. The
// stream is closed when no symbol is left, and reopened when the transport
// cannot take a new subscription in place.
func (m *Manager) resubscribe() {
	symbols, version := m.subs.Symbols()

	rs, ok := m.transport.(resubscriber)
	if len(symbols) == 0 || !ok || !rs.CanResubscribe() {
		m.logger.Info("subscription changed, reopening stream", "symbols", len(symbols))
		if err := m.session.Close(); err != nil {
			m.logger.Debug("stream close failed", "error", err)
		}
		m.subscribed = version
		return
	}

	if err := m.subscribe(symbols, version); err != nil {
		m.logger.Warn("stream resubscribe failed", "error", err)
		return
	}
	m.mu.Lock()
	m.stats.Resubscribes++
	m.mu.Unlock()
}

func (m *Manager) requestSession(ctx context.Context) (*api.StreamSession, error) {
	m.mu.Lock()
	m.stats.SessionRequests++
	m.mu.Unlock()

	info, err := m.sessions.CreateStreamSession(ctx)
	if err != nil {
		m.mu.Lock()
		m.stats.SessionFailures++
		m.stats.LastSessionError = err.Error()
		m.mu.Unlock()
		return nil, err
	}
	return info, nil
}

// poll takes one event from the session.
func (m *Manager) poll(ctx context.Context) {
	ev, err := m.session.Poll()
	switch {
	case err == nil:
		if sym, ok := ev.Symbol(); ok && !m.subs.Has(sym.Bytes()) {
			// Still in flight from before an unsubscribe.
			m.mu.Lock()
			m.stats.Filtered++
			m.mu.Unlock()
			return
		}
		m.handler.HandleEvent(m.session, &ev)
	case errors.Is(err, stream.ErrWouldBlock):
		transport.Wait(ctx, m.transport.Ready(), m.cfg.PollWait)
	default:
		// The session has moved to backoff.
		m.logger.Info("stream interrupted", "error", err, "retry_in", m.session.RetryAfter())
	}
}

func (m *Manager) publish() {
	st := m.session.Stats()
	m.observer.Observe(st)

	m.mu.Lock()
	m.stats.Session = st
	m.mu.Unlock()
}

func (m *Manager) shutdown() {
	if err := m.session.Close(); err != nil {
		m.logger.Debug("stream close failed", "error", err)
	}
	m.publish()
	m.logger.Info("connection manager stopped")
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
