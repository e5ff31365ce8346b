package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/goccy/go-json"

	"github.com/rickgao/tradier-stream/internal/arena"
	"github.com/rickgao/tradier-stream/internal/event"
	"github.com/rickgao/tradier-stream/internal/frame"
	"github.com/rickgao/tradier-stream/internal/ratelimit"
)

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger for state transitions.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Session) {
		s.now = now
	}
}

// WithLimiter checks the StreamConnect budget before every Connect.
func WithLimiter(l ratelimit.Limiter) Option {
	return func(s *Session) {
		s.limiter = l
	}
}

// Session is one streaming connection and its decode pipeline.
type Session struct {
	cfg       Config
	transport Transport
	arena     *arena.Arena
	reader    *frame.Reader
	decoder   *event.Decoder
	backoff   *ratelimit.Backoff
	limiter   ratelimit.Limiter
	logger    *slog.Logger
	now       func() time.Time

	state          State
	lastFrame      time.Time
	streamingSince time.Time
	retryAt        time.Time
	pending        error // Transport error seen while frames were still buffered
	lastErr        error

	stats Stats
}

// New creates a disconnected Session reading from t.
func New(t Transport, cfg Config, opts ...Option) *Session {
	def := DefaultConfig()
	if cfg.Arena.Size <= 0 {
		cfg.Arena = def.Arena
	}
	if cfg.ReadSize <= 0 {
		cfg.ReadSize = def.ReadSize
	}
	if cfg.ReadSize > cfg.Arena.Size {
		cfg.ReadSize = cfg.Arena.Size
	}

	a := arena.New(cfg.Arena)
	s := &Session{
		cfg:       cfg,
		transport: t,
		arena:     a,
		reader:    frame.NewReader(a, cfg.MaxFrame),
		decoder:   event.NewDecoder(cfg.Decoder),
		backoff:   ratelimit.NewBackoff(cfg.Backoff),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// State returns the current connection state.
func (s *Session) State() State {
	return s.state
}

// Err returns the error that last moved the session to Backoff.
func (s *Session) Err() error {
	return s.lastErr
}

// RetryAfter returns how long Connect will keep refusing while in Backoff.
func (s *Session) RetryAfter() time.Duration {
	if s.state != StateBackoff {
		return 0
	}
	if d := s.retryAt.Sub(s.now()); d > 0 {
		return d
	}
	return 0
}

// Decimals returns the price scale of decoded events.
func (s *Session) Decimals() int {
	return s.decoder.Decimals()
}

// Connect establishes the transport. It is valid from Disconnected and, once
// the backoff delay has elapsed, from Backoff. A refused attempt returns a
// *ratelimit.LimitedError and leaves the state unchanged.
func (s *Session) Connect(ctx context.Context) error {
	if !canTransition(s.state, StateConnecting) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, StateConnecting)
	}

	now := s.now()
	if s.state == StateBackoff && now.Before(s.retryAt) {
		return &ratelimit.LimitedError{
			Class:      ratelimit.ClassStreamConnect,
			RetryAfter: s.retryAt.Sub(now),
		}
	}
	if s.limiter != nil {
		if err := s.limiter.Allow(ratelimit.ClassStreamConnect); err != nil {
			return err
		}
	}

	s.setState(StateConnecting)
	if err := s.transport.Connect(ctx); err != nil {
		terr := &TransportError{Op: "connect", Err: err}
		s.enterBackoff(terr)
		return terr
	}

	// Nothing from the previous connection may leak into this one.
	s.arena.Reset()
	s.reader.Reset()
	s.pending = nil

	now = s.now()
	s.lastFrame = now
	s.streamingSince = now
	s.stats.Connects++
	s.setState(StateStreaming)
	return nil
}

// Subscribe sends the subscription payload over the transport.
func (s *Session) Subscribe(sub Subscription) error {
	if s.state != StateStreaming {
		return ErrNotStreaming
	}
	payload, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("marshal subscription: %w", err)
	}
	if _, err := s.transport.Write(payload); err != nil {
		terr := &TransportError{Op: "write", Err: err}
		s.enterBackoff(terr)
		return terr
	}
	s.logger.Info("stream subscribed",
		"symbols", len(sub.Symbols),
		"filter", sub.Filter,
	)
	return nil
}

// Poll returns the next event in wire order.
//
// If a complete frame is buffered it is decoded without touching the
// transport. Otherwise Poll reads until one frame completes. It returns
// ErrWouldBlock when the transport has nothing more yet and io.EOF when the
// peer closed the stream. Undecodable frames come back as KindDecodeError
// events with a nil error.
//
// Borrowed fields of the returned Event stay valid until the next Poll.
func (s *Session) Poll() (event.Event, error) {
	if s.state != StateStreaming {
		return event.Event{}, ErrNotStreaming
	}

	for {
		if f, ok := s.reader.Next(); ok {
			s.lastFrame = s.now()
			return s.decode(f), nil
		}

		if err := s.pending; err != nil {
			s.pending = nil
			s.enterBackoff(err)
			return event.Event{}, err
		}

		region, err := s.arena.AcquireWrite(s.cfg.ReadSize)
		if err != nil {
			s.enterBackoff(err)
			return event.Event{}, err
		}

		n, rerr := s.transport.Read(region)
		if n > 0 {
			if err := s.arena.CommitWrite(n); err != nil {
				s.enterBackoff(err)
				return event.Event{}, err
			}
			s.stats.BytesRead += int64(n)
		}

		switch {
		case rerr == nil:
			if n == 0 {
				return event.Event{}, s.idle()
			}
		case errors.Is(rerr, ErrWouldBlock):
			if n == 0 {
				return event.Event{}, s.idle()
			}
		case errors.Is(rerr, io.EOF):
			s.pending = io.EOF
		default:
			s.pending = &TransportError{Op: "read", Err: rerr}
		}
	}
}

// idle is called when the transport had nothing to offer. It enforces the
// staleness limit.
func (s *Session) idle() error {
	if s.cfg.StaleAfter > 0 && s.now().Sub(s.lastFrame) >= s.cfg.StaleAfter {
		s.enterBackoff(ErrStale)
		return ErrStale
	}
	return ErrWouldBlock
}

func (s *Session) decode(f frame.Frame) event.Event {
	at, err := s.reader.Slice(f)
	if err != nil {
		ev := event.Failed(arena.Slice{}, f.Start, "", event.ReasonMalformed)
		s.stats.count(ev.Kind)
		return ev
	}

	var ev event.Event
	if f.Oversize {
		ev = event.Failed(at, f.Start, "", event.ReasonOversize)
	} else {
		b, _ := s.arena.Bytes(at)
		ev = s.decoder.Decode(b, at)
	}
	s.stats.count(ev.Kind)
	return ev
}

// Bytes resolves a borrowed field of the last polled event.
func (s *Session) Bytes(sl arena.Slice) ([]byte, error) {
	return s.arena.Bytes(sl)
}

// String resolves a borrowed field and copies it.
func (s *Session) String(sl arena.Slice) (string, error) {
	return s.arena.String(sl)
}

// Close tears the connection down from any state.
func (s *Session) Close() error {
	if s.state == StateDisconnected {
		return nil
	}
	err := s.transport.Close()
	s.backoff.Reset()
	s.pending = nil
	s.setState(StateDisconnected)
	if err != nil {
		return &TransportError{Op: "close", Err: err}
	}
	return nil
}

// Stats returns session statistics.
func (s *Session) Stats() Stats {
	st := s.stats
	st.State = s.state
	st.Attempts = s.backoff.Attempts()
	st.Arena = s.arena.Stats()
	return st
}

func (s *Session) enterBackoff(cause error) {
	now := s.now()
	if s.state == StateStreaming {
		if s.backoff.Streamed(now.Sub(s.streamingSince)) {
			s.logger.Debug("stream backoff reset after sustained streaming")
		}
	}
	delay := s.backoff.Next()
	s.retryAt = now.Add(delay)
	s.lastErr = cause
	s.stats.Backoffs++

	if err := s.transport.Close(); err != nil {
		s.logger.Debug("transport close failed", "error", err)
	}

	s.logger.Warn("stream backoff",
		"from", s.state,
		"delay", delay,
		"attempt", s.backoff.Attempts(),
		"error", cause,
	)
	s.setState(StateBackoff)
}

func (s *Session) setState(to State) {
	if !canTransition(s.state, to) {
		s.logger.Error("illegal stream transition", "from", s.state, "to", to)
		return
	}
	if s.state == to {
		return
	}
	from := s.state
	s.state = to
	switch to {
	case StateStreaming:
		s.logger.Info("stream connected")
	case StateDisconnected:
		s.logger.Info("stream closed", "from", from)
	}
}
