package connection

import (
	"context"
	"time"

	"github.com/rickgao/tradier-stream/internal/api"
	"github.com/rickgao/tradier-stream/internal/event"
	"github.com/rickgao/tradier-stream/internal/stream"
)

// Transport is a stream transport that can signal readiness. Both
// transport.WebSocket and transport.HTTPStream satisfy it.
type Transport interface {
	stream.Transport
	Ready() <-chan struct{}
}

// resubscriber is implemented by transports that accept a new
// subscription on a live connection. Others are reconnected instead.
type resubscriber interface {
	CanResubscribe() bool
}

// SessionSource creates streaming session ids. *api.Client satisfies it.
type SessionSource interface {
	CreateStreamSession(ctx context.Context) (*api.StreamSession, error)
}

// Handler receives decoded events. The event and its borrowed fields are
// valid only for the duration of the call; s resolves borrowed fields.
type Handler interface {
	HandleEvent(s *stream.Session, ev *event.Event)
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func(*stream.Session, *event.Event)

func (f HandlerFunc) HandleEvent(s *stream.Session, ev *event.Event) {
	f(s, ev)
}

// ManagerConfig holds connection manager settings.
type ManagerConfig struct {
	Symbols         []string // Subscribed under ConfigClient at start

	Filter          []string // Event types to receive (empty = all)
	ValidOnly       bool
	AdvancedDetails bool

	// PollWait bounds how long the loop sleeps when the transport has
	// nothing to read, so staleness is still checked on a quiet stream.
	PollWait time.Duration

	// StatsInterval is how often session stats are published.
	StatsInterval time.Duration

	// SessionRetry schedules retries after a failed session id request.
	SessionRetry time.Duration
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		PollWait:      time.Second,
		StatsInterval: 5 * time.Second,
		SessionRetry:  5 * time.Second,
	}
}

// ManagerStats provides statistics about the connection manager.
type ManagerStats struct {
	Session          stream.Stats
	SessionRequests  int64
	SessionFailures  int64
	LastSessionError string
	Symbols          int   // Symbols in the subscription union
	Resubscribes     int64 // Subscription changes applied to a live stream
	Filtered         int64 // Events dropped for symbols no longer subscribed
}
