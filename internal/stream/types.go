// Package stream drives one streaming market-data connection: it pulls bytes
// from a Transport into an arena, cuts frames, decodes them, and tracks the
// connection state machine.
//
// A Session is polled by exactly one goroutine. It never starts goroutines
// of its own and never blocks except inside Transport calls.
package stream

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rickgao/tradier-stream/internal/arena"
	"github.com/rickgao/tradier-stream/internal/event"
	"github.com/rickgao/tradier-stream/internal/frame"
	"github.com/rickgao/tradier-stream/internal/ratelimit"
)

// Errors
var (
	ErrWouldBlock        = errors.New("stream: would block")
	ErrStale             = errors.New("stream: no frames within stale timeout")
	ErrInvalidTransition = errors.New("stream: invalid state transition")
	ErrNotStreaming      = errors.New("stream: not streaming")
)

// Transport is the byte source for a Session. Implementations are supplied
// by the host (see internal/transport).
//
// Read must not block: when nothing is available it returns 0 and
// ErrWouldBlock. io.EOF means the peer closed the stream cleanly.
type Transport interface {
	Connect(ctx context.Context) error
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// TransportError wraps a failure reported by the Transport. It is fatal to
// the current connection.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("stream transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// State is the connection state of a Session.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateStreaming
	StateBackoff
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateBackoff:
		return "backoff"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// canTransition reports whether from -> to is an edge of the state graph.
// Close may move any state to Disconnected.
func canTransition(from, to State) bool {
	switch to {
	case StateDisconnected:
		return true
	case StateConnecting:
		return from == StateDisconnected || from == StateBackoff
	case StateStreaming:
		return from == StateConnecting
	case StateBackoff:
		return from == StateConnecting || from == StateStreaming
	}
	return false
}

// Config configures a Session.
type Config struct {
	Arena      arena.Config
	MaxFrame   int           // Longest accepted frame (0 = frame.DefaultMaxFrame)
	ReadSize   int           // Minimum free bytes requested per transport read
	Decoder    event.Config
	StaleAfter time.Duration // No frame for this long while streaming forces Backoff (0 = never)
	Backoff    ratelimit.BackoffConfig
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Arena:      arena.DefaultConfig(),
		MaxFrame:   frame.DefaultMaxFrame,
		ReadSize:   4096,
		Decoder:    event.DefaultConfig(),
		StaleAfter: 100 * time.Second,
		Backoff:    ratelimit.DefaultBackoffConfig(),
	}
}

// Subscription is Tradier's market-events subscription payload.
type Subscription struct {
	Symbols         []string `json:"symbols"`
	SessionID       string   `json:"sessionid"`
	Filter          []string `json:"filter,omitempty"`
	Linebreak       bool     `json:"linebreak"`
	ValidOnly       bool     `json:"validOnly,omitempty"`
	AdvancedDetails bool     `json:"advancedDetails,omitempty"`
}

// Stats contains session statistics.
type Stats struct {
	State        State
	Frames       int64
	Quotes       int64
	Trades       int64
	Summaries    int64
	Timesales    int64
	Heartbeats   int64
	Unknown      int64
	DecodeErrors int64
	BytesRead    int64
	Connects     int64
	Backoffs     int64
	Attempts     int // Backoff attempts since the last reset
	Arena        arena.Stats
}

func (s *Stats) count(k event.Kind) {
	s.Frames++
	switch k {
	case event.KindQuote:
		s.Quotes++
	case event.KindTrade:
		s.Trades++
	case event.KindSummary:
		s.Summaries++
	case event.KindTimesale:
		s.Timesales++
	case event.KindHeartbeat:
		s.Heartbeats++
	case event.KindUnknown:
		s.Unknown++
	case event.KindDecodeError:
		s.DecodeErrors++
	}
}
