package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/tradier-stream/internal/auth"
)

// WebSocketConfig configures a WebSocket transport.
type WebSocketConfig struct {
	URL              string        // e.g. wss://ws.tradier.com/v1/markets/events
	PingInterval     time.Duration // Keepalive ping period (0 = no pings)
	PingTimeout      time.Duration // Max time without ping or pong before the connection is stale (0 = never)
	WriteTimeout     time.Duration // Write deadline for sends
	HandshakeTimeout time.Duration
	BufferSize       int // Queued messages per connection
}

// DefaultWebSocketConfig returns sensible defaults.
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		URL:              "wss://ws.tradier.com/v1/markets/events",
		PingInterval:     15 * time.Second,
		PingTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
		HandshakeTimeout: 10 * time.Second,
		BufferSize:       DefaultBufferSize,
	}
}

// WebSocket is a stream.Transport over Tradier's WebSocket feed. Each
// message is one JSON object; Read delivers them newline-terminated.
//
// Connect, Read, Write and Close are called from the poll loop. The
// transport may be reconnected after Close.
type WebSocket struct {
	cfg    WebSocketConfig
	tokens auth.TokenSource
	logger *slog.Logger

	mu   sync.Mutex
	conn *wsConn

	// Write serialization
	writeMu sync.Mutex
}

// wsConn is the state of one dialed connection. Its goroutines never touch
// a later connection's state.
type wsConn struct {
	ws       *websocket.Conn
	feed     *feed
	lastPing atomic.Int64 // Unix nanos of the last ping or pong
}

// NewWebSocket creates a WebSocket transport. tokens may be nil; Tradier
// authenticates the feed through the session id in the subscription.
func NewWebSocket(cfg WebSocketConfig, tokens auth.TokenSource, logger *slog.Logger) *WebSocket {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWebSocketConfig().WriteTimeout
	}
	return &WebSocket{
		cfg:    cfg,
		tokens: tokens,
		logger: logger,
	}
}

// Connect dials the feed and starts the reader.
func (t *WebSocket) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn != nil {
		return ErrAlreadyConnected
	}

	// Build headers
	header := http.Header{}
	header.Set("Accept", "application/json")
	if t.tokens != nil {
		token, err := t.tokens.Token()
		if err != nil {
			return fmt.Errorf("get token: %w", err)
		}
		header.Set("Authorization", "Bearer "+token)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: t.cfg.HandshakeTimeout,
	}
	ws, _, err := dialer.DialContext(ctx, t.cfg.URL, header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", t.cfg.URL, err)
	}

	c := &wsConn{ws: ws, feed: newFeed(t.cfg.BufferSize)}
	c.lastPing.Store(time.Now().UnixNano())

	// Server pings are answered; either direction counts as liveness.
	ws.SetPingHandler(func(data string) error {
		c.lastPing.Store(time.Now().UnixNano())
		return ws.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})
	ws.SetPongHandler(func(string) error {
		c.lastPing.Store(time.Now().UnixNano())
		return nil
	})

	t.conn = c
	go t.readLoop(c)
	if t.cfg.PingInterval > 0 {
		go t.heartbeatLoop(c)
	}

	t.logger.Debug("websocket connected", "url", t.cfg.URL)
	return nil
}

// Read copies buffered message bytes into p. It returns stream.ErrWouldBlock
// when nothing has arrived and io.EOF after a normal close from the server.
func (t *WebSocket) Read(p []byte) (int, error) {
	c := t.current()
	if c == nil {
		return 0, ErrNotConnected
	}
	return c.feed.read(p)
}

// Write sends p as one text message.
func (t *WebSocket) Write(p []byte) (int, error) {
	c := t.current()
	if c == nil {
		return 0, ErrNotConnected
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout))
	if err := c.ws.WriteMessage(websocket.TextMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

// CanResubscribe reports that a new subscription may be written to a live
// connection; the feed replaces the symbol list.
func (t *WebSocket) CanResubscribe() bool {
	return true
}

// Ready is signalled whenever new data or an error is queued. It returns
// nil when not connected.
func (t *WebSocket) Ready() <-chan struct{} {
	c := t.current()
	if c == nil {
		return nil
	}
	return c.feed.notify
}

// Close gracefully closes the current connection, if any.
func (t *WebSocket) Close() error {
	t.mu.Lock()
	c := t.conn
	t.conn = nil
	t.mu.Unlock()
	if c == nil {
		return nil
	}

	// Signal goroutines to stop
	c.feed.stop()

	c.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return c.ws.Close()
}

func (t *WebSocket) current() *wsConn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn
}

// readLoop queues every message until the connection fails.
func (t *WebSocket) readLoop(c *wsConn) {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			select {
			case <-c.feed.done:
				// Closed locally
			default:
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					err = io.EOF
				}
				c.feed.fail(err)
			}
			return
		}
		if len(data) == 0 {
			continue
		}
		if data[len(data)-1] != '\n' {
			data = append(data, '\n')
		}
		if !c.feed.push(data) {
			return
		}
	}
}

// heartbeatLoop pings the server and fails the connection when neither a
// ping nor a pong has been seen within PingTimeout.
func (t *WebSocket) heartbeatLoop(c *wsConn) {
	ticker := time.NewTicker(t.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.feed.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(t.cfg.WriteTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				t.logger.Debug("failed to send ping", "error", err)
			}

			if t.cfg.PingTimeout <= 0 {
				continue
			}
			lastPing := time.Unix(0, c.lastPing.Load())
			if time.Since(lastPing) > t.cfg.PingTimeout {
				t.logger.Warn("no pong received, connection stale",
					"last_ping", lastPing,
					"timeout", t.cfg.PingTimeout,
				)
				c.feed.fail(ErrStaleConnection)
				c.ws.Close()
				return
			}
		}
	}
}
