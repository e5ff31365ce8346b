package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/goccy/go-json"

	"github.com/rickgao/tradier-stream/internal/auth"
	"github.com/rickgao/tradier-stream/internal/stream"
)

// ErrAlreadySubscribed is returned when a second subscription is written to
// an HTTP stream. The HTTP feed fixes its symbols per request; reconnect to
// change them.
var ErrAlreadySubscribed = errors.New("transport: http stream already subscribed")

// HTTPStreamConfig configures an HTTP chunked stream transport.
type HTTPStreamConfig struct {
	URL        string // e.g. https://stream.tradier.com/v1/markets/events
	ReadSize   int    // Bytes per body read
	BufferSize int    // Queued chunks per connection
}

// DefaultHTTPStreamConfig returns sensible defaults.
func DefaultHTTPStreamConfig() HTTPStreamConfig {
	return HTTPStreamConfig{
		URL:        "https://stream.tradier.com/v1/markets/events",
		ReadSize:   4096,
		BufferSize: DefaultBufferSize,
	}
}

// HTTPStream is a stream.Transport over Tradier's HTTP chunked feed. The
// subscription written by the session becomes the form of a POST whose
// response body is the event stream.
type HTTPStream struct {
	cfg    HTTPStreamConfig
	tokens auth.TokenSource
	client *http.Client
	logger *slog.Logger

	mu        sync.Mutex
	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
	feed      *feed
}

// NewHTTPStream creates an HTTP stream transport. client may be nil; it
// must not set a Timeout, which would cut the stream.
func NewHTTPStream(cfg HTTPStreamConfig, tokens auth.TokenSource, client *http.Client, logger *slog.Logger) *HTTPStream {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{}
	}
	if cfg.ReadSize <= 0 {
		cfg.ReadSize = DefaultHTTPStreamConfig().ReadSize
	}
	return &HTTPStream{
		cfg:    cfg,
		tokens: tokens,
		client: client,
		logger: logger,
	}
}

// Connect prepares a new connection. The request itself is sent by the
// first Write.
func (t *HTTPStream) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.connected {
		return ErrAlreadyConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	// The stream outlives the connect call, so it gets its own context.
	t.ctx, t.cancel = context.WithCancel(context.Background())
	t.connected = true
	return nil
}

// Write decodes the JSON subscription in p and opens the stream with it.
func (t *HTTPStream) Write(p []byte) (int, error) {
	t.mu.Lock()
	connected, ctx, subscribed := t.connected, t.ctx, t.feed != nil
	t.mu.Unlock()
	if !connected {
		return 0, ErrNotConnected
	}
	if subscribed {
		return 0, ErrAlreadySubscribed
	}

	var sub stream.Subscription
	if err := json.Unmarshal(p, &sub); err != nil {
		return 0, fmt.Errorf("decode subscription: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.URL, strings.NewReader(subscriptionForm(sub).Encode()))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if t.tokens != nil {
		token, err := t.tokens.Token()
		if err != nil {
			return 0, fmt.Errorf("get token: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return 0, fmt.Errorf("open stream: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected || t.ctx != ctx {
		// Closed while the request was in flight
		resp.Body.Close()
		return 0, ErrNotConnected
	}
	if t.feed != nil {
		resp.Body.Close()
		return 0, ErrAlreadySubscribed
	}
	t.feed = newFeed(t.cfg.BufferSize)
	go t.readLoop(resp.Body, t.feed)

	t.logger.Debug("http stream opened", "url", t.cfg.URL, "symbols", len(sub.Symbols))
	return len(p), nil
}

// CanResubscribe reports false: the symbols are fixed by the request, so a
// change needs a new connection.
func (t *HTTPStream) CanResubscribe() bool {
	return false
}

// Read copies buffered body bytes into p. Before the subscription is
// written there is nothing to read yet.
func (t *HTTPStream) Read(p []byte) (int, error) {
	t.mu.Lock()
	connected, f := t.connected, t.feed
	t.mu.Unlock()
	if !connected {
		return 0, ErrNotConnected
	}
	if f == nil {
		return 0, stream.ErrWouldBlock
	}
	return f.read(p)
}

// Ready is signalled whenever new data or an error is queued.
func (t *HTTPStream) Ready() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.feed == nil {
		return nil
	}
	return t.feed.notify
}

// Close cancels the request, which unblocks the reader.
func (t *HTTPStream) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.connected {
		return nil
	}
	if t.feed != nil {
		t.feed.stop()
	}
	t.cancel()
	t.connected = false
	t.feed = nil
	return nil
}

func (t *HTTPStream) readLoop(body io.ReadCloser, f *feed) {
	defer body.Close()
	for {
		buf := make([]byte, t.cfg.ReadSize)
		n, err := body.Read(buf)
		if n > 0 {
			if !f.push(buf[:n]) {
				return
			}
		}
		if err != nil {
			select {
			case <-f.done:
				// Closed locally
			default:
				f.fail(err)
			}
			return
		}
	}
}

// subscriptionForm encodes a subscription the way the HTTP feed expects it.
func subscriptionForm(sub stream.Subscription) url.Values {
	form := url.Values{}
	form.Set("symbols", strings.Join(sub.Symbols, ","))
	form.Set("sessionid", sub.SessionID)
	if len(sub.Filter) > 0 {
		form.Set("filter", strings.Join(sub.Filter, ","))
	}
	form.Set("linebreak", strconv.FormatBool(sub.Linebreak))
	if sub.ValidOnly {
		form.Set("validOnly", "true")
	}
	if sub.AdvancedDetails {
		form.Set("advancedDetails", "true")
	}
	return form
}
