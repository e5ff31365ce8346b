package transport

import (
	"context"
	"errors"
	"time"

	"github.com/rickgao/tradier-stream/internal/stream"
)

// Errors
var (
	ErrNotConnected     = errors.New("transport: not connected")
	ErrAlreadyConnected = errors.New("transport: already connected")
	ErrStaleConnection  = errors.New("transport: connection stale (no pong)")
)

// DefaultBufferSize is the number of chunks queued per connection.
const DefaultBufferSize = 1024

// feed carries chunks from one connection's reader goroutine to Read.
// Chunks are delivered in order, followed by at most one terminal error.
type feed struct {
	chunks chan []byte
	errs   chan error
	notify chan struct{}
	done   chan struct{}

	// Owned by the reading goroutine.
	pending []byte
	err     error
}

func newFeed(size int) *feed {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &feed{
		chunks: make(chan []byte, size),
		errs:   make(chan error, 1),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// push queues b, blocking while the queue is full. It returns false once
// the feed is stopped.
func (f *feed) push(b []byte) bool {
	select {
	case f.chunks <- b:
		f.signal()
		return true
	case <-f.done:
		return false
	}
}

// fail records the terminal error. Only the first call has effect.
func (f *feed) fail(err error) {
	select {
	case f.errs <- err:
		f.signal()
	default:
	}
}

func (f *feed) signal() {
	select {
	case f.notify <- struct{}{}:
	default:
	}
}

// stop releases a reader goroutine blocked in push.
func (f *feed) stop() {
	select {
	case <-f.done:
	default:
		close(f.done)
	}
}

// read copies queued bytes into p without blocking.
func (f *feed) read(p []byte) (int, error) {
	if len(f.pending) == 0 {
		select {
		case b := <-f.chunks:
			f.pending = b
		default:
			if f.err == nil {
				select {
				case err := <-f.errs:
					f.err = err
				default:
					return 0, stream.ErrWouldBlock
				}
			}
			// Chunks queued before the error still come first.
			select {
			case b := <-f.chunks:
				f.pending = b
			default:
				return 0, f.err
			}
		}
	}
	n := copy(p, f.pending)
	f.pending = f.pending[n:]
	return n, nil
}

// Wait blocks until ready fires, d elapses, or ctx is done. Hosts call it
// after a poll returns stream.ErrWouldBlock.
func Wait(ctx context.Context, ready <-chan struct{}, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ready:
		return nil
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
