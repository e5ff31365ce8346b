// Package frame finds newline-delimited message boundaries in arena bytes.
package frame

import (
	"bytes"

	"github.com/rickgao/tradier-stream/internal/arena"
)

// Delimiter terminates every frame on the wire.
const Delimiter = '\n'

// DefaultMaxFrame bounds a single frame.
const DefaultMaxFrame = 1 << 20

// Frame is one undecoded message: a byte range in absolute stream offsets.
// The delimiter (and a trailing '\r') is not part of the range.
type Frame struct {
	Start int64
	Len   int

	// Oversize is set on the one frame reported after a line exceeded the
	// reader's limit. Its range covers the part that was still buffered.
	Oversize bool
}

// End returns the absolute offset one past the frame's last byte.
func (f Frame) End() int64 {
	return f.Start + int64(f.Len)
}

// Reader scans an arena for complete frames. It never copies payload bytes
// and keeps partial tails in the arena until their delimiter arrives.
type Reader struct {
	arena    *arena.Arena
	maxFrame int

	scanned  int64 // Absolute offset up to which no delimiter exists
	skipping bool  // Discarding the rest of an oversize line

	frames int64
}

// NewReader creates a Reader over a.
func NewReader(a *arena.Arena, maxFrame int) *Reader {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrame
	}
	start, _ := a.Unread()
	return &Reader{arena: a, maxFrame: maxFrame, scanned: start}
}

// Next returns the next complete frame, or false if only a partial tail (or
// nothing) remains. Each call consumes at most one frame from the arena.
func (r *Reader) Next() (Frame, bool) {
	for {
		start, unread := r.arena.Unread()
		if r.scanned < start {
			r.scanned = start
		}
		from := int(r.scanned - start)

		idx := bytes.IndexByte(unread[from:], Delimiter)
		if idx < 0 {
			r.scanned = start + int64(len(unread))
			if !r.skipping && len(unread) > r.maxFrame {
				// Report what we have and drop the rest of the line.
				r.skipping = true
				r.arena.Consume(r.scanned)
				r.frames++
				return Frame{Start: start, Len: len(unread), Oversize: true}, true
			}
			if r.skipping {
				r.arena.Consume(r.scanned)
			}
			return Frame{}, false
		}

		end := from + idx // index of the delimiter within unread
		r.scanned = start + int64(end) + 1
		r.arena.Consume(r.scanned)

		if r.skipping {
			r.skipping = false
			continue
		}

		n := end
		if n > 0 && unread[n-1] == '\r' {
			n--
		}
		if isBlank(unread[:n]) {
			continue
		}
		if n > r.maxFrame {
			r.frames++
			return Frame{Start: start, Len: n, Oversize: true}, true
		}

		r.frames++
		return Frame{Start: start, Len: n}, true
	}
}

// Bytes resolves a frame returned by the last Next call.
func (r *Reader) Bytes(f Frame) ([]byte, error) {
	s, err := r.Slice(f)
	if err != nil {
		return nil, err
	}
	return r.arena.Bytes(s)
}

// Slice borrows the frame's range from the arena.
func (r *Reader) Slice(f Frame) (arena.Slice, error) {
	return r.arena.Borrow(f.Start, f.Len)
}

// Pending returns the number of buffered bytes that do not yet form a
// complete frame.
func (r *Reader) Pending() int {
	return r.arena.Len()
}

// Frames returns the number of frames produced so far.
func (r *Reader) Frames() int64 {
	return r.frames
}

// Reset forgets scan progress after the arena was reset.
func (r *Reader) Reset() {
	start, _ := r.arena.Unread()
	r.scanned = start
	r.skipping = false
}

func isBlank(b []byte) bool {
	for _, c := range b {
		if c != ' ' && c != '\t' && c != '\r' {
			return false
		}
	}
	return true
}
