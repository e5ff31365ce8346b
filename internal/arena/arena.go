// Package arena owns the byte storage for in-flight stream frames.
//
// The arena is a single backing array with a read cursor and a write
// cursor. The transport fills the region returned by AcquireWrite; the
// frame reader scans committed bytes and advances the read cursor with
// Consume. When the tail runs out of room the unconsumed bytes are moved to
// the front (and the array grown if the policy allows), so a frame is always
// contiguous.
//
// Positions are absolute stream offsets: byte N of the stream keeps offset N
// no matter how often the backing array is compacted. Borrowed views are
// index triples (generation, offset, length) and are validated on access,
// because AcquireWrite may move or overwrite any byte it hands out.
//
// An Arena is not safe for concurrent use. Exactly one poll loop owns it.
package arena

import (
	"errors"
	"fmt"
)

// Errors
var (
	ErrBufferFull     = errors.New("arena: buffer full")
	ErrStaleSlice     = errors.New("arena: stale slice")
	ErrOutOfRange     = errors.New("arena: range not committed")
	ErrCommitOverflow = errors.New("arena: commit exceeds acquired region")
)

// Policy decides what AcquireWrite does when compaction alone cannot free
// enough room.
type Policy int

const (
	// PolicyGrow doubles the backing array up to Config.MaxSize.
	PolicyGrow Policy = iota
	// PolicyFail returns ErrBufferFull instead of growing.
	PolicyFail
)

func (p Policy) String() string {
	switch p {
	case PolicyGrow:
		return "grow"
	case PolicyFail:
		return "fail"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// Config configures an Arena.
type Config struct {
	Size    int    // Initial capacity in bytes
	MaxSize int    // Growth ceiling (0 = Size)
	Policy  Policy // Behaviour when compaction is not enough
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Size:    64 * 1024,
		MaxSize: 4 * 1024 * 1024,
		Policy:  PolicyGrow,
	}
}

// Slice is a borrowed view of committed arena bytes.
type Slice struct {
	Gen uint64 // Arena generation at borrow time
	Off int64  // Absolute stream offset
	Len int
}

// Sub returns the part of s starting i bytes in, n bytes long.
func (s Slice) Sub(i, n int) Slice {
	return Slice{Gen: s.Gen, Off: s.Off + int64(i), Len: n}
}

// End returns the absolute offset one past the last byte.
func (s Slice) End() int64 {
	return s.Off + int64(s.Len)
}

// Arena is the byte ring backing one stream.
type Arena struct {
	cfg Config
	buf []byte

	base int64 // Absolute offset of buf[0]
	head int   // Read cursor (index into buf)
	tail int   // Write cursor (index into buf)

	gen      uint64
	acquired int // Length of the last region handed out by AcquireWrite

	// Stats
	totalWritten int64
	compactions  int
	resizeCount  int
}

// New creates an arena with the given configuration.
func New(cfg Config) *Arena {
	if cfg.Size < 1 {
		cfg.Size = 1
	}
	if cfg.MaxSize < cfg.Size {
		cfg.MaxSize = cfg.Size
	}
	return &Arena{
		cfg: cfg,
		buf: make([]byte, cfg.Size),
	}
}

// AcquireWrite returns a writable region of at least minLen bytes (the
// whole free tail, which may be larger). It invalidates every Slice
// borrowed so far, even when no bytes move.
func (a *Arena) AcquireWrite(minLen int) ([]byte, error) {
	if minLen < 1 {
		minLen = 1
	}
	a.gen++
	a.acquired = 0

	if len(a.buf)-a.tail < minLen {
		a.compact()
	}

	if len(a.buf)-a.tail < minLen {
		if a.cfg.Policy != PolicyGrow {
			return nil, ErrBufferFull
		}
		need := a.tail + minLen
		if need > a.cfg.MaxSize {
			return nil, ErrBufferFull
		}
		a.grow(need)
	}

	a.acquired = len(a.buf) - a.tail
	return a.buf[a.tail:], nil
}

// CommitWrite marks n bytes of the last acquired region as filled.
func (a *Arena) CommitWrite(n int) error {
	if n < 0 || n > a.acquired {
		return ErrCommitOverflow
	}
	a.tail += n
	a.acquired -= n
	a.totalWritten += int64(n)
	return nil
}

// Borrow returns a validated index triple for committed, unconsumed or
// not-yet-recycled bytes [off, off+n).
func (a *Arena) Borrow(off int64, n int) (Slice, error) {
	if !a.inRange(off, n) {
		return Slice{}, ErrOutOfRange
	}
	return Slice{Gen: a.gen, Off: off, Len: n}, nil
}

// Bytes resolves a Slice. It fails with ErrStaleSlice once AcquireWrite has
// been called after the borrow.
func (a *Arena) Bytes(s Slice) ([]byte, error) {
	if s.Gen != a.gen {
		return nil, ErrStaleSlice
	}
	if !a.inRange(s.Off, s.Len) {
		return nil, ErrOutOfRange
	}
	i := int(s.Off - a.base)
	return a.buf[i : i+s.Len : i+s.Len], nil
}

// String resolves a Slice and copies it into a string.
func (a *Arena) String(s Slice) (string, error) {
	b, err := a.Bytes(s)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Unread returns the absolute offset of the read cursor and the committed
// bytes after it. The view follows the same lifetime rule as a Slice.
func (a *Arena) Unread() (int64, []byte) {
	return a.base + int64(a.head), a.buf[a.head:a.tail]
}

// Consume advances the read cursor to the absolute offset upto. Consumed
// bytes stay readable until the next AcquireWrite.
func (a *Arena) Consume(upto int64) {
	i := int(upto - a.base)
	if i < a.head {
		return
	}
	if i > a.tail {
		i = a.tail
	}
	a.head = i
}

// WriteOffset returns the absolute offset of the write cursor.
func (a *Arena) WriteOffset() int64 {
	return a.base + int64(a.tail)
}

// Reset drops all data (used when a new connection starts). Offsets keep
// increasing so stale slices from the old connection never resolve.
func (a *Arena) Reset() {
	a.base += int64(a.tail)
	a.head = 0
	a.tail = 0
	a.acquired = 0
	a.gen++
}

// Generation returns the current generation counter.
func (a *Arena) Generation() uint64 {
	return a.gen
}

// Len returns the number of committed, unconsumed bytes.
func (a *Arena) Len() int {
	return a.tail - a.head
}

// Cap returns the current capacity of the backing array.
func (a *Arena) Cap() int {
	return len(a.buf)
}

// Stats returns arena statistics.
func (a *Arena) Stats() Stats {
	return Stats{
		Unread:       a.tail - a.head,
		Capacity:     len(a.buf),
		Generation:   a.gen,
		TotalWritten: a.totalWritten,
		Compactions:  a.compactions,
		ResizeCount:  a.resizeCount,
	}
}

// Stats contains arena statistics.
type Stats struct {
	Unread       int
	Capacity     int
	Generation   uint64
	TotalWritten int64
	Compactions  int
	ResizeCount  int
}

// inRange reports whether [off, off+n) lies inside the live part of buf.
func (a *Arena) inRange(off int64, n int) bool {
	if n < 0 || off < a.base {
		return false
	}
	return off+int64(n) <= a.base+int64(a.tail)
}

// compact moves unconsumed bytes to the front of buf.
func (a *Arena) compact() {
	if a.head == 0 {
		return
	}
	n := copy(a.buf, a.buf[a.head:a.tail])
	a.base += int64(a.head)
	a.head = 0
	a.tail = n
	a.compactions++
}

// grow reallocates buf to hold at least need bytes, copying only the
// unconsumed region. Must be called after compact.
func (a *Arena) grow(need int) {
	newCapacity := len(a.buf) * 2
	for newCapacity < need {
		newCapacity *= 2
	}
	if newCapacity > a.cfg.MaxSize {
		newCapacity = a.cfg.MaxSize
	}

	newBuf := make([]byte, newCapacity)
	n := copy(newBuf, a.buf[a.head:a.tail])
	a.base += int64(a.head)
	a.head = 0
	a.tail = n
	a.buf = newBuf
	a.resizeCount++
}
