// Package event defines the typed market events produced by the stream and
// the decoder that builds them from raw frames.
//
// An Event is a flat value: the payload for every kind is stored inline and
// only the one selected by Kind is meaningful. Events never hold heap
// pointers. String fields other than the symbol are arena.Slice borrows and
// are valid only until the owning arena's next AcquireWrite.
package event

import (
	"fmt"

	"github.com/rickgao/tradier-stream/internal/arena"
	"github.com/rickgao/tradier-stream/internal/fixed"
)

// Kind identifies the payload of an Event.
type Kind uint8

const (
	// KindNone is the zero Kind, returned alongside errors.
	KindNone Kind = iota
	KindQuote
	KindTrade
	KindSummary
	KindTimesale
	KindHeartbeat
	KindUnknown
	KindDecodeError
)

var kindNames = [...]string{
	KindNone:        "none",
	KindQuote:       "quote",
	KindTrade:       "trade",
	KindSummary:     "summary",
	KindTimesale:    "timesale",
	KindHeartbeat:   "heartbeat",
	KindUnknown:     "unknown",
	KindDecodeError: "decode_error",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// MaxSymbolLen is the longest symbol an Event can carry. OCC option symbols
// are 21 bytes, so 32 leaves room.
const MaxSymbolLen = 32

// Symbol is an instrument symbol stored inline.
type Symbol struct {
	n uint8
	b [MaxSymbolLen]byte
}

// MakeSymbol builds a Symbol from s. It reports false if s is empty or too
// long.
func MakeSymbol(s string) (Symbol, bool) {
	var sym Symbol
	ok := sym.set(s)
	return sym, ok
}

func (s *Symbol) set(v string) bool {
	if len(v) == 0 || len(v) > MaxSymbolLen {
		return false
	}
	s.n = uint8(copy(s.b[:], v))
	return true
}

// Len returns the symbol length in bytes.
func (s *Symbol) Len() int { return int(s.n) }

// Equal reports whether the symbol is v, without allocating.
func (s *Symbol) Equal(v string) bool {
	return int(s.n) == len(v) && string(s.b[:s.n]) == v
}

// Bytes returns the symbol bytes. The slice aliases s.
func (s *Symbol) Bytes() []byte {
	return s.b[:s.n]
}

// AppendTo appends the symbol to dst.
func (s *Symbol) AppendTo(dst []byte) []byte {
	return append(dst, s.b[:s.n]...)
}

// String copies the symbol into a new string.
func (s Symbol) String() string {
	return string(s.b[:s.n])
}

// Quote is a top-of-book update.
type Quote struct {
	Symbol  Symbol
	Bid     fixed.Price
	Ask     fixed.Price
	BidSize int64
	AskSize int64
	BidExch byte
	AskExch byte
	BidDate int64 // Epoch milliseconds
	AskDate int64
}

// Trade is a last-sale print. Extended is set for "tradex" frames.
type Trade struct {
	Symbol    Symbol
	Price     fixed.Price
	Size      int64
	CumVolume int64
	Last      fixed.Price
	Exch      byte
	Date      int64 // Epoch milliseconds
	Extended  bool
}

// Summary carries session open/high/low/close values.
type Summary struct {
	Symbol    Symbol
	Open      fixed.Price
	High      fixed.Price
	Low       fixed.Price
	PrevClose fixed.Price
	Close     fixed.Price
}

// Timesale is a time-and-sales record.
type Timesale struct {
	Symbol     Symbol
	Bid        fixed.Price
	Ask        fixed.Price
	Last       fixed.Price
	Size       int64
	Exch       byte
	Date       int64 // Epoch milliseconds
	Seq        int64
	Flag       arena.Slice
	Session    arena.Slice
	Cancel     bool
	Correction bool
}

// Unknown is a well-formed frame with an unrecognised type. Both fields
// borrow from the arena.
type Unknown struct {
	Type arena.Slice
	Raw  arena.Slice
}

// Decode error reasons.
const (
	ReasonMalformed    = "malformed json"
	ReasonMissingType  = "missing type"
	ReasonMissingField = "missing required field"
	ReasonBadNumber    = "invalid number"
	ReasonPrecision    = "excess precision"
	ReasonRange        = "number out of range"
	ReasonBadString    = "expected string"
	ReasonSymbolLength = "symbol length out of range"
	ReasonOversize     = "frame too large"
)

// DecodeError describes a frame that could not be decoded. Offset is the
// absolute stream offset of the offending value (or of the frame start).
// Field and Reason are static strings so building one never allocates.
type DecodeError struct {
	Offset int64
	Field  string
	Reason string
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("decode at offset %d: %s", e.Offset, e.Reason)
	}
	return fmt.Sprintf("decode %s at offset %d: %s", e.Field, e.Offset, e.Reason)
}

// Event is one decoded stream message.
type Event struct {
	Kind  Kind
	Frame arena.Slice // Raw frame bytes

	Quote    Quote
	Trade    Trade
	Summary  Summary
	Timesale Timesale
	Unknown  Unknown
	Err      DecodeError
}

// Symbol returns the symbol of a quote, trade, summary or timesale event.
func (e *Event) Symbol() (Symbol, bool) {
	switch e.Kind {
	case KindQuote:
		return e.Quote.Symbol, true
	case KindTrade:
		return e.Trade.Symbol, true
	case KindSummary:
		return e.Summary.Symbol, true
	case KindTimesale:
		return e.Timesale.Symbol, true
	}
	return Symbol{}, false
}

// Failed builds a DecodeError event.
func Failed(frame arena.Slice, off int64, field, reason string) Event {
	return Event{
		Kind:  KindDecodeError,
		Frame: frame,
		Err:   DecodeError{Offset: off, Field: field, Reason: reason},
	}
}
