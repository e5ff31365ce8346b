package event

import (
	"errors"
	"unsafe"

	"github.com/tidwall/gjson"

	"github.com/rickgao/tradier-stream/internal/arena"
	"github.com/rickgao/tradier-stream/internal/fixed"
)

// DefaultPriceDecimals is the default price scale (cents).
const DefaultPriceDecimals = 2

// Config configures a Decoder.
type Config struct {
	PriceDecimals int // Fractional digits kept in fixed.Price (0 = default)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{PriceDecimals: DefaultPriceDecimals}
}

// Decoder turns raw frames into Events. It holds no per-frame state and
// never allocates on the success path.
type Decoder struct {
	decimals int
}

// NewDecoder creates a decoder.
func NewDecoder(cfg Config) *Decoder {
	d := cfg.PriceDecimals
	if d <= 0 || d > fixed.MaxDecimals {
		d = DefaultPriceDecimals
	}
	return &Decoder{decimals: d}
}

// Decimals returns the price scale used by the decoder.
func (d *Decoder) Decimals() int {
	return d.decimals
}

// Decode decodes one frame. at is the frame's own arena borrow; offsets and
// borrowed fields in the result are expressed relative to it. Malformed
// input yields a KindDecodeError event, never a panic.
func (d *Decoder) Decode(data []byte, at arena.Slice) Event {
	s := unsafeString(data)
	if !gjson.Valid(s) {
		return Failed(at, at.Off, "", ReasonMalformed)
	}

	typ := gjson.Get(s, "type")
	if !typ.Exists() {
		return Failed(at, at.Off, "type", ReasonMissingType)
	}
	if typ.Type != gjson.String {
		return Failed(at, at.Off+int64(typ.Index), "type", ReasonBadString)
	}

	var kind Kind
	switch typ.Str {
	case "quote":
		kind = KindQuote
	case "trade", "tradex":
		kind = KindTrade
	case "summary":
		kind = KindSummary
	case "timesale":
		kind = KindTimesale
	case "heartbeat":
		kind = KindHeartbeat
	default:
		return Event{
			Kind:    KindUnknown,
			Frame:   at,
			Unknown: Unknown{Type: borrow(at, typ), Raw: at},
		}
	}

	w := walker{decimals: d.decimals, at: at}
	w.ev.Kind = kind
	w.ev.Frame = at
	if typ.Str == "tradex" {
		w.ev.Trade.Extended = true
	}

	gjson.Parse(s).ForEach(func(key, value gjson.Result) bool {
		return w.field(key.Str, value)
	})
	if w.failed {
		return w.ev
	}

	if missing := required[kind] &^ w.seen; missing != 0 {
		return Failed(at, at.Off, missingName(missing), ReasonMissingField)
	}
	return w.ev
}

// Required field bits.
const (
	fSymbol uint32 = 1 << iota
	fBid
	fAsk
	fPrice
	fSize
	fLast
)

var required = [...]uint32{
	KindQuote:     fSymbol | fBid | fAsk,
	KindTrade:     fSymbol | fPrice | fSize,
	KindSummary:   fSymbol,
	KindTimesale:  fSymbol | fLast | fSize,
	KindHeartbeat: 0,
	KindUnknown:   0,
}

func missingName(bits uint32) string {
	switch {
	case bits&fSymbol != 0:
		return "symbol"
	case bits&fBid != 0:
		return "bid"
	case bits&fAsk != 0:
		return "ask"
	case bits&fPrice != 0:
		return "price"
	case bits&fSize != 0:
		return "size"
	default:
		return "last"
	}
}

// walker accumulates one frame's fields during the single ForEach pass.
type walker struct {
	decimals int
	at       arena.Slice
	ev       Event
	seen     uint32
	failed   bool
}

func (w *walker) field(key string, v gjson.Result) bool {
	switch w.ev.Kind {
	case KindQuote:
		w.quote(key, v)
	case KindTrade:
		w.trade(key, v)
	case KindSummary:
		w.summary(key, v)
	case KindTimesale:
		w.timesale(key, v)
	}
	return !w.failed
}

func (w *walker) quote(key string, v gjson.Result) {
	q := &w.ev.Quote
	switch key {
	case "symbol":
		w.symbol(&q.Symbol, v)
	case "bid":
		w.price(&q.Bid, fBid, "bid", v)
	case "ask":
		w.price(&q.Ask, fAsk, "ask", v)
	case "bidsize", "bidsz":
		w.integer(&q.BidSize, 0, "bidsize", v)
	case "asksize", "asksz":
		w.integer(&q.AskSize, 0, "asksize", v)
	case "bidexch":
		w.exch(&q.BidExch, "bidexch", v)
	case "askexch":
		w.exch(&q.AskExch, "askexch", v)
	case "biddate":
		w.integer(&q.BidDate, 0, "biddate", v)
	case "askdate":
		w.integer(&q.AskDate, 0, "askdate", v)
	}
}

func (w *walker) trade(key string, v gjson.Result) {
	t := &w.ev.Trade
	switch key {
	case "symbol":
		w.symbol(&t.Symbol, v)
	case "price":
		w.price(&t.Price, fPrice, "price", v)
	case "size":
		w.integer(&t.Size, fSize, "size", v)
	case "cvol":
		w.integer(&t.CumVolume, 0, "cvol", v)
	case "last":
		w.price(&t.Last, 0, "last", v)
	case "exch":
		w.exch(&t.Exch, "exch", v)
	case "date":
		w.integer(&t.Date, 0, "date", v)
	}
}

func (w *walker) summary(key string, v gjson.Result) {
	s := &w.ev.Summary
	switch key {
	case "symbol":
		w.symbol(&s.Symbol, v)
	case "open":
		w.price(&s.Open, 0, "open", v)
	case "high":
		w.price(&s.High, 0, "high", v)
	case "low":
		w.price(&s.Low, 0, "low", v)
	case "prevClose":
		w.price(&s.PrevClose, 0, "prevClose", v)
	case "close":
		w.price(&s.Close, 0, "close", v)
	}
}

func (w *walker) timesale(key string, v gjson.Result) {
	ts := &w.ev.Timesale
	switch key {
	case "symbol":
		w.symbol(&ts.Symbol, v)
	case "bid":
		w.price(&ts.Bid, 0, "bid", v)
	case "ask":
		w.price(&ts.Ask, 0, "ask", v)
	case "last":
		w.price(&ts.Last, fLast, "last", v)
	case "size":
		w.integer(&ts.Size, fSize, "size", v)
	case "exch":
		w.exch(&ts.Exch, "exch", v)
	case "date":
		w.integer(&ts.Date, 0, "date", v)
	case "seq":
		w.integer(&ts.Seq, 0, "seq", v)
	case "flag":
		w.str(&ts.Flag, "flag", v)
	case "session":
		w.str(&ts.Session, "session", v)
	case "cancel":
		ts.Cancel = v.Bool()
	case "correction":
		ts.Correction = v.Bool()
	}
}

func (w *walker) fail(field string, v gjson.Result, reason string) {
	w.failed = true
	w.ev = Failed(w.at, w.at.Off+int64(v.Index), field, reason)
}

func (w *walker) symbol(dst *Symbol, v gjson.Result) {
	if v.Type != gjson.String {
		w.fail("symbol", v, ReasonBadString)
		return
	}
	if !dst.set(v.Str) {
		w.fail("symbol", v, ReasonSymbolLength)
		return
	}
	w.seen |= fSymbol
}

func (w *walker) price(dst *fixed.Price, bit uint32, field string, v gjson.Result) {
	if n, ok := w.number(field, v, w.decimals); ok {
		*dst = fixed.Price(n)
		w.seen |= bit
	}
}

func (w *walker) integer(dst *int64, bit uint32, field string, v gjson.Result) {
	if n, ok := w.number(field, v, 0); ok {
		*dst = n
		w.seen |= bit
	}
}

// number parses a quoted or bare JSON number. null and "" count as absent.
func (w *walker) number(field string, v gjson.Result, decimals int) (int64, bool) {
	var text string
	switch v.Type {
	case gjson.Number:
		text = v.Raw
	case gjson.String:
		text = v.Str
	case gjson.Null:
		return 0, false
	default:
		w.fail(field, v, ReasonBadNumber)
		return 0, false
	}
	if text == "" {
		return 0, false
	}

	n, err := fixed.ParseString(text, decimals)
	if err != nil {
		switch {
		case errors.Is(err, fixed.ErrPrecision):
			w.fail(field, v, ReasonPrecision)
		case errors.Is(err, fixed.ErrRange):
			w.fail(field, v, ReasonRange)
		default:
			w.fail(field, v, ReasonBadNumber)
		}
		return 0, false
	}
	return n, true
}

// exch keeps the first byte of a one-letter exchange code.
func (w *walker) exch(dst *byte, field string, v gjson.Result) {
	switch v.Type {
	case gjson.String:
		if len(v.Str) > 0 {
			*dst = v.Str[0]
		}
	case gjson.Null:
	default:
		w.fail(field, v, ReasonBadString)
	}
}

func (w *walker) str(dst *arena.Slice, field string, v gjson.Result) {
	switch v.Type {
	case gjson.String:
		*dst = borrow(w.at, v)
	case gjson.Null:
	default:
		w.fail(field, v, ReasonBadString)
	}
}

// borrow returns the arena range of a string value without its quotes. The
// range holds the raw (still escaped) JSON text.
func borrow(at arena.Slice, v gjson.Result) arena.Slice {
	if len(v.Raw) < 2 {
		return at.Sub(0, 0)
	}
	return at.Sub(v.Index+1, len(v.Raw)-2)
}

func unsafeString(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	return unsafe.String(unsafe.SliceData(b), len(b))
}
