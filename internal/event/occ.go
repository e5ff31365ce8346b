package event

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rickgao/tradier-stream/internal/fixed"
)

// ErrNotOCC is returned for symbols that are not OCC option symbols.
var ErrNotOCC = errors.New("not an OCC option symbol")

// OptionRight is the call/put side of an option contract.
type OptionRight uint8

const (
	Call OptionRight = iota + 1
	Put
)

func (r OptionRight) String() string {
	switch r {
	case Call:
		return "call"
	case Put:
		return "put"
	}
	return fmt.Sprintf("right(%d)", uint8(r))
}

// OCCSymbol is a parsed OCC option symbol.
type OCCSymbol struct {
	Underlying string
	Expiration time.Time // UTC midnight
	Right      OptionRight
	Strike     fixed.Price
}

// OCC layout after the root: YYMMDD, C or P, then the strike in
// thousandths as eight digits.
const (
	occSuffixLen = 6 + 1 + 8
	occMaxRoot   = 6
)

// ParseOCC parses an OCC option symbol such as "AAPL231215C00150000"
// (AAPL, 2023-12-15, call, 150.00). The right letter may be lower case. The
// strike is scaled to decimals and must fit it exactly.
func ParseOCC(symbol string, decimals int) (OCCSymbol, error) {
	n := len(symbol)
	if n <= occSuffixLen || n > occSuffixLen+occMaxRoot {
		return OCCSymbol{}, ErrNotOCC
	}
	root := strings.TrimRight(symbol[:n-occSuffixLen], " ")
	if root == "" {
		return OCCSymbol{}, ErrNotOCC
	}
	rest := symbol[n-occSuffixLen:]

	date, right, strike := rest[:6], rest[6], rest[7:]
	if !allDigits(date) || !allDigits(strike) {
		return OCCSymbol{}, ErrNotOCC
	}

	expiry, err := time.Parse("060102", date)
	if err != nil {
		return OCCSymbol{}, fmt.Errorf("%w: expiration %s", ErrNotOCC, date)
	}

	o := OCCSymbol{Underlying: root, Expiration: expiry}
	switch right {
	case 'C', 'c':
		o.Right = Call
	case 'P', 'p':
		o.Right = Put
	default:
		return OCCSymbol{}, ErrNotOCC
	}

	v, err := fixed.ParseString(strike[:5]+"."+strike[5:], decimals)
	if err != nil {
		return OCCSymbol{}, fmt.Errorf("strike %s: %w", strike, err)
	}
	o.Strike = fixed.Price(v)
	return o, nil
}

// Option parses the symbol as an OCC option symbol.
func (s *Symbol) Option(decimals int) (OCCSymbol, error) {
	return ParseOCC(s.String(), decimals)
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
