// Package fixed parses decimal text straight into scaled integers.
//
// Prices on the wire arrive as decimal strings ("189.50") or bare JSON
// numbers (189.5). Both are converted digit by digit into an int64 scaled
// by 10^decimals, so no floating point value is ever produced.
package fixed

import (
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

// Errors
var (
	ErrSyntax    = errors.New("invalid decimal syntax")
	ErrRange     = errors.New("value out of range")
	ErrPrecision = errors.New("excess precision")
)

// MaxDecimals is the largest supported scale.
const MaxDecimals = 9

var pow10 = [...]int64{1, 10, 100, 1_000, 10_000, 100_000, 1_000_000, 10_000_000, 100_000_000, 1_000_000_000}

// Price is a scaled fixed-point price. The scale is owned by whoever decoded
// it (event.Decoder and api.Client both carry a PriceDecimals setting).
type Price int64

// Decimal converts p back to an exact decimal value.
func (p Price) Decimal(decimals int) decimal.Decimal {
	return decimal.New(int64(p), -int32(decimals))
}

// String renders p with the default scale of 2.
func (p Price) String() string {
	return string(Append(nil, int64(p), 2))
}

// FromDecimal scales d into a Price. Digits below the scale must be zero.
func FromDecimal(d decimal.Decimal, decimals int) (Price, error) {
	if decimals < 0 || decimals > MaxDecimals {
		return 0, ErrRange
	}
	shifted := d.Shift(int32(decimals))
	if !shifted.Equal(shifted.Truncate(0)) {
		return 0, ErrPrecision
	}
	if shifted.GreaterThan(decimal.NewFromInt(math.MaxInt64)) || shifted.LessThan(decimal.NewFromInt(math.MinInt64)) {
		return 0, ErrRange
	}
	return Price(shifted.IntPart()), nil
}

// Parse converts decimal text such as "-12.340" into an integer scaled by
// 10^decimals. Fractional digits beyond the scale are accepted only when
// they are zero. Exponent notation is rejected.
func Parse(b []byte, decimals int) (int64, error) {
	return parse(b, decimals)
}

// ParseString is Parse for string input. It does not copy s.
func ParseString(s string, decimals int) (int64, error) {
	return parse(s, decimals)
}

func parse[T ~string | ~[]byte](b T, decimals int) (int64, error) {
	if decimals < 0 || decimals > MaxDecimals {
		return 0, ErrRange
	}
	if len(b) == 0 {
		return 0, ErrSyntax
	}

	i := 0
	neg := false
	switch b[0] {
	case '-':
		neg = true
		i++
	case '+':
		i++
	}

	var v uint64
	digits := 0
	for ; i < len(b) && b[i] != '.'; i++ {
		c := b[i]
		if c < '0' || c > '9' {
			return 0, ErrSyntax
		}
		if v > (math.MaxInt64-uint64(c-'0'))/10 {
			return 0, ErrRange
		}
		v = v*10 + uint64(c-'0')
		digits++
	}

	frac := 0
	if i < len(b) {
		// b[i] == '.'
		i++
		if i == len(b) {
			return 0, ErrSyntax
		}
		for ; i < len(b); i++ {
			c := b[i]
			if c < '0' || c > '9' {
				return 0, ErrSyntax
			}
			if frac < decimals {
				if v > (math.MaxInt64-uint64(c-'0'))/10 {
					return 0, ErrRange
				}
				v = v*10 + uint64(c-'0')
				frac++
			} else if c != '0' {
				return 0, ErrPrecision
			}
			digits++
		}
	}
	if digits == 0 {
		return 0, ErrSyntax
	}

	scale := uint64(pow10[decimals-frac])
	if v > math.MaxInt64/scale {
		return 0, ErrRange
	}
	v *= scale

	if neg {
		return -int64(v), nil
	}
	return int64(v), nil
}

// Append writes the canonical text of a scaled value (exactly decimals
// fractional digits) to dst.
func Append(dst []byte, v int64, decimals int) []byte {
	if decimals < 0 || decimals > MaxDecimals {
		decimals = 0
	}
	u := uint64(v)
	if v < 0 {
		dst = append(dst, '-')
		u = uint64(-v)
	}

	var buf [24]byte
	pos := len(buf)
	for n := 0; n < decimals; n++ {
		pos--
		buf[pos] = byte('0' + u%10)
		u /= 10
	}
	if decimals > 0 {
		pos--
		buf[pos] = '.'
	}
	for {
		pos--
		buf[pos] = byte('0' + u%10)
		u /= 10
		if u == 0 {
			break
		}
	}
	return append(dst, buf[pos:]...)
}
