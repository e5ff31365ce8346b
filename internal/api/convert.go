package api

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/rickgao/tradier-stream/internal/fixed"
)

// Decode errors
var (
	ErrMalformed       = errors.New("malformed json")
	ErrMissingField    = errors.New("missing field")
	ErrUnexpectedShape = errors.New("unexpected shape")
	ErrNotNumber       = errors.New("not a number")
	ErrBadTimestamp    = errors.New("invalid timestamp")
)

// DecodeError reports a response body that could not be mapped onto the
// expected structure.
type DecodeError struct {
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// numberText parses a JSON number or numeric string into a value scaled by
// 10^decimals. null, absent and "" decode as 0.
func numberText(text, field string, decimals int) (int64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0, nil
	}
	n, err := fixed.ParseString(text, decimals)
	if err != nil {
		return 0, &DecodeError{Field: field, Err: err}
	}
	return n, nil
}

func numberField(r gjson.Result, field string, decimals int) (int64, error) {
	switch r.Type {
	case gjson.Null:
		return 0, nil
	case gjson.Number:
		return numberText(r.Raw, field, decimals)
	case gjson.String:
		return numberText(r.Str, field, decimals)
	default:
		return 0, &DecodeError{Field: field, Err: ErrNotNumber}
	}
}

// jsonNumber handles fields decoded with go-json into json.Number.
func jsonNumber(n json.Number, field string, decimals int) (fixed.Price, error) {
	v, err := numberText(string(n), field, decimals)
	return fixed.Price(v), err
}

type priceRef struct {
	key string
	dst *fixed.Price
}

type intRef struct {
	key string
	dst *int64
}

// decodePrices fills every ref from the object r.
func decodePrices(r gjson.Result, prefix string, decimals int, refs ...priceRef) error {
	for _, ref := range refs {
		v, err := numberField(r.Get(ref.key), prefix+"."+ref.key, decimals)
		if err != nil {
			return err
		}
		*ref.dst = fixed.Price(v)
	}
	return nil
}

// decodeInts fills every ref from the object r. Integral values written
// with a zero fraction ("1.00000000") are accepted.
func decodeInts(r gjson.Result, prefix string, refs ...intRef) error {
	for _, ref := range refs {
		v, err := numberField(r.Get(ref.key), prefix+"."+ref.key, 0)
		if err != nil {
			return err
		}
		*ref.dst = v
	}
	return nil
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTime parses the timestamp formats Tradier uses. Empty input yields
// the zero time.
func parseTime(s, field string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, &DecodeError{Field: field, Err: ErrBadTimestamp}
}

// isNull reports whether v is null or Tradier's "null" string.
func isNull(v gjson.Result) bool {
	return v.Type == gjson.Null || (v.Type == gjson.String && v.Str == "null")
}

// rootField returns the top-level key of a response body. A body without
// it (a fault object, {} or an array) is malformed.
func rootField(root gjson.Result, key string) (gjson.Result, error) {
	if !root.IsObject() {
		return gjson.Result{}, &DecodeError{Field: "body", Err: ErrUnexpectedShape}
	}
	v := root.Get(key)
	if !v.Exists() {
		return gjson.Result{}, &DecodeError{Field: key, Err: ErrMissingField}
	}
	return v, nil
}

// each calls fn for every object in a value Tradier sends as either a
// single object or an array of objects.
func each(v gjson.Result, field string, fn func(gjson.Result) error) error {
	switch {
	case !v.Exists(), isNull(v):
		return nil
	case v.IsArray():
		var err error
		v.ForEach(func(_, item gjson.Result) bool {
			if !item.IsObject() {
				err = &DecodeError{Field: field, Err: ErrUnexpectedShape}
				return false
			}
			err = fn(item)
			return err == nil
		})
		return err
	case v.IsObject():
		return fn(v)
	}
	return &DecodeError{Field: field, Err: ErrUnexpectedShape}
}

func parseBody(body []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, &DecodeError{Field: "body", Err: ErrMalformed}
	}
	return gjson.ParseBytes(body), nil
}
