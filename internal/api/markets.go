package api

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rickgao/tradier-stream/internal/ratelimit"
)

// ErrNoSymbols is returned when a market data call names no symbol.
var ErrNoSymbols = errors.New("at least one symbol is required")

// GetQuotes fetches quotes for one or more symbols.
func (c *Client) GetQuotes(ctx context.Context, symbols []string, greeks bool) ([]Quote, error) {
	if len(symbols) == 0 {
		return nil, ErrNoSymbols
	}

	query := url.Values{}
	query.Set("symbols", strings.Join(symbols, ","))
	query.Set("greeks", strconv.FormatBool(greeks))

	body, err := c.get(ctx, ratelimit.ClassQuotes, "/markets/quotes", query)
	if err != nil {
		return nil, fmt.Errorf("get quotes: %w", err)
	}

	quotes, err := DecodeQuotes(body, c.decimals)
	if err != nil {
		return nil, fmt.Errorf("get quotes: %w", err)
	}
	return quotes, nil
}

// GetHistory fetches OHLCV bars for symbol between start and end
// (inclusive, dates only).
func (c *Client) GetHistory(ctx context.Context, symbol string, interval Interval, start, end time.Time) ([]Bar, error) {
	if symbol == "" {
		return nil, ErrNoSymbols
	}
	if !start.IsZero() && !end.IsZero() && start.After(end) {
		return nil, fmt.Errorf("get history %s: start %s after end %s", symbol, start.Format(time.DateOnly), end.Format(time.DateOnly))
	}

	query := url.Values{}
	query.Set("symbol", symbol)
	if interval == "" {
		interval = IntervalDaily
	}
	query.Set("interval", string(interval))
	if !start.IsZero() {
		query.Set("start", start.Format(time.DateOnly))
	}
	if !end.IsZero() {
		query.Set("end", end.Format(time.DateOnly))
	}

	body, err := c.get(ctx, ratelimit.ClassQuotes, "/markets/history", query)
	if err != nil {
		return nil, fmt.Errorf("get history %s: %w", symbol, err)
	}

	bars, err := DecodeHistory(body, c.decimals)
	if err != nil {
		return nil, fmt.Errorf("get history %s: %w", symbol, err)
	}
	return bars, nil
}

// GetExpirations fetches option expiration dates for an underlying.
func (c *Client) GetExpirations(ctx context.Context, symbol string) ([]string, error) {
	if symbol == "" {
		return nil, ErrNoSymbols
	}

	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("includeAllRoots", "true")

	body, err := c.get(ctx, ratelimit.ClassQuotes, "/markets/options/expirations", query)
	if err != nil {
		return nil, fmt.Errorf("get expirations %s: %w", symbol, err)
	}

	dates, err := DecodeExpirations(body)
	if err != nil {
		return nil, fmt.Errorf("get expirations %s: %w", symbol, err)
	}
	return dates, nil
}

// GetOptionChain fetches every contract of an underlying for one expiration
// (YYYY-MM-DD).
func (c *Client) GetOptionChain(ctx context.Context, symbol, expiration string, greeks bool) ([]OptionContract, error) {
	if symbol == "" {
		return nil, ErrNoSymbols
	}
	if _, err := time.Parse(time.DateOnly, expiration); err != nil {
		return nil, fmt.Errorf("get option chain %s: expiration %q is not YYYY-MM-DD", symbol, expiration)
	}

	query := url.Values{}
	query.Set("symbol", symbol)
	query.Set("expiration", expiration)
	query.Set("greeks", strconv.FormatBool(greeks))

	body, err := c.get(ctx, ratelimit.ClassQuotes, "/markets/options/chains", query)
	if err != nil {
		return nil, fmt.Errorf("get option chain %s: %w", symbol, err)
	}

	chain, err := DecodeOptionChain(body, c.decimals)
	if err != nil {
		return nil, fmt.Errorf("get option chain %s: %w", symbol, err)
	}
	return chain, nil
}

// SortByStrike orders contracts by strike in place. Equal strikes keep
// their order, so calls and puts at one strike stay as Tradier sent them.
func SortByStrike(chain []OptionContract, ascending bool) {
	slices.SortStableFunc(chain, func(a, b OptionContract) int {
		if ascending {
			return cmp.Compare(a.Strike, b.Strike)
		}
		return cmp.Compare(b.Strike, a.Strike)
	})
}

// GetDividends fetches the cash dividend history of symbol. The endpoint
// lives under the beta API version.
func (c *Client) GetDividends(ctx context.Context, symbol string) ([]Dividend, error) {
	if symbol == "" {
		return nil, ErrNoSymbols
	}

	query := url.Values{}
	query.Set("symbols", symbol)

	body, err := c.get(ctx, ratelimit.ClassQuotes, betaPrefix+"markets/fundamentals/dividends", query)
	if err != nil {
		return nil, fmt.Errorf("get dividends %s: %w", symbol, err)
	}

	divs, err := DecodeDividends(body)
	if err != nil {
		return nil, fmt.Errorf("get dividends %s: %w", symbol, err)
	}
	return divs, nil
}

// CreateStreamSession opens a market events session. The session id must be
// sent in the stream subscription within a few minutes.
func (c *Client) CreateStreamSession(ctx context.Context) (*StreamSession, error) {
	body, err := c.post(ctx, ratelimit.ClassQuotes, "/markets/events/session", nil)
	if err != nil {
		return nil, fmt.Errorf("create stream session: %w", err)
	}

	sess, err := DecodeStreamSession(body)
	if err != nil {
		return nil, fmt.Errorf("create stream session: %w", err)
	}
	return sess, nil
}
