package config

import (
	"github.com/rickgao/tradier-stream/internal/arena"
	"github.com/rickgao/tradier-stream/internal/event"
	"github.com/rickgao/tradier-stream/internal/ratelimit"
	"github.com/rickgao/tradier-stream/internal/stream"
)

// SessionConfig builds the stream session settings.
func (s StreamConfig) SessionConfig() stream.Config {
	policy := arena.PolicyGrow
	if s.ArenaPolicy == "fail" {
		policy = arena.PolicyFail
	}
	return stream.Config{
		Arena: arena.Config{
			Size:    s.ArenaSize,
			MaxSize: s.ArenaMaxSize,
			Policy:  policy,
		},
		MaxFrame:   s.MaxFrame,
		ReadSize:   s.ReadSize,
		Decoder:    event.Config{PriceDecimals: s.PriceDecimals},
		StaleAfter: s.StaleAfter,
		Backoff: ratelimit.BackoffConfig{
			Initial:    s.BackoffInitial,
			Max:        s.BackoffMax,
			Multiplier: 2,
			Jitter:     s.BackoffJitter,
			ResetAfter: s.BackoffResetAfter,
		},
	}
}

// RateConfig builds the per-class request budgets.
func (l LimitsConfig) RateConfig() ratelimit.Config {
	return ratelimit.Config{
		Quotes:        l.Quotes.limit(),
		Orders:        l.Orders.limit(),
		Account:       l.Account.limit(),
		StreamConnect: l.StreamConnect.limit(),
	}
}

func (l LimitConfig) limit() ratelimit.Limit {
	if l.Capacity < 0 {
		return ratelimit.Limit{}
	}
	return ratelimit.Limit{Capacity: l.Capacity, Window: l.Window}
}
