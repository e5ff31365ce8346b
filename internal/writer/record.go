package writer

import (
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/tradier-stream/internal/api"
	"github.com/rickgao/tradier-stream/internal/database"
	"github.com/rickgao/tradier-stream/internal/event"
	"github.com/rickgao/tradier-stream/internal/fixed"
)

// QuoteRecord is an owned copy of a decoded quote.
type QuoteRecord struct {
	ReceivedAt time.Time
	Symbol     string
	Bid        fixed.Price
	Ask        fixed.Price
	BidSize    int64
	AskSize    int64
	BidExch    string
	AskExch    string
	BidDate    int64 // Epoch milliseconds
	AskDate    int64
}

// TradeRecord is an owned copy of a decoded trade.
type TradeRecord struct {
	ReceivedAt time.Time
	Symbol     string
	Price      fixed.Price
	Size       int64
	CumVolume  int64
	Last       fixed.Price
	Exch       string
	Date       int64 // Epoch milliseconds
	Extended   bool
}

// NewQuoteRecord copies q out of the arena.
func NewQuoteRecord(q *event.Quote, receivedAt time.Time) QuoteRecord {
	return QuoteRecord{
		ReceivedAt: receivedAt,
		Symbol:     q.Symbol.String(),
		Bid:        q.Bid,
		Ask:        q.Ask,
		BidSize:    q.BidSize,
		AskSize:    q.AskSize,
		BidExch:    exchString(q.BidExch),
		AskExch:    exchString(q.AskExch),
		BidDate:    q.BidDate,
		AskDate:    q.AskDate,
	}
}

// NewTradeRecord copies t out of the arena.
func NewTradeRecord(t *event.Trade, receivedAt time.Time) TradeRecord {
	return TradeRecord{
		ReceivedAt: receivedAt,
		Symbol:     t.Symbol.String(),
		Price:      t.Price,
		Size:       t.Size,
		CumVolume:  t.CumVolume,
		Last:       t.Last,
		Exch:       exchString(t.Exch),
		Date:       t.Date,
		Extended:   t.Extended,
	}
}

// NewRESTQuoteRecord copies a polled REST quote. Its prices must be at the
// recorder's scale.
func NewRESTQuoteRecord(q *api.Quote, receivedAt time.Time) QuoteRecord {
	return QuoteRecord{
		ReceivedAt: receivedAt,
		Symbol:     q.Symbol,
		Bid:        q.Bid,
		Ask:        q.Ask,
		BidSize:    q.BidSize,
		AskSize:    q.AskSize,
		BidExch:    q.BidExch,
		AskExch:    q.AskExch,
		BidDate:    q.BidDate,
		AskDate:    q.AskDate,
	}
}

func exchString(b byte) string {
	if b == 0 {
		return ""
	}
	return string(rune(b))
}

func queueQuote(runID string, decimals int) queueFunc[QuoteRecord] {
	return func(b *pgx.Batch, r QuoteRecord) {
		b.Queue(`
			INSERT INTO `+database.TableQuotes+` (received_at, run_id, symbol, bid, ask, bid_size, ask_size, bid_exch, ask_exch, bid_date, ask_date, decimals)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`, r.ReceivedAt, runID, r.Symbol, int64(r.Bid), int64(r.Ask), r.BidSize, r.AskSize,
			r.BidExch, r.AskExch, r.BidDate, r.AskDate, int16(decimals))
	}
}

func queueTrade(runID string, decimals int) queueFunc[TradeRecord] {
	return func(b *pgx.Batch, r TradeRecord) {
		b.Queue(`
			INSERT INTO `+database.TableTrades+` (received_at, run_id, symbol, price, size, cum_volume, last, exch, trade_date, extended, decimals)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, r.ReceivedAt, runID, r.Symbol, int64(r.Price), r.Size, r.CumVolume, int64(r.Last),
			r.Exch, r.Date, r.Extended, int16(decimals))
	}
}
