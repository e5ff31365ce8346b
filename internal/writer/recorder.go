package writer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rickgao/tradier-stream/internal/api"
	"github.com/rickgao/tradier-stream/internal/database"
	"github.com/rickgao/tradier-stream/internal/event"
	"github.com/rickgao/tradier-stream/internal/metrics"
)

// Recorder copies decoded stream events into the quote and trade writers.
// Every row it writes carries the recorder's run id and price scale.
type Recorder struct {
	runID  uuid.UUID
	now    func() time.Time
	logger *slog.Logger

	Quotes *Writer[QuoteRecord]
	Trades *Writer[TradeRecord]
}

// NewRecorder creates a recorder writing to db. decimals is the price scale
// of the decoder feeding it.
func NewRecorder(cfg WriterConfig, db BatchSender, decimals int, m *metrics.Metrics, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	runID := uuid.New()
	logger = logger.With("run_id", runID.String())
	return &Recorder{
		runID:  runID,
		now:    time.Now,
		logger: logger,
		Quotes: newWriter(cfg, database.TableQuotes, queueQuote(runID.String(), decimals), db, m, logger),
		Trades: newWriter(cfg, database.TableTrades, queueTrade(runID.String(), decimals), db, m, logger),
	}
}

// RunID identifies this recorder's rows.
func (r *Recorder) RunID() uuid.UUID {
	return r.runID
}

// Record copies ev if it is a quote or trade. It returns false for other
// kinds and for rows dropped by a full writer. ev may borrow from the arena;
// nothing is retained after Record returns.
func (r *Recorder) Record(ev *event.Event) bool {
	switch ev.Kind {
	case event.KindQuote:
		return r.Quotes.Push(NewQuoteRecord(&ev.Quote, r.now()))
	case event.KindTrade:
		return r.Trades.Push(NewTradeRecord(&ev.Trade, r.now()))
	}
	return false
}

// RecordQuotes queues polled REST quotes and returns how many were
// accepted. It satisfies the poller's handler signature through
// poller.QuoteHandlerFunc.
func (r *Recorder) RecordQuotes(quotes []api.Quote) int {
	now := r.now()
	n := 0
	for i := range quotes {
		if r.Quotes.Push(NewRESTQuoteRecord(&quotes[i], now)) {
			n++
		}
	}
	if n < len(quotes) {
		r.logger.Warn("quote writer full, dropped polled quotes", "dropped", len(quotes)-n)
	}
	return n
}

// Start starts both writers.
func (r *Recorder) Start(ctx context.Context) error {
	if err := r.Quotes.Start(ctx); err != nil {
		return err
	}
	return r.Trades.Start(ctx)
}

// Stop drains and stops both writers.
func (r *Recorder) Stop(ctx context.Context) error {
	return errors.Join(r.Quotes.Stop(ctx), r.Trades.Stop(ctx))
}
