package writer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rickgao/tradier-stream/internal/metrics"
)

// ErrNoDatabase is returned by a flush when the writer has no database.
var ErrNoDatabase = errors.New("writer: no database")

// BatchSender is satisfied by *pgxpool.Pool and *pgx.Conn.
type BatchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// WriterConfig holds batching settings shared by all writers.
type WriterConfig struct {
	BatchSize     int           // Rows per INSERT batch
	FlushInterval time.Duration // Max time a row waits before being flushed
	BufferSize    int           // Max queued rows per writer
}

// DefaultWriterConfig returns sensible defaults.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     1000,
		FlushInterval: time.Second,
		BufferSize:    100000,
	}
}

// WriterMetrics counts writer activity.
type WriterMetrics struct {
	Inserts int64
	Errors  int64
	Flushes int64
	Dropped int64
}

// queueFunc appends the INSERT for one row to a batch.
type queueFunc[T any] func(b *pgx.Batch, row T)

// Writer batches rows of one table and inserts them with pgx batches.
// Rows are queued by Push and written when the batch is full or the flush
// interval elapses, whichever comes first.
type Writer[T any] struct {
	cfg     WriterConfig
	table   string
	queue   queueFunc[T]
	logger  *slog.Logger
	metrics *metrics.Metrics

	// Input
	input *Queue[T]

	// Database
	db BatchSender

	// Batching
	batch   []T
	batchMu sync.Mutex

	// Lifecycle
	ctx      context.Context
	done     chan struct{}
	consumed chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	stats WriterMetrics
}

func newWriter[T any](
	cfg WriterConfig,
	table string,
	queue queueFunc[T],
	db BatchSender,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Writer[T] {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultWriterConfig()
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	return &Writer[T]{
		cfg:     cfg,
		table:   table,
		queue:   queue,
		logger:  logger.With("table", table),
		metrics: m,
		input:   NewQueue[T](cfg.BatchSize, cfg.BufferSize),
		db:      db,
		batch:   make([]T, 0, cfg.BatchSize),
	}
}

// Push queues a row. It returns false when the writer is stopped or its
// buffer is full; the row is then dropped and counted.
func (w *Writer[T]) Push(row T) bool {
	if w.input.Push(row) {
		return true
	}
	w.batchMu.Lock()
	w.stats.Dropped++
	w.batchMu.Unlock()
	return false
}

// Start begins consuming rows and writing to the database. Database calls
// outlive ctx so queued rows can still be flushed by Stop.
func (w *Writer[T]) Start(ctx context.Context) error {
	w.ctx = context.WithoutCancel(ctx)
	w.done = make(chan struct{})
	w.consumed = make(chan struct{})

	go w.consumeLoop()

	w.wg.Add(1)
	go w.flushLoop()

	w.logger.Info("writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop closes the input, drains it and flushes what is left. ctx bounds the
// wait and the final flush.
func (w *Writer[T]) Stop(ctx context.Context) error {
	w.logger.Info("stopping writer")
	w.input.Close()

	if w.done == nil {
		// Never started
		return nil
	}

	select {
	case <-w.consumed:
	case <-ctx.Done():
		w.logger.Warn("writer stop timed out", "pending", w.input.Len())
	}
	w.stopOnce.Do(func() { close(w.done) })
	w.wg.Wait()

	if err := w.flush(ctx); err != nil && !errors.Is(err, ErrNoDatabase) {
		return err
	}
	w.logger.Info("writer stopped")
	return nil
}

// Stats returns current metrics.
func (w *Writer[T]) Stats() WriterMetrics {
	w.batchMu.Lock()
	defer w.batchMu.Unlock()
	return w.stats
}

// consumeLoop moves rows from the input queue into the batch until the
// queue is closed and empty.
func (w *Writer[T]) consumeLoop() {
	defer close(w.consumed)

	for {
		row, ok := w.input.Pop()
		if !ok {
			return
		}
		w.handleRow(row)
	}
}

// flushLoop periodically flushes the batch.
func (w *Writer[T]) flushLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.flush(w.ctx)
		}
	}
}

func (w *Writer[T]) handleRow(row T) {
	w.batchMu.Lock()
	w.batch = append(w.batch, row)
	shouldFlush := len(w.batch) >= w.cfg.BatchSize
	w.batchMu.Unlock()

	if shouldFlush {
		w.flush(w.ctx)
	}
}

// flush writes the current batch to the database. A failed batch is
// counted and dropped.
func (w *Writer[T]) flush(ctx context.Context) error {
	w.batchMu.Lock()
	if len(w.batch) == 0 {
		w.batchMu.Unlock()
		return nil
	}

	// Take ownership of current batch
	batch := w.batch
	w.batch = make([]T, 0, w.cfg.BatchSize)
	w.batchMu.Unlock()

	start := time.Now()

	if err := w.batchInsert(ctx, batch); err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(batch))
		w.batchMu.Lock()
		w.stats.Errors++
		w.batchMu.Unlock()
		w.metrics.RecordBatchError(w.table)
		return err
	}

	w.batchMu.Lock()
	w.stats.Inserts += int64(len(batch))
	w.stats.Flushes++
	w.batchMu.Unlock()
	w.metrics.RecordRows(w.table, len(batch))

	w.logger.Debug("flushed rows",
		"count", len(batch),
		"duration", time.Since(start),
	)
	return nil
}

func (w *Writer[T]) batchInsert(ctx context.Context, rows []T) error {
	if w.db == nil {
		return ErrNoDatabase
	}

	batch := &pgx.Batch{}
	for _, r := range rows {
		w.queue(batch, r)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}
