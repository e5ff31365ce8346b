package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/tradier-stream/internal/stream"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "tradier"

// Metrics holds the collectors for one process.
type Metrics struct {
	events       *prometheus.CounterVec
	bytesRead    prometheus.Counter
	connects     prometheus.Counter
	backoffs     prometheus.Counter
	attempts     prometheus.Gauge
	state        prometheus.Gauge
	arenaCap     prometheus.Gauge
	arenaUnread  prometheus.Gauge
	requests     *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	limited      *prometheus.CounterVec
	rowsWritten  *prometheus.CounterVec
	batchErrors  *prometheus.CounterVec
	pollCycles   *prometheus.CounterVec
	pollDuration prometheus.Histogram
}

// New registers the collectors with reg. A nil reg means
// prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer, namespace string) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	factory := promauto.With(reg)

	return &Metrics{
		events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "events_total",
			Help:      "Stream events delivered, by kind",
		}, []string{"kind"}),

		bytesRead: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "bytes_read_total",
			Help:      "Bytes read from the stream transport",
		}),

		connects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "connects_total",
			Help:      "Successful stream connects",
		}),

		backoffs: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "backoffs_total",
			Help:      "Transitions into backoff",
		}),

		attempts: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "backoff_attempts",
			Help:      "Backoff attempts since the schedule was last reset",
		}),

		state: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "state",
			Help:      "Session state (0 disconnected, 1 connecting, 2 streaming, 3 backoff)",
		}),

		arenaCap: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "arena_capacity_bytes",
			Help:      "Capacity of the stream buffer arena",
		}),

		arenaUnread: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "arena_unread_bytes",
			Help:      "Bytes buffered but not yet consumed",
		}),

		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rest",
			Name:      "requests_total",
			Help:      "REST requests, by operation and result",
		}, []string{"op", "result"}),

		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "rest",
			Name:      "request_duration_seconds",
			Help:      "REST request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),

		limited: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rest",
			Name:      "rate_limited_total",
			Help:      "Requests refused by the local rate budget, by class",
		}, []string{"class"}),

		rowsWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "writer",
			Name:      "rows_written_total",
			Help:      "Rows written to the database, by table",
		}, []string{"table"}),

		batchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "writer",
			Name:      "batch_errors_total",
			Help:      "Failed batch inserts, by table",
		}, []string{"table"}),

		pollCycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "cycles_total",
			Help:      "Poll cycles, by result",
		}, []string{"result"}),

		pollDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "poller",
			Name:      "cycle_duration_seconds",
			Help:      "Poll cycle duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// StreamObserver turns cumulative session stats into counter increments.
// It is used by the goroutine that polls the session.
type StreamObserver struct {
	m    *Metrics
	last stream.Stats
}

// NewStreamObserver returns an observer that reports into m.
func (m *Metrics) NewStreamObserver() *StreamObserver {
	return &StreamObserver{m: m}
}

// Observe records the change since the previous call.
func (o *StreamObserver) Observe(st stream.Stats) {
	if o == nil || o.m == nil {
		return
	}
	m := o.m
	kinds := []struct {
		kind      string
		now, prev int64
	}{
		{"quote", st.Quotes, o.last.Quotes},
		{"trade", st.Trades, o.last.Trades},
		{"summary", st.Summaries, o.last.Summaries},
		{"timesale", st.Timesales, o.last.Timesales},
		{"heartbeat", st.Heartbeats, o.last.Heartbeats},
		{"unknown", st.Unknown, o.last.Unknown},
		{"decode_error", st.DecodeErrors, o.last.DecodeErrors},
	}
	for _, k := range kinds {
		addDelta(m.events.WithLabelValues(k.kind), k.now, k.prev)
	}
	addDelta(m.bytesRead, st.BytesRead, o.last.BytesRead)
	addDelta(m.connects, st.Connects, o.last.Connects)
	addDelta(m.backoffs, st.Backoffs, o.last.Backoffs)

	m.attempts.Set(float64(st.Attempts))
	m.state.Set(float64(st.State))
	m.arenaCap.Set(float64(st.Arena.Capacity))
	m.arenaUnread.Set(float64(st.Arena.Unread))

	o.last = st
}

func addDelta(c prometheus.Counter, now, prev int64) {
	if now > prev {
		c.Add(float64(now - prev))
	}
}

// RecordRequest records one REST call. result is "ok", "limited", or
// "error".
func (m *Metrics) RecordRequest(op, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(op, result).Inc()
	if result != "limited" {
		m.latency.WithLabelValues(op).Observe(d.Seconds())
	}
}

// RecordLimited records a request refused by the local budget.
func (m *Metrics) RecordLimited(class string) {
	if m == nil {
		return
	}
	m.limited.WithLabelValues(class).Inc()
}

// RecordRows records rows written to table.
func (m *Metrics) RecordRows(table string, n int) {
	if m == nil {
		return
	}
	m.rowsWritten.WithLabelValues(table).Add(float64(n))
}

// RecordBatchError records a failed batch for table.
func (m *Metrics) RecordBatchError(table string) {
	if m == nil {
		return
	}
	m.batchErrors.WithLabelValues(table).Inc()
}

// RecordPoll records one poll cycle.
func (m *Metrics) RecordPoll(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.pollCycles.WithLabelValues(result).Inc()
	m.pollDuration.Observe(d.Seconds())
}

// Serve exposes g on addr at path until ctx is done.
func Serve(ctx context.Context, addr, path string, g prometheus.Gatherer, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	if g == nil {
		g = prometheus.DefaultGatherer
	}

	mux := http.NewServeMux()
	mux.Handle(path, promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	logger.Info("metrics listening", "addr", addr, "path", path)

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
