package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/tradier-stream/internal/api"
	"github.com/rickgao/tradier-stream/internal/connection"
	"github.com/rickgao/tradier-stream/internal/database"
	"github.com/rickgao/tradier-stream/internal/event"
	"github.com/rickgao/tradier-stream/internal/metrics"
	"github.com/rickgao/tradier-stream/internal/poller"
	"github.com/rickgao/tradier-stream/internal/stream"
	"github.com/rickgao/tradier-stream/internal/writer"
)

const shutdownTimeout = 30 * time.Second

func recordCmd(a *app) *cobra.Command {
	var (
		skipSchema bool
		timescale  bool
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Record streamed and polled quotes into TimescaleDB",
		Long: `Stream stream.symbols and poll poller.symbols, writing quotes and
trades to TimescaleDB until interrupted. Prometheus metrics are served on
metrics.port.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(); err != nil {
				return err
			}
			if err := a.cfg.ValidateDatabase(); err != nil {
				return fmt.Errorf("validate config: %w", err)
			}
			if len(a.cfg.Stream.Symbols) == 0 && len(a.cfg.Poller.Symbols) == 0 {
				return errors.New("nothing to record: set stream.symbols or poller.symbols")
			}
			return a.record(cmd.Context(), !skipSchema, timescale)
		},
	}

	cmd.Flags().BoolVar(&skipSchema, "skip-schema", false, "do not create tables on start")
	cmd.Flags().BoolVar(&timescale, "hypertables", true, "convert tables to TimescaleDB hypertables")

	return cmd
}

func (a *app) record(ctx context.Context, ensureSchema, timescale bool) error {
	cfg := a.cfg
	logger := a.logger

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg, metrics.DefaultNamespace)

	logger.Info("connecting to database",
		"host", cfg.Database.Timescale.Host,
		"port", cfg.Database.Timescale.Port,
		"database", cfg.Database.Timescale.Name,
	)
	pool, err := database.Connect(ctx, cfg.Database.Timescale)
	if err != nil {
		return err
	}
	defer pool.Close()

	if ensureSchema {
		if err := database.EnsureSchema(ctx, pool, timescale); err != nil {
			return err
		}
	}

	lim := a.limiter()
	tr := a.transport()
	sess := a.session(tr, lim)
	client := a.client(lim, m, sess.Decimals())

	rec := writer.NewRecorder(writer.WriterConfig{
		BatchSize:     cfg.Writer.BatchSize,
		FlushInterval: cfg.Writer.FlushInterval,
		BufferSize:    cfg.Writer.BufferSize,
	}, pool, sess.Decimals(), m, logger)
	logger.Info("recorder created", "run_id", rec.RunID())

	if err := rec.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := rec.Stop(stopCtx); err != nil {
			logger.Error("recorder stop failed", "error", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return metrics.Serve(gctx, fmt.Sprintf(":%d", cfg.Metrics.Port), cfg.Metrics.Path, reg, logger)
	})

	if len(cfg.Stream.Symbols) > 0 {
		handler := connection.HandlerFunc(func(_ *stream.Session, ev *event.Event) {
			rec.Record(ev)
		})
		mgr := connection.NewManager(a.managerConfig(cfg.Stream.Symbols), tr, sess, client, handler, m, logger)
		g.Go(func() error {
			return mgr.Run(gctx)
		})
	}

	if len(cfg.Poller.Symbols) > 0 {
		p := poller.New(poller.Config{
			Interval:          cfg.Poller.Interval,
			SymbolsPerRequest: cfg.Poller.SymbolsPerRequest,
			Timeout:           cfg.Poller.Timeout,
		}, client, cfg.Poller.Symbols, poller.QuoteHandlerFunc(func(quotes []api.Quote) error {
			rec.RecordQuotes(quotes)
			return nil
		}), m, logger)

		g.Go(func() error {
			if err := p.Start(gctx); err != nil {
				return err
			}
			<-gctx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return p.Stop(stopCtx)
		})
	}

	logger.Info("recorder running",
		"stream_symbols", len(cfg.Stream.Symbols),
		"poll_symbols", len(cfg.Poller.Symbols),
		"metrics", fmt.Sprintf("http://localhost:%d%s", cfg.Metrics.Port, cfg.Metrics.Path),
	)

	err = g.Wait()
	logger.Info("shutting down")
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
