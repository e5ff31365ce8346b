package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Tables written by the recorder.
const (
	TableQuotes = "quotes"
	TableTrades = "trades"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS quotes (
		received_at TIMESTAMPTZ NOT NULL,
		run_id      TEXT        NOT NULL,
		symbol      TEXT        NOT NULL,
		bid         BIGINT      NOT NULL,
		ask         BIGINT      NOT NULL,
		bid_size    BIGINT      NOT NULL,
		ask_size    BIGINT      NOT NULL,
		bid_exch    TEXT        NOT NULL,
		ask_exch    TEXT        NOT NULL,
		bid_date    BIGINT      NOT NULL,
		ask_date    BIGINT      NOT NULL,
		decimals    SMALLINT    NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS quotes_symbol_time_idx ON quotes (symbol, received_at DESC)`,
	`CREATE TABLE IF NOT EXISTS trades (
		received_at TIMESTAMPTZ NOT NULL,
		run_id      TEXT        NOT NULL,
		symbol      TEXT        NOT NULL,
		price       BIGINT      NOT NULL,
		size        BIGINT      NOT NULL,
		cum_volume  BIGINT      NOT NULL,
		last        BIGINT      NOT NULL,
		exch        TEXT        NOT NULL,
		trade_date  BIGINT      NOT NULL,
		extended    BOOLEAN     NOT NULL,
		decimals    SMALLINT    NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS trades_symbol_time_idx ON trades (symbol, received_at DESC)`,
}

var hypertables = []string{
	`SELECT create_hypertable('quotes', 'received_at', if_not_exists => TRUE)`,
	`SELECT create_hypertable('trades', 'received_at', if_not_exists => TRUE)`,
}

// EnsureSchema creates the recorder tables if they do not exist. With
// timescale set it also converts them to hypertables, which requires the
// timescaledb extension.
func EnsureSchema(ctx context.Context, db Execer, timescale bool) error {
	stmts := schema
	if timescale {
		stmts = append(append([]string(nil), schema...), hypertables...)
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
