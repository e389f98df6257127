package repository

import (
	"context"
	"fmt"
	"log"

	"trade-coach/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.opentelemetry.io/otel/trace"
)

type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type TradeRepository struct {
	pool   PgxPool
	tracer trace.Tracer
}

func NewTradeRepository(pool PgxPool, tracer trace.Tracer) *TradeRepository {
	return &TradeRepository{pool: pool, tracer: tracer}
}

func (r *TradeRepository) RunMigrations(ctx context.Context) error {
	_, span := r.tracer.Start(ctx, "trade-repo.run-migrations")
	defer span.End()

	_, err := r.pool.Exec(ctx,
		`CREATE TABLE IF NOT EXISTS trades (
			id TEXT PRIMARY KEY,
			symbol TEXT NOT NULL,
			direction TEXT NOT NULL,
			lot_size DOUBLE PRECISION NOT NULL,
			entry DOUBLE PRECISION NOT NULL,
			exit DOUBLE PRECISION NOT NULL,
			pnl DOUBLE PRECISION NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("create trades table: %w", err)
	}
	return nil
}

func (r *TradeRepository) InsertTrades(ctx context.Context, trades []domain.Trade) error {
	if len(trades) == 0 {
		return nil
	}

	_, span := r.tracer.Start(ctx, "trade-repo.insert-trades")
	defer span.End()

	batch := &pgx.Batch{}
	for _, t := range trades {
		batch.Queue(
			`INSERT INTO trades (id, symbol, direction, lot_size, entry, exit, pnl, timestamp)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			 ON CONFLICT (id) DO UPDATE SET
			     symbol = EXCLUDED.symbol,
			     direction = EXCLUDED.direction,
			     lot_size = EXCLUDED.lot_size,
			     entry = EXCLUDED.entry,
			     exit = EXCLUDED.exit,
			     pnl = EXCLUDED.pnl,
			     timestamp = EXCLUDED.timestamp`,
			t.ID, t.Symbol, t.Direction, t.LotSize, t.Entry, t.Exit, t.PnL, t.Timestamp,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range trades {
		if _, err := br.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// RecentTrades returns up to limit newest trades. Rows that fail
// validation are logged and skipped rather than failing the batch.
func (r *TradeRepository) RecentTrades(ctx context.Context, limit int) ([]domain.Trade, error) {
	_, span := r.tracer.Start(ctx, "trade-repo.recent-trades")
	defer span.End()

	rows, err := r.pool.Query(ctx,
		`SELECT id, symbol, direction, lot_size, entry, exit, pnl, timestamp
		 FROM trades
		 ORDER BY timestamp DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var direction string
		if err := rows.Scan(&t.ID, &t.Symbol, &direction, &t.LotSize, &t.Entry, &t.Exit, &t.PnL, &t.Timestamp); err != nil {
			return nil, err
		}
		t.Direction = domain.TradeDirection(direction)
		if err := t.Validate(); err != nil {
			log.Printf("Skipping malformed trade %s: %v", t.ID, err)
			continue
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

func (r *TradeRepository) CountTrades(ctx context.Context) (int, error) {
	_, span := r.tracer.Start(ctx, "trade-repo.count-trades")
	defer span.End()

	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM trades`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
