package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"trade-coach/internal/domain"
	"trade-coach/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/trace"
)

var (
	loadEnvFunc = godotenv.Load
	openPool    = pgxpool.New
)

func main() {
	loadEnvFunc()

	file := flag.String("file", "", "path to a JSON file with an array of trades (default: built-in sample set)")
	flag.Parse()

	dsn := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}

	trades, err := loadTrades(*file)
	if err != nil {
		log.Fatalf("load trades: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := openPool(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("ping postgres: %v", err)
	}

	tracer := trace.NewNoopTracerProvider().Tracer("seed")
	tradeRepo := repository.NewTradeRepository(pool, tracer)

	if err := tradeRepo.RunMigrations(ctx); err != nil {
		log.Fatalf("run migrations: %v", err)
	}
	if err := tradeRepo.InsertTrades(ctx, trades); err != nil {
		log.Fatalf("insert trades: %v", err)
	}

	log.Printf("seeded %d trades", len(trades))
}

func loadTrades(path string) ([]domain.Trade, error) {
	if path == "" {
		return sampleTrades(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var trades []domain.Trade
	if err := json.Unmarshal(raw, &trades); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i, t := range trades {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("trade %d: %w", i, err)
		}
	}
	if len(trades) == 0 {
		return nil, fmt.Errorf("%s contains no trades", path)
	}
	return trades, nil
}

// sampleTrades is a small session with deliberate over-leverage, revenge
// sizing, and a losing streak so a seeded instance produces interesting
// coaching out of the box.
func sampleTrades() []domain.Trade {
	base := time.Now().UTC().Add(-24 * time.Hour).Truncate(time.Hour)
	mk := func(i int, symbol string, dir domain.TradeDirection, lot, entry, exit, pnl float64) domain.Trade {
		return domain.Trade{
			ID:        fmt.Sprintf("seed-%03d", i),
			Symbol:    symbol,
			Direction: dir,
			LotSize:   lot,
			Entry:     entry,
			Exit:      exit,
			PnL:       pnl,
			Timestamp: base.Add(time.Duration(i) * 30 * time.Minute),
		}
	}
	return []domain.Trade{
		mk(1, "EURUSD", domain.DirectionLong, 0.5, 1.0840, 1.0862, 110),
		mk(2, "EURUSD", domain.DirectionShort, 0.5, 1.0871, 1.0883, -60),
		mk(3, "GBPUSD", domain.DirectionLong, 1.0, 1.2650, 1.2631, -190),
		mk(4, "GBPUSD", domain.DirectionLong, 2.0, 1.2629, 1.2615, -280),
		mk(5, "USDJPY", domain.DirectionShort, 2.5, 151.20, 151.48, -350),
		mk(6, "USDJPY", domain.DirectionShort, 0.5, 151.55, 151.30, 125),
		mk(7, "EURUSD", domain.DirectionLong, 0.5, 1.0820, 1.0841, 105),
		mk(8, "XAUUSD", domain.DirectionLong, 0.3, 2312.0, 2308.5, -105),
		mk(9, "XAUUSD", domain.DirectionLong, 0.3, 2307.8, 2319.4, 348),
		mk(10, "GBPUSD", domain.DirectionShort, 0.5, 1.2602, 1.2590, 60),
	}
}
