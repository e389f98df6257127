package db

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

var Pool *pgxpool.Pool

// InitPostgres connects the shared pool using the configured DSN. An empty
// DSN leaves Pool nil and the trade store disabled.
func InitPostgres(ctx context.Context, dsn string) {
	if dsn == "" {
		log.Println("Warning: no database URL configured, trade storage disabled")
		return
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.Fatalf("failed to connect to Postgres: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("failed to ping Postgres: %v", err)
	}
	Pool = pool
	log.Println("Connected to Postgres")
}
