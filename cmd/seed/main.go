// seed writes demo agents, products and promotions. Safe to run repeatedly.
//
// Usage: go run ./cmd/seed
package main

import (
	"context"

	"sales-ledger/internal/config"
	"sales-ledger/internal/db"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		config.NewLogger("info").Fatalf("config: %v", err)
	}
	log := config.NewLogger(cfg.LogLevel)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.Options{MaxConns: 2})
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	if err := db.Seed(ctx, pool); err != nil {
		pool.Close()
		log.Fatalf("seed: %v", err)
	}
	log.Info("seed data restored")
}
