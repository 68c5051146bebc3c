// migrate applies pending SQL migrations and refuses to run when an applied file changed.
//
// Usage: go run ./cmd/migrate [-dir migrations]
package main

import (
	"context"
	"flag"

	"sales-ledger/internal/config"
	"sales-ledger/internal/db"
)

func main() {
	dir := flag.String("dir", "migrations", "directory holding NNN_description.sql files")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		config.NewLogger("info").Fatalf("config: %v", err)
	}
	log := config.NewLogger(cfg.LogLevel)
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.Options{MaxConns: 2})
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	applied, err := db.Migrate(ctx, pool, *dir, log)
	if err != nil {
		pool.Close()
		log.Fatalf("migrate: %v", err)
	}
	log.WithField("applied", applied).Info("migrations complete")
}
