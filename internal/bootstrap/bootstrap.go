// Package bootstrap wires configuration, storage and services into an ApplicationService.
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"sales-ledger/internal/app"
	"sales-ledger/internal/config"
	"sales-ledger/internal/core"
	"sales-ledger/internal/db"
	"sales-ledger/internal/lock"
	"sales-ledger/internal/notify"
)

// Build connects to Postgres and the optional Redis and Pub/Sub backends and returns the
// application service. The returned cleanup closes everything Build opened.
func Build(ctx context.Context, cfg *config.Config, log logrus.FieldLogger) (app.ApplicationService, func(), error) {
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.Options{MaxConns: cfg.DBMaxConns})
	if err != nil {
		return nil, nil, fmt.Errorf("database: %w", err)
	}
	closers := []func(){pool.Close}
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	var locker lock.Locker
	if cfg.RedisAddress != "" {
		rdb, err := lock.ConnectRedis(ctx, cfg.RedisAddress)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("redis: %w", err)
		}
		closers = append(closers, func() { _ = rdb.Close() })
		locker = lock.NewRedisLocker(rdb, cfg.LockTTL)
		log.WithField("address", cfg.RedisAddress).Info("using redis locks")
	} else {
		locker = lock.NewLocalLocker(cfg.LockTTL)
		log.Info("REDIS_ADDRESS not set, using in-process locks")
	}

	var notifier core.Notifier
	if cfg.PubSubProjectID != "" {
		ps, err := notify.NewPubSubNotifier(ctx, cfg.PubSubProjectID, cfg.PubSubTopic, cfg.PubSubCredentialsJSON)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("pubsub: %w", err)
		}
		closers = append(closers, func() { _ = ps.Close() })
		notifier = ps
	} else {
		notifier = notify.NewLogNotifier(log)
	}

	now := time.Now
	canonicalize := core.CanonicalizerFromAliases(cfg.SharedAgents)
	stock := core.NewStockLedger(pool)
	catalog := core.NewCatalog(pool)

	svcs := app.Services{
		Agents: core.NewAgentDirectory(pool),
		Orders: core.NewOrderService(pool, core.OrderDeps{
			Stock:        stock,
			Catalog:      catalog,
			Tags:         core.NewTagResolver(cfg.SystemTag),
			Customers:    core.NewCustomerDirectory(),
			Invoices:     core.NewInvoiceSequencer(cfg.InvoiceStart),
			Goals:        core.NewGoalTracker(log),
			Notifier:     notifier,
			Canonicalize: canonicalize,
			Log:          log,
			Now:          now,
		}),
		Discounts:  core.NewDiscountService(pool, log, now),
		Payments:   core.NewPaymentService(pool, log, now),
		Transfers:  core.NewTransferService(pool, cfg.SharedAgents, log, now),
		Promotions: core.NewPromotionService(pool, now),
		Catalog:    catalog,
		Stock:      stock,
	}

	ping := func(ctx context.Context) error { return db.Ping(ctx, pool) }
	return app.NewAppService(svcs, locker, log, ping), cleanup, nil
}
