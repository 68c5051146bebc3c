package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	webAdapter "sales-ledger/internal/adapters/web"
	"sales-ledger/internal/bootstrap"
	"sales-ledger/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		config.NewLogger("info").Fatalf("config: %v", err)
	}
	log := config.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, cleanup, err := bootstrap.Build(ctx, cfg, log)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	defer cleanup()

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           webAdapter.NewHandler(svc, cfg.AllowedOrigins, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.WithError(err).Error("server shutdown")
		}
	}()

	log.WithField("port", cfg.ServerPort).Info("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server: %v", err)
	}
	log.Info("server stopped")
}
