package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"transport-pricing-service/internal/app"
	"transport-pricing-service/internal/config"
	"transport-pricing-service/internal/observability"
)

// The worker runs the webhook dispatcher and the reprice consumer; it shares
// the App wiring with the API binary but never serves HTTP.
func main() {
	cfg, err := config.Load()
	if err != nil {
		observability.NewLogger("transport-pricing-worker", "unknown", "info").
			Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	a, err := app.New(cfg)
	if err != nil {
		observability.NewLogger("transport-pricing-worker", cfg.Env, cfg.LogLevel).
			Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		a.Dispatcher.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		a.Reprices.Run(ctx)
	}()

	<-ctx.Done()
	a.Logger.Info("shutdown signal received, draining workers")
	wg.Wait()
	a.Logger.Info("worker stopped")
}
