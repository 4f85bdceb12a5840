package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/rl1809/orderflow/internal/app"
	"github.com/rl1809/orderflow/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	container, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}
	logger := container.Logger()
	logger.Info("orderflow starting",
		zap.String("version", config.ServiceVersion),
		zap.String("store", cfg.StoreBackend),
		zap.String("catalog", cfg.CatalogBackend),
		zap.Int("workers", cfg.WorkerCount),
	)

	if err := container.Run(ctx); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}
