package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tron-wallet-explorer/internal/app"
	"tron-wallet-explorer/internal/config"
	"tron-wallet-explorer/pkg/logger"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output); err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}

	a, err := app.New(cfg, true)
	if err != nil {
		logger.Fatal("Failed to initialize worker:", err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Refresh.Enabled {
		refresh := a.RefreshScheduler()
		if err := refresh.Start(); err != nil {
			logger.Fatal("Failed to start refresh scheduler:", err)
		}
		defer refresh.Stop()
	}

	logger.Info("Worker started")
	a.RunWorker(ctx)
	logger.Info("Worker stopped")
}
