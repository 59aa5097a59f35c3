package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tron-wallet-explorer/internal/app"
	"tron-wallet-explorer/internal/config"
	"tron-wallet-explorer/internal/handler"
	"tron-wallet-explorer/internal/models"
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

	// 延迟落库、内嵌worker和定时刷新都需要队列
	needQueue := cfg.Wallet.PersistMode == "deferred" || cfg.Worker.Enabled || cfg.Refresh.Enabled

	a, err := app.New(cfg, needQueue)
	if err != nil {
		logger.Fatal("Failed to initialize application:", err)
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Worker.Enabled {
		go a.RunWorker(ctx)
	}

	if cfg.Refresh.Enabled {
		refresh := a.RefreshScheduler()
		if err := refresh.Start(); err != nil {
			logger.Fatal("Failed to start refresh scheduler:", err)
		}
		defer refresh.Stop()
	}

	router := handler.NewRouter(a.Service, handler.RouterConfig{
		CORSOrigins:    cfg.Server.CORSOrigins,
		DefaultNetwork: models.ParseNetwork(cfg.Wallet.DefaultNetwork),
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.WithFields(map[string]interface{}{
			"port":         cfg.Server.Port,
			"policy":       cfg.Storage.Policy,
			"persist_mode": cfg.Wallet.PersistMode,
		}).Info("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed:", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error:", err)
	}

	logger.Info("Server stopped")
}
