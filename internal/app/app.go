package app

import (
	"context"

	"gorm.io/gorm"

	"tron-wallet-explorer/internal/config"
	"tron-wallet-explorer/internal/database"
	"tron-wallet-explorer/internal/explorer"
	"tron-wallet-explorer/internal/queue"
	"tron-wallet-explorer/internal/repository"
	"tron-wallet-explorer/internal/scheduler"
	"tron-wallet-explorer/internal/service"
	"tron-wallet-explorer/pkg/errors"
	"tron-wallet-explorer/pkg/logger"
)

// App API进程和worker进程共用的依赖装配
type App struct {
	cfg     *config.Config
	db      *gorm.DB
	repo    repository.WalletRepository
	queue   queue.Queue
	Service *service.WalletService
}

// New withQueue 为false时不连接消息队列，只能使用 sync 落库
func New(cfg *config.Config, withQueue bool) (*App, error) {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, err
	}

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			database.Close(db)
			return nil, errors.New(errors.ErrDatabaseConnect, "failed to migrate database", err)
		}
	}

	repo, err := repository.NewWalletRepository(db, repository.Policy(cfg.Storage.Policy))
	if err != nil {
		database.Close(db)
		return nil, err
	}

	registry := explorer.NewRegistry()
	if cfg.Explorer.Tron.Enabled {
		registry.Register(explorer.NewTronExplorer(cfg.Explorer.Tron))
	}

	a := &App{cfg: cfg, db: db, repo: repo}

	var dispatcher queue.Dispatcher
	if withQueue {
		q, err := queue.Open(cfg.Queue)
		if err != nil {
			database.Close(db)
			return nil, errors.New(errors.ErrDispatch, "failed to connect task queue", err)
		}
		a.queue = q
		dispatcher = q
	}

	svc, err := service.NewWalletService(
		registry,
		repo,
		dispatcher,
		service.PersistMode(cfg.Wallet.PersistMode),
		cfg.Queue.SubmitTimeout,
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Service = svc

	logger.WithFields(map[string]interface{}{
		"db_driver":    cfg.Database.Driver,
		"policy":       cfg.Storage.Policy,
		"persist_mode": cfg.Wallet.PersistMode,
		"queue":        withQueue,
		"networks":     registry.Networks(),
	}).Info("Application initialized")

	return a, nil
}

// RunWorker 消费落库任务直到ctx取消
func (a *App) RunWorker(ctx context.Context) {
	if a.queue == nil {
		logger.Warn("Worker requested without a task queue, skipping")
		return
	}
	if err := a.queue.Consume(ctx, a.cfg.Worker.Concurrency, a.Service.HandleJob); err != nil {
		logger.WithError(err).Error("Worker stopped with error")
	}
}

func (a *App) RefreshScheduler() *scheduler.RefreshScheduler {
	return scheduler.NewRefreshScheduler(a.repo, a.Service, a.cfg.Refresh.Cron, a.cfg.Refresh.BatchSize)
}

func (a *App) Close() {
	if a.queue != nil {
		if err := a.queue.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close task queue")
		}
	}
	database.Close(a.db)
}
