package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"tron-wallet-explorer/internal/models"
	"tron-wallet-explorer/internal/pagination"
	"tron-wallet-explorer/internal/repository"
	"tron-wallet-explorer/pkg/logger"
)

const defaultBatchSize = 100

type walletLister interface {
	List(ctx context.Context, q repository.ListQuery) ([]models.WalletView, error)
}

type walletRefresher interface {
	RefreshWallet(ctx context.Context, network models.Network, address string) error
}

// RefreshScheduler 定时重新查询已记录的地址
type RefreshScheduler struct {
	cron      *cron.Cron
	lister    walletLister
	refresher walletRefresher
	cronExpr  string
	batchSize int
}

func NewRefreshScheduler(lister walletLister, refresher walletRefresher, cronExpr string, batchSize int) *RefreshScheduler {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &RefreshScheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(logger.Log))),
		),
		lister:    lister,
		refresher: refresher,
		cronExpr:  cronExpr,
		batchSize: batchSize,
	}
}

func (s *RefreshScheduler) Start() error {
	_, err := s.cron.AddFunc(s.cronExpr, s.refreshAll)
	if err != nil {
		return err
	}

	s.cron.Start()
	logger.WithFields(map[string]interface{}{"cron": s.cronExpr}).Info("Wallet refresh scheduler started")
	return nil
}

func (s *RefreshScheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info("Wallet refresh scheduler stopped")
}

func (s *RefreshScheduler) refreshAll() {
	if _, err := s.RunOnce(context.Background()); err != nil {
		logger.WithError(err).Error("Wallet refresh failed")
	}
}

// RunOnce 按 id 升序分批遍历，同一地址一轮只刷新一次
// 单个地址失败只记日志，不中断本轮
func (s *RefreshScheduler) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	seen := make(map[string]struct{})
	refreshed, failed := 0, 0

	for offset := 0; ; offset += s.batchSize {
		if err := ctx.Err(); err != nil {
			return refreshed, err
		}

		records, err := s.lister.List(ctx, repository.ListQuery{
			Offset:        offset,
			Limit:         s.batchSize,
			SortBy:        "id",
			SortDirection: pagination.Asc,
		})
		if err != nil {
			return refreshed, err
		}

		for _, record := range records {
			key := string(record.Network) + "/" + record.Address
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}

			if err := s.refresher.RefreshWallet(ctx, record.Network, record.Address); err != nil {
				failed++
				logger.WithFields(map[string]interface{}{
					"network": record.Network,
					"address": record.Address,
				}).WithError(err).Warn("Failed to refresh wallet")
				continue
			}
			refreshed++
		}

		if len(records) < s.batchSize {
			break
		}
	}

	logger.WithFields(map[string]interface{}{
		"refreshed": refreshed,
		"failed":    failed,
		"duration":  time.Since(start).String(),
	}).Info("Wallet refresh completed")

	return refreshed, nil
}
