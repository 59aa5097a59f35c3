package service

import (
	"context"
	"fmt"
	"time"

	"tron-wallet-explorer/internal/explorer"
	"tron-wallet-explorer/internal/metrics"
	"tron-wallet-explorer/internal/models"
	"tron-wallet-explorer/internal/pagination"
	"tron-wallet-explorer/internal/queue"
	"tron-wallet-explorer/internal/repository"
	"tron-wallet-explorer/internal/validator"
	"tron-wallet-explorer/pkg/errors"
	"tron-wallet-explorer/pkg/logger"
)

type PersistMode string

const (
	// PersistSync 落库后再响应
	PersistSync PersistMode = "sync"
	// PersistDeferred 投递任务后立即响应，落库结果不影响响应
	PersistDeferred PersistMode = "deferred"
)

const defaultSubmitTimeout = 5 * time.Second

// LookupResult Record 只在同步落库时有值
type LookupResult struct {
	Network models.Network
	Address string
	Info    models.WalletInfo
	Record  *models.WalletView
	JobID   string
}

func (r *LookupResult) Persisted() bool {
	return r.Record != nil
}

type HistoryQuery struct {
	Params  pagination.Params
	Sorting pagination.Sorting
	Network models.Network
	Address string
}

type WalletService struct {
	explorers     *explorer.Registry
	repo          repository.WalletRepository
	dispatcher    queue.Dispatcher
	mode          PersistMode
	submitTimeout time.Duration
}

// NewWalletService deferred 模式必须提供 dispatcher
func NewWalletService(
	explorers *explorer.Registry,
	repo repository.WalletRepository,
	dispatcher queue.Dispatcher,
	mode PersistMode,
	submitTimeout time.Duration,
) (*WalletService, error) {
	switch mode {
	case PersistSync:
	case PersistDeferred:
		if dispatcher == nil {
			return nil, fmt.Errorf("deferred persist mode requires a dispatcher")
		}
	default:
		return nil, fmt.Errorf("unknown persist mode %q", mode)
	}

	if submitTimeout <= 0 {
		submitTimeout = defaultSubmitTimeout
	}

	return &WalletService{
		explorers:     explorers,
		repo:          repo,
		dispatcher:    dispatcher,
		mode:          mode,
		submitTimeout: submitTimeout,
	}, nil
}

// GetWalletInfo 校验地址、查询浏览器，然后同步落库或投递落库任务
// 浏览器失败时不会产生任何记录
func (s *WalletService) GetWalletInfo(ctx context.Context, network models.Network, address string) (result *LookupResult, err error) {
	defer func() {
		label := string(network)
		if errors.HasCode(err, errors.ErrUnsupportedNetwork) {
			label = "unsupported"
		}
		metrics.WalletLookups.WithLabelValues(label, lookupOutcome(err)).Inc()
	}()

	info, err := s.fetch(ctx, network, address)
	if err != nil {
		return nil, err
	}

	result = &LookupResult{
		Network: network,
		Address: address,
		Info:    *info,
	}

	if s.mode == PersistSync {
		record, err := s.SaveWalletInfo(ctx, network, address, *info)
		if err != nil {
			return nil, err
		}
		result.Record = record
		return result, nil
	}

	result.JobID = s.dispatch(ctx, network, address, *info)
	return result, nil
}

// fetch 校验必须在任何远程调用之前完成
func (s *WalletService) fetch(ctx context.Context, network models.Network, address string) (*models.WalletInfo, error) {
	if err := validator.Validate(network, address); err != nil {
		return nil, err
	}

	exp, err := s.explorers.Get(network)
	if err != nil {
		return nil, err
	}

	if !exp.ValidateAddressSyntax(address) {
		return nil, errors.New(errors.ErrInvalidAddress, "Invalid address", nil)
	}

	info, err := exp.FetchWalletInfo(ctx, address)
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"network": network,
			"address": address,
		}).WithError(err).Warn("查询钱包信息失败")
		return nil, err
	}
	return info, nil
}

// dispatch 投递失败只记日志，不影响已经拿到的查询结果
// 使用脱离请求的ctx，客户端断开后任务仍会投递
func (s *WalletService) dispatch(ctx context.Context, network models.Network, address string, info models.WalletInfo) string {
	job := queue.NewSaveWalletInfoJob(network, address, info)

	submitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.submitTimeout)
	defer cancel()

	if err := s.dispatcher.Submit(submitCtx, job); err != nil {
		logger.WithFields(map[string]interface{}{
			"job_id":  job.ID,
			"network": network,
			"address": address,
			"balance": info.Balance.Decimal.String(),
		}).WithError(err).Error("投递落库任务失败")
		return ""
	}

	logger.WithFields(map[string]interface{}{
		"job_id":  job.ID,
		"network": network,
		"address": address,
	}).Debug("落库任务已投递")
	return job.ID
}

// SaveWalletInfo 落库步骤，同步路径、队列worker和定时刷新共用
func (s *WalletService) SaveWalletInfo(ctx context.Context, network models.Network, address string, info models.WalletInfo) (record *models.WalletView, err error) {
	defer func() {
		metrics.PersistedRecords.WithLabelValues(string(s.repo.Policy()), metrics.Outcome(err)).Inc()
	}()

	if err := info.Validate(); err != nil {
		return nil, errors.New(errors.ErrInvalidParams, err.Error(), err)
	}

	record, err = s.repo.Persist(ctx, network, address, info)
	if err != nil {
		logger.WithFields(map[string]interface{}{
			"network": network,
			"address": address,
			"policy":  s.repo.Policy(),
		}).WithError(err).Error("保存钱包信息失败")
		return nil, err
	}

	logger.WithFields(map[string]interface{}{
		"id":      record.ID,
		"network": network,
		"address": address,
		"policy":  s.repo.Policy(),
	}).Info("钱包信息已保存")

	return record, nil
}

// HandleJob 队列消费回调
func (s *WalletService) HandleJob(ctx context.Context, job queue.Job) error {
	_, err := s.SaveWalletInfo(ctx, job.Network, job.Address, job.Info)
	return err
}

// RefreshWallet 重新查询已记录的地址
// 有 dispatcher 时投递任务，否则直接落库
func (s *WalletService) RefreshWallet(ctx context.Context, network models.Network, address string) error {
	info, err := s.fetch(ctx, network, address)
	if err != nil {
		return err
	}

	if s.dispatcher == nil {
		_, err := s.SaveWalletInfo(ctx, network, address, *info)
		return err
	}

	job := queue.NewSaveWalletInfoJob(network, address, *info)
	return s.dispatcher.Submit(ctx, job)
}

// GetHistory count 与 results 使用同一组过滤条件
func (s *WalletService) GetHistory(ctx context.Context, q HistoryQuery) (*pagination.Result[models.WalletView], error) {
	if err := q.Params.Validate(); err != nil {
		return nil, err
	}

	filters := repository.Filters{}
	if q.Network != "" {
		filters["network"] = q.Network
	}
	if q.Address != "" {
		filters["address"] = q.Address
	}

	records, err := s.repo.List(ctx, repository.ListQuery{
		Offset:        q.Params.Offset(),
		Limit:         q.Params.Limit,
		SortBy:        q.Sorting.SortBy,
		SortDirection: q.Sorting.Direction,
		Filters:       filters,
	})
	if err != nil {
		return nil, err
	}

	count, err := s.repo.Count(ctx, filters)
	if err != nil {
		return nil, err
	}

	return pagination.NewResult(records, count, q.Params), nil
}

func (s *WalletService) GetRecord(ctx context.Context, id uint64) (*models.WalletView, error) {
	record, err := s.repo.Get(ctx, repository.Filters{"id": id})
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, errors.New(errors.ErrNotFound, fmt.Sprintf("Record %d not found", id), nil)
	}
	return record, nil
}

func (s *WalletService) DeleteRecord(ctx context.Context, id uint64) error {
	deleted, err := s.repo.Delete(ctx, repository.Filters{"id": id})
	if err != nil {
		return err
	}
	if !deleted {
		return errors.New(errors.ErrNotFound, fmt.Sprintf("Record %d not found", id), nil)
	}

	logger.WithFields(map[string]interface{}{"id": id}).Info("钱包记录已删除")
	return nil
}

func lookupOutcome(err error) string {
	if err == nil {
		return "success"
	}
	if code := errors.CodeOf(err); code != "" {
		return code
	}
	return "error"
}
