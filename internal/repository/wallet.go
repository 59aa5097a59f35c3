package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"tron-wallet-explorer/internal/models"
	"tron-wallet-explorer/pkg/errors"
)

type Policy string

const (
	// PolicyAppend 每次查询追加一条快照，无唯一约束
	PolicyAppend Policy = "append"
	// PolicyUpsert 按 network+address 唯一，重复查询覆盖
	PolicyUpsert Policy = "upsert"
)

// WalletRepository 服务层使用的持久化接口，屏蔽两种记录表的差异
type WalletRepository interface {
	Policy() Policy
	Persist(ctx context.Context, network models.Network, address string, info models.WalletInfo) (*models.WalletView, error)
	List(ctx context.Context, q ListQuery) ([]models.WalletView, error)
	Count(ctx context.Context, filters Filters) (int64, error)
	Get(ctx context.Context, filters Filters) (*models.WalletView, error)
	Delete(ctx context.Context, filters Filters) (bool, error)
}

// NewWalletRepository 按部署策略选择记录表
func NewWalletRepository(db *gorm.DB, policy Policy) (WalletRepository, error) {
	switch policy {
	case PolicyAppend:
		return &snapshotRepository{
			walletRepository: walletRepository[models.WalletSnapshot, *models.WalletSnapshot]{
				store: NewStore[models.WalletSnapshot](db),
			},
		}, nil
	case PolicyUpsert:
		return &requestRepository{
			walletRepository: walletRepository[models.WalletRequest, *models.WalletRequest]{
				store: NewStore[models.WalletRequest](db),
			},
		}, nil
	default:
		return nil, fmt.Errorf("unknown storage policy %q", policy)
	}
}

type walletRepository[T any, PT interface {
	*T
	models.Record
}] struct {
	store *Store[T, PT]
}

func (r *walletRepository[T, PT]) List(ctx context.Context, q ListQuery) ([]models.WalletView, error) {
	records, err := r.store.GetAll(ctx, q)
	if err != nil {
		return nil, wrapPersistence(err, "failed to list wallet records")
	}

	views := make([]models.WalletView, 0, len(records))
	for i := range records {
		views = append(views, PT(&records[i]).View())
	}
	return views, nil
}

func (r *walletRepository[T, PT]) Count(ctx context.Context, filters Filters) (int64, error) {
	count, err := r.store.GetCount(ctx, filters)
	if err != nil {
		return 0, wrapPersistence(err, "failed to count wallet records")
	}
	return count, nil
}

func (r *walletRepository[T, PT]) Get(ctx context.Context, filters Filters) (*models.WalletView, error) {
	record, err := r.store.GetBy(ctx, filters)
	if err != nil {
		return nil, wrapPersistence(err, "failed to get wallet record")
	}
	if record == nil {
		return nil, nil
	}
	view := record.View()
	return &view, nil
}

func (r *walletRepository[T, PT]) Delete(ctx context.Context, filters Filters) (bool, error) {
	deleted, err := r.store.DeleteBy(ctx, filters)
	if err != nil {
		return false, wrapPersistence(err, "failed to delete wallet record")
	}
	return deleted, nil
}

type snapshotRepository struct {
	walletRepository[models.WalletSnapshot, *models.WalletSnapshot]
}

func (r *snapshotRepository) Policy() Policy {
	return PolicyAppend
}

func (r *snapshotRepository) Persist(ctx context.Context, network models.Network, address string, info models.WalletInfo) (*models.WalletView, error) {
	record := &models.WalletSnapshot{}
	record.SetIdentity(network, address)
	record.SetInfo(info)

	created, err := r.store.Create(ctx, record)
	if err != nil {
		return nil, wrapPersistence(err, "failed to create wallet snapshot")
	}
	view := created.View()
	return &view, nil
}

type requestRepository struct {
	walletRepository[models.WalletRequest, *models.WalletRequest]
}

func (r *requestRepository) Policy() Policy {
	return PolicyUpsert
}

func (r *requestRepository) Persist(ctx context.Context, network models.Network, address string, info models.WalletInfo) (*models.WalletView, error) {
	record, err := r.store.CreateOrUpdate(ctx, network, address, info)
	if err != nil {
		return nil, wrapPersistence(err, "failed to upsert wallet request")
	}
	view := record.View()
	return &view, nil
}

// wrapPersistence 已经是AppError的保持原样（参数错误、写冲突）
func wrapPersistence(err error, message string) error {
	if errors.CodeOf(err) != "" {
		return err
	}
	return errors.New(errors.ErrPersistence, message, err)
}
