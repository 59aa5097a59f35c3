package repository

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"tron-wallet-explorer/internal/models"
	"tron-wallet-explorer/internal/pagination"
	"tron-wallet-explorer/pkg/errors"
	"tron-wallet-explorer/pkg/logger"
)

// Filters 精确匹配条件，多个条件之间为AND
type Filters map[string]any

type ListQuery struct {
	Offset        int
	Limit         int // <= 0 表示不限制
	SortBy        string
	SortDirection pagination.Direction
	Filters       Filters
}

const (
	defaultSortBy = "created_at"
	// upsertAttempts 唯一约束冲突后重试一次
	upsertAttempts = 2
)

// Store 钱包记录的通用仓储，T 为 WalletSnapshot 或 WalletRequest
type Store[T any, PT interface {
	*T
	models.Record
}] struct {
	db *gorm.DB
}

func NewStore[T any, PT interface {
	*T
	models.Record
}](db *gorm.DB) *Store[T, PT] {
	return &Store[T, PT]{db: db}
}

// Create 插入新记录，id 与 created_at 由存储层生成
func (s *Store[T, PT]) Create(ctx context.Context, record PT) (PT, error) {
	if err := s.db.WithContext(ctx).Create(record).Error; err != nil {
		return nil, err
	}
	return record, nil
}

// CreateOrUpdate 按 network+address 查找，存在则覆盖余额字段，否则新建
// 并发插入同一地址时由唯一索引拦截，冲突后重试一次走更新分支
func (s *Store[T, PT]) CreateOrUpdate(ctx context.Context, network models.Network, address string, info models.WalletInfo) (PT, error) {
	var lastErr error
	for attempt := 1; attempt <= upsertAttempts; attempt++ {
		record, err := s.upsertOnce(ctx, network, address, info)
		if err == nil {
			return record, nil
		}
		if !isDuplicateKey(err) {
			return nil, err
		}

		lastErr = err
		logger.WithFields(map[string]interface{}{
			"network": network,
			"address": address,
			"attempt": attempt,
		}).Warn("upsert hit unique constraint, retrying")
	}

	return nil, errors.New(errors.ErrPersistenceConflict,
		fmt.Sprintf("concurrent write conflict for %s/%s", network, address), lastErr)
}

func (s *Store[T, PT]) upsertOnce(ctx context.Context, network models.Network, address string, info models.WalletInfo) (PT, error) {
	record := PT(new(T))

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("network = ? AND address = ?", network, address).First(record).Error
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			record.SetIdentity(network, address)
			record.SetInfo(info)
			return tx.Create(record).Error
		}
		if err != nil {
			return err
		}

		// Select 保证 nil 字段也会被写成 NULL
		record.SetInfo(info)
		return tx.Model(record).
			Select("balance", "bandwidth", "energy").
			Updates(record).Error
	})
	if err != nil {
		return nil, err
	}

	return record, nil
}

// GetAll 分页查询，默认按 created_at 倒序，id 作为同向的次级排序保证翻页稳定
func (s *Store[T, PT]) GetAll(ctx context.Context, q ListQuery) ([]T, error) {
	query, err := s.filtered(ctx, q.Filters)
	if err != nil {
		return nil, err
	}

	sortBy := q.SortBy
	if sortBy == "" {
		sortBy = defaultSortBy
	}
	if _, ok := models.Columns[sortBy]; !ok {
		return nil, errors.New(errors.ErrInvalidParams,
			fmt.Sprintf("cannot sort by %q", sortBy), nil)
	}

	direction := "DESC"
	if q.SortDirection == pagination.Asc {
		direction = "ASC"
	}

	query = query.Order(sortBy + " " + direction)
	if sortBy != "id" {
		query = query.Order("id " + direction)
	}

	if q.Offset < 0 {
		return nil, errors.New(errors.ErrInvalidParams, "offset must not be negative", nil)
	}
	if q.Offset > 0 {
		query = query.Offset(q.Offset)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}

	var records []T
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// GetCount 与 GetAll 使用相同的过滤条件
func (s *Store[T, PT]) GetCount(ctx context.Context, filters Filters) (int64, error) {
	query, err := s.filtered(ctx, filters)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// GetBy 找不到时返回 nil, nil
func (s *Store[T, PT]) GetBy(ctx context.Context, filters Filters) (PT, error) {
	query, err := s.filtered(ctx, filters)
	if err != nil {
		return nil, err
	}

	record := PT(new(T))
	err = query.Order("id ASC").First(record).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return record, nil
}

// DeleteBy 返回是否删除了记录
func (s *Store[T, PT]) DeleteBy(ctx context.Context, filters Filters) (bool, error) {
	if len(filters) == 0 {
		return false, errors.New(errors.ErrInvalidParams, "refusing to delete without filters", nil)
	}

	query, err := s.filtered(ctx, filters)
	if err != nil {
		return false, err
	}

	result := query.Delete(new(T))
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *Store[T, PT]) filtered(ctx context.Context, filters Filters) (*gorm.DB, error) {
	query := s.db.WithContext(ctx).Model(new(T))
	for column, value := range filters {
		if _, ok := models.Columns[column]; !ok {
			return nil, errors.New(errors.ErrInvalidParams,
				fmt.Sprintf("cannot filter by %q", column), nil)
		}
		query = query.Where(column+" = ?", value)
	}
	return query, nil
}

// isDuplicateKey 部分驱动不实现错误翻译，兜底匹配错误文本
func isDuplicateKey(err error) bool {
	if stderrors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "duplicate entry")
}
