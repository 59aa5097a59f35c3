package pagination

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"tron-wallet-explorer/pkg/errors"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

type Params struct {
	Page  int
	Limit int
}

func (p Params) Validate() error {
	if p.Page < 1 {
		return errors.New(errors.ErrInvalidParams, "page must be greater than or equal to 1", nil)
	}
	if p.Limit < 1 || p.Limit > MaxLimit {
		return errors.New(errors.ErrInvalidParams,
			fmt.Sprintf("limit must be between 1 and %d", MaxLimit), nil)
	}
	// offset 必须能用 int 表示
	if p.Page-1 > math.MaxInt/p.Limit {
		return errors.New(errors.ErrInvalidParams, "page is out of range", nil)
	}
	return nil
}

func (p Params) Offset() int {
	return (p.Page - 1) * p.Limit
}

// Sorting 空值表示使用仓储默认排序
type Sorting struct {
	SortBy    string
	Direction Direction
}

func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(s)) {
	case "":
		return "", nil
	case Asc:
		return Asc, nil
	case Desc:
		return Desc, nil
	default:
		return "", errors.New(errors.ErrInvalidParams, "sort_direction must be asc or desc", nil)
	}
}

// Result 分页结果，pages/next/previous由count和limit推导
type Result[T any] struct {
	Count   int64
	Limit   int
	Page    int
	Results []T
}

func NewResult[T any](results []T, count int64, params Params) *Result[T] {
	if results == nil {
		results = []T{}
	}
	return &Result[T]{
		Count:   count,
		Limit:   params.Limit,
		Page:    params.Page,
		Results: results,
	}
}

func (r *Result[T]) Pages() int {
	if r.Limit <= 0 {
		return 0
	}
	return int((r.Count + int64(r.Limit) - 1) / int64(r.Limit))
}

func (r *Result[T]) Next() *int {
	if r.Page < r.Pages() {
		next := r.Page + 1
		return &next
	}
	return nil
}

func (r *Result[T]) Previous() *int {
	if r.Page > 1 {
		prev := r.Page - 1
		return &prev
	}
	return nil
}

func (r *Result[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Count    int64 `json:"count"`
		Limit    int   `json:"limit"`
		Page     int   `json:"page"`
		Results  []T   `json:"results"`
		Pages    int   `json:"pages"`
		Next     *int  `json:"next"`
		Previous *int  `json:"previous"`
	}{
		Count:    r.Count,
		Limit:    r.Limit,
		Page:     r.Page,
		Results:  r.Results,
		Pages:    r.Pages(),
		Next:     r.Next(),
		Previous: r.Previous(),
	})
}
