package models

import "time"

// Record 两种钱包记录表的公共行为，供泛型仓储使用
type Record interface {
	TableName() string
	SetIdentity(network Network, address string)
	SetInfo(info WalletInfo)
	View() WalletView
}

// WalletView 对外返回的统一结构
type WalletView struct {
	ID      uint64  `json:"id"`
	Network Network `json:"network"`
	Address string  `json:"address"`
	WalletInfo
	CreatedAt time.Time `json:"created_at"`
}

// Columns 允许排序和过滤的列
var Columns = map[string]struct{}{
	"id":         {},
	"network":    {},
	"address":    {},
	"balance":    {},
	"bandwidth":  {},
	"energy":     {},
	"created_at": {},
}

var (
	_ Record = (*WalletSnapshot)(nil)
	_ Record = (*WalletRequest)(nil)
)
