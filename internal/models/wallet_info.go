package models

import (
	"errors"

	"github.com/shopspring/decimal"
)

// BalanceScale TRX 余额保留的小数位数（1 TRX = 1,000,000 sun）
const BalanceScale = 6

// WalletInfo 浏览器返回的钱包资源信息，字段为空表示未知
type WalletInfo struct {
	Balance   decimal.NullDecimal `gorm:"type:decimal(18,6);check:balance >= 0" json:"balance"`
	Bandwidth *int64              `gorm:"check:bandwidth >= 0" json:"bandwidth"`
	Energy    *int64              `gorm:"check:energy >= 0" json:"energy"`
}

var (
	ErrNegativeBalance   = errors.New("balance must be >= 0")
	ErrNegativeBandwidth = errors.New("bandwidth must be >= 0")
	ErrNegativeEnergy    = errors.New("energy must be >= 0")
)

func NewWalletInfo(balance decimal.Decimal, bandwidth, energy int64) WalletInfo {
	return WalletInfo{
		Balance:   decimal.NewNullDecimal(balance),
		Bandwidth: &bandwidth,
		Energy:    &energy,
	}
}

func (w WalletInfo) Validate() error {
	if w.Balance.Valid && w.Balance.Decimal.IsNegative() {
		return ErrNegativeBalance
	}
	if w.Bandwidth != nil && *w.Bandwidth < 0 {
		return ErrNegativeBandwidth
	}
	if w.Energy != nil && *w.Energy < 0 {
		return ErrNegativeEnergy
	}
	return nil
}
