package models

import (
	"time"
)

// WalletRequest 按 network+address 唯一，重复查询覆盖余额字段
type WalletRequest struct {
	ID         uint64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Network    Network `gorm:"uniqueIndex:uk_network_address;size:20;not null;index" json:"network"`
	Address    string  `gorm:"uniqueIndex:uk_network_address;size:64;not null;index" json:"address"`
	WalletInfo `gorm:"embedded"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (WalletRequest) TableName() string {
	return "wallet_requests"
}

func (r *WalletRequest) SetIdentity(network Network, address string) {
	r.Network = network
	r.Address = address
}

func (r *WalletRequest) SetInfo(info WalletInfo) {
	r.WalletInfo = info
}

func (r *WalletRequest) View() WalletView {
	return WalletView{
		ID:         r.ID,
		Network:    r.Network,
		Address:    r.Address,
		WalletInfo: r.WalletInfo,
		CreatedAt:  r.CreatedAt,
	}
}
