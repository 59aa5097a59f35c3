package models

import (
	"time"
)

// WalletSnapshot 追加式历史记录，同一地址可以有多条
type WalletSnapshot struct {
	ID         uint64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Network    Network `gorm:"size:20;not null;index" json:"network"`
	Address    string  `gorm:"size:64;not null;index" json:"address"`
	WalletInfo `gorm:"embedded"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (WalletSnapshot) TableName() string {
	return "wallet_snapshots"
}

func (s *WalletSnapshot) SetIdentity(network Network, address string) {
	s.Network = network
	s.Address = address
}

func (s *WalletSnapshot) SetInfo(info WalletInfo) {
	s.WalletInfo = info
}

func (s *WalletSnapshot) View() WalletView {
	return WalletView{
		ID:         s.ID,
		Network:    s.Network,
		Address:    s.Address,
		WalletInfo: s.WalletInfo,
		CreatedAt:  s.CreatedAt,
	}
}
