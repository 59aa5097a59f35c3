package explorer

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"tron-wallet-explorer/internal/models"
	"tron-wallet-explorer/pkg/errors"
)

// Explorer 查询某条链的账户状态，每个网络一个实现
type Explorer interface {
	Network() models.Network
	// FetchWalletInfo 空账户返回零值而不是错误
	FetchWalletInfo(ctx context.Context, address string) (*models.WalletInfo, error)
	// ValidateAddressSyntax 本地校验，非法输入返回false
	ValidateAddressSyntax(address string) bool
}

// Registry 按网络标识选择浏览器实现
type Registry struct {
	mu        sync.RWMutex
	explorers map[models.Network]Explorer
}

func NewRegistry(explorers ...Explorer) *Registry {
	r := &Registry{explorers: make(map[models.Network]Explorer)}
	for _, e := range explorers {
		r.Register(e)
	}
	return r
}

func (r *Registry) Register(e Explorer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.explorers[e.Network()] = e
}

// Get 不支持的网络在选择阶段就返回 UNSUPPORTED_NETWORK
func (r *Registry) Get(network models.Network) (Explorer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.explorers[network]
	if !ok {
		return nil, errors.New(errors.ErrUnsupportedNetwork,
			fmt.Sprintf("Network %s not supported", network), nil)
	}
	return e, nil
}

func (r *Registry) Networks() []models.Network {
	r.mu.RLock()
	defer r.mu.RUnlock()

	networks := make([]models.Network, 0, len(r.explorers))
	for n := range r.explorers {
		networks = append(networks, n)
	}
	sort.Slice(networks, func(i, j int) bool { return networks[i] < networks[j] })
	return networks
}
