package explorer

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fbsobreira/gotron-sdk/pkg/address"
	"github.com/shopspring/decimal"

	"tron-wallet-explorer/internal/config"
	"tron-wallet-explorer/internal/metrics"
	"tron-wallet-explorer/internal/models"
	"tron-wallet-explorer/internal/validator"
	"tron-wallet-explorer/pkg/errors"
	"tron-wallet-explorer/pkg/logger"
)

const (
	sunPerTRXExp = models.BalanceScale

	getAccountPath         = "/wallet/getaccount"
	getAccountResourcePath = "/wallet/getaccountresource"

	// 错误响应体最多读取的字节数
	maxErrorBody = 512
)

// TronExplorer 通过 TronGrid HTTP API 查询账户余额和资源
type TronExplorer struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
}

func NewTronExplorer(cfg config.TronConfig) *TronExplorer {
	return &TronExplorer{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		timeout: cfg.Timeout,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type accountRequest struct {
	Address string `json:"address"`
	Visible bool   `json:"visible"`
}

// accountResponse 不存在的账户返回 {}
type accountResponse struct {
	Address string `json:"address"`
	Balance int64  `json:"balance"`
	Error   string `json:"Error"`
}

type accountResourceResponse struct {
	FreeNetUsed  int64  `json:"freeNetUsed"`
	FreeNetLimit int64  `json:"freeNetLimit"`
	NetUsed      int64  `json:"NetUsed"`
	NetLimit     int64  `json:"NetLimit"`
	EnergyUsed   int64  `json:"EnergyUsed"`
	EnergyLimit  int64  `json:"EnergyLimit"`
	Error        string `json:"Error"`
}

func (t *TronExplorer) Network() models.Network {
	return models.NetworkTron
}

// ValidateAddressSyntax 格式匹配之外还校验 base58check 校验和
func (t *TronExplorer) ValidateAddressSyntax(addr string) bool {
	if !validator.IsTronAddress(addr) {
		return false
	}
	_, err := address.Base58ToAddress(addr)
	return err == nil
}

func (t *TronExplorer) FetchWalletInfo(ctx context.Context, addr string) (*models.WalletInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	var account accountResponse
	if err := t.post(ctx, getAccountPath, addr, &account); err != nil {
		return nil, err
	}
	if account.Error != "" {
		return nil, errors.New(errors.ErrExplorerProtocol,
			fmt.Sprintf("getaccount failed: %s", account.Error), nil)
	}

	var resource accountResourceResponse
	if err := t.post(ctx, getAccountResourcePath, addr, &resource); err != nil {
		return nil, err
	}
	if resource.Error != "" {
		return nil, errors.New(errors.ErrExplorerProtocol,
			fmt.Sprintf("getaccountresource failed: %s", resource.Error), nil)
	}

	info := models.NewWalletInfo(
		SunToTRX(account.Balance),
		Available(resource.FreeNetLimit, resource.FreeNetUsed),
		Available(resource.EnergyLimit, resource.EnergyUsed),
	)
	if err := info.Validate(); err != nil {
		return nil, errors.New(errors.ErrExplorerProtocol, "explorer returned invalid wallet info", err)
	}

	logger.WithFields(map[string]interface{}{
		"network":   models.NetworkTron,
		"address":   addr,
		"balance":   info.Balance.Decimal.String(),
		"bandwidth": *info.Bandwidth,
		"energy":    *info.Energy,
	}).Debug("Fetched wallet info")

	return &info, nil
}

// SunToTRX 1 TRX = 10^6 sun，十进制移位不经过浮点
func SunToTRX(sun int64) decimal.Decimal {
	return decimal.NewFromInt(sun).Shift(-sunPerTRXExp)
}

// Available 已用超过上限时返回0
func Available(limit, used int64) int64 {
	if remaining := limit - used; remaining > 0 {
		return remaining
	}
	return 0
}

func (t *TronExplorer) post(ctx context.Context, path, addr string, out interface{}) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveExplorer(string(models.NetworkTron), path, start, err) }()

	body, err := json.Marshal(accountRequest{Address: addr, Visible: true})
	if err != nil {
		return errors.New(errors.ErrExplorerProtocol, "failed to encode request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return errors.New(errors.ErrExplorerProtocol, "failed to create request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if t.apiKey != "" {
		req.Header.Set("TRON-PRO-API-KEY", t.apiKey)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return errors.New(errors.ErrExplorerUnavailable, "explorer request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return errors.New(errors.ErrExplorerUnavailable,
			fmt.Sprintf("explorer returned status %d", resp.StatusCode),
			stderrors.New(string(snippet)))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return errors.New(errors.ErrExplorerProtocol,
			fmt.Sprintf("explorer returned status %d", resp.StatusCode),
			stderrors.New(string(snippet)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		// 读body时超时也算不可用
		if ctx.Err() != nil {
			return errors.New(errors.ErrExplorerUnavailable, "explorer request timed out", err)
		}
		return errors.New(errors.ErrExplorerProtocol, "failed to decode explorer response", err)
	}

	return nil
}
