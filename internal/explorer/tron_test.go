package explorer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"tron-wallet-explorer/internal/config"
	"tron-wallet-explorer/pkg/errors"
)

const usdtContract = "TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t"

// fakeNode 模拟 TronGrid 的两个账户接口
func fakeNode(t *testing.T, account, resource string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}

		var req accountRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Address != usdtContract || !req.Visible {
			t.Errorf("unexpected request %+v", req)
		}

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case getAccountPath:
			w.Write([]byte(account))
		case getAccountResourcePath:
			w.Write([]byte(resource))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestExplorer(baseURL string) *TronExplorer {
	return NewTronExplorer(config.TronConfig{
		BaseURL: baseURL,
		APIKey:  "test-key",
		Timeout: 2 * time.Second,
	})
}

func TestFetchWalletInfo(t *testing.T) {
	srv := fakeNode(t,
		`{"address":"TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6t","balance":100123456}`,
		`{"freeNetUsed":200,"freeNetLimit":1200,"EnergyUsed":500,"EnergyLimit":2500}`,
	)

	info, err := newTestExplorer(srv.URL).FetchWalletInfo(context.Background(), usdtContract)
	if err != nil {
		t.Fatalf("FetchWalletInfo: %v", err)
	}

	if !info.Balance.Valid || info.Balance.Decimal.String() != "100.123456" {
		t.Errorf("balance = %s, want 100.123456", info.Balance.Decimal)
	}
	if *info.Bandwidth != 1000 {
		t.Errorf("bandwidth = %d, want 1000", *info.Bandwidth)
	}
	if *info.Energy != 2000 {
		t.Errorf("energy = %d, want 2000", *info.Energy)
	}
}

func TestFetchWalletInfo_ClampsOverusedResources(t *testing.T) {
	srv := fakeNode(t,
		`{"balance":1}`,
		`{"freeNetUsed":150,"freeNetLimit":100,"EnergyUsed":10,"EnergyLimit":0}`,
	)

	info, err := newTestExplorer(srv.URL).FetchWalletInfo(context.Background(), usdtContract)
	if err != nil {
		t.Fatalf("FetchWalletInfo: %v", err)
	}
	if *info.Bandwidth != 0 || *info.Energy != 0 {
		t.Fatalf("resources = %d/%d, want 0/0", *info.Bandwidth, *info.Energy)
	}
	if info.Balance.Decimal.String() != "0.000001" {
		t.Fatalf("balance = %s, want 0.000001", info.Balance.Decimal)
	}
}

func TestFetchWalletInfo_EmptyAccount(t *testing.T) {
	srv := fakeNode(t, `{}`, `{}`)

	info, err := newTestExplorer(srv.URL).FetchWalletInfo(context.Background(), usdtContract)
	if err != nil {
		t.Fatalf("empty account must not fail: %v", err)
	}
	if !info.Balance.Decimal.IsZero() || *info.Bandwidth != 0 || *info.Energy != 0 {
		t.Fatalf("expected zeros, got %+v", info)
	}
}

func TestFetchWalletInfo_SendsAPIKey(t *testing.T) {
	var seen atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("TRON-PRO-API-KEY") == "test-key" {
			seen.Add(1)
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	if _, err := newTestExplorer(srv.URL).FetchWalletInfo(context.Background(), usdtContract); err != nil {
		t.Fatal(err)
	}
	if seen.Load() != 2 {
		t.Fatalf("api key seen on %d requests, want 2", seen.Load())
	}
}

func TestFetchWalletInfo_ErrorMapping(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		delay   time.Duration
		wantErr string
	}{
		{"server error", http.StatusInternalServerError, `oops`, 0, errors.ErrExplorerUnavailable},
		{"bad gateway", http.StatusBadGateway, ``, 0, errors.ErrExplorerUnavailable},
		{"rate limited", http.StatusTooManyRequests, `{}`, 0, errors.ErrExplorerUnavailable},
		{"timeout", http.StatusOK, `{}`, 500 * time.Millisecond, errors.ErrExplorerUnavailable},
		{"malformed json", http.StatusOK, `{"balance":`, 0, errors.ErrExplorerProtocol},
		{"wrong type", http.StatusOK, `{"balance":"lots"}`, 0, errors.ErrExplorerProtocol},
		{"error field", http.StatusOK, `{"Error":"class org.tron.core.exception"}`, 0, errors.ErrExplorerProtocol},
		{"bad request", http.StatusBadRequest, `{}`, 0, errors.ErrExplorerProtocol},
		{"negative balance", http.StatusOK, `{"balance":-5}`, 0, errors.ErrExplorerProtocol},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.delay > 0 {
					select {
					case <-time.After(tt.delay):
					case <-r.Context().Done():
						return
					}
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			e := NewTronExplorer(config.TronConfig{BaseURL: srv.URL, Timeout: 100 * time.Millisecond})
			_, err := e.FetchWalletInfo(context.Background(), usdtContract)
			if !errors.HasCode(err, tt.wantErr) {
				t.Fatalf("err = %v, want code %s", err, tt.wantErr)
			}
		})
	}
}

func TestFetchWalletInfo_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTestExplorer(url).FetchWalletInfo(context.Background(), usdtContract)
	if !errors.HasCode(err, errors.ErrExplorerUnavailable) {
		t.Fatalf("err = %v, want EXPLORER_UNAVAILABLE", err)
	}
}

func TestValidateAddressSyntax(t *testing.T) {
	e := newTestExplorer("http://unused")

	tests := []struct {
		addr string
		want bool
	}{
		{usdtContract, true},
		{"TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6u", false}, // 校验和不符
		{"TR7NHqjeKQxGTCi8q8ZY4pL8otSzgjLj6", false},
		{"0x742d35Cc6634C0532925a3b844Bc454e4438f44e", false},
		{"", false},
	}
	for _, tt := range tests {
		if got := e.ValidateAddressSyntax(tt.addr); got != tt.want {
			t.Errorf("ValidateAddressSyntax(%q) = %v, want %v", tt.addr, got, tt.want)
		}
	}
}

func TestSunToTRX(t *testing.T) {
	tests := []struct {
		sun  int64
		want string
	}{
		{100123456, "100.123456"},
		{1, "0.000001"},
		{0, "0"},
		{9_000_000_000_000_000, "9000000000000"},
	}
	for _, tt := range tests {
		if got := SunToTRX(tt.sun); !got.Equal(decimal.RequireFromString(tt.want)) {
			t.Errorf("SunToTRX(%d) = %s, want %s", tt.sun, got, tt.want)
		}
	}
}

func TestAvailable(t *testing.T) {
	if got := Available(100, 150); got != 0 {
		t.Errorf("Available(100, 150) = %d, want 0", got)
	}
	if got := Available(1500, 500); got != 1000 {
		t.Errorf("Available(1500, 500) = %d, want 1000", got)
	}
}
