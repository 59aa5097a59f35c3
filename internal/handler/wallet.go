package handler

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"tron-wallet-explorer/internal/models"
	"tron-wallet-explorer/internal/pagination"
	"tron-wallet-explorer/internal/service"
	"tron-wallet-explorer/pkg/errors"
)

// maxRequestBody POST /wallet 请求体上限
const maxRequestBody = 1 << 20

type createWalletRequest struct {
	Address string `json:"address"`
	Network string `json:"network"`
}

// walletInfoResponse deferred 模式下记录尚未落库，没有 id
type walletInfoResponse struct {
	Network models.Network `json:"network"`
	Address string         `json:"address"`
	models.WalletInfo
	JobID string `json:"job_id,omitempty"`
}

type WalletHandler struct {
	svc            *service.WalletService
	defaultNetwork models.Network
}

func NewWalletHandler(svc *service.WalletService, defaultNetwork models.Network) *WalletHandler {
	if defaultNetwork == "" {
		defaultNetwork = models.NetworkTron
	}
	return &WalletHandler{svc: svc, defaultNetwork: defaultNetwork}
}

// CreateWallet POST /wallet
// network 可以放在body或query里，都没有时使用默认网络
func (h *WalletHandler) CreateWallet(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var req createWalletRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			writeError(w, r, errors.New(errors.ErrInvalidParams, "request body too large", err))
			return
		}
		writeError(w, r, errors.New(errors.ErrInvalidParams, "invalid request body", err))
		return
	}
	if req.Address == "" {
		writeError(w, r, errors.New(errors.ErrInvalidParams, "address is required", nil))
		return
	}

	network := h.defaultNetwork
	if req.Network != "" {
		network = models.ParseNetwork(req.Network)
	} else if q := r.URL.Query().Get("network"); q != "" {
		network = models.ParseNetwork(q)
	}

	result, err := h.svc.GetWalletInfo(r.Context(), network, req.Address)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if result.Persisted() {
		writeJSON(w, http.StatusCreated, result.Record)
		return
	}

	writeJSON(w, http.StatusOK, walletInfoResponse{
		Network:    result.Network,
		Address:    result.Address,
		WalletInfo: result.Info,
		JobID:      result.JobID,
	})
}

// ListHistory GET /wallet/history
func (h *WalletHandler) ListHistory(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page, err := intParam(query.Get("page"), pagination.DefaultPage, "page")
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := intParam(query.Get("limit"), pagination.DefaultLimit, "limit")
	if err != nil {
		writeError(w, r, err)
		return
	}
	direction, err := pagination.ParseDirection(query.Get("sort_direction"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	q := service.HistoryQuery{
		Params: pagination.Params{Page: page, Limit: limit},
		Sorting: pagination.Sorting{
			SortBy:    query.Get("sort_by"),
			Direction: direction,
		},
		Address: query.Get("address"),
	}
	if n := query.Get("network"); n != "" {
		q.Network = models.ParseNetwork(n)
	}

	result, err := h.svc.GetHistory(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// GetRecord GET /wallet/history/{id}
func (h *WalletHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	record, err := h.svc.GetRecord(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// DeleteRecord DELETE /wallet/history/{id}
func (h *WalletHandler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.svc.DeleteRecord(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func intParam(raw string, fallback int, name string) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New(errors.ErrInvalidParams, fmt.Sprintf("%s must be an integer", name), err)
	}
	return v, nil
}

func idParam(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id == 0 {
		return 0, errors.New(errors.ErrInvalidParams, "id must be a positive integer", err)
	}
	return id, nil
}
