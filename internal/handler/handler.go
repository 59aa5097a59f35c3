package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"tron-wallet-explorer/pkg/errors"
	"tron-wallet-explorer/pkg/logger"
)

type errorResponse struct {
	Detail string `json:"detail"`
	Code   string `json:"code"`
}

func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.WithError(err).Warn("Failed to write response")
	}
}

// writeError 状态码由错误码决定，500 不透出内部信息
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	code := errors.CodeOf(err)
	if code == "" {
		code = "INTERNAL_ERROR"
	}

	if status >= http.StatusInternalServerError {
		logger.WithFields(map[string]interface{}{
			"method": r.Method,
			"path":   r.URL.Path,
			"code":   code,
		}).WithError(err).Error("Request failed")
	}

	writeJSON(w, status, errorResponse{
		Detail: errors.PublicMessage(err),
		Code:   code,
	})
}

func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
