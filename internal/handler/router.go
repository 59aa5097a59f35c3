package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"tron-wallet-explorer/internal/metrics"
	"tron-wallet-explorer/internal/models"
	"tron-wallet-explorer/internal/service"
)

type RouterConfig struct {
	CORSOrigins    []string
	DefaultNetwork models.Network
	MetricsEnabled bool
	MetricsPath    string
}

func NewRouter(svc *service.WalletService, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog)
	r.Use(middleware.Recoverer)

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	wallets := NewWalletHandler(svc, cfg.DefaultNetwork)

	r.Get("/health", HandleHealth)
	if cfg.MetricsEnabled {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, metrics.Handler())
	}

	r.Route("/wallet", func(r chi.Router) {
		r.Post("/", wallets.CreateWallet)
		r.Get("/history", wallets.ListHistory)
		r.Get("/history/{id}", wallets.GetRecord)
		r.Delete("/history/{id}", wallets.DeleteRecord)
	})

	return r
}
