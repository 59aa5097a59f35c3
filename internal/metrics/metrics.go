package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ExplorerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "explorer_requests_total",
			Help: "Total number of explorer calls by network, method and outcome",
		},
		[]string{"network", "method", "outcome"},
	)

	ExplorerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "explorer_request_duration_seconds",
			Help:    "Duration of explorer calls",
			Buckets: []float64{.05, .1, .25, .5, 1, 2, 5, 10},
		},
		[]string{"network", "method"},
	)

	WalletLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_lookups_total",
			Help: "Total number of wallet info lookups by network and outcome",
		},
		[]string{"network", "outcome"},
	)

	PersistedRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wallet_records_persisted_total",
			Help: "Total number of wallet records written by policy and outcome",
		},
		[]string{"policy", "outcome"},
	)

	QueueJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_jobs_total",
			Help: "Total number of queue jobs by driver, stage and outcome",
		},
		[]string{"driver", "stage", "outcome"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests by route and status",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Outcome 把错误折叠成低基数的标签值
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// ObserveExplorer 在调用结束时用 defer 记录
func ObserveExplorer(network, method string, start time.Time, err error) {
	ExplorerRequests.WithLabelValues(network, method, Outcome(err)).Inc()
	ExplorerDuration.WithLabelValues(network, method).Observe(time.Since(start).Seconds())
}

func Handler() http.Handler {
	return promhttp.Handler()
}
