package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	settlementsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlements_processed_total",
			Help: "Total number of installment settlements processed",
		},
		[]string{"status"},
	)

	transactionsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transactions_created_total",
			Help: "Total number of transactions created",
		},
		[]string{"status", "method"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
	prometheus.MustRegister(settlementsProcessedTotal)
	prometheus.MustRegister(transactionsCreatedTotal)
}

// ObserveHTTPRequest records one served HTTP request.
func ObserveHTTPRequest(method, endpoint, status string, seconds float64) {
	httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint).Observe(seconds)
}

// RecordSettlementProcessed counts one installment settlement attempt outcome.
func RecordSettlementProcessed(status string) {
	settlementsProcessedTotal.WithLabelValues(status).Inc()
}

// RecordTransactionCreated counts one created transaction by initial status
// and funding method.
func RecordTransactionCreated(status, method string) {
	transactionsCreatedTotal.WithLabelValues(status, method).Inc()
}

// Handler exposes the prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
