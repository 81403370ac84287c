package amazonpay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	apiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "amazonpay_api_requests_total",
		Help: "Total number of Amazon Pay API requests by operation and HTTP status code.",
	}, []string{"operation", "code"})

	apiRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "amazonpay_api_request_duration_seconds",
		Help:    "Amazon Pay API request latency including retries.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	contractViolationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "amazonpay_contract_violations_total",
		Help: "Amazon Pay responses that did not match the expected schema.",
	}, []string{"schema"})
)

// GetAPIRequestsTotal exposes the request counter for tests.
func GetAPIRequestsTotal() *prometheus.CounterVec { return apiRequestsTotal }

// GetAPIRequestDuration exposes the latency histogram for tests.
func GetAPIRequestDuration() *prometheus.HistogramVec { return apiRequestDuration }

// GetContractViolationsTotal exposes the contract violation counter for tests.
func GetContractViolationsTotal() *prometheus.CounterVec { return contractViolationsTotal }
