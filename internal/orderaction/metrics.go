package orderaction

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/yourorg/amazonpay-order-admin/internal/policy"
)

// unknownActionLabel replaces action names outside the known set in metric
// labels.
const unknownActionLabel = "unknown"

// Dispatch outcomes.
const (
	outcomeOK                 = "ok"
	outcomeError              = "error"
	outcomeSkipped            = "skipped"
	outcomeUnknownAction      = "unknown_action"
	outcomeRefundRecordFailed = "refund_record_failed"
)

var (
	orderActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_actions_total",
		Help: "Order actions dispatched, by action and outcome.",
	}, []string{"action", "outcome"})

	orderActionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "order_action_duration_seconds",
		Help:    "Time spent dispatching an order action.",
		Buckets: prometheus.DefBuckets,
	}, []string{"action"})
)

// GetOrderActionsTotal returns the dispatch counter.
func GetOrderActionsTotal() *prometheus.CounterVec { return orderActionsTotal }

// GetOrderActionDuration returns the dispatch latency histogram.
func GetOrderActionDuration() *prometheus.HistogramVec { return orderActionDuration }

// actionLabel bounds the action label to the known actions.
func actionLabel(action string) string {
	switch action {
	case policy.ActionCapture, policy.ActionCloseAuthorization, policy.ActionRefund:
		return action
	}
	return unknownActionLabel
}
