package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultAck     = "ack"
	ResultNack    = "nack"
	ResultRetry   = "retry"
)

var (
	// MessagesSent counts attempts to hand messages to the broker.
	MessagesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queuebridge_messages_sent_total",
			Help: "Messages handed to the broker, by queue and result",
		},
		[]string{"queue", "result"},
	)

	// MessagesConsumed counts consumer results.
	MessagesConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queuebridge_messages_consumed_total",
			Help: "Messages consumed, by queue and result",
		},
		[]string{"queue", "result"},
	)

	// ConsumeDuration observes how long consumer invocations take.
	ConsumeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "queuebridge_consume_duration_seconds",
			Help:    "Duration of consumer invocations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"queue"},
	)
)

// Handler returns an http.Handler that serves metrics in the Prometheus
// exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
