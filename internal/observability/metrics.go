package observability

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	queries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsletter",
			Subsystem: "iq",
			Name:      "queries_total",
			Help:      "Total newsletter IQ queries.",
		},
		[]string{"kind", "operation", "success"},
	)
	queryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "newsletter",
			Subsystem: "iq",
			Name:      "query_duration_seconds",
			Help:      "Newsletter IQ round-trip and parse duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind", "operation", "success"},
	)
	decryptions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "newsletter",
			Subsystem: "decrypt",
			Name:      "messages_total",
			Help:      "Fetched channel messages passed to the decryptor.",
		},
		[]string{"success"},
	)
	decryptDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "newsletter",
			Subsystem: "decrypt",
			Name:      "duration_seconds",
			Help:      "Per-message decryption duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"success"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(queries, queryDuration, decryptions, decryptDuration)
	})
}

// RecordQuery records one request; kind is "tree" or "mex".
func RecordQuery(kind, operation string, success bool, duration time.Duration) {
	RegisterMetrics()
	successLabel := strconv.FormatBool(success)
	queries.WithLabelValues(kind, operation, successLabel).Inc()
	queryDuration.WithLabelValues(kind, operation, successLabel).Observe(duration.Seconds())
}

func RecordDecrypt(success bool, duration time.Duration) {
	RegisterMetrics()
	successLabel := strconv.FormatBool(success)
	decryptions.WithLabelValues(successLabel).Inc()
	decryptDuration.WithLabelValues(successLabel).Observe(duration.Seconds())
}
