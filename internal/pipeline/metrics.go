package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tinywideclouds/go-indexing-service/pkg/notify"
)

var (
	channelOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexing_outcomes_total",
			Help: "Total channel outcomes by channel and status",
		},
		[]string{"channel", "status"},
	)

	channelDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "indexing_channel_duration_seconds",
			Help:    "Duration of a single channel call",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"channel"},
	)
)

func recordOutcome(o notify.Outcome, elapsed time.Duration) {
	channelOutcomes.WithLabelValues(o.Channel, string(o.Status)).Inc()
	channelDuration.WithLabelValues(o.Channel).Observe(elapsed.Seconds())
}
