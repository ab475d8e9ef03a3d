package job

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	batchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "indexing_batches_total",
			Help: "Batches by result: completed, rejected_running, rejected_empty",
		},
		[]string{"result"},
	)

	batchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "indexing_batch_duration_seconds",
			Help:    "Wall time of a completed batch",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
	)

	jobInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "indexing_job_in_progress",
			Help: "1 while a batch is running",
		},
	)
)
