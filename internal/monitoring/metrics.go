package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ticksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dataexchange",
			Subsystem: "monitoring",
			Name:      "ticks_total",
			Help:      "Number of monitoring executions",
		},
		[]string{"script", "status"}, // success or error
	)

	documentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dataexchange",
			Subsystem: "monitoring",
			Name:      "documents_total",
			Help:      "Number of XML documents routed to the sink",
		},
		[]string{"script"},
	)

	tickDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "dataexchange",
			Subsystem: "monitoring",
			Name:      "tick_duration_seconds",
			Help:      "Time taken by one monitoring execution",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
		},
		[]string{"script"},
	)
)
