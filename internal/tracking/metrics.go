package tracking

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RecordsGauge tracks the number of live daily records.
	RecordsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "nutrid",
			Subsystem: "tracking",
			Name:      "records",
			Help:      "Number of daily tracking records held in memory",
		},
	)

	// InitializationsTotal counts Initialize calls.
	InitializationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "nutrid",
			Subsystem: "tracking",
			Name:      "initializations_total",
			Help:      "Total number of daily tracking initializations",
		},
	)

	// FoodsAddedTotal counts food entries appended to records.
	FoodsAddedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "nutrid",
			Subsystem: "tracking",
			Name:      "foods_added_total",
			Help:      "Total number of food entries recorded",
		},
	)

	// EvictionsTotal counts records removed by the retention sweeper.
	EvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "nutrid",
			Subsystem: "tracking",
			Name:      "evictions_total",
			Help:      "Total number of records evicted by the retention policy",
		},
	)

	// PublishErrorsTotal counts tracking events that failed to publish.
	PublishErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "nutrid",
			Subsystem: "tracking",
			Name:      "publish_errors_total",
			Help:      "Total number of tracking events that could not be published",
		},
	)
)
