package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Delivery attempts partitioned by channel and outcome
	deliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "communication_deliveries_total",
			Help: "Total number of delivery attempts recorded",
		},
		[]string{"channel", "status"},
	)

	// Attempts whose delivery row could not be written
	deliveryBookkeepingErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "communication_delivery_bookkeeping_errors_total",
			Help: "Delivery attempts that could not be recorded",
		},
		[]string{"channel"},
	)

	// Dispatch runs partitioned by final communication status
	dispatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "communication_dispatches_total",
			Help: "Total number of dispatch runs by final status",
		},
		[]string{"status"},
	)

	dispatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "communication_dispatch_duration_seconds",
			Help:    "Duration of dispatch runs in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	dispatchRecipients = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "communication_dispatch_recipients",
			Help:    "Number of recipients resolved per dispatch",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)
)
