package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	EventsEnqueued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autotagger_events_enqueued_total",
		Help: "Total number of events placed on the batch dispatch queue.",
	})

	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "autotagger_events_dropped_total",
		Help: "Total number of events rejected due to a full queue.",
	})

	EventsDispatched = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autotagger_events_dispatched_total",
		Help: "Total number of events dispatched, labelled by status and reason.",
	}, []string{"status", "reason"})

	ResourcesTagged = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autotagger_resources_total",
		Help: "Total number of resource tagging attempts, labelled by family and outcome.",
	}, []string{"family", "outcome"})

	DispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "autotagger_dispatch_duration_ms",
		Help:    "End-to-end dispatch latency in milliseconds.",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	})

	QueueUtilization = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "autotagger_queue_utilization_ratio",
		Help: "Current batch queue utilization (0 to 1).",
	})

	ClientCacheSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "autotagger_client_cache_entries",
		Help: "Number of cached per-region SDK configs and service clients.",
	})

	PolicyReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "autotagger_policy_reloads_total",
		Help: "Total number of tagging policy reloads, labelled by result.",
	}, []string{"result"})
)
