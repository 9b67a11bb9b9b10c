package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crm",
		Subsystem: "stats",
		Name:      "cache_lookups_total",
		Help:      "Cache lookups by cache name and result (hit, miss, error).",
	}, []string{"cache", "result"})

	sourceFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crm",
		Subsystem: "stats",
		Name:      "source_failures_total",
		Help:      "Record source queries that failed or timed out and were treated as empty.",
	}, []string{"kind"})

	payloadBuildSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "crm",
		Subsystem: "stats",
		Name:      "payload_build_seconds",
		Help:      "Time spent building an uncached stats payload.",
		Buckets:   prometheus.DefBuckets,
	})
)
