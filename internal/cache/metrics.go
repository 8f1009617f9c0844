package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	hits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_cache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	misses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_cache_misses_total",
			Help: "Total number of cache misses",
		},
	)

	flushes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_tag_flushes_total",
			Help: "Total number of cache tag flushes",
		},
		[]string{"tag"},
	)

	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_errors_total",
			Help: "Total number of cache operation errors (cache fails open)",
		},
		[]string{"operation"},
	)
)
