package cache

import "github.com/prometheus/client_golang/prometheus"

var (
	// cacheHits counts reads answered from the cache, by key kind
	// (entity/list/agg — the third key segment).
	cacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache reads answered from the cache.",
		},
		[]string{"kind"},
	)

	// cacheMisses counts reads that fell through to the database.
	cacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache reads that missed.",
		},
		[]string{"kind"},
	)

	// cacheErrors counts swallowed backend failures by operation. A
	// rising rate here with a flat hit rate means the backend is down
	// and every read is paying the database price.
	cacheErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_errors_total",
			Help: "Total number of cache backend failures (swallowed).",
		},
		[]string{"op"},
	)

	// cacheInvalidations counts keys removed by explicit invalidation,
	// both single-key deletes and pattern deletes.
	cacheInvalidations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_invalidations_total",
			Help: "Total number of cache keys removed by invalidation.",
		},
	)
)

func init() {
	prometheus.MustRegister(cacheHits, cacheMisses, cacheErrors, cacheInvalidations)
}
