package repo

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mkarras/go-entity-store/internal/domain"
)

var (
	// repoOps counts repository operations by entity, operation, and
	// outcome (ok/error). NotFound counts as ok: the store answered.
	repoOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "repository_operations_total",
			Help: "Total number of repository operations.",
		},
		[]string{"entity", "op", "outcome"},
	)

	// repoDur records operation latency in seconds by entity and
	// operation. Status is omitted to keep histogram cardinality low.
	repoDur = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "repository_operation_duration_seconds",
			Help:    "Duration of repository operations in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"entity", "op"},
	)

	// auditWrites counts committed audit records by entity and action.
	auditWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_records_total",
			Help: "Total number of audit records written.",
		},
		[]string{"entity", "action"},
	)
)

func init() {
	prometheus.MustRegister(repoOps, repoDur, auditWrites)
}

// observe records one finished repository operation. Caller errors
// (validation, conflicts, not-found) are infrastructure successes, so
// only store failures count as errors here.
func observe(entity, op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil && !domain.IsCallerError(err) {
		outcome = "error"
	}
	repoOps.WithLabelValues(entity, op, outcome).Inc()
	repoDur.WithLabelValues(entity, op).Observe(time.Since(start).Seconds())
}
