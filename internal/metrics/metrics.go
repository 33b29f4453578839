package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "studytracker"

// Write results.
const (
	ResultOK         = "ok"
	ResultInvalid    = "invalid"
	ResultConstraint = "constraint"
	ResultNotFound   = "not_found"
	ResultError      = "error"
)

var (
	writes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "writes_total",
		Help:      "Create, update and delete calls by entity and result.",
	}, []string{"entity", "op", "result"})

	cascaded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cascade_deleted_rows_total",
		Help:      "Rows removed as dependents of a deleted parent.",
	}, []string{"entity"})

	sessionLength = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "study_session_duration_hours",
		Help:      "Derived duration of saved study sessions.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 3, 4, 6, 8, 12, 24},
	})

	totalsRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "totals_refresh_total",
		Help:      "Daily total cache refreshes by result.",
	}, []string{"result"})

	totalsLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "totals_cache_lookups_total",
		Help:      "Daily total cache lookups by outcome.",
	}, []string{"outcome"})
)

func ObserveWrite(entity, op, result string) {
	writes.WithLabelValues(entity, op, result).Inc()
}

func ObserveCascade(entity string, n int) {
	if n > 0 {
		cascaded.WithLabelValues(entity).Add(float64(n))
	}
}

func ObserveSession(d time.Duration) {
	sessionLength.Observe(d.Hours())
}

func ObserveTotalsRefresh(result string) {
	totalsRefreshes.WithLabelValues(result).Inc()
}

// ObserveTotalsLookup records a cache hit or miss.
func ObserveTotalsLookup(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	totalsLookups.WithLabelValues(outcome).Inc()
}
