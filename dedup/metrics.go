package dedup

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the resolver's prometheus collectors.
type Metrics struct {
	runs          *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	duplicateKeys *prometheus.CounterVec
	deletedRows   *prometheus.CounterVec
}

// NewMetrics creates the resolver metrics and registers them with reg. A
// nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lakeutil_dedup_runs_total",
			Help: "Deduplication runs by mode and outcome",
		}, []string{"mode", "outcome"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lakeutil_dedup_duration_seconds",
			Help:    "Duration of deduplication runs",
			Buckets: prometheus.DefBuckets,
		}, []string{"mode"}),
		duplicateKeys: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lakeutil_dedup_duplicate_keys_total",
			Help: "Distinct duplicate keys found",
		}, []string{"mode"}),
		deletedRows: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lakeutil_dedup_deleted_rows_total",
			Help: "Rows deleted by deduplication",
		}, []string{"mode"}),
	}
}

func (m *Metrics) observe(mode string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(mode, outcome(err)).Inc()
	m.duration.WithLabelValues(mode).Observe(time.Since(start).Seconds())
}

func (m *Metrics) found(mode string, keys int64) {
	if m == nil {
		return
	}
	m.duplicateKeys.WithLabelValues(mode).Add(float64(keys))
}

func (m *Metrics) deleted(mode string, rows int64) {
	if m == nil {
		return
	}
	m.deletedRows.WithLabelValues(mode).Add(float64(rows))
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrSchemaMismatch):
		return "rejected"
	default:
		return "failed"
	}
}
