// Package metrics exposes benchmark measurements as Prometheus collectors.
//
// A nil *Metrics is valid and records nothing, so callers never need to
// check whether metrics are enabled.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace prefixes every collector name.
const Namespace = "piazza"

// Metrics holds the benchmark collectors.
type Metrics struct {
	loginDuration   prometheus.Histogram
	logins          *prometheus.CounterVec
	migrateDuration *prometheus.HistogramVec
	rowsWritten     *prometheus.CounterVec
	rows            prometheus.Gauge
	views           prometheus.Gauge
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		loginDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "login_duration_seconds",
			Help:      "Time to create a tenant universe and write its context row.",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		logins: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "logins_total",
			Help:      "Tenant logins by outcome.",
		}, []string{"outcome"}),
		migrateDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "migrate_duration_seconds",
			Help:      "Time to install a recipe or security config.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"phase"}),
		rowsWritten: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "rows_written_total",
			Help:      "Rows written through engine inputs.",
		}, []string{"relation"}),
		rows: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "materialized_rows",
			Help:      "Rows across all outputs at the last size check.",
		}),
		views: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "leaf_views",
			Help:      "Number of outputs at the last size check.",
		}),
	}
}

// ObserveLogin records one login attempt.
func (m *Metrics) ObserveLogin(d time.Duration, err error) {
	if m == nil {
		return
	}
	m.loginDuration.Observe(d.Seconds())
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.logins.WithLabelValues(outcome).Inc()
}

// ObserveMigrate records one install phase ("schema", "security", "recipe").
func (m *Metrics) ObserveMigrate(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.migrateDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// AddRows counts rows written to relation.
func (m *Metrics) AddRows(relation string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.rowsWritten.WithLabelValues(relation).Add(float64(n))
}

// SetMaterialization records the result of a size check.
func (m *Metrics) SetMaterialization(rows, views int) {
	if m == nil {
		return
	}
	m.rows.Set(float64(rows))
	m.views.Set(float64(views))
}
