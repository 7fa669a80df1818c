// Package metrics holds the Prometheus instruments of the vault. All methods
// are safe on a nil *Metrics, which components use when metrics are off.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	// Artifact uploads by artifact and outcome (ok, failed).
	Uploads *prometheus.CounterVec

	// Aggregate read-modify-write cycles by aggregate (monthly, daily, lookup)
	// and outcome (ok, failed).
	IndexUpdates *prometheus.CounterVec

	// Conditional writes rejected because another writer got there first.
	IndexConflicts *prometheus.CounterVec

	QueryLatency *prometheus.HistogramVec

	// Aggregates rewritten by the reconciler.
	Reconciled *prometheus.CounterVec
}

// New registers every instrument with reg, or with a private registry when
// reg is nil.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		Uploads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kycvault_artifact_uploads_total",
			Help: "Artifact uploads by artifact and outcome",
		}, []string{"artifact", "outcome"}),

		IndexUpdates: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kycvault_index_updates_total",
			Help: "Secondary index updates by aggregate and outcome",
		}, []string{"aggregate", "outcome"}),

		IndexConflicts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kycvault_index_conflicts_total",
			Help: "Conditional index writes rejected by a concurrent update",
		}, []string{"aggregate"}),

		QueryLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kycvault_query_duration_seconds",
			Help:    "Duration of query engine operations",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"op"}),

		Reconciled: f.NewCounterVec(prometheus.CounterOpts{
			Name: "kycvault_reconciled_aggregates_total",
			Help: "Aggregates rewritten by reconciliation",
		}, []string{"aggregate"}),
	}
}

func outcome(err error) string {
	if err != nil {
		return "failed"
	}
	return "ok"
}

func (m *Metrics) ObserveUpload(artifact string, err error) {
	if m != nil {
		m.Uploads.WithLabelValues(artifact, outcome(err)).Inc()
	}
}

func (m *Metrics) ObserveIndexUpdate(aggregate string, err error) {
	if m != nil {
		m.IndexUpdates.WithLabelValues(aggregate, outcome(err)).Inc()
	}
}

func (m *Metrics) IncConflict(aggregate string) {
	if m != nil {
		m.IndexConflicts.WithLabelValues(aggregate).Inc()
	}
}

// ObserveQuery records the time since start under op.
func (m *Metrics) ObserveQuery(op string, start time.Time) {
	if m != nil {
		m.QueryLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) IncReconciled(aggregate string) {
	if m != nil {
		m.Reconciled.WithLabelValues(aggregate).Inc()
	}
}
