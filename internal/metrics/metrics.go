// Package metrics holds the Prometheus instruments of dirsync.
//
// Instruments are registered on an injected registry so tests and the CLI
// each get their own. A nil *Metrics is valid and records nothing.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups every instrument.
type Metrics struct {
	registry *prometheus.Registry

	// ActivityAppends counts log entries written, by action.
	ActivityAppends *prometheus.CounterVec

	// ActivityAppendFailures counts appends that failed for good.
	ActivityAppendFailures prometheus.Counter

	// ActivityAppendRetries counts appends retried after losing a parent race.
	ActivityAppendRetries prometheus.Counter

	// PropertyOutcomes counts property evaluations by final state.
	PropertyOutcomes *prometheus.CounterVec

	// ObjectChanges counts objects committed by a run, by action.
	ObjectChanges *prometheus.CounterVec

	// SourceRows counts rows read, by source.
	SourceRows *prometheus.CounterVec

	// RunDuration measures whole sync runs.
	RunDuration prometheus.Histogram
}

// New registers all instruments on a fresh registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry registers all instruments on reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		ActivityAppends: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dirsync_activity_appends_total",
			Help: "Activity log entries appended, by action",
		}, []string{"action"}),
		ActivityAppendFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "dirsync_activity_append_failures_total",
			Help: "Activity log appends that failed",
		}),
		ActivityAppendRetries: factory.NewCounter(prometheus.CounterOpts{
			Name: "dirsync_activity_append_retries_total",
			Help: "Activity log appends retried after a parent checksum conflict",
		}),
		PropertyOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dirsync_property_outcomes_total",
			Help: "Sync property evaluations, by final state",
		}, []string{"state"}),
		ObjectChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dirsync_object_changes_total",
			Help: "Objects committed by sync runs, by action",
		}, []string{"action"}),
		SourceRows: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dirsync_source_rows_total",
			Help: "Import source rows read, by source",
		}, []string{"source"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dirsync_run_duration_seconds",
			Help:    "Duration of sync runs in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Registry returns the registry the instruments live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Appended(action string) {
	if m != nil {
		m.ActivityAppends.WithLabelValues(action).Inc()
	}
}

func (m *Metrics) AppendFailed() {
	if m != nil {
		m.ActivityAppendFailures.Inc()
	}
}

func (m *Metrics) AppendRetried() {
	if m != nil {
		m.ActivityAppendRetries.Inc()
	}
}

func (m *Metrics) PropertyOutcome(state string) {
	if m != nil {
		m.PropertyOutcomes.WithLabelValues(state).Inc()
	}
}

func (m *Metrics) ObjectChanged(action string) {
	if m != nil {
		m.ObjectChanges.WithLabelValues(action).Inc()
	}
}

func (m *Metrics) RowRead(source string) {
	if m != nil {
		m.SourceRows.WithLabelValues(source).Inc()
	}
}

func (m *Metrics) ObserveRun(d time.Duration) {
	if m != nil {
		m.RunDuration.Observe(d.Seconds())
	}
}

// WriteTextfile writes every instrument in the text exposition format, for
// the node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}
