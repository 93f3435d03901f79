// Package metrics keeps per-run counters in a private Prometheus registry and
// writes them for the node_exporter textfile collector.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"confops/internal/queue"
)

const namespace = "confops"

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Metrics holds the collectors of one invocation.
type Metrics struct {
	registry *prometheus.Registry

	Items       *prometheus.CounterVec
	Failures    *prometheus.CounterVec
	QueueItems  *prometheus.GaugeVec
	LastRun     *prometheus.GaugeVec
	RunDuration *prometheus.GaugeVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Items handled per stage and outcome.",
		}, []string{"stage", "outcome"}),
		Failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Failed invocations per stage and failure kind.",
		}, []string{"stage", "kind"}),
		QueueItems: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_items",
			Help:      "Items per workflow queue at the end of the run.",
		}, []string{"queue"}),
		LastRun: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the command last finished.",
		}, []string{"command"}),
		RunDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_duration_seconds",
			Help:      "Wall time of the last run of the command.",
		}, []string{"command"}),
	}
	m.registry.MustRegister(m.Items, m.Failures, m.QueueItems, m.LastRun, m.RunDuration)
	return m
}

// Registry exposes the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Add counts n items of stage with outcome.
func (m *Metrics) Add(stage, outcome string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Items.WithLabelValues(stage, outcome).Add(float64(n))
}

// Fail counts a failed invocation of stage.
func (m *Metrics) Fail(stage, kind string) {
	if m == nil {
		return
	}
	m.Failures.WithLabelValues(stage, kind).Inc()
}

// ObserveRun records when command finished and how long it took.
func (m *Metrics) ObserveRun(command string, started, finished time.Time) {
	if m == nil {
		return
	}
	m.LastRun.WithLabelValues(command).Set(float64(finished.Unix()))
	m.RunDuration.WithLabelValues(command).Set(finished.Sub(started).Seconds())
}

// ObserveQueues sets the queue gauges from the store.
func (m *Metrics) ObserveQueues(ctx context.Context, store queue.Store) error {
	if m == nil || store == nil {
		return nil
	}
	counts, err := queue.Counts(ctx, store)
	if err != nil {
		return err
	}
	for name, n := range counts {
		m.QueueItems.WithLabelValues(name.String()).Set(float64(n))
	}
	return nil
}

// WriteTextfile writes the registry to path atomically. An empty path is a
// no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
