package observer

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyptazy/plb/internal/world"
)

// Metrics is the per-cycle snapshot and counters exposed via the optional
// embedded HTTP status service (spec.md 1's out-of-scope-as-behavior,
// in-scope-as-collaborator surface).
type Metrics struct {
	registry *prometheus.Registry

	nodeUsedPercent     *prometheus.GaugeVec
	nodeMaintenance     *prometheus.GaugeVec
	migrationsPlanned   prometheus.Gauge
	migrationsSucceeded prometheus.Counter
	migrationsFailed    prometheus.Counter
	migrationsAbandoned prometheus.Counter
	cycleDuration       prometheus.Histogram
}

// NewMetrics builds and registers the status service's gauges/counters.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		nodeUsedPercent: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "plb", Name: "node_used_percent", Help: "Per-node, per-resource used percentage.",
		}, []string{"node", "resource"}),
		nodeMaintenance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "plb", Name: "node_maintenance", Help: "1 if the node is in maintenance mode.",
		}, []string{"node"}),
		migrationsPlanned: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "plb", Name: "migrations_planned", Help: "Migrations planned in the most recent cycle.",
		}),
		migrationsSucceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "plb", Name: "migrations_succeeded_total", Help: "Cumulative successful migrations.",
		}),
		migrationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "plb", Name: "migrations_failed_total", Help: "Cumulative failed migrations.",
		}),
		migrationsAbandoned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "plb", Name: "migrations_abandoned_total", Help: "Cumulative soft-timeout abandoned migrations.",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "plb", Name: "cycle_duration_seconds", Help: "Wall-clock duration of a full pipeline cycle.",
		}),
	}
	reg.MustRegister(m.nodeUsedPercent, m.nodeMaintenance, m.migrationsPlanned,
		m.migrationsSucceeded, m.migrationsFailed, m.migrationsAbandoned, m.cycleDuration)
	return m
}

// SnapshotWorld records per-node gauges from the current world state.
func (m *Metrics) SnapshotWorld(w *world.WorldState) {
	for name, node := range w.Nodes {
		m.nodeUsedPercent.WithLabelValues(name, "cpu").Set(node.CPU.UsedPercent)
		m.nodeUsedPercent.WithLabelValues(name, "memory").Set(node.Memory.UsedPercent)
		m.nodeUsedPercent.WithLabelValues(name, "disk").Set(node.Disk.UsedPercent)
		maintenance := 0.0
		if node.Maintenance {
			maintenance = 1.0
		}
		m.nodeMaintenance.WithLabelValues(name).Set(maintenance)
	}
}

func (m *Metrics) SetPlannedMigrations(n int) { m.migrationsPlanned.Set(float64(n)) }
func (m *Metrics) ObserveCycleSeconds(s float64) { m.cycleDuration.Observe(s) }
func (m *Metrics) IncSucceeded()                 { m.migrationsSucceeded.Inc() }
func (m *Metrics) IncFailed()                    { m.migrationsFailed.Inc() }
func (m *Metrics) IncAbandoned()                 { m.migrationsAbandoned.Inc() }

// Handler returns the /metrics HTTP handler for the optional embedded
// status service.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
