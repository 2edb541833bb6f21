package observer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gyptazy/plb/internal/world"
)

func TestMetricsSnapshotAndCounters(t *testing.T) {
	m := NewMetrics()

	w := world.NewWorldState()
	w.Nodes["pve1"] = &world.Node{Name: "pve1", Maintenance: true}
	w.Nodes["pve1"].Memory = world.ResourceStat{Total: 100, Used: 40}
	w.Nodes["pve1"].Memory.Recompute()

	assert.NotPanics(t, func() {
		m.SnapshotWorld(w)
		m.SetPlannedMigrations(3)
		m.ObserveCycleSeconds(1.5)
		m.IncSucceeded()
		m.IncFailed()
		m.IncAbandoned()
	})
	assert.NotNil(t, m.Handler())
}
