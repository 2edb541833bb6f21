package score

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gyptazy/plb/internal/config"
	"github.com/gyptazy/plb/internal/world"
)

func TestIsHot(t *testing.T) {
	t.Run("avg pair over threshold", func(t *testing.T) {
		q := world.Quadruple{FullAvg: 60, SomeAvg: 80}
		assert.True(t, IsHot(q, Thresholds{Full: 50, Some: 70, Spikes: 100}))
	})
	t.Run("spike alone trips it", func(t *testing.T) {
		q := world.Quadruple{FullSpike: 95}
		assert.True(t, IsHot(q, Thresholds{Full: 50, Some: 70, Spikes: 90}))
	})
	t.Run("cool", func(t *testing.T) {
		q := world.Quadruple{FullAvg: 10, SomeAvg: 10, FullSpike: 10}
		assert.False(t, IsHot(q, Thresholds{Full: 50, Some: 70, Spikes: 90}))
	})
}

func newTestWorld() *world.WorldState {
	w := world.NewWorldState()
	w.Nodes["pve1"] = &world.Node{Name: "pve1"}
	w.Nodes["pve2"] = &world.Node{Name: "pve2"}
	w.Nodes["pve1"].Memory = world.ResourceStat{Total: 100}
	w.Nodes["pve2"].Memory = world.ResourceStat{Total: 100}
	return w
}

// TestShouldBalanceThresholdUnsetPreservesPriorValue exercises spec.md 9's
// first Open Question: when no absolute threshold is configured for the
// chosen method, the delta check's result must be the final answer, not
// silently forced to either true or false by the threshold branch.
func TestShouldBalanceThresholdUnsetPreservesPriorValue(t *testing.T) {
	w := newTestWorld()
	w.Guests["g1"] = &world.Guest{Name: "g1", NodeCurrent: "pve1"}
	w.Guests["g1"].Memory = world.ResourceStat{Total: 5, Used: 5}
	w.Guests["g2"] = &world.Guest{Name: "g2", NodeCurrent: "pve2"}
	w.Guests["g2"].Memory = world.ResourceStat{Total: 5, Used: 5}
	w.Nodes["pve1"].Memory.Used = 5
	w.Nodes["pve2"].Memory.Used = 5
	w.Nodes["pve1"].Memory.Recompute()
	w.Nodes["pve2"].Memory.Recompute()

	cfg := &config.Balancing{Enable: true, Method: "memory", Mode: "used", Balanciness: 50}
	// delta between the two nodes' used_percent is 0, well under balanciness,
	// and no memory_threshold is set.
	s := New(w, cfg)
	s.assignBaselines()
	assert.False(t, s.shouldBalance())
}

func TestShouldBalanceDeltaOverBalanciness(t *testing.T) {
	w := newTestWorld()
	w.Nodes["pve1"].Memory.Used = 90
	w.Nodes["pve2"].Memory.Used = 10
	w.Nodes["pve1"].Memory.Recompute()
	w.Nodes["pve2"].Memory.Recompute()

	cfg := &config.Balancing{Enable: true, Method: "memory", Mode: "used", Balanciness: 10}
	s := New(w, cfg)
	assert.True(t, s.shouldBalance())
}

func TestShouldBalanceAbsoluteThresholdTrips(t *testing.T) {
	w := newTestWorld()
	w.Nodes["pve1"].Memory.Used = 85
	w.Nodes["pve2"].Memory.Used = 84
	w.Nodes["pve1"].Memory.Recompute()
	w.Nodes["pve2"].Memory.Recompute()

	cfg := &config.Balancing{Enable: true, Method: "memory", Mode: "used", Balanciness: 50, MemoryThreshold: 80}
	s := New(w, cfg)
	assert.True(t, s.shouldBalance())
}

func TestShouldBalanceDisabledAlwaysFalse(t *testing.T) {
	w := newTestWorld()
	cfg := &config.Balancing{Enable: false}
	s := New(w, cfg)
	assert.False(t, s.shouldBalance())
}

func TestGroupsCurrentlyViolatedAffinitySplit(t *testing.T) {
	w := newTestWorld()
	w.Guests["a"] = &world.Guest{Name: "a", NodeCurrent: "pve1"}
	w.Guests["b"] = &world.Guest{Name: "b", NodeCurrent: "pve2"}
	w.Groups.Affinity["grp"] = &world.AffinityGroup{Guests: []string{"a", "b"}}

	s := New(w, &config.Balancing{})
	assert.True(t, s.groupsCurrentlyViolated())
}

func TestGroupsCurrentlyViolatedAntiAffinityColocated(t *testing.T) {
	w := newTestWorld()
	w.Guests["a"] = &world.Guest{Name: "a", NodeCurrent: "pve1"}
	w.Guests["b"] = &world.Guest{Name: "b", NodeCurrent: "pve1"}
	w.Groups.AntiAffinity["grp"] = &world.AntiAffinityGroup{Guests: []string{"a", "b"}}

	s := New(w, &config.Balancing{})
	assert.True(t, s.groupsCurrentlyViolated())
}

func TestGroupsNotViolatedWhenSatisfied(t *testing.T) {
	w := newTestWorld()
	w.Guests["a"] = &world.Guest{Name: "a", NodeCurrent: "pve1"}
	w.Guests["b"] = &world.Guest{Name: "b", NodeCurrent: "pve1"}
	w.Groups.Affinity["grp"] = &world.AffinityGroup{Guests: []string{"a", "b"}}

	s := New(w, &config.Balancing{})
	assert.False(t, s.groupsCurrentlyViolated())
}
