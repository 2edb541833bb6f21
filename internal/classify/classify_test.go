package classify

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gyptazy/plb/internal/featuregate"
	"github.com/gyptazy/plb/internal/logging"
	"github.com/gyptazy/plb/internal/world"
)

func testLogger() logging.Logger {
	return logging.New(io.Discard, "info")
}

func TestClassifyTagsAffinityAntiAffinityIgnorePin(t *testing.T) {
	w := world.NewWorldState()
	w.Nodes["pve1"] = &world.Node{Name: "pve1"}
	w.Guests["web1"] = &world.Guest{
		Name: "web1",
		Tags: []string{"plb_affinity_web", "plb_anti_affinity_db", "plb_ignore", "plb_pin_pve1"},
	}

	New(w, featuregate.Gate{}, testLogger()).Run()

	g := w.Guests["web1"]
	assert.Equal(t, []string{"plb_affinity_web"}, g.AffinityGroups)
	assert.Equal(t, []string{"plb_anti_affinity_db"}, g.AntiAffinityGroups)
	assert.True(t, g.Ignore)
	assert.Equal(t, []string{"pve1"}, g.NodeRelationships)
}

func TestClassifyUnknownNodeRelationshipIsDropped(t *testing.T) {
	w := world.NewWorldState()
	w.Nodes["pve1"] = &world.Node{Name: "pve1"}
	w.Guests["web1"] = &world.Guest{Name: "web1", Tags: []string{"plb_pin_ghostnode"}}

	New(w, featuregate.Gate{}, testLogger()).Run()

	assert.Empty(t, w.Guests["web1"].NodeRelationships)
}

func TestClassifyPoolMembershipContributesAffinity(t *testing.T) {
	w := world.NewWorldState()
	w.Nodes["pve1"] = &world.Node{Name: "pve1"}
	w.Guests["web1"] = &world.Guest{Name: "web1"}
	w.Pools["pool1"] = &world.Pool{Name: "pool1", Members: []string{"web1"}, Type: world.PoolAffinity}

	New(w, featuregate.Gate{}, testLogger()).Run()

	assert.Equal(t, []string{"pool:pool1"}, w.Guests["web1"].AffinityGroups)
}

func TestClassifySkipsHARulesWhenGated(t *testing.T) {
	w := world.NewWorldState()
	w.Nodes["pve1"] = &world.Node{Name: "pve1"}
	w.Nodes["pve2"] = &world.Node{Name: "pve2"}
	w.Guests["web1"] = &world.Guest{Name: "web1", ID: 100}
	w.HaRules["rule1"] = &world.HaRule{ID: "rule1", Type: world.HaAffinity, GuestID: []int{100}, Nodes: []string{"pve2"}}

	New(w, featuregate.Gate{SkipHARules: true}, testLogger()).Run()
	assert.Empty(t, w.Guests["web1"].AffinityGroups)

	w.Guests["web1"].AffinityGroups = nil
	New(w, featuregate.Gate{SkipHARules: false}, testLogger()).Run()
	assert.Equal(t, []string{"ha:rule1"}, w.Guests["web1"].AffinityGroups)
}

func TestLastStrictnessDefaultsTrueWhenNoPool(t *testing.T) {
	p := poolProvider{pools: map[string]*world.Pool{}}
	g := &world.Guest{Name: "web1"}
	assert.True(t, p.lastStrictness(g))
}

func TestLastStrictnessUsesOnlyMatchingPool(t *testing.T) {
	p := poolProvider{pools: map[string]*world.Pool{
		"a": {Name: "a", Members: []string{"web1"}, Strict: false},
		"b": {Name: "b", Members: []string{"other"}, Strict: true},
	}}
	g := &world.Guest{Name: "web1"}
	assert.False(t, p.lastStrictness(g))
}
