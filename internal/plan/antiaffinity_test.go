package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gyptazy/plb/internal/world"
)

func TestApplyAntiAffinityPicksUnusedNode(t *testing.T) {
	w := world.NewWorldState()
	w.Nodes["pve1"] = &world.Node{Name: "pve1"}
	w.Nodes["pve2"] = &world.Node{Name: "pve2"}

	w.Groups.AntiAffinity["grp"] = &world.AntiAffinityGroup{
		Guests:    []string{"a", "b"},
		UsedNodes: []string{"pve1"},
	}
	g := &world.Guest{Name: "b", AntiAffinityGroups: []string{"grp"}}

	node, ok := ApplyAntiAffinity(w, g)
	assert.True(t, ok)
	assert.Equal(t, "pve2", node)
	assert.True(t, w.Groups.AntiAffinity["grp"].HasUsedNode("pve2"))
}

// TestApplyAntiAffinityNoFeasiblePlacementPreservesPriorValue exercises
// spec.md 9's fourth Open Question: when every node is already claimed,
// no move is planned and the prior scratch value survives untouched.
func TestApplyAntiAffinityNoFeasiblePlacementPreservesPriorValue(t *testing.T) {
	w := world.NewWorldState()
	w.Nodes["pve1"] = &world.Node{Name: "pve1"}
	w.Meta.Scratch.BalanceNextNode = "pve1"

	w.Groups.AntiAffinity["grp"] = &world.AntiAffinityGroup{
		Guests:    []string{"a", "b"},
		UsedNodes: []string{"pve1"},
	}
	g := &world.Guest{Name: "b", AntiAffinityGroups: []string{"grp"}}

	node, ok := ApplyAntiAffinity(w, g)
	assert.False(t, ok)
	assert.Equal(t, "", node)
	assert.Equal(t, "pve1", w.Meta.Scratch.BalanceNextNode)
}

func TestApplyAntiAffinitySingleMemberGroupIsNoop(t *testing.T) {
	w := world.NewWorldState()
	w.Nodes["pve1"] = &world.Node{Name: "pve1"}
	w.Groups.AntiAffinity["grp"] = &world.AntiAffinityGroup{Guests: []string{"a"}}
	g := &world.Guest{Name: "a", AntiAffinityGroups: []string{"grp"}}

	_, ok := ApplyAntiAffinity(w, g)
	assert.False(t, ok)
}

func TestApplyAntiAffinityProcessedGuestSkipped(t *testing.T) {
	w := world.NewWorldState()
	w.Nodes["pve1"] = &world.Node{Name: "pve1"}
	w.Groups.AntiAffinity["grp"] = &world.AntiAffinityGroup{Guests: []string{"a", "b"}}
	g := &world.Guest{Name: "b", AntiAffinityGroups: []string{"grp"}, Processed: true}

	_, ok := ApplyAntiAffinity(w, g)
	assert.False(t, ok)
}
