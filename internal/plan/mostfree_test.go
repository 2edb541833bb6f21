package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gyptazy/plb/internal/world"
)

func buildNode(name string, usedPercent float64, maintenance bool) *world.Node {
	n := &world.Node{Name: name, Maintenance: maintenance}
	n.Memory = world.ResourceStat{Total: 100, Used: usedPercent}
	n.Memory.Recompute()
	return n
}

func TestMostFreeNodePicksLowestUsage(t *testing.T) {
	w := world.NewWorldState()
	w.Nodes["pve1"] = buildNode("pve1", 80, false)
	w.Nodes["pve2"] = buildNode("pve2", 20, false)
	w.Nodes["pve3"] = buildNode("pve3", 50, false)

	node, ok := MostFreeNode(w, world.ResourceMemory, world.ModeUsed, nil)
	assert.True(t, ok)
	assert.Equal(t, "pve2", node)
	assert.Equal(t, "pve2", w.Meta.Scratch.BalanceNextNode)
}

func TestMostFreeNodeExcludesMaintenance(t *testing.T) {
	w := world.NewWorldState()
	w.Nodes["pve1"] = buildNode("pve1", 10, true)
	w.Nodes["pve2"] = buildNode("pve2", 20, false)

	node, ok := MostFreeNode(w, world.ResourceMemory, world.ModeUsed, nil)
	assert.True(t, ok)
	assert.Equal(t, "pve2", node)
}

func TestMostFreeNodeTieBreaksLexicographically(t *testing.T) {
	w := world.NewWorldState()
	w.Nodes["pveB"] = buildNode("pveB", 50, false)
	w.Nodes["pveA"] = buildNode("pveA", 50, false)

	node, ok := MostFreeNode(w, world.ResourceMemory, world.ModeUsed, nil)
	assert.True(t, ok)
	assert.Equal(t, "pveA", node)
}

func TestMostFreeNodeRespectsAllowedList(t *testing.T) {
	w := world.NewWorldState()
	w.Nodes["pve1"] = buildNode("pve1", 10, false)
	w.Nodes["pve2"] = buildNode("pve2", 90, false)

	node, ok := MostFreeNode(w, world.ResourceMemory, world.ModeUsed, []string{"pve2"})
	assert.True(t, ok)
	assert.Equal(t, "pve2", node)
}

func TestMostFreeNodeNoCandidates(t *testing.T) {
	w := world.NewWorldState()
	w.Nodes["pve1"] = buildNode("pve1", 10, true)

	_, ok := MostFreeNode(w, world.ResourceMemory, world.ModeUsed, nil)
	assert.False(t, ok)
}
