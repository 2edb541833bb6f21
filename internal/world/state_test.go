package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSortedNodeAndGuestNames(t *testing.T) {
	w := NewWorldState()
	w.Nodes["pve2"] = &Node{Name: "pve2"}
	w.Nodes["pve1"] = &Node{Name: "pve1"}
	w.Guests["web2"] = &Guest{Name: "web2"}
	w.Guests["web1"] = &Guest{Name: "web1"}

	assert.Equal(t, []string{"pve1", "pve2"}, w.SortedNodeNames())
	assert.Equal(t, []string{"web1", "web2"}, w.SortedGuestNames())
}

func TestNonMaintenanceNodesExcludesFlagged(t *testing.T) {
	w := NewWorldState()
	w.Nodes["pve1"] = &Node{Name: "pve1"}
	w.Nodes["pve2"] = &Node{Name: "pve2", Maintenance: true}

	out := w.NonMaintenanceNodes()
	assert.Len(t, out, 1)
	assert.Equal(t, "pve1", out[0].Name)
}

func TestGuestMoved(t *testing.T) {
	g := &Guest{NodeCurrent: "pve1", NodeTarget: "pve1"}
	assert.False(t, g.Moved())
	g.NodeTarget = "pve2"
	assert.True(t, g.Moved())
}
