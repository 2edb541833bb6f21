package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNodeApplyReserveRejectsBelowUsed(t *testing.T) {
	n := &Node{Name: "pve1"}
	n.Memory = ResourceStat{Total: 10 << 30, Used: 9 << 30}
	n.Memory.Recompute()

	ok := n.ApplyReserve(ResourceMemory, 2) // would drop total to 8GiB, below 9GiB used
	assert.False(t, ok)
	assert.Equal(t, float64(10<<30), n.Memory.Total)
}

func TestNodeApplyReserveAccepted(t *testing.T) {
	n := &Node{Name: "pve1"}
	n.Memory = ResourceStat{Total: 10 << 30, Used: 2 << 30}
	n.Memory.Recompute()

	ok := n.ApplyReserve(ResourceMemory, 2)
	assert.True(t, ok)
	assert.Equal(t, float64(8<<30), n.Memory.Total)
	assert.Equal(t, float64(6<<30), n.Memory.Free)
}

func TestNodeStatReturnsCorrectField(t *testing.T) {
	n := &Node{}
	n.CPU.Total = 1
	n.Memory.Total = 2
	n.Disk.Total = 3

	assert.Equal(t, 1.0, n.Stat(ResourceCPU).Total)
	assert.Equal(t, 2.0, n.Stat(ResourceMemory).Total)
	assert.Equal(t, 3.0, n.Stat(ResourceDisk).Total)
}
