package world

// Node is one hypervisor in the cluster.
type Node struct {
	Name    string
	Version string // platform semver; empty means "unknown" (treated as older than cutoff)

	CPU    ResourceStat
	Memory ResourceStat
	Disk   ResourceStat

	Maintenance bool
	Ignore      bool
	PressureHot bool
}

// Stat returns the ResourceStat for the given resource kind.
func (n *Node) Stat(r ResourceKind) *ResourceStat {
	switch r {
	case ResourceCPU:
		return &n.CPU
	case ResourceMemory:
		return &n.Memory
	case ResourceDisk:
		return &n.Disk
	default:
		return nil
	}
}

// ApplyReserve reduces a node's total for a resource by reserveGiB gibibytes,
// per spec.md 4.1's node_resource_reserve handling. A reservation that would
// drive total below the current used value is rejected (caller logs and skips).
func (n *Node) ApplyReserve(r ResourceKind, reserveGiB float64) bool {
	stat := n.Stat(r)
	bytesReserve := reserveGiB * (1 << 30)
	newTotal := stat.Total - bytesReserve
	if newTotal < stat.Used {
		return false
	}
	stat.Total = newTotal
	stat.Recompute()
	return true
}

// RecomputeAll recomputes derived fields on all three resources.
func (n *Node) RecomputeAll() {
	n.CPU.Recompute()
	n.Memory.Recompute()
	n.Disk.Recompute()
}
