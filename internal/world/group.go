package world

// AffinityGroup is a materialized set of guests required to co-locate on
// one node (spec.md 3, 4.4). Singleton guests with no explicit affinity
// source are wrapped in a synthetic group with a fresh opaque id so the
// planner treats every guest uniformly.
type AffinityGroup struct {
	ID      string
	Guests  []string
	Counter int

	CPUTotal    float64
	CPUUsed     float64
	MemoryTotal float64
	MemoryUsed  float64
	DiskTotal   float64
	DiskUsed    float64
}

// AddMember folds one guest's totals/used into the group's aggregate sums.
// Each resource is summed from its own field (not from a shared field) --
// this corrects a copy/paste defect present in the upstream Python source's
// groups.py, where memory_used and disk_used were both accumulated from
// cpu_used.
func (g *AffinityGroup) AddMember(guest *Guest) {
	g.Guests = append(g.Guests, guest.Name)
	g.Counter++
	g.CPUTotal += guest.CPU.Total
	g.CPUUsed += guest.CPU.Used
	g.MemoryTotal += guest.Memory.Total
	g.MemoryUsed += guest.Memory.Used
	g.DiskTotal += guest.Disk.Total
	g.DiskUsed += guest.Disk.Used
}

// AntiAffinityGroup is a materialized set of guests required to spread
// across distinct nodes (spec.md 3, 4.6.3).
type AntiAffinityGroup struct {
	ID        string
	Guests    []string
	Counter   int
	UsedNodes []string // nodes already claimed by members during planning
}

func (g *AntiAffinityGroup) HasUsedNode(node string) bool {
	for _, n := range g.UsedNodes {
		if n == node {
			return true
		}
	}
	return false
}
