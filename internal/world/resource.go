// Package world holds the typed cluster snapshot the rebalancer plans
// against: nodes, guests, pools, HA rules and the materialized affinity
// groups derived from them.
package world

// ResourceKind names one of the three balanced resource dimensions.
type ResourceKind int

const (
	ResourceCPU ResourceKind = iota
	ResourceMemory
	ResourceDisk
)

func (r ResourceKind) String() string {
	switch r {
	case ResourceCPU:
		return "cpu"
	case ResourceMemory:
		return "memory"
	case ResourceDisk:
		return "disk"
	default:
		return "unknown"
	}
}

// ParseResourceKind maps a config string ("cpu"|"memory"|"disk") to a ResourceKind.
func ParseResourceKind(s string) (ResourceKind, bool) {
	switch s {
	case "cpu":
		return ResourceCPU, true
	case "memory":
		return ResourceMemory, true
	case "disk":
		return ResourceDisk, true
	default:
		return 0, false
	}
}

// BalanceMode names which node value a balancing method compares: the
// statically assigned amount, the live used amount, or PSI pressure.
type BalanceMode int

const (
	ModeAssigned BalanceMode = iota
	ModeUsed
	ModePSI
)

func (m BalanceMode) String() string {
	switch m {
	case ModeAssigned:
		return "assigned"
	case ModeUsed:
		return "used"
	case ModePSI:
		return "psi"
	default:
		return "unknown"
	}
}

func ParseBalanceMode(s string) (BalanceMode, bool) {
	switch s {
	case "assigned":
		return ModeAssigned, true
	case "used":
		return ModeUsed, true
	case "psi":
		return ModePSI, true
	default:
		return 0, false
	}
}

// Quadruple is the PSI pressure time-series for one resource: smoothed
// "some"/"full" averages plus the spike (max over the recent window) of each.
type Quadruple struct {
	SomeAvg   float64
	FullAvg   float64
	SomeSpike float64
	FullSpike float64
}

// ResourceStat is one {cpu,memory,disk} accounting block on a Node or Guest.
// Total/Assigned/Used are in native units (bytes for memory/disk, cores for cpu).
type ResourceStat struct {
	Total             float64
	Assigned          float64
	Used              float64
	Free              float64
	AssignedPercent   float64
	UsedPercent       float64
	Pressure          Quadruple
	PressureHot       bool
}

// Recompute derives Free and the two percentage fields from Total/Assigned/Used,
// honoring spec invariants I1 (percentages) and I2 (free non-negative):
// free = max(0, total-used); percent = component/total*100 when total>0, else 0.
func (r *ResourceStat) Recompute() {
	if r.Total > 0 {
		r.Free = r.Total - r.Used
		if r.Free < 0 {
			r.Free = 0
		}
		r.AssignedPercent = r.Assigned / r.Total * 100
		r.UsedPercent = r.Used / r.Total * 100
	} else {
		r.Free = 0
		r.AssignedPercent = 0
		r.UsedPercent = 0
	}
}

// Percent returns the field addressed by (mode) for this resource block:
// assigned_percent, used_percent, or the PSI full-spike percent. This
// replaces the source's dynamic "<method>_<mode>_percent" attribute name
// with a direct accessor per spec.md section 9 design notes.
func (r *ResourceStat) Percent(mode BalanceMode) float64 {
	switch mode {
	case ModeAssigned:
		return r.AssignedPercent
	case ModeUsed:
		return r.UsedPercent
	case ModePSI:
		return r.Pressure.FullSpike
	default:
		return 0
	}
}
