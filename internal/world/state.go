package world

import "sort"

// PlannerScratch is per-cycle planner working state that does not belong
// to any single entity (spec.md 3's meta/"planner scratch" fields).
type PlannerScratch struct {
	BalanceNextGuest  string
	BalanceNextNode   string
	BalanceReason     string
	ProcessedGuestsPSI map[string]bool
}

// Groups bundles the three materialized group structures (spec.md 3, 4.4).
type Groups struct {
	Affinity     map[string]*AffinityGroup
	AntiAffinity map[string]*AntiAffinityGroup
	// Maintenance is the ordered list of guest names whose current node is
	// in maintenance; the planner relocates these first.
	Maintenance []string
}

func NewGroups() Groups {
	return Groups{
		Affinity:     make(map[string]*AffinityGroup),
		AntiAffinity: make(map[string]*AntiAffinityGroup),
	}
}

// Meta carries cycle-scoped decisions that cut across stages: whether
// balancing should run this cycle, enforcement flags, and the
// cluster-heterogeneity flag set by the feature gate (spec.md 4.2, 4.5).
type Meta struct {
	Balance         bool
	EnforceAffinity bool
	EnforcePinning  bool

	ClusterNonPVE9        bool // any node below the feature-gate cutoff
	WithConntrackStateOK  bool // false once the gate disables it
	PSIBalancingDisabled  bool

	Scratch PlannerScratch
}

// WorldState is the single mutable structure threaded through one planning
// cycle: nodes, guests, pools, HA rules, materialized groups, and meta/scratch
// state (spec.md 3). It is owned by the planner for the duration of the
// cycle and discarded at cycle end; the executor only reads NodeTarget
// fields out of Guests.
type WorldState struct {
	Meta    Meta
	Nodes   map[string]*Node
	Guests  map[string]*Guest
	Pools   map[string]*Pool
	HaRules map[string]*HaRule
	Groups  Groups
}

func NewWorldState() *WorldState {
	return &WorldState{
		Nodes:   make(map[string]*Node),
		Guests:  make(map[string]*Guest),
		Pools:   make(map[string]*Pool),
		HaRules: make(map[string]*HaRule),
		Groups:  NewGroups(),
	}
}

// NonMaintenanceNodes returns nodes with Maintenance == false, sorted by
// name for deterministic iteration (spec.md 4.6.1's tie-break requirement).
func (w *WorldState) NonMaintenanceNodes() []*Node {
	var out []*Node
	for _, n := range w.SortedNodeNames() {
		node := w.Nodes[n]
		if !node.Maintenance {
			out = append(out, node)
		}
	}
	return out
}

// SortedNodeNames returns all node names in stable lexicographic order.
func (w *WorldState) SortedNodeNames() []string {
	names := make([]string, 0, len(w.Nodes))
	for n := range w.Nodes {
		names = append(names, n)
	}
	sortStrings(names)
	return names
}

// SortedGuestNames returns all guest names in stable lexicographic order,
// which is the iteration order dispatch/planning uses for determinism.
func (w *WorldState) SortedGuestNames() []string {
	names := make([]string, 0, len(w.Guests))
	for n := range w.Guests {
		names = append(names, n)
	}
	sortStrings(names)
	return names
}

func sortStrings(s []string) {
	sort.Strings(s)
}
