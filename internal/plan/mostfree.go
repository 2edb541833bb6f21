package plan

import "github.com/gyptazy/plb/internal/world"

// MostFreeNode implements spec.md 4.6.1: among nodes with maintenance=false
// (intersected with allowed, if non-empty), pick the argmin by
// <method>_<mode>_percent (assigned/used) or <method>_pressure_full_spikes_percent
// (psi). Ties break on lexicographically-smallest node name for determinism.
// Returns ("", false) if no candidate remains.
func MostFreeNode(w *world.WorldState, method world.ResourceKind, mode world.BalanceMode, allowed []string) (string, bool) {
	var allowedSet map[string]bool
	if len(allowed) > 0 {
		allowedSet = make(map[string]bool, len(allowed))
		for _, a := range allowed {
			allowedSet[a] = true
		}
	}

	best := ""
	bestScore := 0.0
	found := false

	for _, name := range w.SortedNodeNames() {
		node := w.Nodes[name]
		if node.Maintenance {
			continue
		}
		if allowedSet != nil && !allowedSet[name] {
			continue
		}
		score := node.Stat(method).Percent(mode)
		if !found || score < bestScore {
			best = name
			bestScore = score
			found = true
		}
	}

	if found {
		w.Meta.Scratch.BalanceNextNode = best
		w.Meta.Scratch.BalanceReason = "resources"
	}
	return best, found
}
