package plan

import "github.com/gyptazy/plb/internal/world"

// ApplyAntiAffinity implements spec.md 4.6.3: for every anti-affinity
// group containing g that is unprocessed and has >= 2 members, walk nodes
// in iteration order and pick the first node that is neither already in
// the group's UsedNodes nor in maintenance. Groups with a single member
// are a no-op. Returns the chosen node and true if one was found; when
// none is found (spec.md 9's fourth Open Question), the guest's prior
// BalanceNextNode value is left untouched and false is returned so the
// caller can model this explicitly as "no move planned" rather than
// guessing a placement.
func ApplyAntiAffinity(w *world.WorldState, g *world.Guest) (string, bool) {
	found := false
	var chosen string

	for _, id := range g.AntiAffinityGroups {
		aag, ok := w.Groups.AntiAffinity[id]
		if !ok || len(aag.Guests) < 2 {
			continue
		}
		if g.Processed {
			continue
		}

		for _, name := range w.SortedNodeNames() {
			node := w.Nodes[name]
			if node.Maintenance {
				continue
			}
			if aag.HasUsedNode(name) {
				continue
			}
			aag.UsedNodes = append(aag.UsedNodes, name)
			chosen = name
			found = true
			break
		}

		if found {
			w.Meta.Scratch.BalanceNextNode = chosen
			return chosen, true
		}
		// No feasible placement for this group: I3 allows preserving the
		// original assignment when none exists. Do not clear BalanceNextNode.
	}
	return "", false
}
