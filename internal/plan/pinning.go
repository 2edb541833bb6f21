package plan

import "github.com/gyptazy/plb/internal/world"

// ApplyPinning implements spec.md 4.6.4: if g has a non-empty
// NodeRelationships, strict pinning restricts candidates to exactly that
// list; non-strict pinning computes the global most-free node first, then
// appends it to the allowed list before selecting among the union. As
// spec.md 9's third Open Question notes, this means the non-strict result
// can still fall outside the relationship list -- that quirk is preserved
// rather than special-cased away.
func ApplyPinning(w *world.WorldState, g *world.Guest, method world.ResourceKind, mode world.BalanceMode) (string, bool) {
	if len(g.NodeRelationships) == 0 {
		return "", false
	}

	if g.NodeRelationshipsStrict {
		return MostFreeNode(w, method, mode, g.NodeRelationships)
	}

	globalBest, ok := MostFreeNode(w, method, mode, nil)
	allowed := append([]string(nil), g.NodeRelationships...)
	if ok {
		allowed = append(allowed, globalBest)
	}
	return MostFreeNode(w, method, mode, allowed)
}
