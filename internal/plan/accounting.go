// Package plan implements the planner (spec.md 4.6) and its sub-algorithms:
// most-free-node selection (4.6.1), live node accounting (4.6.2),
// anti-affinity assignment (4.6.3), and pinning override (4.6.4).
package plan

import "github.com/gyptazy/plb/internal/world"

// ApplyMove performs spec.md 4.6.2's live node accounting: moving guest g
// from src to dst adjusts both nodes' assigned/used totals for every
// resource, then recomputes free/percent fields with free clamped to >= 0
// (I2) and percentages guarded against zero totals (I1). This preserves
// I8 (accounting conservation): the sum of r_used across nodes is
// unchanged by a move, only redistributed.
func ApplyMove(w *world.WorldState, g *world.Guest, src, dst *world.Node) {
	for _, kind := range []world.ResourceKind{world.ResourceCPU, world.ResourceMemory, world.ResourceDisk} {
		gs := g.Stat(kind)
		if dst != nil {
			ds := dst.Stat(kind)
			ds.Assigned += gs.Total
			ds.Used += gs.Used
			ds.Recompute()
		}
		if src != nil {
			ss := src.Stat(kind)
			ss.Assigned -= gs.Total
			ss.Used -= gs.Used
			ss.Recompute()
		}
	}
}
