// Package score implements the scorer (spec.md 4.5): it computes
// node_assigned_* baselines, per-entity "hot" pressure flags, and decides
// whether balancing should run this cycle.
package score

import (
	"github.com/gyptazy/plb/internal/config"
	"github.com/gyptazy/plb/internal/world"
)

// Thresholds is the {pressure_full, pressure_some, pressure_spikes} triple
// used to evaluate whether an entity is "hot".
type Thresholds struct {
	Full   float64
	Some   float64
	Spikes float64
}

// IsHot evaluates spec.md 4.5's hot predicate:
// hot := (full_avg >= tf && some_avg >= ts) || (full_spike >= tp).
func IsHot(q world.Quadruple, t Thresholds) bool {
	return (q.FullAvg >= t.Full && q.SomeAvg >= t.Some) || (q.FullSpike >= t.Spikes)
}

// Scorer evaluates hot flags and the balance decision for one cycle.
type Scorer struct {
	w   *world.WorldState
	cfg *config.Balancing
}

func New(w *world.WorldState, cfg *config.Balancing) *Scorer {
	return &Scorer{w: w, cfg: cfg}
}

// Run computes node_assigned baselines, evaluates hot flags on nodes and
// guests, and sets w.Meta.Balance / EnforceAffinity / EnforcePinning.
func (s *Scorer) Run() {
	s.assignBaselines()
	s.evaluateHot()
	s.w.Meta.Balance = s.shouldBalance()
	s.w.Meta.EnforceAffinity = s.cfg.EnforceAffinity || s.groupsCurrentlyViolated()
	s.w.Meta.EnforcePinning = s.cfg.EnforcePinning
}

// assignBaselines sums every guest's totals onto its current node's
// assigned fields, then recomputes derived percentages (spec.md 4.5).
func (s *Scorer) assignBaselines() {
	for _, node := range s.w.Nodes {
		node.CPU.Assigned = 0
		node.Memory.Assigned = 0
		node.Disk.Assigned = 0
	}
	for _, guest := range s.w.Guests {
		node, ok := s.w.Nodes[guest.NodeCurrent]
		if !ok {
			continue
		}
		node.CPU.Assigned += guest.CPU.Total
		node.Memory.Assigned += guest.Memory.Total
		node.Disk.Assigned += guest.Disk.Total
	}
	for _, node := range s.w.Nodes {
		node.RecomputeAll()
	}
}

func (s *Scorer) nodeThresholds(kind world.ResourceKind) Thresholds {
	var t config.PSIResourceThresholds
	switch kind {
	case world.ResourceCPU:
		t = s.cfg.PSIThresholds.CPU
	case world.ResourceMemory:
		t = s.cfg.PSIThresholds.Memory
	case world.ResourceDisk:
		t = s.cfg.PSIThresholds.Disk
	}
	return Thresholds{Full: t.PressureFull, Some: t.PressureSome, Spikes: t.PressureSpikes}
}

// evaluateHot sets the per-metric and aggregate PressureHot flags on every
// non-maintenance, non-ignored node, and the per-metric PressureHot flags
// on every guest (Guest has no aggregate flag).
func (s *Scorer) evaluateHot() {
	for _, guest := range s.w.Guests {
		for _, kind := range []world.ResourceKind{world.ResourceCPU, world.ResourceMemory, world.ResourceDisk} {
			stat := guest.Stat(kind)
			stat.PressureHot = IsHot(stat.Pressure, s.guestThresholds(kind))
		}
	}
	for _, node := range s.w.Nodes {
		if node.Maintenance || node.Ignore {
			continue
		}
		anyHot := false
		for _, kind := range []world.ResourceKind{world.ResourceCPU, world.ResourceMemory, world.ResourceDisk} {
			stat := node.Stat(kind)
			hot := IsHot(stat.Pressure, s.nodeThresholds(kind))
			stat.PressureHot = hot
			anyHot = anyHot || hot
		}
		node.PressureHot = anyHot
	}
}

// shouldBalance decides spec.md 4.5's "should balancing run this cycle"
// question. For assigned/used modes it compares the hottest vs coolest
// node's <method>_<mode>_percent against balanciness or an absolute
// threshold; for psi mode it checks whether any node or guest is hot.
func (s *Scorer) shouldBalance() bool {
	if !s.cfg.Enable {
		return false
	}

	mode, ok := world.ParseBalanceMode(s.cfg.Mode)
	if !ok {
		mode = world.ModeUsed
	}

	if mode == world.ModePSI {
		// spec.md 4.2/4.5: a cluster with any node older than the
		// feature-gate cutoff refuses psi-mode balancing entirely for
		// this cycle, regardless of how hot any node/guest reads.
		if s.w.Meta.PSIBalancingDisabled {
			return false
		}
		for _, node := range s.w.Nodes {
			if node.PressureHot {
				return true
			}
		}
		for _, guest := range s.w.Guests {
			if s.guestHot(guest) {
				return true
			}
		}
		return false
	}

	method, ok := world.ParseResourceKind(s.cfg.Method)
	if !ok {
		method = world.ResourceMemory
	}

	min, max := s.minMaxPercent(method, mode)
	if max-min > float64(s.cfg.Balanciness) {
		return true
	}

	// Spec.md 9's first Open Question: the threshold check only updates
	// `balance` inside the branch guarded by the threshold being *set*.
	// When unset, the prior value (false, computed above) is preserved
	// rather than cleared or forced true.
	if threshold, set := s.cfg.Threshold(method.String()); set {
		if max > float64(threshold) {
			return true
		}
	}
	return false
}

func (s *Scorer) guestHot(g *world.Guest) bool {
	for _, kind := range []world.ResourceKind{world.ResourceCPU, world.ResourceMemory, world.ResourceDisk} {
		if IsHot(g.Stat(kind).Pressure, s.guestThresholds(kind)) {
			return true
		}
	}
	return false
}

func (s *Scorer) guestThresholds(kind world.ResourceKind) Thresholds {
	var t config.PSIResourceThresholds
	switch kind {
	case world.ResourceCPU:
		t = s.cfg.PSI.Guests.CPU
	case world.ResourceMemory:
		t = s.cfg.PSI.Guests.Memory
	case world.ResourceDisk:
		t = s.cfg.PSI.Guests.Disk
	}
	return Thresholds{Full: t.PressureFull, Some: t.PressureSome, Spikes: t.PressureSpikes}
}

func (s *Scorer) minMaxPercent(method world.ResourceKind, mode world.BalanceMode) (min, max float64) {
	first := true
	for _, node := range s.w.Nodes {
		if node.Maintenance || node.Ignore {
			continue
		}
		p := node.Stat(method).Percent(mode)
		if first {
			min, max = p, p
			first = false
			continue
		}
		if p < min {
			min = p
		}
		if p > max {
			max = p
		}
	}
	return min, max
}

// groupsCurrentlyViolated reports whether any materialized affinity group
// is split across nodes or any anti-affinity group has members colocated,
// which forces enforce_affinity regardless of config (spec.md 4.5).
func (s *Scorer) groupsCurrentlyViolated() bool {
	for _, ag := range s.w.Groups.Affinity {
		if len(ag.Guests) < 2 {
			continue
		}
		var node string
		for i, name := range ag.Guests {
			g := s.w.Guests[name]
			if g == nil {
				continue
			}
			if i == 0 {
				node = g.NodeCurrent
				continue
			}
			if g.NodeCurrent != node {
				return true
			}
		}
	}
	for _, aag := range s.w.Groups.AntiAffinity {
		if len(aag.Guests) < 2 {
			continue
		}
		seen := make(map[string]bool)
		for _, name := range aag.Guests {
			g := s.w.Guests[name]
			if g == nil {
				continue
			}
			if seen[g.NodeCurrent] {
				return true
			}
			seen[g.NodeCurrent] = true
		}
	}
	return false
}
