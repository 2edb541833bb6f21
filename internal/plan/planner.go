package plan

import (
	"sort"

	"github.com/gyptazy/plb/internal/config"
	"github.com/gyptazy/plb/internal/logging"
	"github.com/gyptazy/plb/internal/world"
)

// Planner runs spec.md 4.6's greedy relocation algorithm over a WorldState
// already scored and grouped.
type Planner struct {
	w      *world.WorldState
	cfg    *config.Balancing
	method world.ResourceKind
	mode   world.BalanceMode
	log    logging.Logger
}

func New(w *world.WorldState, cfg *config.Balancing, log logging.Logger) *Planner {
	method, ok := world.ParseResourceKind(cfg.Method)
	if !ok {
		method = world.ResourceMemory
	}
	mode, ok := world.ParseBalanceMode(cfg.Mode)
	if !ok {
		mode = world.ModeUsed
	}
	return &Planner{w: w, cfg: cfg, method: method, mode: mode, log: log}
}

// Run executes the full planning algorithm: maintenance drain first, then
// (only if balance/enforce_affinity/enforce_pinning) the affinity-group
// relocation loop.
func (p *Planner) Run() {
	p.drainMaintenance()

	if !(p.w.Meta.Balance || p.w.Meta.EnforceAffinity || p.w.Meta.EnforcePinning) {
		return
	}

	for _, group := range p.orderedAffinityGroups() {
		if !p.recheckBalance() {
			break
		}
		// Computed once per group (not per member) so every member lands
		// on the same node instead of chasing accounting shifted by its
		// own predecessors (I4; models/calculations.py's relocate_guests).
		candidate, ok := MostFreeNode(p.w, p.method, p.mode, nil)
		if !ok {
			continue
		}
		for _, name := range group.Guests {
			guest := p.w.Guests[name]
			if guest == nil || guest.Processed {
				continue
			}
			if !p.isMostLoaded(guest) {
				break // skip remaining members of this group
			}
			p.planGuest(guest, candidate)
		}
	}
}

// drainMaintenance implements step 1: relocate every guest on a
// maintenance node to the current globally-least-loaded non-maintenance
// node, updating live accounting as it goes (I7).
func (p *Planner) drainMaintenance() {
	for _, name := range p.w.Groups.Maintenance {
		guest := p.w.Guests[name]
		if guest == nil || guest.Ignore {
			continue
		}
		target, ok := MostFreeNode(p.w, p.method, p.mode, nil)
		if !ok {
			p.log.Warn().Str("guest", guest.Name).Msg("no non-maintenance node available to drain to")
			continue
		}
		p.commit(guest, target)
	}
}

// orderedAffinityGroups sorts affinity groups by ascending member count,
// then by aggregate memory_used ascending by default (descending when
// balance_larger_guests_first), so the smallest/tightest groups move first
// (spec.md 4.6 step 3). Groups that tie on both keys keep group-id order.
func (p *Planner) orderedAffinityGroups() []*world.AffinityGroup {
	ids := make([]string, 0, len(p.w.Groups.Affinity))
	for id := range p.w.Groups.Affinity {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	groups := make([]*world.AffinityGroup, 0, len(ids))
	for _, id := range ids {
		groups = append(groups, p.w.Groups.Affinity[id])
	}
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Counter != groups[j].Counter {
			return groups[i].Counter < groups[j].Counter
		}
		if p.cfg.BalanceLargerGuestsFirst {
			return groups[i].MemoryUsed > groups[j].MemoryUsed
		}
		return groups[i].MemoryUsed < groups[j].MemoryUsed
	})
	return groups
}

// recheckBalance reports whether the relocation loop may continue: true
// while any of Meta.Balance, EnforceAffinity or EnforcePinning is set.
// These flags are the scorer's verdict from before planning and are not
// recomputed as moves are committed, so the loop does not stop early once
// the cluster has become balanced.
func (p *Planner) recheckBalance() bool {
	return p.w.Meta.Balance || p.w.Meta.EnforceAffinity || p.w.Meta.EnforcePinning
}

// isMostLoaded reports whether guest's current node is still the
// globally most-loaded node by <method>_used_percent; if not, the
// remaining members of its group are skipped for this pass.
func (p *Planner) isMostLoaded(guest *world.Guest) bool {
	var mostLoaded string
	var best float64
	first := true
	for _, name := range p.w.SortedNodeNames() {
		node := p.w.Nodes[name]
		if node.Maintenance {
			continue
		}
		v := node.Stat(p.method).UsedPercent
		if first || v > best {
			mostLoaded = name
			best = v
			first = false
		}
	}
	return guest.NodeCurrent == mostLoaded
}

// planGuest applies the sufficiency check, PSI victim selection,
// anti-affinity assignment, and pinning override for one guest and commits
// its target (spec.md 4.6 step 4). candidate is the group's shared
// most-free-node pick, computed once by the caller so every member of the
// group is offered the same destination before any per-guest override.
func (p *Planner) planGuest(guest *world.Guest, candidate string) {
	// Sufficiency check (spec.md 4.6/9): only guest memory_used vs node
	// memory_free is compared; cpu and disk are intentionally unchecked,
	// preserved as-is per the Open Question.
	if node := p.w.Nodes[candidate]; node != nil {
		if guest.Memory.Used > node.Memory.Free {
			return
		}
	}

	if p.mode == world.ModePSI {
		victim, ok := p.psiVictim()
		if !ok || victim != guest.Name {
			return
		}
	}

	if target, ok := ApplyAntiAffinity(p.w, guest); ok {
		candidate = target
	} else {
		// No unused non-maintenance node is left for an anti-affinity group
		// of this guest: keep its original assignment (I3).
		for _, id := range guest.AntiAffinityGroups {
			if aag, found := p.w.Groups.AntiAffinity[id]; found && len(aag.Guests) >= 2 {
				p.log.Warn().Str("guest", guest.Name).Str("group", id).
					Msg("no feasible anti-affinity placement, no move planned")
				return
			}
		}
	}

	if target, ok := ApplyPinning(p.w, guest, p.method, p.mode); ok {
		candidate = target
	}

	if guest.Ignore {
		guest.Processed = true
		return
	}

	p.commit(guest, candidate)
	guest.Processed = true
}

// psiVictim selects the not-yet-processed guest with the highest
// <method>_pressure_full_spikes_percent (spec.md 4.6 step 4, psi mode).
func (p *Planner) psiVictim() (string, bool) {
	var best string
	var bestScore float64
	found := false
	for _, name := range p.w.SortedGuestNames() {
		guest := p.w.Guests[name]
		if guest.Processed {
			continue
		}
		score := guest.Stat(p.method).Pressure.FullSpike
		if !found || score > bestScore {
			best = name
			bestScore = score
			found = true
		}
	}
	return best, found
}

// commit assigns guest's NodeTarget and updates live node accounting.
func (p *Planner) commit(guest *world.Guest, target string) {
	if target == guest.NodeCurrent {
		return
	}
	src := p.w.Nodes[guest.NodeCurrent]
	dst := p.w.Nodes[target]
	ApplyMove(p.w, guest, src, dst)
	guest.NodeTarget = target
}
