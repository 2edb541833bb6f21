// Package classify implements the classifier (spec.md 4.3): for each
// guest it derives affinity_groups, anti_affinity_groups, ignore, and
// node_relationships/node_relationships_strict by composing three
// independent sources -- tags, pool memberships, and HA rule memberships
// -- each modeled as a small provider implementing a common "classify
// guest" capability, per spec.md 9's "pool/HA rule/tag fusion" design note.
package classify

import (
	"sort"
	"strings"

	"github.com/gyptazy/plb/internal/featuregate"
	"github.com/gyptazy/plb/internal/logging"
	"github.com/gyptazy/plb/internal/world"
)

const (
	tagAffinityPrefix     = "plb_affinity"
	tagAntiAffinityPrefix = "plb_anti_affinity"
	tagPinPrefix          = "plb_pin_"
	tagIgnorePrefix       = "plb_ignore"
)

// provider classifies one guest from one source, returning the lists it
// contributes to the union. Any of the returned slices may be nil.
type provider interface {
	affinityGroups(g *world.Guest) []string
	antiAffinityGroups(g *world.Guest) []string
	nodeRelationships(g *world.Guest) []string
}

// Classifier unions tag/pool/HA-rule providers for every guest in the world.
type Classifier struct {
	w     *world.WorldState
	gate  featuregate.Gate
	log   logging.Logger
	nodes map[string]bool
}

func New(w *world.WorldState, gate featuregate.Gate, log logging.Logger) *Classifier {
	nodes := make(map[string]bool, len(w.Nodes))
	for name := range w.Nodes {
		nodes[name] = true
	}
	return &Classifier{w: w, gate: gate, log: log, nodes: nodes}
}

// Run classifies every guest in the world in place.
func (c *Classifier) Run() {
	providers := []provider{
		tagProvider{},
		poolProvider{pools: c.w.Pools},
	}
	if !c.gate.SkipHARules {
		providers = append(providers, haRuleProvider{rules: c.w.HaRules})
	}

	poolProv := poolProvider{pools: c.w.Pools}

	for _, guest := range c.w.Guests {
		var affinity, antiAffinity, relationships []string
		for _, p := range providers {
			affinity = append(affinity, p.affinityGroups(guest)...)
			antiAffinity = append(antiAffinity, p.antiAffinityGroups(guest)...)
			relationships = append(relationships, p.nodeRelationships(guest)...)
		}

		guest.AffinityGroups = dedupe(affinity)
		guest.AntiAffinityGroups = dedupe(antiAffinity)
		guest.NodeRelationships = c.filterKnownNodes(dedupe(relationships), guest.Name)
		guest.Ignore = hasIgnoreTag(guest.Tags)
		guest.NodeRelationshipsStrict = poolProv.lastStrictness(guest)
	}
}

func (c *Classifier) filterKnownNodes(nodes []string, guestName string) []string {
	var out []string
	for _, n := range nodes {
		if c.nodes[n] {
			out = append(out, n)
		} else {
			c.log.Warn().Str("guest", guestName).Str("node", n).
				Msg("node relationship target is not a known cluster node, dropping")
		}
	}
	return out
}

// tagProvider classifies from raw guest tags.
type tagProvider struct{}

func (tagProvider) affinityGroups(g *world.Guest) []string {
	return tagsWithPrefix(g.Tags, tagAffinityPrefix)
}

func (tagProvider) antiAffinityGroups(g *world.Guest) []string {
	return tagsWithPrefix(g.Tags, tagAntiAffinityPrefix)
}

func (tagProvider) nodeRelationships(g *world.Guest) []string {
	var out []string
	for _, t := range g.Tags {
		if strings.HasPrefix(t, tagPinPrefix) {
			out = append(out, strings.TrimPrefix(t, tagPinPrefix))
		}
	}
	return out
}

func tagsWithPrefix(tags []string, prefix string) []string {
	var out []string
	for _, t := range tags {
		if strings.HasPrefix(t, prefix) {
			out = append(out, t)
		}
	}
	return out
}

func hasIgnoreTag(tags []string) bool {
	for _, t := range tags {
		if strings.HasPrefix(t, tagIgnorePrefix) {
			return true
		}
	}
	return false
}

// poolProvider classifies from pool type/pin membership.
type poolProvider struct {
	pools map[string]*world.Pool
}

func (p poolProvider) poolsOf(g *world.Guest) []*world.Pool {
	var out []*world.Pool
	for _, pool := range p.pools {
		for _, m := range pool.Members {
			if m == g.Name {
				out = append(out, pool)
				break
			}
		}
	}
	return out
}

func (p poolProvider) affinityGroups(g *world.Guest) []string {
	var out []string
	for _, pool := range p.poolsOf(g) {
		if pool.Type == world.PoolAffinity {
			out = append(out, "pool:"+pool.Name)
		}
	}
	return out
}

func (p poolProvider) antiAffinityGroups(g *world.Guest) []string {
	var out []string
	for _, pool := range p.poolsOf(g) {
		if pool.Type == world.PoolAntiAffinity {
			out = append(out, "pool:"+pool.Name)
		}
	}
	return out
}

func (p poolProvider) nodeRelationships(g *world.Guest) []string {
	var out []string
	for _, pool := range p.poolsOf(g) {
		out = append(out, pool.Pin...)
	}
	return out
}

// haRuleProvider classifies from HA resource-affinity rule membership.
type haRuleProvider struct {
	rules map[string]*world.HaRule
}

func (h haRuleProvider) rulesOf(g *world.Guest) []*world.HaRule {
	var out []*world.HaRule
	for _, rule := range h.rules {
		for _, id := range rule.GuestID {
			if id == g.ID {
				out = append(out, rule)
				break
			}
		}
	}
	return out
}

func (h haRuleProvider) affinityGroups(g *world.Guest) []string {
	var out []string
	for _, r := range h.rulesOf(g) {
		if r.Type == world.HaAffinity {
			out = append(out, "ha:"+r.ID)
		}
	}
	return out
}

func (h haRuleProvider) antiAffinityGroups(g *world.Guest) []string {
	var out []string
	for _, r := range h.rulesOf(g) {
		if r.Type == world.HaAntiAffinity {
			out = append(out, "ha:"+r.ID)
		}
	}
	return out
}

func (h haRuleProvider) nodeRelationships(g *world.Guest) []string {
	var out []string
	for _, r := range h.rulesOf(g) {
		if r.Type == world.HaAffinity {
			out = append(out, r.Nodes...)
		}
	}
	return out
}

// lastStrictness returns the strict value of the last pool (by name, for
// determinism) that this guest belongs to, defaulting to true when the
// guest belongs to no pool -- matching Pools.get_pool_node_affinity_strictness's
// "last matching pool wins, default true" semantics (spec.md 4.3).
func (p poolProvider) lastStrictness(g *world.Guest) bool {
	var names []string
	for name := range p.pools {
		names = append(names, name)
	}
	sortStrings(names)

	strict := true
	for _, name := range names {
		pool := p.pools[name]
		for _, m := range pool.Members {
			if m == g.Name {
				strict = pool.Strict
				break
			}
		}
	}
	return strict
}

func sortStrings(s []string) {
	sort.Strings(s)
}

func dedupe(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	var out []string
	for _, v := range in {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
