// Package observer implements the observer hooks (spec.md 2, 6): a
// per-node metrics snapshot plus migration counters, and the
// machine-readable JSON dump used by the CLI's -j/--json flag. Each
// snapshot overwrites the previous per-node gauges; no separate
// before-planning snapshot is kept.
package observer

import (
	"encoding/json"

	"github.com/gyptazy/plb/internal/world"
)

// dumpState is the JSON shape of the world state minus the meta key,
// matching spec.md 6's "pretty-printed (indent 2) dictionary of the world
// state minus the meta key, to avoid leaking credentials".
type dumpState struct {
	Nodes   map[string]*world.Node              `json:"nodes"`
	Guests  map[string]*world.Guest             `json:"guests"`
	Pools   map[string]*world.Pool              `json:"pools"`
	HaRules map[string]*world.HaRule            `json:"ha_rules"`
	Groups  dumpGroups                          `json:"groups"`
}

type dumpGroups struct {
	Affinity     map[string]*world.AffinityGroup     `json:"affinity"`
	AntiAffinity map[string]*world.AntiAffinityGroup  `json:"anti_affinity"`
	Maintenance  []string                             `json:"maintenance"`
}

// DumpJSON renders w (minus Meta) as indented JSON.
func DumpJSON(w *world.WorldState) ([]byte, error) {
	d := dumpState{
		Nodes:   w.Nodes,
		Guests:  w.Guests,
		Pools:   w.Pools,
		HaRules: w.HaRules,
		Groups: dumpGroups{
			Affinity:     w.Groups.Affinity,
			AntiAffinity: w.Groups.AntiAffinity,
			Maintenance:  w.Groups.Maintenance,
		},
	}
	return json.MarshalIndent(d, "", "  ")
}
