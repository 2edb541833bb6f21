// Package group implements the grouper (spec.md 4.4): it materializes
// affinity groups (minting a synthetic singleton group where a guest has
// no explicit affinity source), anti-affinity groups, and the maintenance
// migration list.
package group

import (
	"github.com/google/uuid"

	"github.com/gyptazy/plb/internal/logging"
	"github.com/gyptazy/plb/internal/world"
)

// Build populates w.Groups from w.Guests and w.Nodes, in guest-name order
// for determinism.
func Build(w *world.WorldState, log logging.Logger) {
	w.Groups = world.NewGroups()

	for _, name := range w.SortedGuestNames() {
		guest := w.Guests[name]

		groupIDs := guest.AffinityGroups
		if len(groupIDs) == 0 {
			// No explicit affinity source: mint a fresh opaque id so the
			// planner can treat every guest uniformly (spec.md 3, 4.4).
			groupIDs = []string{uuid.NewString()}
		}
		for _, id := range groupIDs {
			ag, ok := w.Groups.Affinity[id]
			if !ok {
				ag = &world.AffinityGroup{ID: id}
				w.Groups.Affinity[id] = ag
			}
			ag.AddMember(guest)
		}

		for _, id := range guest.AntiAffinityGroups {
			aag, ok := w.Groups.AntiAffinity[id]
			if !ok {
				aag = &world.AntiAffinityGroup{ID: id}
				w.Groups.AntiAffinity[id] = aag
			}
			aag.Guests = append(aag.Guests, guest.Name)
			aag.Counter++
		}

		if node, ok := w.Nodes[guest.NodeCurrent]; ok && node.Maintenance {
			log.Debug().Str("guest", guest.Name).Str("node", guest.NodeCurrent).
				Msg("guest will be migrated, current node is in maintenance")
			w.Groups.Maintenance = append(w.Groups.Maintenance, guest.Name)
		}
	}
}
