// Package featuregate implements the feature gate (spec.md 4.2): it
// reads each node's platform version and, if any node is older than a
// configured cutoff, disables features that require the newer API.
package featuregate

import (
	"strconv"
	"strings"

	"github.com/gyptazy/plb/internal/logging"
	"github.com/gyptazy/plb/internal/world"
)

// DefaultCutoff is the reference-behavior version floor (spec.md 4.2).
const DefaultCutoff = "9.0.0"

// Gate holds the outcome of evaluating the cluster's version heterogeneity.
type Gate struct {
	ClusterNonPVE9       bool
	WithConntrackStateOK bool
	PSIBalancingDisabled bool
	// SkipHARules mirrors the upstream's cluster_non_pve9 guard around HA
	// rule fetching: when true, downstream classification ignores any HA
	// rules present in the world rather than consulting them, matching
	// models/ha_rules.py's behavior without forcing the inventory stage to
	// run after the feature gate.
	SkipHARules bool
}

// WithConntrackStateAllowed satisfies execute.conntrackGate, letting the
// executor consult the gate's verdict without importing featuregate types
// into execute's public surface.
func (g Gate) WithConntrackStateAllowed() bool { return g.WithConntrackStateOK }

// Evaluate inspects every node's version against cutoff and sets w.Meta's
// gate fields plus returns a Gate for callers that prefer not to reach into
// world.Meta directly.
func Evaluate(w *world.WorldState, balancingMode string, cutoff string, log logging.Logger) Gate {
	if cutoff == "" {
		cutoff = DefaultCutoff
	}
	anyOld := false
	for _, node := range w.Nodes {
		if olderThan(node.Version, cutoff) {
			anyOld = true
			break
		}
	}

	g := Gate{
		ClusterNonPVE9:       anyOld,
		WithConntrackStateOK: !anyOld,
		SkipHARules:          anyOld,
	}

	if anyOld && balancingMode == "psi" {
		g.PSIBalancingDisabled = true
		log.Warn().Msg("cluster has a node older than the feature-gate cutoff; psi-mode balancing disabled for this cycle")
	}

	w.Meta.ClusterNonPVE9 = g.ClusterNonPVE9
	w.Meta.WithConntrackStateOK = g.WithConntrackStateOK
	w.Meta.PSIBalancingDisabled = g.PSIBalancingDisabled

	return g
}

// olderThan reports whether version is strictly older than cutoff under
// semver-ish numeric comparison. A missing/unparseable version is treated
// as "older than the cutoff" (spec.md 4.1 failure semantics).
func olderThan(version, cutoff string) bool {
	if version == "" {
		return true
	}
	v := parseVersion(version)
	c := parseVersion(cutoff)
	for i := 0; i < 3; i++ {
		if v[i] != c[i] {
			return v[i] < c[i]
		}
	}
	return false
}

func parseVersion(s string) [3]int {
	var out [3]int
	parts := strings.SplitN(s, ".", 3)
	for i := 0; i < len(parts) && i < 3; i++ {
		out[i] = leadingInt(strings.TrimSpace(parts[i]))
	}
	return out
}

// leadingInt parses the run of ASCII digits at the start of s, ignoring any
// trailing suffix (e.g. "2-pve" -> 2, "1+deb1" -> 1). A component with no
// leading digits at all parses as 0.
func leadingInt(s string) int {
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}
