package featuregate

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gyptazy/plb/internal/logging"
	"github.com/gyptazy/plb/internal/world"
)

func testLogger() logging.Logger {
	return logging.New(io.Discard, "info")
}

func TestEvaluateAllNewNodesEnablesEverything(t *testing.T) {
	w := world.NewWorldState()
	w.Nodes["pve1"] = &world.Node{Name: "pve1", Version: "9.0.1"}
	w.Nodes["pve2"] = &world.Node{Name: "pve2", Version: "9.1.0"}

	g := Evaluate(w, "used", DefaultCutoff, testLogger())

	assert.False(t, g.ClusterNonPVE9)
	assert.True(t, g.WithConntrackStateOK)
	assert.False(t, g.SkipHARules)
	assert.False(t, g.PSIBalancingDisabled)
}

func TestEvaluateOldNodeDisablesFeatures(t *testing.T) {
	w := world.NewWorldState()
	w.Nodes["pve1"] = &world.Node{Name: "pve1", Version: "8.2.0"}
	w.Nodes["pve2"] = &world.Node{Name: "pve2", Version: "9.1.0"}

	g := Evaluate(w, "psi", DefaultCutoff, testLogger())

	assert.True(t, g.ClusterNonPVE9)
	assert.False(t, g.WithConntrackStateOK)
	assert.True(t, g.SkipHARules)
	assert.True(t, g.PSIBalancingDisabled)
	assert.True(t, w.Meta.ClusterNonPVE9)
}

func TestEvaluateMissingVersionTreatedAsOld(t *testing.T) {
	w := world.NewWorldState()
	w.Nodes["pve1"] = &world.Node{Name: "pve1", Version: ""}

	g := Evaluate(w, "used", DefaultCutoff, testLogger())
	assert.True(t, g.ClusterNonPVE9)
}

func TestEvaluatePSIModeOnlyDisabledWhenModeIsPSI(t *testing.T) {
	w := world.NewWorldState()
	w.Nodes["pve1"] = &world.Node{Name: "pve1", Version: "8.0.0"}

	g := Evaluate(w, "used", DefaultCutoff, testLogger())
	assert.False(t, g.PSIBalancingDisabled)
}

func TestOlderThanIgnoresDistroSuffixOnVersionComponents(t *testing.T) {
	// "9.1.2-pve" must parse as 9.1.2, not fall back to 0.0.0.
	assert.False(t, olderThan("9.1.2-pve", DefaultCutoff))
	assert.True(t, olderThan("8.9.9-pve", DefaultCutoff))
}

func TestParseVersionLeadingDigitsOnly(t *testing.T) {
	assert.Equal(t, [3]int{9, 1, 2}, parseVersion("9.1.2-pve"))
	assert.Equal(t, [3]int{1, 0, 0}, parseVersion("1+deb1.0"))
}
