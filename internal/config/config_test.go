package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "plb.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestValidateRejectsMutuallyExclusiveCredentials(t *testing.T) {
	c := &Config{ProxmoxAPI: ProxmoxAPI{
		Hosts: []string{"pve1"}, User: "root@pam", Pass: "x",
		TokenID: "plb@pve!token", TokenSecret: "y",
	}}
	err := c.Validate()
	require.Error(t, err)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
}

func TestValidateRequiresSomeCredential(t *testing.T) {
	c := &Config{ProxmoxAPI: ProxmoxAPI{Hosts: []string{"pve1"}}}
	err := c.Validate()
	require.Error(t, err)
}

func TestValidateRequiresHosts(t *testing.T) {
	c := &Config{ProxmoxAPI: ProxmoxAPI{User: "root@pam", Pass: "x"}}
	err := c.Validate()
	require.Error(t, err)
}

func TestValidateAcceptsTokenAuth(t *testing.T) {
	c := &Config{ProxmoxAPI: ProxmoxAPI{
		Hosts: []string{"pve1"}, TokenID: "plb@pve!token", TokenSecret: "y",
	}}
	assert.NoError(t, c.Validate())
}

func TestValidateScheduleShapeRequiredWhenDaemon(t *testing.T) {
	c := &Config{
		ProxmoxAPI: ProxmoxAPI{Hosts: []string{"pve1"}, User: "root@pam", Pass: "x"},
		Service:    Service{Daemon: true, Schedule: Schedule{Format: "bogus", Interval: 1}},
	}
	err := c.Validate()
	require.Error(t, err)
}

func TestValidateScheduleRequiresPositiveIntervalOrTime(t *testing.T) {
	c := &Config{
		ProxmoxAPI: ProxmoxAPI{Hosts: []string{"pve1"}, User: "root@pam", Pass: "x"},
		Service:    Service{Daemon: true, Schedule: Schedule{Format: "hours", Interval: 0, Time: 0}},
	}
	err := c.Validate()
	require.Error(t, err)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
proxmox_api:
  hosts: ["pve1"]
  user: root@pam
  pass: secret
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Balancing.Balanciness)
	assert.Equal(t, 5, cfg.Balancing.ParallelJobs)
	assert.Equal(t, 1800, cfg.Balancing.MaxJobValidation)
	assert.Equal(t, []string{"vm", "ct"}, cfg.Balancing.BalanceTypes)
}

func TestLoadMissingFileIsConfigError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
}

func TestIsLiveDefaultsTrueWhenUnset(t *testing.T) {
	var b Balancing
	assert.True(t, b.IsLive())
}

func TestIsLiveHonorsExplicitFalse(t *testing.T) {
	no := false
	b := Balancing{Live: &no}
	assert.False(t, b.IsLive())
}

func TestIsLiveHonorsExplicitTrue(t *testing.T) {
	yes := true
	b := Balancing{Live: &yes}
	assert.True(t, b.IsLive())
}

func TestLoadPreservesExplicitLiveFalse(t *testing.T) {
	path := writeTempConfig(t, `
proxmox_api:
  hosts: ["pve1"]
  user: root@pam
  pass: secret
balancing:
  live: false
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Balancing.IsLive())
}

func TestBalancingThresholdUnsetVsSet(t *testing.T) {
	b := Balancing{MemoryThreshold: 80}

	v, ok := b.Threshold("memory")
	assert.True(t, ok)
	assert.Equal(t, 80, v)

	_, ok = b.Threshold("cpu")
	assert.False(t, ok)
}
