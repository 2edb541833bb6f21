// Package config loads and validates the YAML configuration document
// described in spec.md section 6. Loading uses gopkg.in/yaml.v3, matching
// the pattern the rest of the example pack uses for its own config layer.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ConfigError marks a fatal configuration-taxonomy failure (spec.md 7a):
// malformed YAML, conflicting credentials, missing file, invalid schedule shape.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "configuration error: " + e.Reason }

// ProxmoxAPI is the proxmox_api config block.
type ProxmoxAPI struct {
	Hosts           []string `yaml:"hosts"`
	User            string   `yaml:"user"`
	Pass            string   `yaml:"pass"`
	TokenID         string   `yaml:"token_id"`
	TokenSecret     string   `yaml:"token_secret"`
	SSLVerification bool     `yaml:"ssl_verification"`
	Timeout         int      `yaml:"timeout"`
	Retries         int      `yaml:"retries"`
	WaitTime        int      `yaml:"wait_time"`
}

// UsesToken reports whether token auth (rather than user/pass) is configured.
func (p ProxmoxAPI) UsesToken() bool {
	return p.TokenID != "" || p.TokenSecret != ""
}

// ProxmoxCluster is the proxmox_cluster config block.
type ProxmoxCluster struct {
	MaintenanceNodes []string `yaml:"maintenance_nodes"`
	IgnoreNodes      []string `yaml:"ignore_nodes"`
}

// PoolConfig is one entry of balancing.pools.<name>.
type PoolConfig struct {
	Type   string   `yaml:"type"` // "affinity" | "anti-affinity"
	Pin    []string `yaml:"pin"`
	Strict bool     `yaml:"strict"`
}

// PSIResourceThresholds is one {cpu,memory,disk} entry under psi_thresholds
// or psi.{nodes,guests}.
type PSIResourceThresholds struct {
	PressureFull   float64 `yaml:"pressure_full"`
	PressureSome   float64 `yaml:"pressure_some"`
	PressureSpikes float64 `yaml:"pressure_spikes"`
}

// PSIThresholds holds the per-resource quadruple thresholds.
type PSIThresholds struct {
	CPU    PSIResourceThresholds `yaml:"cpu"`
	Memory PSIResourceThresholds `yaml:"memory"`
	Disk   PSIResourceThresholds `yaml:"disk"`
}

// PSIConfig is the psi.{nodes,guests} block, same shape as psi_thresholds.
// The scorer reads psi.guests for guest-level hot evaluation; node-level
// evaluation reads psi_thresholds, and psi.nodes is not consulted.
type PSIConfig struct {
	Nodes  PSIThresholds `yaml:"nodes"`
	Guests PSIThresholds `yaml:"guests"`
}

// ResourceReserve is one node_resource_reserve entry (in GiB).
type ResourceReserve struct {
	CPU    float64 `yaml:"cpu"`
	Memory float64 `yaml:"memory"`
	Disk   float64 `yaml:"disk"`
}

// Balancing is the balancing config block.
type Balancing struct {
	Enable    bool   `yaml:"enable"`
	Method    string `yaml:"method"` // cpu|memory|disk
	Mode      string `yaml:"mode"`   // assigned|used|psi

	Balanciness     int `yaml:"balanciness"`
	CPUThreshold    int `yaml:"cpu_threshold"`
	MemoryThreshold int `yaml:"memory_threshold"`
	DiskThreshold   int `yaml:"disk_threshold"`

	Parallel     bool `yaml:"parallel"`
	ParallelJobs int  `yaml:"parallel_jobs"`

	BalanceTypes []string `yaml:"balance_types"`

	// Live is a *bool, not bool: yaml.v3 leaves it nil when the key is
	// absent, which is the only way to tell "unset" from an operator's
	// explicit "live: false" apart so applyDefaults doesn't clobber it.
	Live               *bool `yaml:"live"`
	WithLocalDisks     bool  `yaml:"with_local_disks"`
	WithConntrackState bool  `yaml:"with_conntrack_state"`

	MaxJobValidation int `yaml:"max_job_validation"`

	BalanceLargerGuestsFirst bool `yaml:"balance_larger_guests_first"`
	EnforceAffinity          bool `yaml:"enforce_affinity"`
	EnforcePinning           bool `yaml:"enforce_pinning"`

	PSIThresholds PSIThresholds `yaml:"psi_thresholds"`
	PSI           PSIConfig     `yaml:"psi"`

	Pools map[string]PoolConfig `yaml:"pools"`

	NodeResourceReserve map[string]ResourceReserve `yaml:"node_resource_reserve"`
}

// IsLive reports spec.md 4.7's online flag, defaulting to true when the
// operator left balancing.live unset in the YAML document.
func (b Balancing) IsLive() bool {
	return b.Live == nil || *b.Live
}

// Threshold returns the configured absolute percentage-point threshold for
// the given method, and whether one was set at all (spec.md 9's first Open
// Question hinges on this distinction).
func (b Balancing) Threshold(method string) (int, bool) {
	switch method {
	case "cpu":
		return b.CPUThreshold, b.CPUThreshold != 0
	case "memory":
		return b.MemoryThreshold, b.MemoryThreshold != 0
	case "disk":
		return b.DiskThreshold, b.DiskThreshold != 0
	default:
		return 0, false
	}
}

// Schedule is the shared shape used by service.schedule and service.delay.
type Schedule struct {
	Enable   bool   `yaml:"enable"`
	Format   string `yaml:"format"` // "hours" | "minutes"
	Interval int    `yaml:"interval"`
	Time     int    `yaml:"time"` // delay uses "time" instead of "interval" upstream; both accepted
}

// Service is the service config block.
type Service struct {
	Daemon   bool     `yaml:"daemon"`
	Schedule Schedule `yaml:"schedule"`
	Delay    Schedule `yaml:"delay"`
	LogLevel string   `yaml:"log_level"`
}

// Config is the full parsed YAML document (spec.md 6).
type Config struct {
	ProxmoxAPI     ProxmoxAPI     `yaml:"proxmox_api"`
	ProxmoxCluster ProxmoxCluster `yaml:"proxmox_cluster"`
	Balancing      Balancing      `yaml:"balancing"`
	Service        Service        `yaml:"service"`
}

const DefaultPath = "/etc/proxlb/proxlb.yaml"

// Load reads and parses the YAML document at path (or DefaultPath if path
// is empty), then validates it. A missing file or malformed document is a
// ConfigError per spec.md 7a.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("reading %s: %v", path, err)}
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("parsing %s: %v", path, err)}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Balancing.Balanciness == 0 {
		c.Balancing.Balanciness = 10
	}
	if c.Balancing.ParallelJobs == 0 {
		c.Balancing.ParallelJobs = 5
	}
	if c.Balancing.MaxJobValidation == 0 {
		c.Balancing.MaxJobValidation = 1800
	}
	if len(c.Balancing.BalanceTypes) == 0 {
		c.Balancing.BalanceTypes = []string{"vm", "ct"}
	}
}

// Validate checks schema-level invariants: mutually exclusive credential
// styles, a valid schedule shape, and recognized method/mode enums.
func (c *Config) Validate() error {
	if len(c.ProxmoxAPI.Hosts) == 0 {
		return &ConfigError{Reason: "proxmox_api.hosts must be non-empty"}
	}
	hasUserPass := c.ProxmoxAPI.User != "" || c.ProxmoxAPI.Pass != ""
	hasToken := c.ProxmoxAPI.UsesToken()
	if hasUserPass && hasToken {
		return &ConfigError{Reason: "proxmox_api: user/pass and token_id/token_secret are mutually exclusive"}
	}
	if !hasUserPass && !hasToken {
		return &ConfigError{Reason: "proxmox_api: either user/pass or token_id/token_secret is required"}
	}

	switch c.Balancing.Method {
	case "", "cpu", "memory", "disk":
	default:
		return &ConfigError{Reason: "balancing.method must be one of cpu|memory|disk"}
	}
	switch c.Balancing.Mode {
	case "", "assigned", "used", "psi":
	default:
		return &ConfigError{Reason: "balancing.mode must be one of assigned|used|psi"}
	}

	if c.Service.Daemon {
		if err := validateSchedule(c.Service.Schedule); err != nil {
			return err
		}
		if c.Service.Delay.Enable {
			if err := validateSchedule(c.Service.Delay); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateSchedule(s Schedule) error {
	switch s.Format {
	case "hours", "minutes":
	default:
		return &ConfigError{Reason: fmt.Sprintf("schedule format must be hours|minutes, got %q", s.Format)}
	}
	if s.Interval <= 0 && s.Time <= 0 {
		return &ConfigError{Reason: "schedule interval/time must be > 0"}
	}
	return nil
}
