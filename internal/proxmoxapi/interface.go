// Package proxmoxapi defines the cluster API client contract consumed by
// the rebalancer (spec.md section 6) and an HTTP implementation of it,
// adapted from the teacher's internal/proxmox client but re-scoped to the
// operations inventory/execution actually need: node/guest enumeration,
// RRD pressure data, pools, HA rules, and migration + task polling.
package proxmoxapi

import "context"

// Consolidation selects the RRD aggregation function for a pressure query.
type Consolidation string

const (
	ConsolidationAverage Consolidation = "AVERAGE"
	ConsolidationMax     Consolidation = "MAX"
)

// NodeInfo is one cluster node as reported by /nodes.
type NodeInfo struct {
	Name    string
	Status  string // "online" | "offline" | ...
	Version string
	MaxCPU  float64
	CPU     float64 // used fraction, 0..1
	MaxMem  int64
	Mem     int64
	MaxDisk int64
	Disk    int64
}

// GuestInfo is one VM or CT as reported by /nodes/<node>/qemu or /lxc.
type GuestInfo struct {
	VMID    int
	Name    string
	Status  string // "running" | "stopped" | ...
	Type    string // "vm" | "ct"
	CPUs    float64
	CPU     float64
	MaxMem  int64
	Mem     int64
	MaxDisk int64
	Disk    int64
	Tags    string // semicolon-delimited
}

// PoolInfo is one resource pool and its members.
type PoolInfo struct {
	Name    string
	Members []int // guest vmids; membership by name resolved by the caller
}

// HaRuleInfo is one (enabled) HA resource-affinity rule.
type HaRuleInfo struct {
	ID       string
	Affinity string // "positive" | "negative" per the wire format
	Disabled bool
	Resources []string // "type:id" pairs, e.g. "vm:100"
	Nodes    []string
}

// TaskStatus is the result of polling a task's status (spec.md 4.7).
type TaskStatus struct {
	UPID       string
	Type       string // e.g. "qmigrate", "hamigrate", "vzmigrate"
	Status     string // "running" | "stopped"
	ExitStatus string // "OK" | error text, only meaningful once Status=="stopped"
}

// MigrateVMOptions are the options passed to a live VM migration.
type MigrateVMOptions struct {
	Target             string
	Online             bool
	WithLocalDisks     bool
	WithConntrackState bool // only set when the feature gate allows it
}

// MigrateCTOptions are the options passed to a container restart-migration.
type MigrateCTOptions struct {
	Target  string
	Restart bool
}

// Client is the cluster API contract the rebalancer depends on. An HTTP
// implementation lives in client.go; tests use a fake satisfying this
// interface directly.
type Client interface {
	Authenticate(ctx context.Context) error

	ListNodes(ctx context.Context) ([]NodeInfo, error)
	ListGuests(ctx context.Context, node string, guestType string) ([]GuestInfo, error)
	GetGuestTags(ctx context.Context, node string, vmid int, guestType string) (string, error)

	// GetNodePressure and GetGuestPressure fetch an hourly RRD time-series
	// for the given resource on a node or guest, consolidated by cons, and
	// return the raw samples. The caller reduces them to a Quadruple
	// (spec.md 4.1: AVERAGE feeds *_avg, MAX over the last six samples
	// feeds *_spike).
	GetNodePressure(ctx context.Context, node string, resource string, cons Consolidation) ([]float64, error)
	GetGuestPressure(ctx context.Context, node string, vmid int, resource string, cons Consolidation) ([]float64, error)

	ListPools(ctx context.Context) ([]PoolInfo, error)
	ListHaRules(ctx context.Context) ([]HaRuleInfo, error)

	MigrateVM(ctx context.Context, node string, vmid int, opts MigrateVMOptions) (upid string, err error)
	MigrateCT(ctx context.Context, node string, vmid int, opts MigrateCTOptions) (upid string, err error)

	GetTaskStatus(ctx context.Context, node string, upid string) (TaskStatus, error)
	// FindActiveTask resolves an HA-wrapped migration to its underlying
	// qemu-migrate task: list the source node's active tasks filtered by
	// type, vmid, and source=="active", limit 1 (spec.md 4.7).
	FindActiveTask(ctx context.Context, node string, typeFilter string, vmid int) (upid string, found bool, err error)

	CheckPermissions(ctx context.Context, required []string) error
}
