// Package execute implements the executor (spec.md 4.7): given committed
// node_target != node_current per non-ignored guest, it issues migrations
// in chunks, waiting for each chunk to drain before starting the next, and
// polls task status to a terminal state or a per-guest soft timeout.
//
// Within a chunk, dispatch uses a bounded worker pool in the style of the
// teacher's findBestMigrationParallel goroutine pool (internal/analyzer/balance.go),
// generalized from scoring migration candidates to waiting on them.
package execute

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gyptazy/plb/internal/config"
	"github.com/gyptazy/plb/internal/logging"
	"github.com/gyptazy/plb/internal/proxmoxapi"
	"github.com/gyptazy/plb/internal/world"
)

// pollInterval is the sleep between task-status polls (spec.md 4.7: 10s).
const pollInterval = 10 * time.Second

// JobStatus is the terminal state of one dispatched migration.
type JobStatus int

const (
	JobSucceeded JobStatus = iota
	JobFailed
	JobAbandoned // soft timeout reached; remote task left running
	JobDispatchFailed
)

// JobResult reports the outcome of one guest's migration.
type JobResult struct {
	Guest  string
	Status JobStatus
	Err    error
}

// Executor dispatches and polls migrations for one planning cycle.
type Executor struct {
	api proxmoxapi.Client
	cfg *config.Balancing
	gate conntrackGate
	log logging.Logger
}

// conntrackGate abstracts the feature gate's verdict on with-conntrack-state,
// avoiding a direct dependency on the featuregate package's Gate type.
type conntrackGate interface {
	WithConntrackStateAllowed() bool
}

type staticGate bool

func (g staticGate) WithConntrackStateAllowed() bool { return bool(g) }

func NewStaticGate(allowed bool) conntrackGate { return staticGate(allowed) }

func New(api proxmoxapi.Client, cfg *config.Balancing, gate conntrackGate, log logging.Logger) *Executor {
	return &Executor{api: api, cfg: cfg, gate: gate, log: log}
}

// Run dispatches every guest with NodeTarget != NodeCurrent (and not
// Ignore) in iteration order, in chunks of chunk_size, waiting for each
// chunk to fully drain before the next begins (I9).
func (e *Executor) Run(ctx context.Context, w *world.WorldState) []JobResult {
	movable := e.movableGuests(w)
	chunkSize := e.chunkSize()

	var results []JobResult
	for start := 0; start < len(movable); start += chunkSize {
		end := start + chunkSize
		if end > len(movable) {
			end = len(movable)
		}
		chunk := movable[start:end]
		results = append(results, e.runChunk(ctx, w, chunk)...)
	}
	return results
}

func (e *Executor) chunkSize() int {
	if e.cfg.Parallel {
		if e.cfg.ParallelJobs > 0 {
			return e.cfg.ParallelJobs
		}
		return 5
	}
	return 1
}

func (e *Executor) movableGuests(w *world.WorldState) []*world.Guest {
	var out []*world.Guest
	for _, name := range w.SortedGuestNames() {
		g := w.Guests[name]
		if g.Ignore || !g.Moved() {
			continue
		}
		out = append(out, g)
	}
	return out
}

// runChunk dispatches every guest in the chunk concurrently, then blocks
// until every dispatched job reaches a terminal or abandoned state before
// returning, enforcing the strict happens-before between chunks (I9).
func (e *Executor) runChunk(ctx context.Context, w *world.WorldState, chunk []*world.Guest) []JobResult {
	results := make([]JobResult, len(chunk))
	var wg sync.WaitGroup
	wg.Add(len(chunk))

	for i, guest := range chunk {
		i, guest := i, guest
		go func() {
			defer wg.Done()
			results[i] = e.dispatchAndWait(ctx, w, guest)
		}()
	}
	wg.Wait()
	return results
}

func (e *Executor) dispatchAndWait(ctx context.Context, w *world.WorldState, guest *world.Guest) JobResult {
	log := logging.ForGuest(e.log, guest.Name, guest.ID)

	if !e.typeAllowed(guest.Type) {
		log.Error().Str("type", string(guest.Type)).Msg("unknown/unconfigured guest type, skipping dispatch")
		return JobResult{Guest: guest.Name, Status: JobDispatchFailed, Err: fmt.Errorf("type %q not in balance_types", guest.Type)}
	}

	upid, err := e.dispatch(ctx, guest)
	if err != nil {
		log.Error().Err(err).Msg("migration dispatch failed, guest will not be waited on")
		return JobResult{Guest: guest.Name, Status: JobDispatchFailed, Err: err}
	}

	log = logging.ForJob(log, upid)
	status, err := e.poll(ctx, log, guest.NodeCurrent, guest.ID, upid)
	return JobResult{Guest: guest.Name, Status: status, Err: err}
}

func (e *Executor) typeAllowed(t world.GuestType) bool {
	for _, bt := range e.cfg.BalanceTypes {
		if bt == string(t) {
			return true
		}
	}
	return false
}

func (e *Executor) dispatch(ctx context.Context, guest *world.Guest) (string, error) {
	switch guest.Type {
	case world.GuestVM:
		opts := proxmoxapi.MigrateVMOptions{
			Target:             guest.NodeTarget,
			Online:             e.cfg.IsLive(),
			WithLocalDisks:     e.cfg.WithLocalDisks,
			WithConntrackState: e.cfg.WithConntrackState && e.gate.WithConntrackStateAllowed(),
		}
		return e.api.MigrateVM(ctx, guest.NodeCurrent, guest.ID, opts)
	case world.GuestCT:
		opts := proxmoxapi.MigrateCTOptions{Target: guest.NodeTarget, Restart: true}
		return e.api.MigrateCT(ctx, guest.NodeCurrent, guest.ID, opts)
	default:
		return "", fmt.Errorf("unsupported guest type %q", guest.Type)
	}
}

// poll implements spec.md 4.7's task-status state machine as a bounded
// loop (not recursion, per spec.md 9): sleep pollInterval between checks,
// resolve HA-wrapped migrations to their underlying qemu-migrate task, and
// abandon (without cancelling) once retries reach max_job_validation.
func (e *Executor) poll(ctx context.Context, log logging.Logger, node string, vmid int, upid string) (JobStatus, error) {
	maxRetries := e.cfg.MaxJobValidation
	if maxRetries <= 0 {
		maxRetries = 1800
	}

	activeUPID := upid
	resolvedHAWrapper := false

	for retry := 0; retry < maxRetries; retry++ {
		status, err := e.api.GetTaskStatus(ctx, node, activeUPID)
		if err != nil {
			return JobFailed, err
		}

		if !resolvedHAWrapper && status.Type == "hamigrate" {
			if qmigrate, found, ferr := e.api.FindActiveTask(ctx, node, "qmigrate", vmid); ferr == nil && found {
				activeUPID = qmigrate
			}
			resolvedHAWrapper = true
		}

		if status.Status == "stopped" {
			if status.ExitStatus == "OK" {
				return JobSucceeded, nil
			}
			log.Error().Str("exit_status", status.ExitStatus).Msg("migration task failed")
			return JobFailed, fmt.Errorf("task %s exited with status %q", activeUPID, status.ExitStatus)
		}

		select {
		case <-ctx.Done():
			return JobAbandoned, ctx.Err()
		case <-time.After(pollInterval):
		}
	}

	log.Warn().Int("retries", maxRetries).Msg("soft timeout reached, abandoning poll without cancelling remote task")
	return JobAbandoned, nil
}
