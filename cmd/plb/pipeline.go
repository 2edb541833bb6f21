package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gyptazy/plb/internal/classify"
	"github.com/gyptazy/plb/internal/config"
	"github.com/gyptazy/plb/internal/execute"
	"github.com/gyptazy/plb/internal/featuregate"
	"github.com/gyptazy/plb/internal/group"
	"github.com/gyptazy/plb/internal/inventory"
	"github.com/gyptazy/plb/internal/inventory/cache"
	"github.com/gyptazy/plb/internal/logging"
	"github.com/gyptazy/plb/internal/observer"
	"github.com/gyptazy/plb/internal/plan"
	"github.com/gyptazy/plb/internal/proxmoxapi"
	"github.com/gyptazy/plb/internal/score"
	"github.com/gyptazy/plb/internal/world"
)

// runCycle executes the full pipeline (spec.md section 2) once: inventory,
// feature gating, classification, grouping, scoring, planning, and --
// unless dryRun or bestNode short-circuits it -- execution.
func runCycle(ctx context.Context, cfg *config.Config, log logging.Logger, metrics *observer.Metrics, dryRun, jsonDump, bestNode bool) (int, error) {
	start := time.Now()
	defer func() { metrics.ObserveCycleSeconds(time.Since(start).Seconds()) }()

	api, err := newClient(cfg, log)
	if err != nil {
		return 2, err
	}
	if err := api.Authenticate(ctx); err != nil {
		return 2, err
	}
	if err := api.CheckPermissions(ctx, []string{"Datastore.Audit", "Sys.Audit", "VM.Audit", "VM.Migrate"}); err != nil {
		return 2, err
	}

	var diskCache *cache.Cache
	if c, cerr := cache.Open("plb_cache.db", 0); cerr == nil {
		diskCache = c
		defer diskCache.Close()
	} else {
		log.Warn().Err(cerr).Msg("inventory response cache unavailable, continuing without fallback")
	}

	collector := inventory.New(api, cfg, diskCache, log)
	w, err := collector.Collect(ctx)
	if err != nil {
		return 2, err
	}

	gate := featuregate.Evaluate(w, cfg.Balancing.Mode, featuregate.DefaultCutoff, log)

	classify.New(w, gate, log).Run()
	group.Build(w, log)
	score.New(w, &cfg.Balancing).Run()

	method, _ := world.ParseResourceKind(cfg.Balancing.Method)
	mode, _ := world.ParseBalanceMode(cfg.Balancing.Mode)

	if bestNode {
		node, ok := plan.MostFreeNode(w, method, mode, nil)
		if !ok {
			return 1, fmt.Errorf("no eligible node found")
		}
		fmt.Println(node)
		return 0, nil
	}

	plan.New(w, &cfg.Balancing, log).Run()

	metrics.SnapshotWorld(w)
	plannedCount := 0
	for _, g := range w.Guests {
		if g.Moved() && !g.Ignore {
			plannedCount++
		}
	}
	metrics.SetPlannedMigrations(plannedCount)

	if jsonDump {
		out, err := observer.DumpJSON(w)
		if err != nil {
			return 1, err
		}
		fmt.Println(string(out))
	}

	if dryRun {
		log.Info().Int("planned", plannedCount).Msg("dry run: skipping execution stage")
		return 0, nil
	}

	exec := execute.New(api, &cfg.Balancing, gate, log)
	results := exec.Run(ctx, w)
	for _, r := range results {
		switch r.Status {
		case execute.JobSucceeded:
			metrics.IncSucceeded()
		case execute.JobFailed, execute.JobDispatchFailed:
			metrics.IncFailed()
		case execute.JobAbandoned:
			metrics.IncAbandoned()
		}
	}

	return 0, nil
}

func newClient(cfg *config.Config, log logging.Logger) (proxmoxapi.Client, error) {
	api := cfg.ProxmoxAPI
	client := proxmoxapi.NewHTTPClient(
		api.Hosts, api.User, api.Pass, api.TokenID, api.TokenSecret,
		api.SSLVerification, api.Timeout, api.Retries, api.WaitTime, log,
	)
	return client, nil
}
