// Package inventory implements the inventory collector (spec.md 4.1):
// it snapshots nodes, guests, pools and HA rules from the cluster API
// into a fresh world.WorldState.
package inventory

import (
	"context"
	"strings"
	"time"

	"github.com/gyptazy/plb/internal/config"
	"github.com/gyptazy/plb/internal/inventory/cache"
	"github.com/gyptazy/plb/internal/logging"
	"github.com/gyptazy/plb/internal/proxmoxapi"
	"github.com/gyptazy/plb/internal/world"
)

// rateYield is the inter-sample pause between pressure queries (spec.md 4.1
// rate discipline: "yields briefly (~100ms) to avoid hammering the API").
const rateYield = 100 * time.Millisecond

// Collector runs Collect against a cluster API client.
type Collector struct {
	api   proxmoxapi.Client
	cfg   *config.Config
	cache *cache.Cache // optional; nil disables the fallback cache
	log   logging.Logger
}

func New(api proxmoxapi.Client, cfg *config.Config, c *cache.Cache, log logging.Logger) *Collector {
	return &Collector{api: api, cfg: cfg, cache: c, log: log}
}

// Collect builds a fresh WorldState by calling the cluster API to enumerate
// online, non-ignored nodes, then per node its running VMs/CTs, then pools
// and HA rules (spec.md 4.1).
func (c *Collector) Collect(ctx context.Context) (*world.WorldState, error) {
	w := world.NewWorldState()

	ignored := toSet(c.cfg.ProxmoxCluster.IgnoreNodes)
	maintenance := toSet(c.cfg.ProxmoxCluster.MaintenanceNodes)

	nodeInfos, err := c.api.ListNodes(ctx)
	if err != nil {
		// Authentication/permission errors bubble up and terminate the
		// cycle; everything else here is itself a transport error already
		// classified by the client.
		return nil, err
	}

	for _, ni := range nodeInfos {
		if ni.Status != "online" {
			continue
		}
		if ignored[ni.Name] {
			c.log.Warn().Str("node", ni.Name).Msg("node is ignored, excluding from world (guests on it disappear too)")
			continue
		}

		node := &world.Node{Name: ni.Name, Version: ni.Version}
		node.CPU = world.ResourceStat{Total: ni.MaxCPU, Used: ni.CPU * ni.MaxCPU}
		node.Memory = world.ResourceStat{Total: float64(ni.MaxMem), Used: float64(ni.Mem)}
		node.Disk = world.ResourceStat{Total: float64(ni.MaxDisk), Used: float64(ni.Disk)}
		node.RecomputeAll()

		if maintenance[ni.Name] {
			node.Maintenance = true
			c.log.Warn().Str("node", ni.Name).Msg("node set to maintenance mode")
		}

		c.applyReserve(node)
		c.fillNodePressure(ctx, node)

		w.Nodes[node.Name] = node
	}

	for _, node := range w.Nodes {
		for _, guestType := range []string{"vm", "ct"} {
			guests, err := c.api.ListGuests(ctx, node.Name, guestType)
			if err != nil {
				return nil, err
			}
			for _, gi := range guests {
				if gi.Status != "running" {
					c.log.Debug().Str("guest", gi.Name).Msg("guest not running, excluded from inventory")
					continue
				}
				guest := &world.Guest{
					Name: gi.Name, ID: gi.VMID, Type: world.GuestType(guestType),
					NodeCurrent: node.Name, NodeTarget: node.Name,
				}
				guest.CPU = world.ResourceStat{Total: gi.CPUs, Used: gi.CPU * gi.CPUs}
				guest.Memory = world.ResourceStat{Total: float64(gi.MaxMem), Used: float64(gi.Mem)}
				guest.Disk = world.ResourceStat{Total: float64(gi.MaxDisk), Used: float64(gi.Disk)}

				tagStr, err := c.api.GetGuestTags(ctx, node.Name, gi.VMID, guestType)
				if err != nil {
					c.log.Warn().Str("guest", gi.Name).Err(err).Msg("tag fetch failed, treating as untagged")
				} else if tagStr != "" {
					guest.Tags = strings.Split(tagStr, ";")
				}

				c.fillGuestPressure(ctx, node.Name, guest)

				w.Guests[guest.Name] = guest
			}
		}
	}

	pools, err := c.api.ListPools(ctx)
	if err != nil {
		return nil, err
	}
	for _, p := range pools {
		pool := &world.Pool{Name: p.Name}
		if pc, ok := c.cfg.Balancing.Pools[p.Name]; ok {
			pool.Type = world.PoolRelationship(pc.Type)
			pool.Pin = pc.Pin
			pool.Strict = pc.Strict
		}
		for _, vmid := range p.Members {
			// Only members that resolve to a collected guest are kept;
			// members on ignored, offline or absent nodes are dropped.
			if name := guestNameByID(w, vmid); name != "" {
				pool.Members = append(pool.Members, name)
			}
		}
		w.Pools[pool.Name] = pool
	}

	haRules, err := c.api.ListHaRules(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range haRules {
		rule := &world.HaRule{ID: r.ID, Nodes: r.Nodes}
		if r.Affinity == "negative" {
			rule.Type = world.HaAntiAffinity
		} else {
			rule.Type = world.HaAffinity
		}
		for _, res := range r.Resources {
			parts := strings.SplitN(res, ":", 2)
			if len(parts) != 2 {
				continue
			}
			rule.GuestID = append(rule.GuestID, atoiSafe(parts[1]))
		}
		w.HaRules[rule.ID] = rule
	}

	return w, nil
}

func (c *Collector) applyReserve(node *world.Node) {
	reserve, ok := c.cfg.Balancing.NodeResourceReserve[node.Name]
	if !ok {
		reserve, ok = c.cfg.Balancing.NodeResourceReserve["defaults"]
	}
	if !ok {
		return
	}
	for kind, gib := range map[world.ResourceKind]float64{
		world.ResourceCPU:    reserve.CPU,
		world.ResourceMemory: reserve.Memory,
		world.ResourceDisk:   reserve.Disk,
	} {
		if gib <= 0 {
			continue
		}
		if !node.ApplyReserve(kind, gib) {
			c.log.Warn().Str("node", node.Name).Str("resource", kind.String()).
				Msg("resource reservation would drive total below current used value, skipping")
		}
	}
}

func (c *Collector) fillNodePressure(ctx context.Context, node *world.Node) {
	for kind, stat := range map[world.ResourceKind]*world.ResourceStat{
		world.ResourceCPU: &node.CPU, world.ResourceMemory: &node.Memory, world.ResourceDisk: &node.Disk,
	} {
		q, err := c.nodeQuadruple(ctx, node.Name, kind.String())
		if err != nil {
			c.log.Warn().Str("node", node.Name).Str("resource", kind.String()).Err(err).
				Msg("pressure fetch failed, defaulting to zero")
			continue
		}
		stat.Pressure = q
	}
}

func (c *Collector) fillGuestPressure(ctx context.Context, node string, guest *world.Guest) {
	for kind, stat := range map[world.ResourceKind]*world.ResourceStat{
		world.ResourceCPU: &guest.CPU, world.ResourceMemory: &guest.Memory, world.ResourceDisk: &guest.Disk,
	} {
		q, err := c.guestQuadruple(ctx, node, guest.ID, kind.String())
		if err != nil {
			c.log.Warn().Str("guest", guest.Name).Str("resource", kind.String()).Err(err).
				Msg("pressure fetch failed, defaulting to zero")
			continue
		}
		stat.Pressure = q
	}
}

func (c *Collector) nodeQuadruple(ctx context.Context, node, resource string) (world.Quadruple, error) {
	avg, err := c.api.GetNodePressure(ctx, node, resource, proxmoxapi.ConsolidationAverage)
	if err != nil {
		if cached, ok := c.cacheLookup(node, resource, "AVERAGE"); ok {
			avg = cached
		} else {
			return world.Quadruple{}, err
		}
	}
	time.Sleep(rateYield)
	spike, err := c.api.GetNodePressure(ctx, node, resource, proxmoxapi.ConsolidationMax)
	if err != nil {
		if cached, ok := c.cacheLookup(node, resource, "MAX"); ok {
			spike = cached
		} else {
			return world.Quadruple{}, err
		}
	}
	c.cacheStore(node, resource, "AVERAGE", avg)
	c.cacheStore(node, resource, "MAX", spike)
	return quadrupleFrom(avg, spike), nil
}

func (c *Collector) guestQuadruple(ctx context.Context, node string, vmid int, resource string) (world.Quadruple, error) {
	avg, err := c.api.GetGuestPressure(ctx, node, vmid, resource, proxmoxapi.ConsolidationAverage)
	if err != nil {
		return world.Quadruple{}, err
	}
	time.Sleep(rateYield)
	spike, err := c.api.GetGuestPressure(ctx, node, vmid, resource, proxmoxapi.ConsolidationMax)
	if err != nil {
		return world.Quadruple{}, err
	}
	return quadrupleFrom(avg, spike), nil
}

func (c *Collector) cacheLookup(node, resource, cons string) ([]float64, bool) {
	if c.cache == nil {
		return nil, false
	}
	return c.cache.GetPressure(node, resource, cons)
}

func (c *Collector) cacheStore(node, resource, cons string, samples []float64) {
	if c.cache == nil {
		return
	}
	c.cache.SetPressure(node, resource, cons, samples)
}

// quadrupleFrom reduces raw AVERAGE/MAX samples to a Quadruple: *_avg is
// the last averaged sample, *_spike is the max of the last six MAX samples
// (spec.md 4.1).
func quadrupleFrom(avg, spike []float64) world.Quadruple {
	var q world.Quadruple
	if len(avg) > 0 {
		q.SomeAvg = avg[len(avg)-1]
		q.FullAvg = avg[len(avg)-1]
	}
	window := spike
	if len(window) > 6 {
		window = window[len(window)-6:]
	}
	var max float64
	for _, v := range window {
		if v > max {
			max = v
		}
	}
	q.SomeSpike = max
	q.FullSpike = max
	return q
}

func toSet(items []string) map[string]bool {
	s := make(map[string]bool, len(items))
	for _, i := range items {
		s[i] = true
	}
	return s
}

func guestNameByID(w *world.WorldState, vmid int) string {
	for name, g := range w.Guests {
		if g.ID == vmid {
			return name
		}
	}
	return ""
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
