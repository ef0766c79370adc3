package distributor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gridd/pkg/types"
)

func (d *Distributor) healthLoop() {
	defer d.wg.Done()
	t := time.NewTicker(d.cfg.HealthCheckInterval)
	defer t.Stop()
	for {
		select {
		case <-d.baseCtx.Done():
			return
		case <-t.C:
			d.CheckNodes()
		}
	}
}

// CheckNodes probes every registered node once and applies the outcomes.
// The health loop calls it on its interval; exported so tests and operators
// can force a round.
func (d *Distributor) CheckNodes() {
	d.mu.RLock()
	targets := make(map[types.NodeID]Node, len(d.nodes))
	for id, e := range d.nodes {
		targets[id] = e.node
	}
	d.mu.RUnlock()

	var wg sync.WaitGroup
	for id, n := range targets {
		wg.Add(1)
		go func(id types.NodeID, n Node) {
			defer wg.Done()
			d.probe(id, n)
		}(id, n)
	}
	wg.Wait()
	d.evictStale()
}

// probe runs one health check against a node. A reachable node that reports
// down counts as a failed check; enough consecutive failures evict the node.
func (d *Distributor) probe(id types.NodeID, n Node) {
	ctx, cancel := context.WithTimeout(d.baseCtx, d.cfg.ProbeTimeout)
	st, err := n.Status(ctx)
	cancel()

	down := err == nil && st.Availability == types.AvailabilityDown

	d.mu.Lock()
	e, ok := d.nodes[id]
	if !ok || e.node != n {
		// Evicted or replaced while the probe was in flight.
		d.mu.Unlock()
		return
	}
	if err == nil {
		refreshed := st
		refreshed.NodeID = id
		if refreshed.NodeURI == "" {
			refreshed.NodeURI = e.status.NodeURI
		}
		refreshed.LastHealthCheckAt = time.Now()
		e.adoptStatus(refreshed)
		e.lastSeen = time.Now()
	}
	evict := false
	reason := ""
	if err == nil && !down {
		e.failures = 0
	} else {
		e.failures++
		switch {
		case d.cfg.EvictOnFirstDown && down:
			evict, reason = true, "node reported down"
		case e.failures >= d.cfg.DownThreshold:
			evict, reason = true, fmt.Sprintf("%d consecutive failed health checks", e.failures)
		}
	}
	failures := e.failures
	d.mu.Unlock()

	if err != nil {
		d.log.Warn().Err(err).Str("node_id", string(id)).Int("failures", failures).Msg("health check failed")
	} else if down {
		d.log.Warn().Str("node_id", string(id)).Int("failures", failures).Msg("node reports down")
	}
	if evict {
		d.evict(id, reason)
	}
}

// evictStale removes nodes whose last sign of life is older than their
// heartbeat budget, whatever their probe history says.
func (d *Distributor) evictStale() {
	now := time.Now()
	d.mu.RLock()
	var stale []types.NodeID
	for id, e := range d.nodes {
		if now.Sub(e.lastSeen) > e.heartbeatBudget(d.cfg.FallbackHeartbeatPeriod, d.cfg.HeartbeatBudget) {
			stale = append(stale, id)
		}
	}
	d.mu.RUnlock()
	for _, id := range stale {
		d.evict(id, "no heartbeat within budget")
	}
}
