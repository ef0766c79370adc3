package distributor

import (
	"context"
	"fmt"
	"time"

	"gridd/internal/eventbus"
	"gridd/pkg/types"
)

// nodeEntry is the distributor's bookkeeping for one registered node. status
// is the last snapshot the node reported; reserved marks slot indexes held
// by in-flight placements so concurrent passes cannot double-book while the
// create runs unlocked.
type nodeEntry struct {
	node     Node
	status   types.NodeStatus
	reserved map[int]bool
	draining bool
	lastSeen time.Time
	failures int
}

// snapshot merges the cached report with scheduler-side state: reserved
// slots show as reserved, a drained node shows as draining even if it still
// reports up.
func (e *nodeEntry) snapshot() types.NodeStatus {
	st := e.status
	slots := make([]types.SlotStatus, len(st.Slots))
	copy(slots, st.Slots)
	for i := range slots {
		slots[i].Stereotype = slots[i].Stereotype.Clone()
		if e.reserved[i] && slots[i].State == types.SlotAvailable {
			slots[i].State = types.SlotReserved
		}
	}
	st.Slots = slots
	if e.draining && st.Availability == types.AvailabilityUp {
		st.Availability = types.AvailabilityDraining
	}
	return st
}

// adoptStatus replaces the cached report, dropping reservations that no
// longer point at a real slot.
func (e *nodeEntry) adoptStatus(st types.NodeStatus) {
	e.status = st
	for i := range e.reserved {
		if i >= len(st.Slots) {
			delete(e.reserved, i)
		}
	}
}

// heartbeatBudget is how long the node may stay silent before it counts as
// lost.
func (e *nodeEntry) heartbeatBudget(fallback time.Duration, periods int) time.Duration {
	period := e.status.HeartbeatPeriod
	if period <= 0 {
		period = fallback
	}
	return time.Duration(periods) * period
}

// AddNode registers n, probing it once for its initial status.
func (d *Distributor) AddNode(ctx context.Context, n Node) error {
	probeCtx, cancel := context.WithTimeout(ctx, d.cfg.ProbeTimeout)
	defer cancel()
	st, err := n.Status(probeCtx)
	if err != nil {
		return fmt.Errorf("probing node %s: %w", n.ID(), err)
	}
	return d.AddNodeStatus(n, st)
}

// AddNodeStatus registers n with a status the caller already has, skipping
// the initial probe. Registering an id that already exists replaces the old
// registration wholesale; sessions recorded against the old one are closed
// out, since a re-registering node lost them.
func (d *Distributor) AddNodeStatus(n Node, st types.NodeStatus) error {
	id := n.ID()
	if id == "" {
		return ErrInvalidNode("empty node id")
	}
	if st.NodeID == "" {
		st.NodeID = id
	}
	if st.NodeID != id {
		return ErrInvalidNode(fmt.Sprintf("status for %s offered under id %s", st.NodeID, id))
	}
	if st.NodeURI == "" {
		st.NodeURI = n.URI()
	}
	if len(st.Slots) == 0 {
		return ErrInvalidNode("node offers no slots")
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed()
	}
	_, existed := d.nodes[id]
	d.nodes[id] = &nodeEntry{
		node:     n,
		status:   st,
		reserved: make(map[int]bool),
		lastSeen: time.Now(),
	}
	d.mu.Unlock()

	if existed {
		// A fresh registration means the old incarnation is gone along
		// with whatever it was running.
		for _, s := range d.dir.RemoveByNode(id) {
			d.publish(eventbus.Event{Type: eventbus.SessionClosed, NodeID: id, SessionID: s.ID,
				Fields: map[string]any{"reason": "node re-registered"}})
		}
		d.log.Info().Str("node_id", string(id)).Msg("node re-registered")
	} else {
		d.log.Info().Str("node_id", string(id)).Str("node_uri", st.NodeURI).Int("slots", len(st.Slots)).Msg("node added")
	}
	d.publish(eventbus.Event{Type: eventbus.NodeAdded, NodeID: id, NodeURI: st.NodeURI})
	d.kick()
	return nil
}

// RemoveNode deregisters a node voluntarily. Same cleanup as an eviction;
// removing an unknown id is a no-op.
func (d *Distributor) RemoveNode(id types.NodeID) bool {
	return d.evict(id, "deregistered")
}

// DrainNode stops new placements onto the node while its sessions finish.
func (d *Distributor) DrainNode(id types.NodeID) error {
	d.mu.Lock()
	e, ok := d.nodes[id]
	if !ok {
		d.mu.Unlock()
		return ErrNodeNotFound(id)
	}
	e.draining = true
	n := e.node
	d.mu.Unlock()

	if dn, ok := n.(Drainer); ok {
		dn.Drain()
	}
	d.log.Info().Str("node_id", string(id)).Msg("node draining")
	return nil
}

// Heartbeat records a sign of life from a node. A non-nil status refreshes
// the cached snapshot too, the way node agents piggyback their state onto
// heartbeats.
func (d *Distributor) Heartbeat(id types.NodeID, st *types.NodeStatus) error {
	d.mu.Lock()
	e, ok := d.nodes[id]
	if !ok {
		d.mu.Unlock()
		return ErrNodeNotFound(id)
	}
	e.lastSeen = time.Now()
	if st != nil {
		refreshed := *st
		refreshed.NodeID = id
		if refreshed.NodeURI == "" {
			refreshed.NodeURI = e.status.NodeURI
		}
		e.adoptStatus(refreshed)
	}
	uri := e.status.NodeURI
	d.mu.Unlock()

	d.publish(eventbus.Event{Type: eventbus.NodeHeartbeat, NodeID: id, NodeURI: uri})
	d.kick()
	return nil
}

// Nodes returns merged snapshots of every registered node, ordered by id.
func (d *Distributor) Nodes() []types.NodeStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.nodesLocked()
}

func (d *Distributor) nodesLocked() []types.NodeStatus {
	out := make([]types.NodeStatus, 0, len(d.nodes))
	for _, e := range d.nodes {
		out = append(out, e.snapshot())
	}
	sortNodeStatuses(out)
	return out
}
