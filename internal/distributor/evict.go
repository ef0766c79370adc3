package distributor

import (
	"gridd/internal/eventbus"
	"gridd/pkg/types"
)

// evict removes a node and everything that depended on it in one sweep: the
// registry entry goes first so no new placements start, then the directory
// forgets the node's sessions, then listeners hear about it. Reports whether
// the node was present.
func (d *Distributor) evict(id types.NodeID, reason string) bool {
	d.mu.Lock()
	e, ok := d.nodes[id]
	if !ok {
		d.mu.Unlock()
		return false
	}
	delete(d.nodes, id)
	uri := e.status.NodeURI
	d.mu.Unlock()

	removed := d.dir.RemoveByNode(id)
	for _, s := range removed {
		d.publish(eventbus.Event{
			Type:      eventbus.SessionClosed,
			NodeID:    id,
			NodeURI:   uri,
			SessionID: s.ID,
			Fields:    map[string]any{"reason": reason},
		})
	}
	d.publish(eventbus.Event{
		Type:    eventbus.NodeRemoved,
		NodeID:  id,
		NodeURI: uri,
		Fields:  map[string]any{"reason": reason},
	})
	d.log.Warn().
		Str("node_id", string(id)).
		Str("reason", reason).
		Int("sessions_dropped", len(removed)).
		Msg("node removed")
	d.kick()
	return true
}
