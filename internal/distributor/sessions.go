package distributor

import (
	"context"

	"gridd/internal/eventbus"
	"gridd/internal/node"
	"gridd/pkg/types"
)

// QuerySession looks up which node owns a session.
func (d *Distributor) QuerySession(id types.SessionID) (types.Session, error) {
	return d.dir.Get(id)
}

// Sessions lists every live session, ordered by id.
func (d *Distributor) Sessions() []types.Session {
	return d.dir.Sessions()
}

// StopSession ends a session: the owning node releases its slot, the
// directory forgets the id, and listeners hear session-closed. Unknown ids
// come back as the directory's not-found error.
func (d *Distributor) StopSession(ctx context.Context, id types.SessionID) error {
	sess, err := d.dir.Get(id)
	if err != nil {
		return err
	}

	d.mu.RLock()
	var n Node
	if e, ok := d.nodes[sess.NodeID]; ok {
		n = e.node
	}
	d.mu.RUnlock()

	if n != nil {
		// The node may have lost the session on its own already; that
		// does not block the directory cleanup.
		if err := n.Stop(ctx, id); err != nil && !node.IsSessionNotFound(err) {
			d.log.Warn().Err(err).Str("session_id", string(id)).Msg("node-side stop failed")
		}
	}

	d.dir.Remove(id)
	d.releaseCachedSlot(sess.NodeID, id)
	d.publish(eventbus.Event{
		Type:      eventbus.SessionClosed,
		NodeID:    sess.NodeID,
		NodeURI:   sess.NodeURI,
		SessionID: id,
		Fields:    map[string]any{"reason": "stopped"},
	})
	d.log.Info().Str("session_id", string(id)).Str("node_id", string(sess.NodeID)).Msg("session stopped")
	d.kick()
	return nil
}
