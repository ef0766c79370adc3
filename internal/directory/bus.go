package directory

import "gridd/internal/eventbus"

// busSource is the slice of a bus the directory needs: just subscription.
type busSource interface {
	Subscribe(handler func(eventbus.Event), only ...eventbus.EventType) func()
}

// AttachBus keeps the directory consistent with events published by other
// components: a session-closed event removes that session, a node-removed
// event removes everything the node owned. Removal is idempotent, so events
// that duplicate direct cleanup are harmless. The returned function detaches.
func (d *Directory) AttachBus(b busSource) func() {
	unsub := b.Subscribe(func(e eventbus.Event) {
		switch e.Type {
		case eventbus.SessionClosed:
			if e.SessionID != "" {
				d.Remove(e.SessionID)
			}
		case eventbus.NodeRemoved:
			if e.NodeID != "" {
				d.RemoveByNode(e.NodeID)
			}
		}
	}, eventbus.SessionClosed, eventbus.NodeRemoved)
	return unsub
}
