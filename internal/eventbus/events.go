package eventbus

import "gridd/pkg/types"

// EventType names a grid lifecycle event.
type EventType string

const (
	// NodeAdded fires when a node joins the registry.
	NodeAdded EventType = "node-added"
	// NodeRemoved fires when a node is evicted or deregistered.
	NodeRemoved EventType = "node-removed"
	// NodeHeartbeat fires when a node reports liveness.
	NodeHeartbeat EventType = "node-heartbeat"
	// SessionCreated fires when a session is committed to the directory.
	SessionCreated EventType = "session-created"
	// SessionClosed fires when a session ends for any reason.
	SessionClosed EventType = "session-closed"
)

// Event is one grid lifecycle notification. Minimal and stable: type plus the
// affected identities, with optional extras via key/values.
type Event struct {
	Type      EventType
	NodeID    types.NodeID
	NodeURI   string
	SessionID types.SessionID
	Fields    map[string]any
}

// Publisher receives events from grid components. Implementations must be
// lightweight and non-blocking; Publish must not panic.
type Publisher interface {
	Publish(Event)
}

// NopPublisher drops events. It is the default wherever a Publisher is
// optional.
type NopPublisher struct{}

func (NopPublisher) Publish(Event) {}
