// Package directory holds the authoritative mapping from session id to the
// node that owns the session. The distributor writes to it on session
// creation and eviction; the HTTP layer reads from it to route by session id.
package directory

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"gridd/pkg/types"
)

// Directory is a concurrency-safe session index. The zero value is not
// usable; construct with New.
type Directory struct {
	mu       sync.RWMutex
	sessions map[types.SessionID]types.Session
	log      zerolog.Logger
}

func New() *Directory {
	return &Directory{
		sessions: make(map[types.SessionID]types.Session),
		log:      zerolog.Nop(),
	}
}

// SetLogger replaces the no-op default logger.
func (d *Directory) SetLogger(l zerolog.Logger) {
	d.mu.Lock()
	d.log = l
	d.mu.Unlock()
}

// Add records a new session. Adding an id that is already present fails; a
// session id is bound to exactly one node for its lifetime.
func (d *Directory) Add(s types.Session) error {
	if s.ID == "" {
		return ErrInvalidSession("empty session id")
	}
	if s.NodeID == "" {
		return ErrInvalidSession("session has no owning node")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.sessions[s.ID]; ok {
		return ErrDuplicateSession(s.ID)
	}
	d.sessions[s.ID] = s
	d.log.Debug().Str("session_id", string(s.ID)).Str("node_id", string(s.NodeID)).Msg("session added")
	return nil
}

// Get returns the session for id.
func (d *Directory) Get(id types.SessionID) (types.Session, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	s, ok := d.sessions[id]
	if !ok {
		return types.Session{}, ErrSessionNotFound(id)
	}
	return s, nil
}

// Remove drops the session for id. Removing an unknown id is a no-op; the
// return value reports whether anything was removed.
func (d *Directory) Remove(id types.SessionID) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.sessions[id]; !ok {
		return false
	}
	delete(d.sessions, id)
	d.log.Debug().Str("session_id", string(id)).Msg("session removed")
	return true
}

// RemoveByNode drops every session owned by nodeID and returns the removed
// sessions. Used when a node is evicted so no stale routes survive it.
func (d *Directory) RemoveByNode(nodeID types.NodeID) []types.Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	var removed []types.Session
	for id, s := range d.sessions {
		if s.NodeID == nodeID {
			removed = append(removed, s)
			delete(d.sessions, id)
		}
	}
	if len(removed) > 0 {
		d.log.Debug().Str("node_id", string(nodeID)).Int("count", len(removed)).Msg("node sessions removed")
	}
	sort.Slice(removed, func(i, j int) bool { return removed[i].ID < removed[j].ID })
	return removed
}

// Sessions returns a snapshot of all live sessions, ordered by id.
func (d *Directory) Sessions() []types.Session {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]types.Session, 0, len(d.sessions))
	for _, s := range d.sessions {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len reports the number of live sessions.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.sessions)
}
