// Package node implements the worker side of the grid: a set of slots, each
// able to materialize sessions for one capability stereotype. A node claims a
// slot atomically, runs its session factory outside the lock, and only then
// commits the session onto the slot. The same type backs in-process nodes and
// the node agent process; Remote wraps a node reachable over HTTP.
package node

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"gridd/pkg/types"
)

// LocalNode owns slots and the sessions running on them. Construct with New.
type LocalNode struct {
	cfg Config
	log zerolog.Logger

	mu              sync.RWMutex
	slots           []*slot
	availability    types.Availability
	lastHealthCheck time.Time
}

type slot struct {
	stereotype types.Capabilities
	state      types.SlotState
	sessionID  types.SessionID
	requested  types.Capabilities
	negotiated types.Capabilities
	startedAt  time.Time
}

func New(cfg Config) (*LocalNode, error) {
	cfg = cfg.withDefaults()
	n := &LocalNode{
		cfg:          cfg,
		log:          zerolog.Nop(),
		availability: types.AvailabilityUp,
	}
	for _, spec := range cfg.Slots {
		if spec.Count <= 0 {
			return nil, fmt.Errorf("slot spec for %s has count %d", spec.Stereotype, spec.Count)
		}
		for i := 0; i < spec.Count; i++ {
			n.slots = append(n.slots, &slot{
				stereotype: spec.Stereotype.Clone(),
				state:      types.SlotAvailable,
			})
		}
	}
	if len(n.slots) == 0 {
		return nil, fmt.Errorf("node %s has no slots", cfg.ID)
	}
	return n, nil
}

// SetLogger replaces the no-op default logger.
func (n *LocalNode) SetLogger(l zerolog.Logger) {
	n.mu.Lock()
	n.log = l
	n.mu.Unlock()
}

func (n *LocalNode) ID() types.NodeID { return n.cfg.ID }

func (n *LocalNode) URI() string { return n.cfg.URI }

// NewSession claims a free slot matching one of the request's profiles, runs
// the session factory outside the slot lock, and commits the session. The
// claim is atomic: two concurrent calls can never land on the same slot.
func (n *LocalNode) NewSession(ctx context.Context, req types.SessionRequest) (types.Session, error) {
	n.mu.Lock()
	if n.availability != types.AvailabilityUp {
		n.mu.Unlock()
		return types.Session{}, ErrNoCapacity("node is " + string(n.availability))
	}
	var claimed *slot
	var profile types.Capabilities
	for _, caps := range req.Capabilities {
		for _, s := range n.slots {
			if s.state == types.SlotAvailable && s.stereotype.Contains(caps) {
				claimed = s
				profile = caps
				break
			}
		}
		if claimed != nil {
			break
		}
	}
	if claimed == nil {
		n.mu.Unlock()
		return types.Session{}, ErrNoCapacity("no free slot matches the requested capabilities")
	}
	claimed.state = types.SlotReserved
	n.mu.Unlock()

	// Slow path runs unlocked so other slots stay claimable meanwhile.
	negotiated, err := n.cfg.Factory.Create(ctx, claimed.stereotype.Clone(), profile.Clone())

	n.mu.Lock()
	defer n.mu.Unlock()
	if err != nil {
		claimed.state = types.SlotAvailable
		return types.Session{}, fmt.Errorf("creating session: %w", err)
	}
	sess := types.Session{
		ID:                     types.SessionID(types.NewID()),
		NodeID:                 n.cfg.ID,
		NodeURI:                n.cfg.URI,
		RequestedCapabilities:  profile.Clone(),
		NegotiatedCapabilities: negotiated.Clone(),
		StartedAt:              time.Now(),
	}
	claimed.state = types.SlotOccupied
	claimed.sessionID = sess.ID
	claimed.requested = sess.RequestedCapabilities
	claimed.negotiated = sess.NegotiatedCapabilities
	claimed.startedAt = sess.StartedAt
	n.log.Debug().Str("session_id", string(sess.ID)).Msg("session started")
	return sess, nil
}

// Stop releases the slot running the given session. Stopping a session that
// is unknown or already released is a no-op, so retried and crossed-over
// teardowns stay harmless.
func (n *LocalNode) Stop(_ context.Context, id types.SessionID) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, s := range n.slots {
		if s.state == types.SlotOccupied && s.sessionID == id {
			s.state = types.SlotAvailable
			s.sessionID = ""
			s.requested = nil
			s.negotiated = nil
			n.log.Debug().Str("session_id", string(id)).Msg("session stopped")
			return nil
		}
	}
	n.log.Debug().Str("session_id", string(id)).Msg("stop for unknown session ignored")
	return nil
}

// Status reports availability and per-slot occupancy. When the node carries
// a health-check predicate it runs here, its result cached as the new
// availability; draining is never overridden.
func (n *LocalNode) Status(_ context.Context) (types.NodeStatus, error) {
	var checked types.Availability
	if n.cfg.HealthCheck != nil {
		// Run outside the lock; predicates may do real probing.
		checked = n.cfg.HealthCheck()
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.cfg.HealthCheck != nil && n.availability != types.AvailabilityDraining {
		n.availability = checked
	}
	n.lastHealthCheck = time.Now()
	st := types.NodeStatus{
		NodeID:            n.cfg.ID,
		NodeURI:           n.cfg.URI,
		Availability:      n.availability,
		HeartbeatPeriod:   n.cfg.HeartbeatPeriod,
		Slots:             make([]types.SlotStatus, 0, len(n.slots)),
		LastHealthCheckAt: n.lastHealthCheck,
	}
	for _, s := range n.slots {
		st.Slots = append(st.Slots, types.SlotStatus{
			Stereotype:    s.stereotype.Clone(),
			State:         s.state,
			SessionID:     s.sessionID,
			LastStartedAt: s.startedAt,
		})
	}
	return st, nil
}

// Sessions lists the sessions currently occupying slots.
func (n *LocalNode) Sessions() []types.Session {
	n.mu.RLock()
	defer n.mu.RUnlock()
	var out []types.Session
	for _, s := range n.slots {
		if s.state == types.SlotOccupied {
			out = append(out, types.Session{
				ID:                     s.sessionID,
				NodeID:                 n.cfg.ID,
				NodeURI:                n.cfg.URI,
				RequestedCapabilities:  s.requested.Clone(),
				NegotiatedCapabilities: s.negotiated.Clone(),
				StartedAt:              s.startedAt,
			})
		}
	}
	return out
}

// Drain stops the node from accepting new sessions; running ones finish
// normally. Draining a node that is already down is a no-op.
func (n *LocalNode) Drain() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.availability == types.AvailabilityUp {
		n.availability = types.AvailabilityDraining
		n.log.Info().Str("node_id", string(n.cfg.ID)).Msg("node draining")
	}
}

// SetAvailability overrides the advertised health state. Mainly for
// shutdown paths and failure injection in tests; with a health-check
// predicate configured, the override lasts until the next snapshot
// recomputes it.
func (n *LocalNode) SetAvailability(a types.Availability) {
	n.mu.Lock()
	n.availability = a
	n.mu.Unlock()
}

// IsDrained reports whether the node is draining with no live sessions left.
func (n *LocalNode) IsDrained() bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.availability != types.AvailabilityDraining {
		return false
	}
	for _, s := range n.slots {
		if s.state != types.SlotAvailable {
			return false
		}
	}
	return true
}
