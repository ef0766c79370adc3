package distributor

import (
	"context"
	"time"

	"gridd/internal/eventbus"
	"gridd/pkg/types"
)

func (d *Distributor) scheduleLoop() {
	defer d.wg.Done()
	t := time.NewTicker(d.cfg.RetryInterval)
	defer t.Stop()
	for {
		select {
		case <-d.baseCtx.Done():
			return
		case <-d.q.Wake():
		case <-d.kickCh:
		case <-t.C:
		}
		d.runPass()
	}
}

// runPass walks the backlog oldest-first and tries to place each claimable
// request once. Failed attempts stay claimed until the pass is over, so an
// unplaceable request at the head never hides the rest of the backlog; the
// claims are released in bulk at the end and the requests keep their
// positions for the next pass.
func (d *Distributor) runPass() {
	var failed []types.RequestID
	defer func() {
		for _, id := range failed {
			d.q.Release(id)
		}
	}()

	tried := make(map[types.RequestID]bool)
	for {
		if d.baseCtx.Err() != nil {
			return
		}
		req, deadline, ok := d.q.NextCandidate()
		if !ok {
			return
		}
		if tried[req.RequestID] {
			// Should not happen while failed claims are held; end the
			// pass rather than loop on it.
			return
		}
		tried[req.RequestID] = true

		ctx, cancel := context.WithDeadline(d.baseCtx, deadline)
		sess, err := d.place(ctx, req)
		cancel()

		if err != nil {
			if err != errNoCandidate {
				d.log.Debug().Err(err).Str("request_id", string(req.RequestID)).Msg("placement attempt failed")
			}
			failed = append(failed, req.RequestID)
			continue
		}

		if d.q.Complete(req.RequestID, sess, nil) {
			d.log.Info().
				Str("request_id", string(req.RequestID)).
				Str("session_id", string(sess.ID)).
				Str("node_id", string(sess.NodeID)).
				Dur("waited", time.Since(req.SubmittedAt)).
				Msg("session created")
			d.publish(eventbus.Event{Type: eventbus.SessionCreated, NodeID: sess.NodeID, NodeURI: sess.NodeURI, SessionID: sess.ID})
		} else {
			// The request resolved while the create ran (timeout or
			// caller gone). Nobody owns the session now; tear it down.
			d.unwind(sess)
		}
	}
}

// place reserves a slot under the lock, runs the node create unlocked, then
// commits the result. Any failure lands the request back in the backlog.
func (d *Distributor) place(ctx context.Context, req types.SessionRequest) (types.Session, error) {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return types.Session{}, ErrClosed()
	}
	nodeID, slotIdx, ok := d.findSlotLocked(req)
	if !ok {
		d.mu.Unlock()
		return types.Session{}, errNoCandidate
	}
	e := d.nodes[nodeID]
	e.reserved[slotIdx] = true
	n := e.node
	d.mu.Unlock()

	// The create may block on real work; holding the registry lock across
	// it would stall every other scheduling and status path.
	sess, err := n.NewSession(ctx, req)

	d.mu.Lock()
	cur, present := d.nodes[nodeID]
	if present && cur == e {
		delete(e.reserved, slotIdx)
	}
	if err != nil {
		d.mu.Unlock()
		return types.Session{}, err
	}
	if !present || cur != e {
		d.mu.Unlock()
		d.stopSessionOn(n, sess.ID)
		return types.Session{}, errNodeVanished
	}
	if slotIdx < len(e.status.Slots) {
		e.status.Slots[slotIdx].State = types.SlotOccupied
		e.status.Slots[slotIdx].SessionID = sess.ID
		e.status.Slots[slotIdx].LastStartedAt = sess.StartedAt
	}
	d.mu.Unlock()

	if err := d.dir.Add(sess); err != nil {
		d.releaseCachedSlot(sess.NodeID, sess.ID)
		d.stopSessionOn(n, sess.ID)
		return types.Session{}, err
	}
	return sess, nil
}

// findSlotLocked walks the request's profiles in order and picks a node via
// the selector. Returns the reserved slot's index in the node's cached
// status.
func (d *Distributor) findSlotLocked(req types.SessionRequest) (types.NodeID, int, bool) {
	for _, profile := range req.Capabilities {
		var candidates []types.NodeStatus
		for _, e := range d.nodes {
			st := e.snapshot()
			if st.Availability != types.AvailabilityUp {
				continue
			}
			if slotIndexFor(st, profile, d.cfg.Matcher) >= 0 {
				candidates = append(candidates, st)
			}
		}
		if len(candidates) == 0 {
			continue
		}
		sortNodeStatuses(candidates)
		id, ok := d.cfg.Selector.Select(candidates, profile)
		if !ok {
			continue
		}
		e, present := d.nodes[id]
		if !present {
			continue
		}
		if idx := slotIndexFor(e.snapshot(), profile, d.cfg.Matcher); idx >= 0 {
			return id, idx, true
		}
	}
	return "", -1, false
}

func slotIndexFor(st types.NodeStatus, profile types.Capabilities, m Matcher) int {
	for i, s := range st.Slots {
		if s.State == types.SlotAvailable && m.Matches(s.Stereotype, profile) {
			return i
		}
	}
	return -1
}

// unwind tears down a session whose request resolved before the commit.
func (d *Distributor) unwind(sess types.Session) {
	d.log.Info().
		Str("session_id", string(sess.ID)).
		Str("node_id", string(sess.NodeID)).
		Msg("placement lost the resolution race, rolling back")
	d.dir.Remove(sess.ID)
	d.releaseCachedSlot(sess.NodeID, sess.ID)

	d.mu.RLock()
	var n Node
	if e, ok := d.nodes[sess.NodeID]; ok {
		n = e.node
	}
	d.mu.RUnlock()
	if n != nil {
		d.stopSessionOn(n, sess.ID)
	}
	d.kick()
}

// stopSessionOn is the best-effort cleanup call for sessions nobody waits
// for anymore.
func (d *Distributor) stopSessionOn(n Node, id types.SessionID) {
	ctx, cancel := context.WithTimeout(context.Background(), d.cfg.ProbeTimeout)
	defer cancel()
	if err := n.Stop(ctx, id); err != nil {
		d.log.Warn().Err(err).Str("session_id", string(id)).Msg("stopping orphaned session failed")
	}
}

func (d *Distributor) releaseCachedSlot(nodeID types.NodeID, sessID types.SessionID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.nodes[nodeID]
	if !ok {
		return
	}
	for i := range e.status.Slots {
		if e.status.Slots[i].SessionID == sessID {
			e.status.Slots[i].State = types.SlotAvailable
			e.status.Slots[i].SessionID = ""
		}
	}
}
