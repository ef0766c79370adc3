// Package queue implements the pending-request backlog: a FIFO of
// session-creation requests with per-request timeouts and exactly-once
// resolution. It is structured into small files by concern:
//
//   - queue.go: core Queue type, enqueue, candidate claiming, resolution.
//   - pending.go: the Pending handle callers block on.
//   - sweep.go: background expiry of requests that overstay their budget.
//   - config.go: Config and package defaults.
//   - errors.go: error types and helpers (IsTimeout, IsBacklogFull, ...).
//
// The scheduler claims the oldest unclaimed request, attempts placement, and
// either completes the request or releases the claim for a later retry. A
// request keeps its queue position across failed attempts, so arrival order
// decides who gets capacity first.
package queue

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"gridd/pkg/types"
)

// Queue is the concurrency-safe backlog. Construct with New; Close releases
// the sweeper and fails everything still pending.
type Queue struct {
	cfg Config
	log zerolog.Logger

	mu      sync.Mutex
	entries []*Pending // FIFO by submission
	byID    map[types.RequestID]*Pending
	closed  bool

	wake   chan struct{}
	stopCh chan struct{}
}

func New(cfg Config) *Queue {
	q := &Queue{
		cfg:    cfg.withDefaults(),
		log:    zerolog.Nop(),
		byID:   make(map[types.RequestID]*Pending),
		wake:   make(chan struct{}, 1),
		stopCh: make(chan struct{}),
	}
	go q.sweepLoop()
	return q
}

// SetLogger replaces the no-op default logger.
func (q *Queue) SetLogger(l zerolog.Logger) {
	q.mu.Lock()
	q.log = l
	q.mu.Unlock()
}

// Enqueue appends req to the backlog and returns the handle the caller blocks
// on. A positive timeout overrides the queue's default wait budget; the
// budget starts at the request's submission time.
func (q *Queue) Enqueue(req types.SessionRequest, timeout time.Duration) (*Pending, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil, ErrQueueClosed()
	}
	if req.RequestID == "" {
		return nil, ErrInvalidRequest("empty request id")
	}
	if _, ok := q.byID[req.RequestID]; ok {
		return nil, ErrInvalidRequest("request id already queued: " + string(req.RequestID))
	}
	if q.cfg.MaxBacklog > 0 && len(q.entries) >= q.cfg.MaxBacklog {
		return nil, ErrBacklogFull(len(q.entries))
	}
	if timeout <= 0 {
		timeout = q.cfg.RequestTimeout
	}
	p := &Pending{
		Request:  req,
		deadline: req.SubmittedAt.Add(timeout),
		done:     make(chan struct{}),
		q:        q,
	}
	q.entries = append(q.entries, p)
	q.byID[req.RequestID] = p
	q.log.Debug().Str("request_id", string(req.RequestID)).Int("backlog", len(q.entries)).Msg("request queued")
	q.signalLocked()
	return p, nil
}

// NextCandidate claims the oldest unclaimed request that still has budget
// left, returning it with its expiry deadline. The claim keeps other
// scheduling passes off the request until Release or Complete. ok is false
// when nothing is claimable.
func (q *Queue) NextCandidate() (req types.SessionRequest, deadline time.Time, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, p := range q.entries {
		if p.claimed || p.expiredLocked() {
			continue
		}
		p.claimed = true
		return p.Request, p.deadline, true
	}
	return types.SessionRequest{}, time.Time{}, false
}

// Release returns a claimed request to the backlog after a failed placement
// attempt. The request keeps its original position. No wake is signaled:
// the attempt just failed, so retry pacing belongs to the scheduler's
// interval, not to the release itself.
func (q *Queue) Release(id types.RequestID) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if p, ok := q.byID[id]; ok {
		p.claimed = false
	}
}

// Complete resolves a request exactly once: the first caller wins and the
// request leaves the backlog. Losers get false and must undo their side
// effects. A zero err means the session was placed.
func (q *Queue) Complete(id types.RequestID, sess types.Session, err error) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.completeLocked(id, sess, err)
}

func (q *Queue) completeLocked(id types.RequestID, sess types.Session, err error) bool {
	p, ok := q.byID[id]
	if !ok {
		return false
	}
	delete(q.byID, id)
	for i, e := range q.entries {
		if e == p {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			break
		}
	}
	p.outcome = outcome{sess: sess, err: err}
	close(p.done)
	q.signalLocked()
	return true
}

// Len reports how many requests are waiting, claimed ones included.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Wake is signaled whenever the backlog gains claimable work. The scheduler
// selects on it instead of busy-polling.
func (q *Queue) Wake() <-chan struct{} { return q.wake }

// Close stops the sweeper and fails every pending request. Safe to call more
// than once.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.stopCh)
	ids := make([]types.RequestID, 0, len(q.entries))
	for _, p := range q.entries {
		ids = append(ids, p.Request.RequestID)
	}
	for _, id := range ids {
		q.completeLocked(id, types.Session{}, ErrQueueClosed())
	}
	q.mu.Unlock()
}

func (q *Queue) signalLocked() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
