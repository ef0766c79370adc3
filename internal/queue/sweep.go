package queue

import (
	"time"

	"gridd/pkg/types"
)

// sweepLoop fails requests that overstay their budget. It also expires
// claimed requests: a placement attempt that finishes after the expiry loses
// the resolution race and rolls its work back.
func (q *Queue) sweepLoop() {
	t := time.NewTicker(q.cfg.SweepEvery)
	defer t.Stop()
	for {
		select {
		case <-q.stopCh:
			return
		case <-t.C:
			q.expireOverdue()
		}
	}
}

func (q *Queue) expireOverdue() {
	q.mu.Lock()
	defer q.mu.Unlock()
	var overdue []*Pending
	for _, p := range q.entries {
		if p.expiredLocked() {
			overdue = append(overdue, p)
		}
	}
	for _, p := range overdue {
		waited := time.Since(p.Request.SubmittedAt)
		if q.completeLocked(p.Request.RequestID, types.Session{}, ErrRequestTimeout(waited)) {
			q.log.Info().
				Str("request_id", string(p.Request.RequestID)).
				Dur("waited", waited).
				Msg("request timed out in backlog")
		}
	}
}
