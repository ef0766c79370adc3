package queue

import (
	"context"
	"time"

	"gridd/pkg/types"
)

type outcome struct {
	sess types.Session
	err  error
}

// Pending is the caller's handle on a queued request. Wait blocks until the
// request is resolved by the scheduler, the expiry sweeper, or queue close.
type Pending struct {
	Request types.SessionRequest

	deadline time.Time
	claimed  bool

	q       *Queue
	done    chan struct{}
	outcome outcome
}

func (p *Pending) expiredLocked() bool {
	return time.Now().After(p.deadline)
}

// Deadline is the instant the request's wait budget runs out.
func (p *Pending) Deadline() time.Time { return p.deadline }

// Wait blocks until the request resolves. If ctx ends first the request is
// cancelled; should a placement win that race, the placed session is
// returned and the caller owns stopping it.
func (p *Pending) Wait(ctx context.Context) (types.Session, error) {
	select {
	case <-p.done:
		return p.outcome.sess, p.outcome.err
	case <-ctx.Done():
		if p.q.Complete(p.Request.RequestID, types.Session{}, ErrCanceled(ctx.Err())) {
			return types.Session{}, ErrCanceled(ctx.Err())
		}
		<-p.done
		return p.outcome.sess, p.outcome.err
	}
}

// Done exposes resolution to select loops.
func (p *Pending) Done() <-chan struct{} { return p.done }
