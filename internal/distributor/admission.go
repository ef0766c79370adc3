package distributor

import (
	"context"
	"time"

	"gridd/pkg/types"
)

// NewSession queues a session request and blocks until a node takes it, the
// wait budget runs out, or ctx ends. A positive req.Timeout overrides the
// default budget. Every request resolves exactly once.
func (d *Distributor) NewSession(ctx context.Context, req types.SessionRequest) (types.Session, error) {
	if err := validateRequest(&req); err != nil {
		return types.Session{}, err
	}

	p, err := d.q.Enqueue(req, req.Timeout)
	if err != nil {
		return types.Session{}, err
	}
	d.log.Debug().Str("request_id", string(req.RequestID)).Msg("session request queued")
	d.kick()
	return p.Wait(ctx)
}

// validateRequest rejects malformed requests before they occupy backlog
// space, filling the same defaults NewSessionRequest would.
func validateRequest(req *types.SessionRequest) error {
	if len(req.Capabilities) == 0 {
		return ErrInvalidRequest("at least one capability profile is required")
	}
	for _, c := range req.Capabilities {
		if len(c) == 0 {
			return ErrInvalidRequest("empty capability profile")
		}
	}
	if len(req.Dialects) > 0 && !hasSupportedDialect(req.Dialects) {
		return ErrInvalidRequest("no supported dialect offered")
	}
	if req.RequestID == "" {
		req.RequestID = types.RequestID(types.NewID())
	}
	if req.SubmittedAt.IsZero() {
		req.SubmittedAt = time.Now()
	}
	if len(req.Dialects) == 0 {
		req.Dialects = []types.Dialect{types.DialectW3C}
	}
	return nil
}

func hasSupportedDialect(ds []types.Dialect) bool {
	for _, d := range ds {
		if d == types.DialectW3C || d == types.DialectOSS {
			return true
		}
	}
	return false
}
