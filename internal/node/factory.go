package node

import (
	"context"

	"gridd/pkg/types"
)

// SessionFactory materializes a session on a claimed slot. Create runs
// outside the node's slot lock, so it may block on real work; honoring ctx
// cancellation is the factory's job. The returned capabilities are what the
// session actually provides.
type SessionFactory interface {
	Create(ctx context.Context, stereotype, requested types.Capabilities) (types.Capabilities, error)
}

// StaticFactory fulfils every request instantly with the slot's stereotype
// merged over the requested profile. It backs nodes that have no external
// runtime, and most tests.
type StaticFactory struct{}

func (StaticFactory) Create(_ context.Context, stereotype, requested types.Capabilities) (types.Capabilities, error) {
	negotiated := requested.Clone()
	if negotiated == nil {
		negotiated = types.Capabilities{}
	}
	for k, v := range stereotype {
		negotiated[k] = v
	}
	return negotiated, nil
}

// FactoryFunc adapts a plain function to the SessionFactory interface.
type FactoryFunc func(ctx context.Context, stereotype, requested types.Capabilities) (types.Capabilities, error)

func (f FactoryFunc) Create(ctx context.Context, stereotype, requested types.Capabilities) (types.Capabilities, error) {
	return f(ctx, stereotype, requested)
}
