package distributor

import "gridd/pkg/types"

// Matcher decides whether a slot stereotype can satisfy a requested profile.
// Implementations must be pure: same inputs, same answer, no side effects.
type Matcher interface {
	Matches(stereotype, requested types.Capabilities) bool
}

// MatcherFunc adapts a plain function to the Matcher interface.
type MatcherFunc func(stereotype, requested types.Capabilities) bool

func (f MatcherFunc) Matches(stereotype, requested types.Capabilities) bool {
	return f(stereotype, requested)
}

// NewDefaultMatcher matches when every requested key is present in the
// stereotype with an equal value. Keys the stereotype has but the request
// does not mention are ignored.
func NewDefaultMatcher() Matcher {
	return MatcherFunc(func(stereotype, requested types.Capabilities) bool {
		return stereotype.Contains(requested)
	})
}

// Selector picks which candidate node receives a session. Candidates are
// node snapshots that already passed the matcher with at least one free
// slot; they arrive ordered by node id.
type Selector interface {
	Select(candidates []types.NodeStatus, requested types.Capabilities) (types.NodeID, bool)
}

// SelectorFunc adapts a plain function to the Selector interface.
type SelectorFunc func(candidates []types.NodeStatus, requested types.Capabilities) (types.NodeID, bool)

func (f SelectorFunc) Select(candidates []types.NodeStatus, requested types.Capabilities) (types.NodeID, bool) {
	return f(candidates, requested)
}

// NewLeastLoadedSelector spreads sessions: fewest busy slots first, then the
// most free matching slots, then the smallest node id so scheduling stays
// deterministic.
func NewLeastLoadedSelector() Selector {
	return SelectorFunc(func(candidates []types.NodeStatus, requested types.Capabilities) (types.NodeID, bool) {
		if len(candidates) == 0 {
			return "", false
		}
		best := candidates[0]
		for _, c := range candidates[1:] {
			if betterCandidate(c, best, requested) {
				best = c
			}
		}
		return best.NodeID, true
	})
}

func betterCandidate(a, b types.NodeStatus, requested types.Capabilities) bool {
	if a.Load() != b.Load() {
		return a.Load() < b.Load()
	}
	if af, bf := a.FreeMatching(requested), b.FreeMatching(requested); af != bf {
		return af > bf
	}
	return a.NodeID < b.NodeID
}
