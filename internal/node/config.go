package node

import (
	"time"

	"gridd/pkg/types"
)

// DefaultHeartbeatPeriod is how often a node reports liveness unless
// configured otherwise.
const DefaultHeartbeatPeriod = 10 * time.Second

// SlotSpec declares how many slots of one stereotype a node offers.
type SlotSpec struct {
	Stereotype types.Capabilities `json:"stereotype" yaml:"stereotype" toml:"stereotype"`
	Count      int                `json:"count" yaml:"count" toml:"count"`
}

// Config describes a local node. ID and at least one slot are required; a
// zero HeartbeatPeriod picks the default and a nil Factory picks the static
// in-memory factory.
type Config struct {
	ID              types.NodeID
	URI             string
	Slots           []SlotSpec
	HeartbeatPeriod time.Duration
	Factory         SessionFactory
	// HealthCheck, when set, is evaluated on every status snapshot and its
	// result becomes the advertised availability. The node caches the last
	// computed result; a draining node stays draining whatever the
	// predicate says.
	HealthCheck func() types.Availability
}

func (c Config) withDefaults() Config {
	if c.ID == "" {
		c.ID = types.NodeID(types.NewID())
	}
	if c.HeartbeatPeriod <= 0 {
		c.HeartbeatPeriod = DefaultHeartbeatPeriod
	}
	if c.Factory == nil {
		c.Factory = StaticFactory{}
	}
	return c
}
