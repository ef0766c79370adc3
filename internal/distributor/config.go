package distributor

import (
	"time"

	"gridd/internal/node"
)

// Defaults applied when corresponding Config fields are unset.
const (
	defaultRequestTimeout      = 5 * time.Minute
	defaultRetryInterval       = 500 * time.Millisecond
	defaultHealthCheckInterval = 10 * time.Second
	defaultProbeTimeout        = 5 * time.Second
	defaultDownThreshold       = 2
	defaultHeartbeatBudget     = 3
)

// Config encapsulates all tunables for Distributor construction.
type Config struct {
	// RequestTimeout bounds how long a session request may wait in the
	// backlog; MaxBacklog caps the backlog size (0 = unbounded).
	RequestTimeout time.Duration
	MaxBacklog     int
	// RetryInterval paces scheduling passes while requests are waiting for
	// capacity.
	RetryInterval time.Duration
	// Health supervision: probe every HealthCheckInterval with a
	// ProbeTimeout budget; evict after DownThreshold consecutive bad
	// probes, or immediately when EvictOnFirstDown is set and a node
	// reports itself down. A node whose last sign of life is older than
	// HeartbeatBudget heartbeat periods is evicted regardless.
	HealthCheckInterval time.Duration
	ProbeTimeout        time.Duration
	DownThreshold       int
	EvictOnFirstDown    bool
	HeartbeatBudget     int
	// FallbackHeartbeatPeriod is used for staleness when a node never
	// declared its own period.
	FallbackHeartbeatPeriod time.Duration
	// Scheduling policies; nil picks the defaults.
	Matcher  Matcher
	Selector Selector
}

func (c Config) withDefaults() Config {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = defaultRequestTimeout
	}
	if c.MaxBacklog < 0 {
		c.MaxBacklog = 0
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = defaultRetryInterval
	}
	if c.HealthCheckInterval <= 0 {
		c.HealthCheckInterval = defaultHealthCheckInterval
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = defaultProbeTimeout
	}
	if c.DownThreshold <= 0 {
		c.DownThreshold = defaultDownThreshold
	}
	if c.HeartbeatBudget <= 0 {
		c.HeartbeatBudget = defaultHeartbeatBudget
	}
	if c.FallbackHeartbeatPeriod <= 0 {
		c.FallbackHeartbeatPeriod = node.DefaultHeartbeatPeriod
	}
	if c.Matcher == nil {
		c.Matcher = NewDefaultMatcher()
	}
	if c.Selector == nil {
		c.Selector = NewLeastLoadedSelector()
	}
	return c
}
