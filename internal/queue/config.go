package queue

import "time"

// Package defaults, applied by New when Config leaves a field zero.
const (
	// DefaultRequestTimeout bounds how long a request may wait in the
	// backlog before it fails with a timeout.
	DefaultRequestTimeout = 5 * time.Minute
	// DefaultSweepEvery is how often the expiry sweeper scans the backlog.
	DefaultSweepEvery = 100 * time.Millisecond
)

// Config tunes a Queue. Zero values pick the package defaults; MaxBacklog 0
// means unbounded.
type Config struct {
	RequestTimeout time.Duration
	SweepEvery     time.Duration
	MaxBacklog     int
}

func (c Config) withDefaults() Config {
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = DefaultRequestTimeout
	}
	if c.SweepEvery <= 0 {
		c.SweepEvery = DefaultSweepEvery
	}
	if c.MaxBacklog < 0 {
		c.MaxBacklog = 0
	}
	return c
}
