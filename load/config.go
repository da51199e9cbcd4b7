package load

import (
	"strings"
	"time"
)

// DefaultPayloadSize is the payload length stamped on every probe unless overridden.
const DefaultPayloadSize = 1

// Source ports are drawn uniformly from the non-privileged range.
const (
	MinSourcePort = 1024
	MaxSourcePort = 65535
)

// Config holds the validated parameters of one load session.
type Config struct {
	DestinationHost  string
	DestinationPorts []int
	MinAgents        int
	MaxAgents        int
	CycleDuration    time.Duration
	RestDuration     time.Duration
	TotalDuration    time.Duration // 0 = unbounded
	TickPause        time.Duration // 0 = yield only
	PayloadSize      int
	Seed             int64
}

// Bounded reports whether the session has a total-duration budget.
func (c Config) Bounded() bool {
	return c.TotalDuration > 0
}

// Validate checks every parameter and returns a *ConfigurationError for the
// first invalid one.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DestinationHost) == "" {
		return configErrorf("destination host", "must not be empty")
	}
	if len(c.DestinationPorts) == 0 {
		return configErrorf("destination ports", "at least one port is required")
	}
	for _, p := range c.DestinationPorts {
		if p < 1 || p > 65535 {
			return configErrorf("destination ports", "port %d outside 1..65535", p)
		}
	}
	if c.MinAgents <= 0 {
		return configErrorf("min agents", "must be positive, got %d", c.MinAgents)
	}
	if c.MaxAgents < c.MinAgents {
		return configErrorf("max agents", "must be >= min agents (%d), got %d", c.MinAgents, c.MaxAgents)
	}
	if c.CycleDuration <= 0 {
		return configErrorf("cycle duration", "must be positive, got %s", c.CycleDuration)
	}
	if c.RestDuration <= 0 {
		return configErrorf("rest duration", "must be positive, got %s", c.RestDuration)
	}
	if c.TotalDuration < 0 {
		return configErrorf("total duration", "must be >= 0, got %s", c.TotalDuration)
	}
	if c.TickPause < 0 {
		return configErrorf("tick pause", "must be >= 0, got %s", c.TickPause)
	}
	if c.PayloadSize < 1 {
		return configErrorf("payload size", "must be at least 1 byte, got %d", c.PayloadSize)
	}
	return nil
}
