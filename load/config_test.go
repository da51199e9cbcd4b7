package load

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"valid", func(*Config) {}, ""},
		{"unbounded total", func(c *Config) { c.TotalDuration = 0 }, ""},
		{"min equals max", func(c *Config) { c.MinAgents, c.MaxAgents = 3, 3 }, ""},
		{"empty host", func(c *Config) { c.DestinationHost = " " }, "destination host"},
		{"empty ports", func(c *Config) { c.DestinationPorts = nil }, "destination ports"},
		{"port zero", func(c *Config) { c.DestinationPorts = []int{0} }, "destination ports"},
		{"port too large", func(c *Config) { c.DestinationPorts = []int{80, 70000} }, "destination ports"},
		{"zero min agents", func(c *Config) { c.MinAgents = 0 }, "min agents"},
		{"min above max", func(c *Config) { c.MinAgents, c.MaxAgents = 10, 5 }, "max agents"},
		{"zero cycle", func(c *Config) { c.CycleDuration = 0 }, "cycle duration"},
		{"negative rest", func(c *Config) { c.RestDuration = -time.Second }, "rest duration"},
		{"negative total", func(c *Config) { c.TotalDuration = -time.Second }, "total duration"},
		{"negative pause", func(c *Config) { c.TickPause = -time.Millisecond }, "tick pause"},
		{"zero payload", func(c *Config) { c.PayloadSize = 0 }, "payload size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var cfgErr *ConfigurationError
			if assert.True(t, errors.As(err, &cfgErr), "want *ConfigurationError, got %v", err) {
				assert.Equal(t, tt.field, cfgErr.Field)
			}
		})
	}
}

func TestConfig_Bounded(t *testing.T) {
	cfg := validConfig()
	assert.False(t, cfg.Bounded())
	cfg.TotalDuration = time.Second
	assert.True(t, cfg.Bounded())
}
