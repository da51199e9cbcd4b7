package load

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleSpec = `
target: 10.0.0.5
ports: [80, 443]
min_agents: 100
max_agents: 5000
cycle_seconds: 300
rest_seconds: 60
total_seconds: 0
tick_pause_ms: 2.5
seed: 42
identity:
  strategy: pool
  addresses: [192.0.2.1, 192.0.2.2]
`

func TestParseSessionSpec_ToConfig(t *testing.T) {
	spec, err := ParseSessionSpec([]byte(sampleSpec))
	require.NoError(t, err)
	require.NoError(t, spec.Validate())

	cfg, err := spec.Config()
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", cfg.DestinationHost)
	assert.Equal(t, []int{80, 443}, cfg.DestinationPorts)
	assert.Equal(t, 300*time.Second, cfg.CycleDuration)
	assert.Equal(t, 60*time.Second, cfg.RestDuration)
	assert.Equal(t, time.Duration(0), cfg.TotalDuration)
	assert.Equal(t, 2500*time.Microsecond, cfg.TickPause)
	assert.Equal(t, DefaultPayloadSize, cfg.PayloadSize, "omitted payload_size defaults")
	assert.Equal(t, int64(42), cfg.Seed)
	assert.Equal(t, "pool", spec.Identity.Strategy)
}

func TestParseSessionSpec_UnknownFieldRejected(t *testing.T) {
	// Strict parsing: typos must cause errors
	_, err := ParseSessionSpec([]byte("target: h\nmax_agnets: 5\n"))
	assert.Error(t, err)
}

func TestSessionSpec_ValidateRejectsBadValues(t *testing.T) {
	spec, err := ParseSessionSpec([]byte("target: h\nports: [80]\nmin_agents: 10\nmax_agents: 5\ncycle_seconds: 1\nrest_seconds: 1\n"))
	require.NoError(t, err)
	assert.Error(t, spec.Validate())

	spec, err = ParseSessionSpec([]byte("target: h\nports: []\nmin_agents: 1\nmax_agents: 5\ncycle_seconds: 1\nrest_seconds: 1\n"))
	require.NoError(t, err)
	assert.Error(t, spec.Validate(), "empty port list must be rejected")
}

func TestLoadSessionSpec_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleSpec), 0o644))

	spec, err := LoadSessionSpec(path)
	require.NoError(t, err)
	assert.Equal(t, 5000, spec.MaxAgents)

	_, err = LoadSessionSpec(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSessionSpec_DurationOverflowRejected(t *testing.T) {
	tests := []struct {
		name  string
		field string
		yaml  string
	}{
		{"total", "total_seconds", "total_seconds: 1e12\n"},
		{"negative cycle", "cycle_seconds", "cycle_seconds: -1e11\n"},
		{"tick pause", "tick_pause_ms", "cycle_seconds: 1\ntick_pause_ms: 1e16\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec, err := ParseSessionSpec([]byte("target: h\nports: [80]\nmin_agents: 1\nmax_agents: 2\nrest_seconds: 1\n" + tt.yaml))
			require.NoError(t, err)
			_, err = spec.Config()
			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}

	// the largest representable budget is still accepted
	spec, err := ParseSessionSpec([]byte("target: h\nports: [80]\nmin_agents: 1\nmax_agents: 2\ncycle_seconds: 1\nrest_seconds: 1\ntotal_seconds: 9e9\n"))
	require.NoError(t, err)
	require.NoError(t, spec.Validate())
}
