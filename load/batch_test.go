package load

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_ProducesAgentsTimesPorts(t *testing.T) {
	tests := []struct {
		name   string
		agents int
		ports  []int
	}{
		{"one agent one port", 1, []int{80}},
		{"many agents two ports", 250, []int{80, 443}},
		{"few agents many ports", 3, []int{22, 80, 443, 8080, 8443}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBuilder(7)
			batch := b.Build(tt.agents, "10.0.0.1", tt.ports)
			require.Len(t, batch, tt.agents*len(tt.ports))
			for i, p := range batch {
				if p.SourcePort < MinSourcePort {
					t.Fatalf("probe %d: source port %d below %d", i, p.SourcePort, MinSourcePort)
				}
				// agent-major order: ports cycle within each agent
				assert.Equal(t, uint16(tt.ports[i%len(tt.ports)]), p.DestinationPort)
				assert.Equal(t, "10.0.0.1", p.DestinationHost)
				assert.Equal(t, DefaultPayloadSize, p.PayloadSize)
				assert.True(t, p.SourceIdentity.IsValid())
			}
		})
	}
}

func TestBuild_SameInputsSameSize(t *testing.T) {
	b := newTestBuilder(1)
	first := b.Build(40, "h", []int{1, 2, 3})
	second := b.Build(40, "h", []int{1, 2, 3})
	assert.Equal(t, len(first), len(second))
}

func TestBuild_SameSeedSameProbes(t *testing.T) {
	// Determinism: same seed + inputs = identical batches
	b1 := newTestBuilder(99)
	b2 := newTestBuilder(99)
	assert.Equal(t, b1.Build(20, "h", []int{80, 443}), b2.Build(20, "h", []int{80, 443}))
}

func TestBuild_RandomizesPerProbe(t *testing.T) {
	b := newTestBuilder(3)
	batch := b.Build(200, "h", []int{80})
	identities := make(map[netip.Addr]bool)
	ports := make(map[uint16]bool)
	for _, p := range batch {
		identities[p.SourceIdentity] = true
		ports[p.SourcePort] = true
	}
	// 200 draws from ~131k identities and ~64k ports: near-zero chance of mass collision
	assert.Greater(t, len(identities), 150)
	assert.Greater(t, len(ports), 150)
}

func TestBuild_SourcePortCoversRange(t *testing.T) {
	b := newTestBuilder(5)
	batch := b.Build(20000, "h", []int{80})
	lo, hi := uint16(65535), uint16(0)
	for _, p := range batch {
		if p.SourcePort < lo {
			lo = p.SourcePort
		}
		if p.SourcePort > hi {
			hi = p.SourcePort
		}
	}
	assert.GreaterOrEqual(t, lo, uint16(MinSourcePort))
	assert.Less(t, lo, uint16(MinSourcePort+100))
	assert.Greater(t, hi, uint16(MaxSourcePort-100))
}

func TestBuild_DegenerateInputs_EmptyBatch(t *testing.T) {
	b := newTestBuilder(1)
	assert.Empty(t, b.Build(0, "h", []int{80}))
	assert.Empty(t, b.Build(5, "h", nil))
}

func TestBuild_FixedIdentityStamped(t *testing.T) {
	addr := netip.MustParseAddr("192.0.2.10")
	b := NewBatchBuilder(FixedIdentity{Addr: addr}, NewPartitionedRNG(1), 64)
	for _, p := range b.Build(10, "h", []int{80, 81}) {
		assert.Equal(t, addr, p.SourceIdentity)
		assert.Equal(t, 64, p.PayloadSize)
	}
}

func TestSynthesize_CopiesFields(t *testing.T) {
	id := netip.MustParseAddr("198.18.0.9")
	p := Synthesize(id, 40000, "example.test", 443, 1)
	assert.Equal(t, Probe{SourceIdentity: id, SourcePort: 40000, DestinationHost: "example.test", DestinationPort: 443, PayloadSize: 1}, p)
}
