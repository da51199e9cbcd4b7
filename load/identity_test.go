package load

import (
	"errors"
	"math/rand"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandomIdentity_StaysInPrefixAndSkipsEdges(t *testing.T) {
	prefix := netip.MustParsePrefix("10.1.2.0/30")
	src, err := NewRandomIdentity(prefix)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(1))
	seen := make(map[netip.Addr]bool)
	for i := 0; i < 500; i++ {
		addr := src.Next(rng)
		require.True(t, prefix.Contains(addr), "%s outside %s", addr, prefix)
		seen[addr] = true
	}
	// /30 has two usable hosts: .1 and .2
	assert.Equal(t, map[netip.Addr]bool{
		netip.MustParseAddr("10.1.2.1"): true,
		netip.MustParseAddr("10.1.2.2"): true,
	}, seen)
}

func TestRandomIdentity_HostPrefix(t *testing.T) {
	src, err := NewRandomIdentity(netip.MustParsePrefix("192.0.2.7/32"))
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("192.0.2.7"), src.Next(rand.New(rand.NewSource(1))))
}

func TestRandomIdentity_RejectsIPv6(t *testing.T) {
	_, err := NewRandomIdentity(netip.MustParsePrefix("2001:db8::/64"))
	assert.Error(t, err)
}

func TestPoolIdentity_DrawsFromPool(t *testing.T) {
	pool := PoolIdentity{Addrs: []netip.Addr{
		netip.MustParseAddr("192.0.2.1"),
		netip.MustParseAddr("192.0.2.2"),
		netip.MustParseAddr("192.0.2.3"),
	}}
	rng := rand.New(rand.NewSource(4))
	counts := make(map[netip.Addr]int)
	for i := 0; i < 300; i++ {
		counts[pool.Next(rng)]++
	}
	assert.Len(t, counts, 3)
}

func TestNewIdentitySource(t *testing.T) {
	tests := []struct {
		name    string
		spec    IdentitySpec
		wantErr bool
	}{
		{"default random", IdentitySpec{}, false},
		{"random custom prefix", IdentitySpec{Strategy: "random", Prefix: "100.64.0.0/10"}, false},
		{"random bad prefix", IdentitySpec{Strategy: "random", Prefix: "nope"}, true},
		{"fixed", IdentitySpec{Strategy: "fixed", Addresses: []string{"192.0.2.1"}}, false},
		{"fixed needs one", IdentitySpec{Strategy: "fixed"}, true},
		{"pool", IdentitySpec{Strategy: "pool", Addresses: []string{"192.0.2.1", "2001:db8::1"}}, false},
		{"pool bad address", IdentitySpec{Strategy: "pool", Addresses: []string{"x"}}, true},
		{"unknown", IdentitySpec{Strategy: "spoof"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := NewIdentitySource(tt.spec)
			if tt.wantErr {
				var cfgErr *ConfigurationError
				assert.True(t, errors.As(err, &cfgErr), "want *ConfigurationError, got %v", err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, src)
		})
	}
}
