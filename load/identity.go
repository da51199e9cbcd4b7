package load

import (
	"encoding/binary"
	"fmt"
	"math/rand"
	"net/netip"
)

// DefaultIdentityPrefix is the benchmarking block (RFC 2544) used for random
// synthetic identities.
const DefaultIdentityPrefix = "198.18.0.0/15"

// IdentitySource produces the synthetic source identity stamped on a probe.
// Identities are labels for simulated senders; they are never bound as a
// network source address.
type IdentitySource interface {
	Next(rng *rand.Rand) netip.Addr
}

// RandomIdentity draws addresses uniformly from an IPv4 prefix.
type RandomIdentity struct {
	base     uint32
	hostBits int
}

// NewRandomIdentity creates a RandomIdentity over prefix. Only IPv4 prefixes
// are supported.
func NewRandomIdentity(prefix netip.Prefix) (*RandomIdentity, error) {
	if !prefix.IsValid() || !prefix.Addr().Is4() {
		return nil, fmt.Errorf("identity prefix %q must be a valid IPv4 prefix", prefix)
	}
	prefix = prefix.Masked()
	a4 := prefix.Addr().As4()
	return &RandomIdentity{
		base:     binary.BigEndian.Uint32(a4[:]),
		hostBits: 32 - prefix.Bits(),
	}, nil
}

func (r *RandomIdentity) Next(rng *rand.Rand) netip.Addr {
	var host uint32
	switch {
	case r.hostBits == 0:
		host = 0
	case r.hostBits == 1:
		host = uint32(rng.Intn(2))
	case r.hostBits == 32:
		// skip 0.0.0.0 and 255.255.255.255
		host = 1 + uint32(rng.Int63n(1<<32-2))
	default:
		// skip the network and broadcast host values
		span := int64(1)<<r.hostBits - 2
		host = 1 + uint32(rng.Int63n(span))
	}
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], r.base|host)
	return netip.AddrFrom4(b)
}

// FixedIdentity stamps the same address on every probe.
type FixedIdentity struct {
	Addr netip.Addr
}

func (f FixedIdentity) Next(*rand.Rand) netip.Addr {
	return f.Addr
}

// PoolIdentity picks uniformly from a fixed set of addresses.
type PoolIdentity struct {
	Addrs []netip.Addr
}

func (p PoolIdentity) Next(rng *rand.Rand) netip.Addr {
	return p.Addrs[rng.Intn(len(p.Addrs))]
}

// IdentitySpec selects and parameterizes an identity strategy.
type IdentitySpec struct {
	Strategy  string   `yaml:"strategy"` // random | fixed | pool
	Prefix    string   `yaml:"prefix,omitempty"`
	Addresses []string `yaml:"addresses,omitempty"`
}

// NewIdentitySource builds the IdentitySource described by spec. An empty
// strategy means "random" over DefaultIdentityPrefix.
func NewIdentitySource(spec IdentitySpec) (IdentitySource, error) {
	switch spec.Strategy {
	case "", "random":
		raw := spec.Prefix
		if raw == "" {
			raw = DefaultIdentityPrefix
		}
		prefix, err := netip.ParsePrefix(raw)
		if err != nil {
			return nil, configErrorf("identity prefix", "%v", err)
		}
		src, err := NewRandomIdentity(prefix)
		if err != nil {
			return nil, configErrorf("identity prefix", "%v", err)
		}
		return src, nil

	case "fixed":
		if len(spec.Addresses) != 1 {
			return nil, configErrorf("identity addresses", "fixed strategy needs exactly one address, got %d", len(spec.Addresses))
		}
		addr, err := netip.ParseAddr(spec.Addresses[0])
		if err != nil {
			return nil, configErrorf("identity addresses", "%v", err)
		}
		return FixedIdentity{Addr: addr}, nil

	case "pool":
		if len(spec.Addresses) == 0 {
			return nil, configErrorf("identity addresses", "pool strategy needs at least one address")
		}
		addrs := make([]netip.Addr, 0, len(spec.Addresses))
		for _, raw := range spec.Addresses {
			addr, err := netip.ParseAddr(raw)
			if err != nil {
				return nil, configErrorf("identity addresses", "%v", err)
			}
			addrs = append(addrs, addr)
		}
		return PoolIdentity{Addrs: addrs}, nil

	default:
		return nil, configErrorf("identity strategy", "unknown strategy %q; valid: random, fixed, pool", spec.Strategy)
	}
}
