package load

import (
	"hash/fnv"
	"math/rand"
)

const (
	// SubsystemIdentity is the RNG subsystem for synthetic source identities.
	// Uses the session seed directly.
	SubsystemIdentity = "identity"

	// SubsystemSourcePort is the RNG subsystem for source port selection.
	SubsystemSourcePort = "source_port"
)

// PartitionedRNG provides deterministic, isolated RNG instances per subsystem.
//
// Derivation formula:
//   - For SubsystemIdentity: uses the seed directly
//   - For all other subsystems: seed XOR fnv1a64(subsystemName)
//
// Drawing from one subsystem never shifts the sequence of another, so adding a
// destination port does not change which identities a seed produces.
//
// Thread-safety: NOT thread-safe. Must be called from a single goroutine.
type PartitionedRNG struct {
	seed       int64
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a session seed.
func NewPartitionedRNG(seed int64) *PartitionedRNG {
	return &PartitionedRNG{
		seed:       seed,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns a deterministically-seeded RNG for the named subsystem.
// The same name always returns the same *rand.Rand instance.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}

	derived := p.seed
	if name != SubsystemIdentity {
		derived = p.seed ^ fnv1a64(name)
	}

	rng := rand.New(rand.NewSource(derived))
	p.subsystems[name] = rng
	return rng
}

// Seed returns the seed used to create this PartitionedRNG.
func (p *PartitionedRNG) Seed() int64 {
	return p.seed
}

func fnv1a64(s string) int64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return int64(h.Sum64())
}
