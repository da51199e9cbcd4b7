package load

import "math/rand"

// BatchBuilder synthesizes the probes for one tick.
//
// Thread-safety: NOT thread-safe. Owned by the scheduler goroutine.
type BatchBuilder struct {
	identities  IdentitySource
	identityRNG *rand.Rand
	portRNG     *rand.Rand
	payloadSize int
}

// NewBatchBuilder creates a BatchBuilder drawing identities from identities and
// randomness from rng. A payloadSize below 1 is replaced by DefaultPayloadSize.
func NewBatchBuilder(identities IdentitySource, rng *PartitionedRNG, payloadSize int) *BatchBuilder {
	if payloadSize < 1 {
		payloadSize = DefaultPayloadSize
	}
	return &BatchBuilder{
		identities:  identities,
		identityRNG: rng.ForSubsystem(SubsystemIdentity),
		portRNG:     rng.ForSubsystem(SubsystemSourcePort),
		payloadSize: payloadSize,
	}
}

// Build returns agents × len(ports) probes in agent-major order. Every probe
// gets its own identity and a source port in [MinSourcePort, MaxSourcePort];
// collisions are allowed.
func (b *BatchBuilder) Build(agents int, host string, ports []int) Batch {
	if agents <= 0 || len(ports) == 0 {
		return Batch{}
	}
	batch := make(Batch, 0, agents*len(ports))
	for a := 0; a < agents; a++ {
		for _, dport := range ports {
			batch = append(batch, Synthesize(
				b.identities.Next(b.identityRNG),
				b.sourcePort(),
				host,
				uint16(dport),
				b.payloadSize,
			))
		}
	}
	return batch
}

func (b *BatchBuilder) sourcePort() uint16 {
	return uint16(MinSourcePort + b.portRNG.Intn(MaxSourcePort-MinSourcePort+1))
}
