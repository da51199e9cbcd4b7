package load

import "net/netip"

// Probe is one synthetic connection-initiation unit. Probes are values; a
// batch owns its probes until dispatch completes.
type Probe struct {
	SourceIdentity  netip.Addr
	SourcePort      uint16
	DestinationHost string
	DestinationPort uint16
	PayloadSize     int
}

// Batch is the ordered set of probes produced for one scheduling tick.
type Batch []Probe

// Synthesize builds a single probe.
func Synthesize(identity netip.Addr, sourcePort uint16, host string, destinationPort uint16, payloadSize int) Probe {
	return Probe{
		SourceIdentity:  identity,
		SourcePort:      sourcePort,
		DestinationHost: host,
		DestinationPort: destinationPort,
		PayloadSize:     payloadSize,
	}
}
