package sink

import (
	"fmt"
	"net/netip"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/wavegen/wavegen/load"
)

// Probe record field numbers. The layout is a plain protobuf message so that
// consumers can decode it with any protobuf runtime:
//
//	message ProbeRecord {
//	  bytes  source_identity  = 1; // 4 or 16 bytes
//	  uint32 source_port      = 2;
//	  string destination_host = 3;
//	  uint32 destination_port = 4;
//	  uint32 payload_size     = 5;
//	  int64  unix_nanos       = 6;
//	}
const (
	fieldSourceIdentity  protowire.Number = 1
	fieldSourcePort      protowire.Number = 2
	fieldDestinationHost protowire.Number = 3
	fieldDestinationPort protowire.Number = 4
	fieldPayloadSize     protowire.Number = 5
	fieldUnixNanos       protowire.Number = 6
)

// ProbeRecord is a probe as carried on the wire, stamped with the time it was
// handed to the transport.
type ProbeRecord struct {
	Probe load.Probe
	Time  time.Time
}

// AppendProbe appends the wire encoding of p, sent at ts, to b.
func AppendProbe(b []byte, p load.Probe, ts time.Time) []byte {
	if p.SourceIdentity.IsValid() {
		b = protowire.AppendTag(b, fieldSourceIdentity, protowire.BytesType)
		b = protowire.AppendBytes(b, p.SourceIdentity.AsSlice())
	}
	b = protowire.AppendTag(b, fieldSourcePort, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(p.SourcePort))
	b = protowire.AppendTag(b, fieldDestinationHost, protowire.BytesType)
	b = protowire.AppendString(b, p.DestinationHost)
	b = protowire.AppendTag(b, fieldDestinationPort, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(p.DestinationPort))
	b = protowire.AppendTag(b, fieldPayloadSize, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(p.PayloadSize))
	b = protowire.AppendTag(b, fieldUnixNanos, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(ts.UnixNano()))
	return b
}

// DecodeProbe parses a record produced by AppendProbe. Unknown fields are
// skipped.
func DecodeProbe(b []byte) (ProbeRecord, error) {
	var rec ProbeRecord
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return rec, fmt.Errorf("probe record tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldSourceIdentity && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return rec, fmt.Errorf("source_identity: %w", protowire.ParseError(n))
			}
			addr, ok := netip.AddrFromSlice(v)
			if !ok {
				return rec, fmt.Errorf("source_identity: invalid length %d", len(v))
			}
			rec.Probe.SourceIdentity = addr
			b = b[n:]

		case num == fieldDestinationHost && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return rec, fmt.Errorf("destination_host: %w", protowire.ParseError(n))
			}
			rec.Probe.DestinationHost = v
			b = b[n:]

		case typ == protowire.VarintType && num >= fieldSourcePort && num <= fieldUnixNanos:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return rec, fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
			}
			switch num {
			case fieldSourcePort:
				rec.Probe.SourcePort = uint16(v)
			case fieldDestinationPort:
				rec.Probe.DestinationPort = uint16(v)
			case fieldPayloadSize:
				rec.Probe.PayloadSize = int(v)
			case fieldUnixNanos:
				rec.Time = time.Unix(0, int64(v))
			}
			b = b[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return rec, fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return rec, nil
}
