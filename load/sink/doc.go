// Package sink provides load.Sink implementations.
//
// Every sink drives traffic through the host's own stack (TCP connect, NATS
// client) or nowhere at all (Discard). Synthetic source identities on probes are
// carried as record fields and never used as a network source address.
package sink
