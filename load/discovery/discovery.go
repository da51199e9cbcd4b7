// Package discovery finds open destination ports on a target before a session
// starts.
package discovery

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// DefaultPorts is used when discovery finds no open port.
var DefaultPorts = []int{80, 443}

// DiscoveryFailure reports that a target could not be discovered at all
// (unresolvable host, unreadable report). Sessions must not start after one.
type DiscoveryFailure struct {
	Host string
	Err  error
}

func (e *DiscoveryFailure) Error() string {
	return fmt.Sprintf("discovery of %q failed: %v", e.Host, e.Err)
}

func (e *DiscoveryFailure) Unwrap() error {
	return e.Err
}

// Discoverer returns the open TCP ports of host in ascending order. An empty
// result with a nil error means the host was reachable but nothing is open.
type Discoverer interface {
	Discover(ctx context.Context, host string) ([]int, error)
}

// Static always returns the same ports.
type Static []int

func (s Static) Discover(context.Context, string) ([]int, error) {
	return append([]int(nil), s...), nil
}

// ResolvePorts runs d and falls back to DefaultPorts when nothing is open.
func ResolvePorts(ctx context.Context, d Discoverer, host string) ([]int, error) {
	ports, err := d.Discover(ctx, host)
	if err != nil {
		return nil, err
	}
	if len(ports) == 0 {
		logrus.Warnf("No open TCP ports found on %s; using default ports %v", host, DefaultPorts)
		return append([]int(nil), DefaultPorts...), nil
	}
	return ports, nil
}

// PortRange is an inclusive range of TCP ports.
type PortRange struct {
	First int
	Last  int
}

// Len returns the number of ports in the range.
func (r PortRange) Len() int {
	return r.Last - r.First + 1
}

// ParsePortRange parses "N" or "N-M" with 1 <= N <= M <= 65535.
func ParsePortRange(s string) (PortRange, error) {
	first, last, found := strings.Cut(strings.TrimSpace(s), "-")
	lo, err := strconv.Atoi(strings.TrimSpace(first))
	if err != nil {
		return PortRange{}, fmt.Errorf("port range %q: %w", s, err)
	}
	hi := lo
	if found {
		if hi, err = strconv.Atoi(strings.TrimSpace(last)); err != nil {
			return PortRange{}, fmt.Errorf("port range %q: %w", s, err)
		}
	}
	if lo < 1 || hi > 65535 || lo > hi {
		return PortRange{}, fmt.Errorf("port range %q: need 1 <= first <= last <= 65535", s)
	}
	return PortRange{First: lo, Last: hi}, nil
}
