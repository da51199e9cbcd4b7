package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultScanTimeout     = 500 * time.Millisecond
	DefaultScanConcurrency = 128
)

// ConnectScanner finds open ports with full TCP connects. It needs no special
// privileges. A host that neither accepts nor refuses a single connection is
// treated as unreachable and reported as a DiscoveryFailure.
type ConnectScanner struct {
	Ports       PortRange
	Timeout     time.Duration
	Concurrency int

	resolver *net.Resolver
}

// NewConnectScanner creates a scanner over ports. Non-positive timeout or
// concurrency select the defaults.
func NewConnectScanner(ports PortRange, timeout time.Duration, concurrency int) *ConnectScanner {
	if timeout <= 0 {
		timeout = DefaultScanTimeout
	}
	if concurrency <= 0 {
		concurrency = DefaultScanConcurrency
	}
	return &ConnectScanner{Ports: ports, Timeout: timeout, Concurrency: concurrency, resolver: net.DefaultResolver}
}

func (s *ConnectScanner) Discover(ctx context.Context, host string) ([]int, error) {
	addrs, err := s.resolver.LookupHost(ctx, host)
	if err != nil {
		return nil, &DiscoveryFailure{Host: host, Err: err}
	}
	if len(addrs) == 0 {
		return nil, &DiscoveryFailure{Host: host, Err: &net.DNSError{Err: "no addresses", Name: host}}
	}
	ip := addrs[0]
	logrus.Infof("Scanning %s (%s) ports %d-%d", host, ip, s.Ports.First, s.Ports.Last)

	var (
		mu       sync.Mutex
		open     []int
		answered atomic.Bool // some port accepted or actively refused
		lastErr  error
	)
	dialer := &net.Dialer{Timeout: s.Timeout}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.Concurrency)
	for port := s.Ports.First; port <= s.Ports.Last; port++ {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			conn, err := dialer.DialContext(gctx, "tcp", net.JoinHostPort(ip, strconv.Itoa(port)))
			if err != nil {
				if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
					answered.Store(true)
				} else {
					mu.Lock()
					lastErr = err
					mu.Unlock()
				}
				return nil
			}
			answered.Store(true)
			conn.Close()
			mu.Lock()
			open = append(open, port)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, &DiscoveryFailure{Host: host, Err: err}
	}
	if !answered.Load() {
		return nil, &DiscoveryFailure{Host: host, Err: fmt.Errorf("%s did not answer on ports %d-%d (host down or filtered): %w",
			ip, s.Ports.First, s.Ports.Last, lastErr)}
	}

	slices.Sort(open)
	logrus.Infof("Scan of %s complete: %d open ports", host, len(open))
	return open, nil
}
