package sink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wavegen/wavegen/load"
)

const (
	DefaultDialTimeout = 2 * time.Second
	DefaultMaxInFlight = 256

	// maxJoinedErrors caps how many individual dial errors are kept per batch.
	maxJoinedErrors = 3
)

// TCPConnect opens (and immediately closes) one TCP connection per probe,
// writing PayloadSize bytes once connected. Connects within a batch run
// concurrently, at most MaxInFlight at a time.
type TCPConnect struct {
	dialer      *net.Dialer
	maxInFlight int
}

// NewTCPConnect creates a TCPConnect sink. Non-positive arguments select the
// defaults.
func NewTCPConnect(timeout time.Duration, maxInFlight int) *TCPConnect {
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	if maxInFlight <= 0 {
		maxInFlight = DefaultMaxInFlight
	}
	return &TCPConnect{
		dialer:      &net.Dialer{Timeout: timeout},
		maxInFlight: maxInFlight,
	}
}

func (s *TCPConnect) Dispatch(ctx context.Context, batch load.Batch) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	payload := bytes.Repeat([]byte{'Y'}, maxPayload(batch))

	var (
		sent   atomic.Int64
		failed atomic.Int64
		mu     sync.Mutex
		errs   []error
	)
	// A plain Group: one refused connect must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(s.maxInFlight)
	for _, p := range batch {
		g.Go(func() error {
			if err := s.connect(ctx, p, payload); err != nil {
				failed.Add(1)
				mu.Lock()
				if len(errs) < maxJoinedErrors {
					errs = append(errs, err)
				}
				mu.Unlock()
				return nil
			}
			sent.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	n := int(sent.Load())
	if f := failed.Load(); f > 0 {
		return n, fmt.Errorf("%d of %d connects failed: %w", f, len(batch), errors.Join(errs...))
	}
	return n, nil
}

func (s *TCPConnect) connect(ctx context.Context, p load.Probe, payload []byte) error {
	addr := net.JoinHostPort(p.DestinationHost, strconv.Itoa(int(p.DestinationPort)))
	conn, err := s.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()
	if p.PayloadSize > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(s.dialer.Timeout))
		if _, err := conn.Write(payload[:p.PayloadSize]); err != nil {
			return fmt.Errorf("write to %s: %w", addr, err)
		}
	}
	return nil
}

func maxPayload(batch load.Batch) int {
	m := 0
	for _, p := range batch {
		if p.PayloadSize > m {
			m = p.PayloadSize
		}
	}
	return m
}
