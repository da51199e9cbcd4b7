package sink

import (
	"context"
	"errors"
	"io"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/wavegen/wavegen/load"
)

func probesTo(host string, port, n int) load.Batch {
	b := make(load.Batch, n)
	for i := range b {
		b[i] = load.Synthesize(netip.MustParseAddr("198.18.3.4"), uint16(2000+i), host, uint16(port), 1)
	}
	return b
}

func TestDiscard_CountsProbes(t *testing.T) {
	var d Discard
	n, err := d.Dispatch(context.Background(), probesTo("h", 80, 7))
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	_, _ = d.Dispatch(context.Background(), probesTo("h", 80, 3))
	assert.Equal(t, int64(10), d.Probes())
	assert.Equal(t, int64(2), d.Batches())
}

func TestTCPConnect_ConnectsToListener(t *testing.T) {
	// GIVEN a loopback listener that reads the payload byte from every connection
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	var accepted atomic.Int64
	var wg sync.WaitGroup
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer conn.Close()
				_, _ = io.Copy(io.Discard, conn)
				accepted.Add(1)
			}()
		}
	}()
	port := ln.Addr().(*net.TCPAddr).Port

	// WHEN a batch of 20 probes is dispatched
	s := NewTCPConnect(time.Second, 4)
	n, err := s.Dispatch(context.Background(), probesTo("127.0.0.1", port, 20))

	// THEN every connect succeeds
	require.NoError(t, err)
	assert.Equal(t, 20, n)
	assert.Eventually(t, func() bool { return accepted.Load() == 20 }, 2*time.Second, 10*time.Millisecond)
}

func TestTCPConnect_RefusedCountsAsFailure(t *testing.T) {
	// GIVEN a port with nothing listening
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	n, err := NewTCPConnect(time.Second, 2).Dispatch(context.Background(), probesTo("127.0.0.1", port, 5))
	assert.Equal(t, 0, n)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "5 of 5 connects failed")
}

func TestTCPConnect_EmptyBatch(t *testing.T) {
	n, err := NewTCPConnect(0, 0).Dispatch(context.Background(), nil)
	assert.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestProbeCodec_RoundTrip(t *testing.T) {
	p := load.Synthesize(netip.MustParseAddr("198.19.255.254"), 65535, "target.example", 443, 1)
	ts := time.Unix(1_700_000_000, 123)

	rec, err := DecodeProbe(AppendProbe(nil, p, ts))
	require.NoError(t, err)
	assert.Equal(t, p, rec.Probe)
	assert.True(t, ts.Equal(rec.Time))
}

func TestProbeCodec_SkipsUnknownFields(t *testing.T) {
	b := protowire.AppendTag(nil, 99, protowire.BytesType)
	b = protowire.AppendString(b, "future field")
	b = AppendProbe(b, load.Synthesize(netip.Addr{}, 1024, "h", 22, 3), time.Unix(0, 0))

	rec, err := DecodeProbe(b)
	require.NoError(t, err)
	assert.Equal(t, uint16(22), rec.Probe.DestinationPort)
	assert.Equal(t, 3, rec.Probe.PayloadSize)
	assert.False(t, rec.Probe.SourceIdentity.IsValid(), "absent identity stays zero")
}

func TestProbeCodec_Truncated(t *testing.T) {
	b := AppendProbe(nil, load.Synthesize(netip.MustParseAddr("198.18.0.1"), 1024, "host", 80, 1), time.Now())
	_, err := DecodeProbe(b[:3])
	assert.Error(t, err)
}

type fakePublisher struct {
	msgs   [][]byte
	failAt int // 1-based; 0 = never
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	if f.failAt > 0 && len(f.msgs)+1 == f.failAt {
		return errors.New("nats: connection closed")
	}
	f.msgs = append(f.msgs, data)
	return nil
}

func TestNATS_PublishesOneRecordPerProbe(t *testing.T) {
	pub := &fakePublisher{}
	s := NewNATS(pub, "")
	batch := probesTo("10.0.0.1", 8080, 4)

	n, err := s.Dispatch(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	require.Len(t, pub.msgs, 4)

	rec, err := DecodeProbe(pub.msgs[2])
	require.NoError(t, err)
	assert.Equal(t, batch[2], rec.Probe)
}

func TestNATS_StopsAtPublishError(t *testing.T) {
	pub := &fakePublisher{failAt: 3}
	n, err := NewNATS(pub, "s").Dispatch(context.Background(), probesTo("h", 1, 5))
	assert.Equal(t, 2, n)
	assert.Error(t, err)
}

func TestRateLimited_ForwardsInChunks(t *testing.T) {
	var chunks []int
	next := load.SinkFunc(func(_ context.Context, b load.Batch) (int, error) {
		chunks = append(chunks, len(b))
		return len(b), nil
	})
	// high rate so the test does not wait; burst 4 sets the chunk size
	s := NewRateLimited(next, 1e6, 4)

	n, err := s.Dispatch(context.Background(), probesTo("h", 1, 10))
	require.NoError(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, []int{4, 4, 2}, chunks)
}

func TestRateLimited_CancelledContext(t *testing.T) {
	var d Discard
	s := NewRateLimited(&d, 1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := s.Dispatch(ctx, probesTo("h", 1, 3))
	assert.Error(t, err)
	assert.Equal(t, 0, n)
}

func TestRateLimited_LimitsThroughput(t *testing.T) {
	var d Discard
	// 200 probes/s with burst 10: 50 probes need roughly 200ms after the first burst
	s := NewRateLimited(&d, 200, 10)
	start := time.Now()
	n, err := s.Dispatch(context.Background(), probesTo("h", 1, 50))
	require.NoError(t, err)
	assert.Equal(t, 50, n)
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

