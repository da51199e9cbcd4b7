package load

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// fakeClock advances by step on every Now call and jumps forward by d on every
// After call, so the scheduler sees time pass without real sleeping.
type fakeClock struct {
	mu   sync.Mutex
	now  time.Time
	step time.Duration
}

func newFakeClock(step time.Duration) *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), step: step}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(c.step)
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

// countingSink accepts every probe and counts them.
type countingSink struct {
	probes  atomic.Int64
	batches atomic.Int64
}

func (s *countingSink) Dispatch(_ context.Context, batch Batch) (int, error) {
	s.probes.Add(int64(len(batch)))
	s.batches.Add(1)
	return len(batch), nil
}

// recordingReporter keeps every progress record.
type recordingReporter struct {
	records []Progress
}

func (r *recordingReporter) Report(p Progress) {
	r.records = append(r.records, p)
}

func (r *recordingReporter) byEvent(e Event) []Progress {
	var out []Progress
	for _, p := range r.records {
		if p.Event == e {
			out = append(out, p)
		}
	}
	return out
}

func validConfig() Config {
	return Config{
		DestinationHost:  "127.0.0.1",
		DestinationPorts: []int{80, 443},
		MinAgents:        1,
		MaxAgents:        5,
		CycleDuration:    10 * time.Second,
		RestDuration:     5 * time.Second,
		TotalDuration:    0,
		PayloadSize:      DefaultPayloadSize,
		Seed:             42,
	}
}

func newTestBuilder(seed int64) *BatchBuilder {
	src, err := NewIdentitySource(IdentitySpec{})
	if err != nil {
		panic(err)
	}
	return NewBatchBuilder(src, NewPartitionedRNG(seed), DefaultPayloadSize)
}
