package sink

import (
	"context"
	"sync/atomic"

	"github.com/wavegen/wavegen/load"
)

// Discard accepts every probe without sending anything. Used for dry runs.
type Discard struct {
	probes  atomic.Int64
	batches atomic.Int64
}

func (d *Discard) Dispatch(_ context.Context, batch load.Batch) (int, error) {
	d.probes.Add(int64(len(batch)))
	d.batches.Add(1)
	return len(batch), nil
}

// Probes returns the number of probes accepted so far.
func (d *Discard) Probes() int64 { return d.probes.Load() }

// Batches returns the number of batches accepted so far.
func (d *Discard) Batches() int64 { return d.batches.Load() }
