package sink

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/wavegen/wavegen/load"
)

// RateLimited caps the probes per second handed to the wrapped sink. Waiting
// happens in the dispatch worker, never in the scheduler; a long wait backs
// up the dispatch queue and shows up as dropped batches.
type RateLimited struct {
	next    load.Sink
	limiter *rate.Limiter
}

// NewRateLimited wraps next with a limit of perSecond probes and the given
// burst. A burst below 1 is raised to 1.
func NewRateLimited(next load.Sink, perSecond float64, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{next: next, limiter: rate.NewLimiter(rate.Limit(perSecond), burst)}
}

// Dispatch forwards the batch in chunks of at most burst probes, waiting for
// tokens before each chunk.
func (r *RateLimited) Dispatch(ctx context.Context, batch load.Batch) (int, error) {
	burst := r.limiter.Burst()
	sent := 0
	for start := 0; start < len(batch); start += burst {
		end := min(start+burst, len(batch))
		if err := r.limiter.WaitN(ctx, end-start); err != nil {
			return sent, err
		}
		n, err := r.next.Dispatch(ctx, batch[start:end])
		sent += n
		if err != nil {
			return sent, err
		}
	}
	return sent, nil
}
