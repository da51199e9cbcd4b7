package load

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Sink hands a batch to a transport. It returns how many probes the transport
// accepted; a non-nil error means some or all of the batch was not accepted.
type Sink interface {
	Dispatch(ctx context.Context, batch Batch) (int, error)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, batch Batch) (int, error)

func (f SinkFunc) Dispatch(ctx context.Context, batch Batch) (int, error) { return f(ctx, batch) }

// Job is one batch submitted for dispatch.
type Job struct {
	Cycle int
	Batch Batch
}

// Result reports the outcome of one Job. Err is a *DispatchFailure or nil.
// Skipped is set for jobs that were still queued when the dispatcher was
// stopped; their probes never reached the sink.
type Result struct {
	Cycle     int
	Attempted int
	Sent      int
	Err       error
	Skipped   bool
}

const (
	DefaultWorkers   = 4
	DefaultQueueSize = 64
)

// Dispatcher is a bounded worker pool that transmits batches off the
// scheduler goroutine. Submission is fire-and-forget: the scheduler never waits
// for a batch to be sent before starting the next tick.
type Dispatcher struct {
	sink    Sink
	ctx     context.Context
	cancel  context.CancelFunc
	stopped atomic.Bool
	jobs    chan Job
	results chan Result
	wg      sync.WaitGroup

	shutdownOnce sync.Once
}

// NewDispatcher creates and starts a Dispatcher. ctx bounds in-flight sink
// calls; cancelling it (or calling Stop) aborts transports that honour their
// context.
func NewDispatcher(ctx context.Context, sink Sink, workers, queueSize int) *Dispatcher {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	ctx, cancel := context.WithCancel(ctx)
	d := &Dispatcher{
		sink:    sink,
		ctx:     ctx,
		cancel:  cancel,
		jobs:    make(chan Job, queueSize),
		results: make(chan Result, queueSize+workers),
	}

	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer d.wg.Done()
			d.worker()
		}()
	}
	logrus.Debugf("Dispatcher started with %d workers, queue size %d", workers, queueSize)
	return d
}

// Submit enqueues a job without blocking. It returns false when the queue is
// full and the batch was dropped.
func (d *Dispatcher) Submit(job Job) bool {
	select {
	case d.jobs <- job:
		return true
	default:
		logrus.Debugf("Dispatch queue full, dropping batch of %d probes (cycle %d)", len(job.Batch), job.Cycle)
		return false
	}
}

// Results delivers one Result per accepted job.
func (d *Dispatcher) Results() <-chan Result {
	return d.results
}

// Stop makes workers skip every job still queued and cancels the context of
// in-flight sink calls. Skipped jobs are still reported on Results. Call
// Shutdown afterwards to drain them.
func (d *Dispatcher) Stop() {
	if d.stopped.CompareAndSwap(false, true) {
		d.cancel()
		logrus.Debug("Dispatcher stopped; skipping queued batches.")
	}
}

// Shutdown stops accepting jobs. Queued jobs still run; the returned channel
// (the same as Results) is closed once the last worker exits. Submit must not
// be called after Shutdown.
func (d *Dispatcher) Shutdown() <-chan Result {
	d.shutdownOnce.Do(func() {
		close(d.jobs)
		go func() {
			d.wg.Wait()
			d.cancel()
			close(d.results)
			logrus.Debug("Dispatcher stopped.")
		}()
	})
	return d.results
}

func (d *Dispatcher) worker() {
	for job := range d.jobs {
		d.results <- d.dispatch(job)
	}
}

func (d *Dispatcher) dispatch(job Job) (res Result) {
	res = Result{Cycle: job.Cycle, Attempted: len(job.Batch)}
	if d.stopped.Load() {
		res.Skipped = true
		return res
	}
	defer func() {
		if r := recover(); r != nil {
			res.Sent = 0
			res.Err = &DispatchFailure{Cycle: job.Cycle, Probes: len(job.Batch), Err: fmt.Errorf("sink panic: %v", r)}
			logrus.Debugf("%v", res.Err)
		}
	}()

	sent, err := d.sink.Dispatch(d.ctx, job.Batch)
	if sent < 0 {
		sent = 0
	}
	if sent > len(job.Batch) {
		sent = len(job.Batch)
	}
	res.Sent = sent
	if err != nil {
		res.Err = &DispatchFailure{Cycle: job.Cycle, Probes: len(job.Batch) - sent, Err: err}
		logrus.Debugf("%v", res.Err)
	}
	return res
}
