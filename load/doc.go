// Package load provides the load-shaping and dispatch engine for wavegen.
//
// # Reading Guide
//
// Start with these files to understand the engine:
//   - shape.go: the sine-wave shaping function (elapsed time → agent count)
//   - batch.go: per-tick batch synthesis (one probe per agent per destination port)
//   - dispatch.go: the bounded worker pool that keeps transmission off the clock loop
//   - scheduler.go: the Idle → Active → Resting → Completed state machine
//
// # Architecture
//
// The load package defines interfaces and value types; transports and observers live
// in sub-packages:
//   - load/sink/: dispatch sinks (dry run, TCP connect, NATS, rate limiting)
//   - load/discovery/: open-port discovery collaborators
//   - load/trace/: cycle and tick trace recording
//   - load/report/: progress reporters (logging, Prometheus, HTTP status, ClickHouse)
//
// # Key Interfaces
//
//   - Sink: hands a batch to a transport and returns how many probes it accepted
//   - IdentitySource: produces the synthetic source identity stamped on each probe
//   - Reporter: receives progress records from the scheduler
//   - Clock: time source for the scheduler, replaceable in tests
//
// Session state is owned by the Scheduler goroutine. Dispatch workers never touch it;
// they return Results which the scheduler folds into its counters.
package load
