package load

import (
	"context"
	"errors"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
)

// Scheduler runs the cycle/rest state machine:
//
//	Idle → Active(1) → Resting → Active(2) → … → Completed
//
// All timing decisions and all Session mutation happen on the goroutine that
// calls Run. Batches are handed to the Dispatcher fire-and-forget.
type Scheduler struct {
	cfg        Config
	builder    *BatchBuilder
	dispatcher *Dispatcher
	reporter   Reporter
	clock      Clock

	session *Session
	current *Cycle
	results <-chan Result
}

// NewScheduler wires a scheduler. A nil reporter discards progress records; a
// nil clock uses SystemClock. Configuration is validated by Run so that a
// rejected session is still reported as Completed.
func NewScheduler(cfg Config, builder *BatchBuilder, dispatcher *Dispatcher, reporter Reporter, clock Clock) *Scheduler {
	if reporter == nil {
		reporter = Reporters(nil)
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Scheduler{
		cfg:        cfg,
		builder:    builder,
		dispatcher: dispatcher,
		reporter:   reporter,
		clock:      clock,
	}
}

// Run executes the session until the total-duration budget is exhausted or ctx
// is cancelled. It returns the final Session. The only error conditions are a
// *ConfigurationError (the session never becomes Active) and ErrAlreadyRun.
// The dispatcher is shut down and drained before Run returns.
func (s *Scheduler) Run(ctx context.Context) (*Session, error) {
	if s.session != nil {
		return s.session, ErrAlreadyRun
	}
	s.session = &Session{Config: s.cfg, StartTime: s.clock.Now(), State: StateIdle}
	sess := s.session

	if err := s.cfg.Validate(); err != nil {
		sess.State = StateCompleted
		sess.Reason = ReasonConfig
		sess.EndTime = sess.StartTime
		if s.dispatcher != nil {
			for range s.dispatcher.Shutdown() {
			}
		}
		return sess, err
	}
	if s.builder == nil || s.dispatcher == nil {
		sess.State = StateCompleted
		sess.Reason = ReasonConfig
		sess.EndTime = sess.StartTime
		if s.dispatcher != nil {
			for range s.dispatcher.Shutdown() {
			}
		}
		return sess, errors.New("scheduler requires a batch builder and a dispatcher")
	}
	s.results = s.dispatcher.Results()

	logrus.Infof("Starting session: target=%s ports=%v agents=%d..%d cycle=%s rest=%s total=%s",
		s.cfg.DestinationHost, s.cfg.DestinationPorts, s.cfg.MinAgents, s.cfg.MaxAgents,
		s.cfg.CycleDuration, s.cfg.RestDuration, s.cfg.TotalDuration)

	sess.Reason = s.loop(ctx)

	// Nothing may reach the transport after the session ends: queued batches
	// are skipped and counted as dropped.
	s.dispatcher.Stop()
	for res := range s.dispatcher.Shutdown() {
		s.fold(res)
	}

	sess.State = StateCompleted
	sess.EndTime = s.clock.Now()
	s.reporter.Report(s.progress(EventCompleted, s.current, s.elapsedInCycle(sess.EndTime)))
	logrus.Infof("Session completed (%s) after %d cycles: attempted=%d sent=%d failed=%d dropped=%d",
		sess.Reason, sess.CycleIndex, sess.ProbesAttempted, sess.ProbesSent, sess.ProbesFailed, sess.ProbesDropped)
	return sess, nil
}

func (s *Scheduler) loop(ctx context.Context) Reason {
	sess := s.session
	for {
		if ctx.Err() != nil {
			return ReasonCancelled
		}
		if s.budgetExceeded(s.clock.Now()) {
			return ReasonBudget
		}

		sess.CycleIndex++
		sess.State = StateActive
		cycle := &Cycle{Index: sess.CycleIndex, StartTime: s.clock.Now()}
		s.current = cycle
		s.reporter.Report(s.progress(EventCycleStart, cycle, 0))
		logrus.Infof("Cycle #%d started", cycle.Index)

		if reason := s.runActive(ctx, cycle); reason != ReasonNone {
			return reason
		}

		sess.State = StateResting
		elapsed := s.clock.Now().Sub(cycle.StartTime)
		s.reporter.Report(s.progress(EventCycleEnd, cycle, elapsed))
		logrus.Infof("Cycle #%d complete: %d probes attempted this cycle, %d sent in total; resting %s",
			cycle.Index, cycle.ProbesAttempted, sess.ProbesSent, s.cfg.RestDuration)

		if s.budgetExceeded(s.clock.Now()) {
			return ReasonBudget
		}
		if !s.wait(ctx, s.cfg.RestDuration) {
			return ReasonCancelled
		}
	}
}

// runActive ticks until the cycle ends (ReasonNone) or the session must stop.
func (s *Scheduler) runActive(ctx context.Context, cycle *Cycle) Reason {
	sess := s.session
	for {
		if ctx.Err() != nil {
			return ReasonCancelled
		}
		now := s.clock.Now()
		if s.budgetExceeded(now) {
			return ReasonBudget
		}
		elapsed := now.Sub(cycle.StartTime)
		if elapsed >= s.cfg.CycleDuration {
			return ReasonNone
		}

		agents := Shape(elapsed, s.cfg.CycleDuration, s.cfg.MinAgents, s.cfg.MaxAgents)
		batch := s.builder.Build(agents, s.cfg.DestinationHost, s.cfg.DestinationPorts)
		size := int64(len(batch))

		if !s.dispatcher.Submit(Job{Cycle: cycle.Index, Batch: batch}) {
			sess.ProbesDropped += size
			sess.DroppedBatches++
		}
		cycle.ProbesAttempted += size
		cycle.Ticks++
		if agents > cycle.PeakAgents {
			cycle.PeakAgents = agents
		}
		sess.ProbesAttempted += size
		sess.LastAgentCount = agents
		sess.Ticks++

		s.collect()
		s.reporter.Report(s.progress(EventTick, cycle, elapsed))
		logrus.Tracef("[%.2fs] cycle #%d agents=%d batch=%d", elapsed.Seconds(), cycle.Index, agents, size)

		if !s.pause(ctx) {
			return ReasonCancelled
		}
	}
}

// pause is the per-tick yield point.
func (s *Scheduler) pause(ctx context.Context) bool {
	if s.cfg.TickPause <= 0 {
		runtime.Gosched()
		return ctx.Err() == nil
	}
	return s.wait(ctx, s.cfg.TickPause)
}

// wait suspends for d while still folding dispatch results. It returns false
// if ctx is cancelled first.
func (s *Scheduler) wait(ctx context.Context, d time.Duration) bool {
	timer := s.clock.After(d)
	results := s.results
	for {
		select {
		case <-ctx.Done():
			return false
		case <-timer:
			return true
		case res, ok := <-results:
			if !ok {
				results = nil
				continue
			}
			s.fold(res)
		}
	}
}

// collect folds every result that is ready without blocking.
func (s *Scheduler) collect() {
	for {
		select {
		case res, ok := <-s.results:
			if !ok {
				return
			}
			s.fold(res)
		default:
			return
		}
	}
}

func (s *Scheduler) fold(res Result) {
	sess := s.session
	if res.Skipped {
		sess.ProbesDropped += int64(res.Attempted)
		sess.DroppedBatches++
		return
	}
	sess.ProbesSent += int64(res.Sent)
	sess.ProbesFailed += int64(res.Attempted - res.Sent)
	if res.Err != nil {
		sess.FailedBatches++
	}
}

// elapsedInCycle is the active time of the current cycle at now, capped at the
// cycle duration so rest time is not counted.
func (s *Scheduler) elapsedInCycle(now time.Time) time.Duration {
	if s.current == nil {
		return 0
	}
	elapsed := now.Sub(s.current.StartTime)
	if elapsed > s.cfg.CycleDuration {
		elapsed = s.cfg.CycleDuration
	}
	return elapsed
}

func (s *Scheduler) budgetExceeded(now time.Time) bool {
	return s.cfg.Bounded() && now.Sub(s.session.StartTime) > s.cfg.TotalDuration
}

func (s *Scheduler) progress(event Event, cycle *Cycle, elapsed time.Duration) Progress {
	sess := s.session
	p := Progress{
		Event:           event,
		Time:            s.clock.Now(),
		CycleIndex:      sess.CycleIndex,
		ElapsedInCycle:  elapsed,
		AgentCount:      sess.LastAgentCount,
		ProbesAttempted: sess.ProbesAttempted,
		ProbesSent:      sess.ProbesSent,
		ProbesFailed:    sess.ProbesFailed,
		ProbesDropped:   sess.ProbesDropped,
		Reason:          sess.Reason,
	}
	if cycle != nil {
		p.CycleProbes = cycle.ProbesAttempted
	}
	return p
}
