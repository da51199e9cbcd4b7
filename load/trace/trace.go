// Package trace records the shape of a session as it runs: one record per
// cycle and, at the finest level, one per tick.
package trace

import (
	"time"

	"github.com/wavegen/wavegen/load"
)

// TraceLevel controls how much of a session is recorded.
type TraceLevel string

const (
	// TraceLevelNone records only the aggregates needed for a summary.
	TraceLevelNone TraceLevel = "none"
	// TraceLevelCycles records one CycleRecord per active phase.
	TraceLevelCycles TraceLevel = "cycles"
	// TraceLevelTicks additionally records every tick.
	TraceLevelTicks TraceLevel = "ticks"
)

var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:   true,
	TraceLevelCycles: true,
	TraceLevelTicks:  true,
	"":               true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// DefaultMaxTickRecords bounds the tick records a trace keeps. With no tick
// pause a session produces ticks as fast as it can build batches.
const DefaultMaxTickRecords = 100_000

// SessionTrace collects records from the scheduler. It implements
// load.Reporter and is not safe for concurrent reads while a session runs.
type SessionTrace struct {
	Level  TraceLevel
	Cycles []CycleRecord
	Ticks  []TickRecord

	// MaxTicks caps len(Ticks); later ticks are counted in TicksOmitted.
	MaxTicks     int
	TicksOmitted int64

	current   *CycleRecord
	lastProbe int64
	tickCount int64
	agentSum  int64
	peak      int
	final     *load.Progress
	start     time.Time
}

// NewSessionTrace creates a SessionTrace ready for recording.
func NewSessionTrace(level TraceLevel) *SessionTrace {
	if level == "" {
		level = TraceLevelNone
	}
	return &SessionTrace{
		Level:    level,
		MaxTicks: DefaultMaxTickRecords,
		Cycles:   make([]CycleRecord, 0),
		Ticks:    make([]TickRecord, 0),
	}
}

func (st *SessionTrace) Report(p load.Progress) {
	if st.start.IsZero() {
		st.start = p.Time
	}
	switch p.Event {
	case load.EventCycleStart:
		st.current = &CycleRecord{Index: p.CycleIndex, Start: p.Time}
		st.lastProbe = 0
	case load.EventTick:
		st.tickCount++
		st.agentSum += int64(p.AgentCount)
		st.peak = max(st.peak, p.AgentCount)
		if st.current != nil {
			st.current.Ticks++
			st.current.PeakAgents = max(st.current.PeakAgents, p.AgentCount)
		}
		if st.Level == TraceLevelTicks && len(st.Ticks) >= st.MaxTicks {
			st.TicksOmitted++
		} else if st.Level == TraceLevelTicks {
			st.Ticks = append(st.Ticks, TickRecord{
				CycleIndex: p.CycleIndex,
				Time:       p.Time,
				Elapsed:    p.ElapsedInCycle,
				Agents:     p.AgentCount,
				Probes:     p.CycleProbes - st.lastProbe,
			})
		}
		st.lastProbe = p.CycleProbes
	case load.EventCycleEnd:
		st.closeCycle(p)
	case load.EventCompleted:
		if st.current != nil {
			st.closeCycle(p)
		}
		final := p
		st.final = &final
	}
}

func (st *SessionTrace) closeCycle(p load.Progress) {
	if st.current == nil {
		return
	}
	st.current.Duration = p.ElapsedInCycle
	st.current.ProbesAttempted = p.CycleProbes
	if st.Level != TraceLevelNone {
		st.Cycles = append(st.Cycles, *st.current)
	}
	st.current = nil
}
