package load

import "time"

// Event names the point in the schedule a Progress record was taken at.
type Event string

const (
	EventCycleStart Event = "cycle_start"
	EventTick       Event = "tick"
	EventCycleEnd   Event = "cycle_end"
	EventCompleted  Event = "completed"
)

// Progress is a snapshot of scheduler counters. ProbesSent is the total number
// of probes handed to the transport so far.
type Progress struct {
	Event           Event
	Time            time.Time
	CycleIndex      int
	ElapsedInCycle  time.Duration
	AgentCount      int
	CycleProbes     int64
	ProbesAttempted int64
	ProbesSent      int64
	ProbesFailed    int64
	ProbesDropped   int64
	Reason          Reason
}

// Reporter receives progress records from the scheduler goroutine. Report
// must return quickly; slow consumers should buffer.
type Reporter interface {
	Report(Progress)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(Progress)

func (f ReporterFunc) Report(p Progress) { f(p) }

// Reporters fans a record out to every non-nil reporter in order.
type Reporters []Reporter

func (rs Reporters) Report(p Progress) {
	for _, r := range rs {
		if r != nil {
			r.Report(p)
		}
	}
}
