package load

import "time"

// State is the scheduler's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateActive
	StateResting
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateActive:
		return "active"
	case StateResting:
		return "resting"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

// Reason records why a session completed.
type Reason string

const (
	ReasonNone      Reason = ""
	ReasonBudget    Reason = "budget"
	ReasonCancelled Reason = "cancelled"
	ReasonConfig    Reason = "configuration"
)

// Session is the run as a whole. It is mutated only by the scheduler.
type Session struct {
	Config    Config
	StartTime time.Time
	EndTime   time.Time
	State     State
	Reason    Reason

	CycleIndex     int // 1-based index of the current or last cycle
	LastAgentCount int
	Ticks          int64

	ProbesAttempted int64 // sum of batch sizes produced
	ProbesSent      int64 // accepted by the sink
	ProbesFailed    int64 // processed by the sink but not accepted
	ProbesDropped   int64 // rejected by a full dispatch queue
	FailedBatches   int64
	DroppedBatches  int64
}

// Cycle is one active phase. Its counters are folded into the Session before
// it is discarded.
type Cycle struct {
	Index           int
	StartTime       time.Time
	ProbesAttempted int64
	Ticks           int64
	PeakAgents      int
}
