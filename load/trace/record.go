package trace

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// CycleRecord captures one active phase.
type CycleRecord struct {
	Index           int           `toml:"index"`
	Start           time.Time     `toml:"start"`
	Duration        time.Duration `toml:"duration_ns"` // time spent in the active phase
	ProbesAttempted int64         `toml:"probes_attempted"`
	Ticks           int64         `toml:"ticks"`
	PeakAgents      int           `toml:"peak_agents"`
}

// TickRecord captures a single scheduler tick.
type TickRecord struct {
	CycleIndex int           `toml:"cycle"`
	Time       time.Time     `toml:"time"`
	Elapsed    time.Duration `toml:"elapsed_ns"` // since the start of the cycle
	Agents     int           `toml:"agents"`
	Probes     int64         `toml:"probes"` // size of the batch produced by this tick
}

// traceFile is the on-disk layout written by WriteTraceTOML.
type traceFile struct {
	Level        TraceLevel    `toml:"level"`
	TicksOmitted int64         `toml:"ticks_omitted,omitempty"`
	Cycles       []CycleRecord `toml:"cycles"`
	Ticks        []TickRecord  `toml:"ticks,omitempty"`
}

// WriteTraceTOML writes the records of st to path as [[cycles]] and
// [[ticks]] tables.
func WriteTraceTOML(path string, st *SessionTrace) error {
	f := traceFile{
		Level:        st.Level,
		TicksOmitted: st.TicksOmitted,
		Cycles:       st.Cycles,
		Ticks:        st.Ticks,
	}
	data, err := toml.Marshal(f)
	if err != nil {
		return fmt.Errorf("encoding trace: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing trace: %w", err)
	}
	return nil
}
