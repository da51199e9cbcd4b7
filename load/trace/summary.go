package trace

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// TraceSummary aggregates statistics from a SessionTrace.
type TraceSummary struct {
	Cycles          int           `toml:"cycles"`
	Ticks           int64         `toml:"ticks"`
	PeakAgents      int           `toml:"peak_agents"`
	MeanAgents      float64       `toml:"mean_agents"`
	Duration        time.Duration `toml:"duration_ns"`
	ProbesAttempted int64         `toml:"probes_attempted"`
	ProbesSent      int64         `toml:"probes_sent"`
	ProbesFailed    int64         `toml:"probes_failed"`
	ProbesDropped   int64         `toml:"probes_dropped"`
	Reason          string        `toml:"reason"`
}

// Summarize computes aggregate statistics from a SessionTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(st *SessionTrace) *TraceSummary {
	summary := &TraceSummary{}
	if st == nil {
		return summary
	}

	summary.Ticks = st.tickCount
	summary.PeakAgents = st.peak
	if st.tickCount > 0 {
		summary.MeanAgents = float64(st.agentSum) / float64(st.tickCount)
	}
	if st.final != nil {
		summary.Cycles = st.final.CycleIndex
		summary.Duration = st.final.Time.Sub(st.start)
		summary.ProbesAttempted = st.final.ProbesAttempted
		summary.ProbesSent = st.final.ProbesSent
		summary.ProbesFailed = st.final.ProbesFailed
		summary.ProbesDropped = st.final.ProbesDropped
		summary.Reason = string(st.final.Reason)
	} else {
		summary.Cycles = len(st.Cycles)
	}
	return summary
}

// WriteSummaryTOML writes s to path as TOML.
func WriteSummaryTOML(path string, s *TraceSummary) error {
	data, err := toml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	return nil
}
