// Package report exposes session progress outside the scheduler: structured
// logs, Prometheus metrics, an HTTP status endpoint and a ClickHouse table.
//
// Every type here implements load.Reporter and returns from Report without
// blocking on I/O.
package report

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/wavegen/wavegen/load"
)

// Log writes progress as structured logrus entries. Ticks are logged at Info at
// most once per Every (0 disables them); cycle boundaries and completion go
// to Debug since the scheduler already announces them.
type Log struct {
	Every time.Duration

	last time.Time
}

// NewLog creates a Log reporter that emits a status line at most once per every.
func NewLog(every time.Duration) *Log {
	return &Log{Every: every}
}

func (l *Log) Report(p load.Progress) {
	entry := logrus.WithFields(fields(p))
	switch p.Event {
	case load.EventTick:
		if l.Every <= 0 || (!l.last.IsZero() && p.Time.Sub(l.last) < l.Every) {
			entry.Trace("tick")
			return
		}
		l.last = p.Time
		entry.Info("progress")
	case load.EventCompleted:
		entry.WithField("reason", string(p.Reason)).Debug("session completed")
	default:
		entry.Debug(string(p.Event))
	}
}

func fields(p load.Progress) logrus.Fields {
	return logrus.Fields{
		"cycle":     p.CycleIndex,
		"elapsed":   p.ElapsedInCycle.Round(time.Millisecond).String(),
		"agents":    p.AgentCount,
		"cycle_sum": p.CycleProbes,
		"attempted": p.ProbesAttempted,
		"sent":      p.ProbesSent,
		"failed":    p.ProbesFailed,
		"dropped":   p.ProbesDropped,
	}
}
