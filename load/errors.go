package load

import (
	"errors"
	"fmt"
)

// ErrAlreadyRun is returned when Run is called on a Scheduler a second time.
var ErrAlreadyRun = errors.New("scheduler already run")

// ConfigurationError reports an invalid session parameter. A session with a
// configuration error never leaves Idle.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func configErrorf(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// DispatchFailure wraps a transport error for one batch. It is recorded in
// counters and logs only; it never stops the scheduler.
type DispatchFailure struct {
	Cycle  int
	Probes int
	Err    error
}

func (e *DispatchFailure) Error() string {
	return fmt.Sprintf("dispatch of %d probes in cycle %d failed: %v", e.Probes, e.Cycle, e.Err)
}

func (e *DispatchFailure) Unwrap() error {
	return e.Err
}
