package load

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// SessionSpec is the YAML form of a session. Loaded via LoadSessionSpec(path).
type SessionSpec struct {
	Target       string       `yaml:"target"`
	Ports        []int        `yaml:"ports"`
	MinAgents    int          `yaml:"min_agents"`
	MaxAgents    int          `yaml:"max_agents"`
	CycleSeconds float64      `yaml:"cycle_seconds"`
	RestSeconds  float64      `yaml:"rest_seconds"`
	TotalSeconds float64      `yaml:"total_seconds"`           // 0 = unbounded
	TickPauseMs  float64      `yaml:"tick_pause_ms,omitempty"` // 0 = yield only
	PayloadSize  int          `yaml:"payload_size,omitempty"`
	Seed         int64        `yaml:"seed,omitempty"`
	Identity     IdentitySpec `yaml:"identity,omitempty"`
}

// LoadSessionSpec reads and parses a YAML session specification file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadSessionSpec(path string) (*SessionSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading session spec: %w", err)
	}
	return ParseSessionSpec(data)
}

// ParseSessionSpec strictly decodes a YAML session specification.
func ParseSessionSpec(data []byte) (*SessionSpec, error) {
	var spec SessionSpec
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parsing session spec: %w", err)
	}
	return &spec, nil
}

// Config converts the spec into an engine Config. Durations that are NaN or
// infinite are rejected; range checks are left to Config.Validate.
func (s *SessionSpec) Config() (Config, error) {
	for name, v := range map[string]float64{
		"cycle_seconds": s.CycleSeconds,
		"rest_seconds":  s.RestSeconds,
		"total_seconds": s.TotalSeconds,
		"tick_pause_ms": s.TickPauseMs,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Config{}, configErrorf(name, "must be a finite number, got %v", v)
		}
	}
	for name, v := range map[string]float64{
		"cycle_seconds": s.CycleSeconds,
		"rest_seconds":  s.RestSeconds,
		"total_seconds": s.TotalSeconds,
	} {
		if math.Abs(v) > maxSeconds {
			return Config{}, configErrorf(name, "%v is out of range (max %.0f)", v, maxSeconds)
		}
	}
	if math.Abs(s.TickPauseMs) > maxSeconds*1e3 {
		return Config{}, configErrorf("tick_pause_ms", "%v is out of range (max %.0f)", s.TickPauseMs, maxSeconds*1e3)
	}
	payload := s.PayloadSize
	if payload == 0 {
		payload = DefaultPayloadSize
	}
	return Config{
		DestinationHost:  s.Target,
		DestinationPorts: append([]int(nil), s.Ports...),
		MinAgents:        s.MinAgents,
		MaxAgents:        s.MaxAgents,
		CycleDuration:    seconds(s.CycleSeconds),
		RestDuration:     seconds(s.RestSeconds),
		TotalDuration:    seconds(s.TotalSeconds),
		TickPause:        time.Duration(s.TickPauseMs * float64(time.Millisecond)),
		PayloadSize:      payload,
		Seed:             s.Seed,
	}, nil
}

// Validate converts the spec and checks the resulting Config and identity
// strategy.
func (s *SessionSpec) Validate() error {
	cfg, err := s.Config()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	_, err = NewIdentitySource(s.Identity)
	return err
}

// maxSeconds is the longest duration, in whole seconds, a time.Duration holds.
const maxSeconds = float64(math.MaxInt64 / int64(time.Second))

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
