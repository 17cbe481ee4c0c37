// Package model defines shared data structures.
package model

import (
	"fmt"
	"time"
)

// Default tunables; a tick is one millisecond.
const (
	DefaultWaitMinMs         = 1000
	DefaultWaitMaxMs         = 3000
	DefaultVisualWindowMs    = 1200
	DefaultTactileWindowMs   = 1500
	DefaultPressureThreshold = 400
	DefaultDifficultyShrink  = 50
	DefaultRounds            = 6

	PressureMax   = 1023
	DifficultyMax = 100
)

// RoundState is the authoritative phase of a trial.
type RoundState int

const (
	StateIdle RoundState = iota
	StateArmed
	StateStimOn
	StateVisualDone
	StateTactileDone
	StateTactileTimeout
	StateAbortRetry
	StateReport
	StateFeedback
)

var stateNames = [...]string{
	StateIdle:           "IDLE",
	StateArmed:          "ARMED",
	StateStimOn:         "STIM_ON",
	StateVisualDone:     "VIS_DONE",
	StateTactileDone:    "TACT_DONE",
	StateTactileTimeout: "TACT_TIMEOUT",
	StateAbortRetry:     "ABORT_RETRY",
	StateReport:         "REPORT",
	StateFeedback:       "FEEDBACK",
}

func (s RoundState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("RoundState(%d)", int(s))
	}
	return stateNames[s]
}

// Outcome classifies how a started round ended.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeCompleted
	OutcomeAbortedEarly
	OutcomeAbortedVisualTimeout
	OutcomeAbortedTactileTimeout
)

var outcomeNames = [...]string{
	OutcomeNone:                  "none",
	OutcomeCompleted:             "completed",
	OutcomeAbortedEarly:          "aborted_early",
	OutcomeAbortedVisualTimeout:  "aborted_visual_timeout",
	OutcomeAbortedTactileTimeout: "aborted_tactile_timeout",
}

func (o Outcome) String() string {
	if o < 0 || int(o) >= len(outcomeNames) {
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
	return outcomeNames[o]
}

// Aborted reports whether the outcome ends the round at AbortRetry.
func (o Outcome) Aborted() bool {
	switch o {
	case OutcomeAbortedEarly, OutcomeAbortedVisualTimeout, OutcomeAbortedTactileTimeout:
		return true
	default:
		return false
	}
}

// Millis is an optional millisecond measurement. The zero value is absent.
type Millis struct {
	Value uint32
	Valid bool
}

// Ms returns a present measurement.
func Ms(v uint32) Millis {
	return Millis{Value: v, Valid: true}
}

func (m Millis) String() string {
	if !m.Valid {
		return "none"
	}
	return fmt.Sprintf("%d", m.Value)
}

// TrialRecord is the measurement produced by one round.
type TrialRecord struct {
	RoundIndex uint32
	Difficulty uint8
	WaitMs     uint32
	VisualMs   Millis
	TactileMs  Millis
	TotalMs    Millis
	Outcome    Outcome
}

// Tunables are the timing and threshold parameters of a trial.
type Tunables struct {
	WaitMinMs         uint32
	WaitMaxMs         uint32
	VisualWindowMs    uint32
	TactileWindowMs   uint32
	PressureThreshold uint16
	// DifficultyShrink is the percentage of the wait span removed at
	// difficulty 100. Zero keeps the span flat.
	DifficultyShrink uint8
}

// DefaultTunables returns the stock device parameters.
func DefaultTunables() Tunables {
	return Tunables{
		WaitMinMs:         DefaultWaitMinMs,
		WaitMaxMs:         DefaultWaitMaxMs,
		VisualWindowMs:    DefaultVisualWindowMs,
		TactileWindowMs:   DefaultTactileWindowMs,
		PressureThreshold: DefaultPressureThreshold,
		DifficultyShrink:  DefaultDifficultyShrink,
	}
}

// ConfigError reports an out-of-range tunable.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validate rejects tunables that would make a round meaningless.
func (t Tunables) Validate() error {
	if t.WaitMinMs == 0 {
		return &ConfigError{Field: "wait-min", Reason: "must be > 0"}
	}
	if t.WaitMaxMs < t.WaitMinMs {
		return &ConfigError{Field: "wait-max", Reason: fmt.Sprintf("must be >= wait-min (%d)", t.WaitMinMs)}
	}
	if t.VisualWindowMs == 0 {
		return &ConfigError{Field: "visual-window", Reason: "must be > 0"}
	}
	if t.TactileWindowMs == 0 {
		return &ConfigError{Field: "tactile-window", Reason: "must be > 0"}
	}
	if t.PressureThreshold > PressureMax {
		return &ConfigError{Field: "pressure-threshold", Reason: fmt.Sprintf("must be within 0..%d", PressureMax)}
	}
	if t.DifficultyShrink > 100 {
		return &ConfigError{Field: "difficulty-shrink", Reason: "must be within 0..100"}
	}
	return nil
}

// ResultRecord is a completed trial as stored or transmitted.
type ResultRecord struct {
	SessionID  string
	DeviceID   string
	RoundIndex uint32
	Difficulty uint8
	WaitMs     uint32
	VisualMs   uint32
	TactileMs  uint32
	TotalMs    uint32
	BestMs     uint32
	RecordedAt time.Time
}

// Summary is printed at the end of a session.
type Summary struct {
	SessionID string
	Rounds    uint32
	Completed uint32
	Aborted   uint32
	Best      Millis
}

// HistoryConfig filters stored results.
type HistoryConfig struct {
	SessionID string
	Since     *time.Time
	Last      int
}
