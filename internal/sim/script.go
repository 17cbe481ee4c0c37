// Package sim provides synthetic capability backends: a scripted device
// for deterministic runs, the stock mock profile and a random profile.
package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/verte-zerg/reflex/internal/capability"
	"github.com/verte-zerg/reflex/internal/model"
)

// ErrScriptExhausted is returned when more rounds start than were scripted.
var ErrScriptExhausted = errors.New("script exhausted")

// Capability names accepted by Step.Fault.
const (
	FaultStart      = "start"
	FaultDifficulty = "difficulty"
	FaultVisual     = "visual"
	FaultPressure   = "pressure"
	FaultStimulus   = "stimulus"
	FaultDisplay    = "display"
	FaultFeedback   = "feedback"
	FaultReporter   = "reporter"
)

// Step scripts one start-button poll and, when it starts, one round.
// Ticks are relative to the window they fall in.
type Step struct {
	NoStart    bool
	Difficulty uint8
	// EarlyAt is the tick within the armed wait when the hand crosses.
	EarlyAt model.Millis
	// VisualAt is the tick after stimulus-on when the hand crosses.
	VisualAt model.Millis
	// TactileAt is the tick after visual capture when pressure rises.
	TactileAt model.Millis
	// Pressure is the reading once pressed; zero means PressureMax.
	Pressure uint16
	// Idle is the reading before the press.
	Idle  uint16
	Fault string
}

// Value is one DisplayValue call.
type Value struct {
	Label string
	Value uint32
}

// Report is one ReportResult call.
type Report struct {
	Record model.TrialRecord
	Best   model.Millis
}

type phase int

const (
	phaseIdle phase = iota
	phaseArmed
	phaseStim
	phaseTactile
)

// Script is a deterministic Device driven by a list of steps. It records
// every actuation for inspection.
type Script struct {
	mu    sync.Mutex
	steps []Step
	next  int
	cur   Step
	phase phase

	Stimuli  int
	Alerts   int
	Messages []string
	Values   []Value
	Reports  []Report
	Polls    int
}

// NewScript returns a Script that plays steps in order.
func NewScript(steps ...Step) *Script {
	return &Script{steps: steps}
}

// Device exposes the script as every capability.
func (s *Script) Device() capability.Device {
	return capability.Device{
		Start:      s,
		Difficulty: s,
		Visual:     s,
		Pressure:   s,
		Stimulus:   s,
		Display:    s,
		Feedback:   s,
		Reporter:   s,
	}
}

func (s *Script) fault(name string) error {
	if s.cur.Fault == name {
		return fmt.Errorf("simulated %s fault", name)
	}
	return nil
}

// StartRequested implements capability.StartSignal.
func (s *Script) StartRequested(context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.steps) {
		return false, ErrScriptExhausted
	}
	s.cur = s.steps[s.next]
	s.next++
	s.phase = phaseIdle
	if err := s.fault(FaultStart); err != nil {
		return false, err
	}
	if s.cur.NoStart {
		return false, nil
	}
	s.phase = phaseArmed
	return true, nil
}

// ReadDifficulty implements capability.DifficultyProvider.
func (s *Script) ReadDifficulty(context.Context) (uint8, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(FaultDifficulty); err != nil {
		return 0, err
	}
	return s.cur.Difficulty, nil
}

// PollVisualCrossing implements capability.VisualSensor.
func (s *Script) PollVisualCrossing(_ context.Context, tick uint32) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Polls++
	if err := s.fault(FaultVisual); err != nil {
		return false, err
	}
	switch s.phase {
	case phaseArmed:
		return s.cur.EarlyAt.Valid && tick >= s.cur.EarlyAt.Value, nil
	case phaseStim:
		if s.cur.VisualAt.Valid && tick >= s.cur.VisualAt.Value {
			s.phase = phaseTactile
			return true, nil
		}
	}
	return false, nil
}

// PollPressure implements capability.PressureSensor.
func (s *Script) PollPressure(_ context.Context, tick uint32) (uint16, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Polls++
	if err := s.fault(FaultPressure); err != nil {
		return 0, err
	}
	if s.phase == phaseTactile && s.cur.TactileAt.Valid && tick >= s.cur.TactileAt.Value {
		if s.cur.Pressure == 0 {
			return model.PressureMax, nil
		}
		return s.cur.Pressure, nil
	}
	return s.cur.Idle, nil
}

// ActivateStimulus implements capability.Stimulus.
func (s *Script) ActivateStimulus(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(FaultStimulus); err != nil {
		return err
	}
	s.Stimuli++
	s.phase = phaseStim
	return nil
}

// DisplayValue implements capability.Display.
func (s *Script) DisplayValue(_ context.Context, label string, value uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(FaultDisplay); err != nil {
		return err
	}
	s.Values = append(s.Values, Value{Label: label, Value: value})
	return nil
}

// DisplayMessage implements capability.Display.
func (s *Script) DisplayMessage(_ context.Context, label string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(FaultDisplay); err != nil {
		return err
	}
	s.Messages = append(s.Messages, label)
	return nil
}

// FeedbackAlert implements capability.Feedback.
func (s *Script) FeedbackAlert(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(FaultFeedback); err != nil {
		return err
	}
	s.Alerts++
	return nil
}

// ReportResult implements capability.Reporter.
func (s *Script) ReportResult(_ context.Context, rec model.TrialRecord, best model.Millis) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fault(FaultReporter); err != nil {
		return err
	}
	s.Reports = append(s.Reports, Report{Record: rec, Best: best})
	return nil
}
