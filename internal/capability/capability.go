// Package capability declares the collaborator contracts the round
// state machine drives: start button, difficulty source, sensors,
// actuators and the result channel.
package capability

import (
	"context"

	"github.com/verte-zerg/reflex/internal/model"
)

// StartSignal reports whether a trial start was requested.
type StartSignal interface {
	StartRequested(ctx context.Context) (bool, error)
}

// DifficultyProvider yields the current difficulty in 0..100.
type DifficultyProvider interface {
	ReadDifficulty(ctx context.Context) (uint8, error)
}

// VisualSensor samples the hand-crossing detector once per tick.
type VisualSensor interface {
	PollVisualCrossing(ctx context.Context, tick uint32) (bool, error)
}

// PressureSensor samples the raw pressure ADC (0..1023) once per tick.
type PressureSensor interface {
	PollPressure(ctx context.Context, tick uint32) (uint16, error)
}

// Stimulus drives the go cue (LED and haptic burst).
type Stimulus interface {
	ActivateStimulus(ctx context.Context) error
}

// Display is the operator-facing readout.
type Display interface {
	DisplayValue(ctx context.Context, label string, value uint32) error
	DisplayMessage(ctx context.Context, label string) error
}

// Feedback actuates the new-best indication.
type Feedback interface {
	FeedbackAlert(ctx context.Context) error
}

// Reporter transmits a completed trial with the session best.
type Reporter interface {
	ReportResult(ctx context.Context, rec model.TrialRecord, best model.Millis) error
}

// Device bundles every capability one round needs.
type Device struct {
	Start      StartSignal
	Difficulty DifficultyProvider
	Visual     VisualSensor
	Pressure   PressureSensor
	Stimulus   Stimulus
	Display    Display
	Feedback   Feedback
	Reporter   Reporter
}

// Validate checks that no capability is missing.
func (d Device) Validate() error {
	missing := func(name string) error {
		return &model.ConfigError{Field: "device", Reason: name + " capability is not set"}
	}
	switch {
	case d.Start == nil:
		return missing("start signal")
	case d.Difficulty == nil:
		return missing("difficulty")
	case d.Visual == nil:
		return missing("visual sensor")
	case d.Pressure == nil:
		return missing("pressure sensor")
	case d.Stimulus == nil:
		return missing("stimulus")
	case d.Display == nil:
		return missing("display")
	case d.Feedback == nil:
		return missing("feedback")
	case d.Reporter == nil:
		return missing("reporter")
	}
	return nil
}

// Stimuli fans one stimulus actuation out to several actuators.
type Stimuli []Stimulus

// ActivateStimulus implements Stimulus, stopping at the first error.
func (s Stimuli) ActivateStimulus(ctx context.Context) error {
	for _, st := range s {
		if err := st.ActivateStimulus(ctx); err != nil {
			return err
		}
	}
	return nil
}

// FixedDifficulty is a DifficultyProvider that always reports the same level.
type FixedDifficulty uint8

// ReadDifficulty implements DifficultyProvider.
func (f FixedDifficulty) ReadDifficulty(context.Context) (uint8, error) {
	return uint8(f), nil
}
