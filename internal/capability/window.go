package capability

import (
	"context"

	"github.com/verte-zerg/reflex/internal/clock"
)

// Status is the per-tick result of a window probe.
type Status int

const (
	NotYet Status = iota
	Detected
)

// Probe checks a capability once at the given tick, relative to the
// start of the window. A non-nil error is a fault.
type Probe func(ctx context.Context, tick uint32) (Status, error)

// Window is a bounded polling interval of Length ticks. A detection at
// tick t counts only when t < Length; the bound itself is a timeout.
type Window struct {
	Name   string
	Length uint32
}

// Await polls probe at ticks 0..Length-1, advancing clk between polls.
// It returns the detection tick and true, or false on timeout.
func (w Window) Await(ctx context.Context, clk clock.Clock, probe Probe) (uint32, bool, error) {
	for tick := uint32(0); tick < w.Length; tick++ {
		status, err := probe(ctx, tick)
		if err != nil {
			return tick, false, NewFault(w.Name, err)
		}
		if status == Detected {
			return tick, true, nil
		}
		if err := clk.Advance(ctx); err != nil {
			return tick, false, err
		}
	}
	return w.Length, false, nil
}

// VisualProbe adapts a VisualSensor to a Probe.
func VisualProbe(s VisualSensor) Probe {
	return func(ctx context.Context, tick uint32) (Status, error) {
		hit, err := s.PollVisualCrossing(ctx, tick)
		if err != nil {
			return NotYet, err
		}
		if hit {
			return Detected, nil
		}
		return NotYet, nil
	}
}

// PressureProbe adapts a PressureSensor to a Probe that fires once the
// reading reaches threshold.
func PressureProbe(s PressureSensor, threshold uint16) Probe {
	return func(ctx context.Context, tick uint32) (Status, error) {
		v, err := s.PollPressure(ctx, tick)
		if err != nil {
			return NotYet, err
		}
		if v >= threshold {
			return Detected, nil
		}
		return NotYet, nil
	}
}
