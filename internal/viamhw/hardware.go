package viamhw

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.viam.com/rdk/components/sensor"
	toggleswitch "go.viam.com/rdk/components/switch"
	"go.viam.com/rdk/logging"

	"github.com/verte-zerg/reflex/internal/console"
	"github.com/verte-zerg/reflex/internal/model"
)

const (
	switchOff uint32 = 0
	switchOn  uint32 = 1

	defaultAlertMs = 200
)

// readNumber extracts one numeric reading from a sensor.
func readNumber(ctx context.Context, s sensor.Sensor, key string) (float64, error) {
	readings, err := s.Readings(ctx, nil)
	if err != nil {
		return 0, err
	}
	val, ok := readings[key]
	if !ok {
		return 0, fmt.Errorf("sensor readings missing %q key", key)
	}
	switch v := val.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint16:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("sensor reading %q is not numeric: %T", key, val)
	}
}

// startButton reads a momentary switch; any non-zero position is a press.
type startButton struct {
	sw toggleswitch.Switch
}

func (b startButton) StartRequested(ctx context.Context) (bool, error) {
	pos, err := b.sw.GetPosition(ctx, nil)
	if err != nil {
		return false, err
	}
	return pos != switchOff, nil
}

// potentiometer maps a raw 0..1023 ADC reading onto difficulty 0..100.
type potentiometer struct {
	sensor sensor.Sensor
	key    string
}

func (p potentiometer) ReadDifficulty(ctx context.Context) (uint8, error) {
	raw, err := readNumber(ctx, p.sensor, p.key)
	if err != nil {
		return 0, err
	}
	raw = min(max(raw, 0), model.PressureMax)
	return uint8(raw * model.DifficultyMax / model.PressureMax), nil
}

// rangeFinder reports a crossing when the measured distance drops below
// a configured limit.
type rangeFinder struct {
	sensor sensor.Sensor
	key    string
	below  float64
}

func (r rangeFinder) PollVisualCrossing(ctx context.Context, _ uint32) (bool, error) {
	d, err := readNumber(ctx, r.sensor, r.key)
	if err != nil {
		return false, err
	}
	return d < r.below, nil
}

// pressurePad reads the force sensor, clamped to the ADC range.
type pressurePad struct {
	sensor sensor.Sensor
	key    string
}

func (p pressurePad) PollPressure(ctx context.Context, _ uint32) (uint16, error) {
	v, err := readNumber(ctx, p.sensor, p.key)
	if err != nil {
		return 0, err
	}
	return uint16(min(max(v, 0), model.PressureMax)), nil
}

// panel drives the output switches and keeps the last readout so the
// service can report it.
type panel struct {
	logger    logging.Logger
	led       toggleswitch.Switch
	vibration toggleswitch.Switch
	buzzer    toggleswitch.Switch
	alertFor  time.Duration

	mu       sync.Mutex
	state    model.RoundState
	round    uint32
	label    string
	value    model.Millis
	best     model.Millis
	reported uint32
}

func (p *panel) ActivateStimulus(ctx context.Context) error {
	if err := p.led.SetPosition(ctx, switchOn, nil); err != nil {
		return fmt.Errorf("led on: %w", err)
	}
	if p.vibration != nil {
		if err := p.vibration.SetPosition(ctx, switchOn, nil); err != nil {
			return fmt.Errorf("vibration on: %w", err)
		}
	}
	return nil
}

func (p *panel) DisplayValue(_ context.Context, label string, value uint32) error {
	p.mu.Lock()
	p.label, p.value = label, model.Millis{Value: value, Valid: true}
	p.mu.Unlock()
	p.logger.Infof("7SEG %s = %d ms", label, value)
	return nil
}

func (p *panel) DisplayMessage(_ context.Context, label string) error {
	p.mu.Lock()
	p.label, p.value = label, model.Millis{}
	p.mu.Unlock()
	p.logger.Infof("7SEG %s", label)
	return nil
}

// FeedbackAlert pulses the buzzer, or the LED when no buzzer is wired.
func (p *panel) FeedbackAlert(ctx context.Context) error {
	sw := p.buzzer
	if sw == nil {
		sw = p.led
	}
	if err := sw.SetPosition(ctx, switchOn, nil); err != nil {
		return fmt.Errorf("alert on: %w", err)
	}
	select {
	case <-ctx.Done():
	case <-time.After(p.alertFor):
	}
	if err := sw.SetPosition(context.WithoutCancel(ctx), switchOff, nil); err != nil {
		return fmt.Errorf("alert off: %w", err)
	}
	return nil
}

func (p *panel) ReportResult(_ context.Context, rec model.TrialRecord, best model.Millis) error {
	p.mu.Lock()
	p.best = best
	p.reported++
	p.mu.Unlock()
	p.logger.Infof("%s", console.FormatResultLine(console.DefaultBaud, rec, best))
	return nil
}

// observe switches the actuators off whenever a new round arms or a
// round aborts; it fits round.WithObserver.
func (p *panel) observe(round uint32, _, to model.RoundState) {
	p.mu.Lock()
	p.round, p.state = round, to
	p.mu.Unlock()
	if to == model.StateArmed || to == model.StateAbortRetry {
		p.off(context.Background())
	}
}

// off switches the stimulus actuators off, logging failures.
func (p *panel) off(ctx context.Context) {
	if err := p.led.SetPosition(ctx, switchOff, nil); err != nil {
		p.logger.Warnf("failed to switch led off: %v", err)
	}
	if p.vibration != nil {
		if err := p.vibration.SetPosition(ctx, switchOff, nil); err != nil {
			p.logger.Warnf("failed to switch vibration off: %v", err)
		}
	}
}

// reset clears the readout for a new session.
func (p *panel) reset() {
	p.mu.Lock()
	p.state, p.round, p.label = model.StateIdle, 0, ""
	p.value, p.best, p.reported = model.Millis{}, model.Millis{}, 0
	p.mu.Unlock()
}

func (p *panel) snapshot() map[string]interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := map[string]interface{}{
		"round":    p.round,
		"state":    p.state.String(),
		"display":  p.label,
		"best_ms":  p.best.String(),
		"reported": p.reported,
	}
	if p.value.Valid {
		out["display_ms"] = p.value.Value
	}
	return out
}
