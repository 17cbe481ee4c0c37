// Package round runs one reaction trial: arm, randomized wait, stimulus,
// visual window, tactile window, score and report.
package round

import (
	"context"
	"errors"
	"fmt"

	"go.viam.com/rdk/logging"

	"github.com/verte-zerg/reflex/internal/capability"
	"github.com/verte-zerg/reflex/internal/clock"
	"github.com/verte-zerg/reflex/internal/model"
)

// Display labels.
const (
	LabelGo      = "GO"
	LabelVisual  = "VIS"
	LabelTactile = "TAC"
	LabelTotal   = "TOT"
	LabelRetry   = "RETRY"
	LabelBest    = "BEST"
)

// WaitSource draws the pre-stimulus wait for a difficulty.
type WaitSource interface {
	RandomWaitMs(difficulty uint8, t model.Tunables) uint32
}

// Scorer receives completed records.
type Scorer interface {
	Submit(rec model.TrialRecord) (bool, error)
	Best() model.Millis
}

// TransitionFunc observes state changes of a round.
type TransitionFunc func(round uint32, from, to model.RoundState)

// Option configures a Machine.
type Option func(*Machine)

// WithObserver registers a transition observer.
func WithObserver(fn TransitionFunc) Option {
	return func(m *Machine) {
		m.observers = append(m.observers, fn)
	}
}

// Machine is the round state machine. A Machine runs one round at a
// time; it is not safe for concurrent use.
type Machine struct {
	dev       capability.Device
	clk       clock.Clock
	waits     WaitSource
	tun       model.Tunables
	logger    logging.Logger
	observers []TransitionFunc

	state model.RoundState
	round uint32
}

// Result is the outcome of one Run.
type Result struct {
	Started  bool
	Record   model.TrialRecord
	Final    model.RoundState
	Improved bool
	Path     []model.RoundState
}

// New validates the tunables and device and returns an idle Machine.
func New(dev capability.Device, clk clock.Clock, waits WaitSource, tun model.Tunables, logger logging.Logger, opts ...Option) (*Machine, error) {
	if err := tun.Validate(); err != nil {
		return nil, err
	}
	if err := dev.Validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		return nil, &model.ConfigError{Field: "clock", Reason: "is not set"}
	}
	if waits == nil {
		return nil, &model.ConfigError{Field: "wait source", Reason: "is not set"}
	}
	m := &Machine{
		dev:    dev,
		clk:    clk,
		waits:  waits,
		tun:    tun,
		logger: logger,
		state:  model.StateIdle,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// State returns the current phase.
func (m *Machine) State() model.RoundState {
	return m.state
}

// Run executes one round with the given 1-based index. Timeouts and
// early triggers are outcomes, not errors; a returned error is a
// capability fault or a cancelled context and ends the session.
func (m *Machine) Run(ctx context.Context, index uint32, sc Scorer) (Result, error) {
	m.round = index
	res := Result{Record: model.TrialRecord{RoundIndex: index}}
	m.enter(&res, model.StateIdle)

	started, err := m.dev.Start.StartRequested(ctx)
	if err != nil {
		return m.fail(&res, capability.NewFault("start signal", err))
	}
	if !started {
		res.Final = m.state
		return res, nil
	}
	res.Started = true

	difficulty, err := m.dev.Difficulty.ReadDifficulty(ctx)
	if err != nil {
		return m.fail(&res, capability.NewFault("difficulty", err))
	}
	if difficulty > model.DifficultyMax {
		return m.fail(&res, capability.NewFault("difficulty", fmt.Errorf("reading %d outside 0..%d", difficulty, model.DifficultyMax)))
	}
	res.Record.Difficulty = difficulty

	m.enter(&res, model.StateArmed)
	wait := m.waits.RandomWaitMs(difficulty, m.tun)
	if wait < m.tun.WaitMinMs || wait > m.tun.WaitMaxMs {
		return m.fail(&res, capability.NewFault("random wait", fmt.Errorf("wait %dms outside %d..%d", wait, m.tun.WaitMinMs, m.tun.WaitMaxMs)))
	}
	res.Record.WaitMs = wait
	m.logger.Debugf("round %d armed: difficulty=%d wait=%dms", index, difficulty, wait)

	early := capability.Window{Name: "visual sensor", Length: wait}
	tick, hit, err := early.Await(ctx, m.clk, capability.VisualProbe(m.dev.Visual))
	if err != nil {
		return m.fail(&res, err)
	}
	if hit {
		m.logger.Infof("round %d: hand crossed %dms into the %dms wait (false start)", index, tick, wait)
		return m.abort(ctx, &res, model.OutcomeAbortedEarly)
	}

	m.enter(&res, model.StateStimOn)
	if err := m.dev.Stimulus.ActivateStimulus(ctx); err != nil {
		return m.fail(&res, capability.NewFault("stimulus", err))
	}
	if err := m.dev.Display.DisplayMessage(ctx, LabelGo); err != nil {
		return m.fail(&res, capability.NewFault("display", err))
	}

	visual := capability.Window{Name: "visual sensor", Length: m.tun.VisualWindowMs}
	tick, hit, err = visual.Await(ctx, m.clk, capability.VisualProbe(m.dev.Visual))
	if err != nil {
		return m.fail(&res, err)
	}
	if !hit {
		m.logger.Infof("round %d: no visual reaction within %dms", index, m.tun.VisualWindowMs)
		return m.abort(ctx, &res, model.OutcomeAbortedVisualTimeout)
	}
	res.Record.VisualMs = model.Ms(tick)
	m.enter(&res, model.StateVisualDone)
	if err := m.dev.Display.DisplayValue(ctx, LabelVisual, tick); err != nil {
		return m.fail(&res, capability.NewFault("display", err))
	}

	// The tactile window opens at the tick the visual capture completed.
	tactile := capability.Window{Name: "pressure sensor", Length: m.tun.TactileWindowMs}
	tick, hit, err = tactile.Await(ctx, m.clk, capability.PressureProbe(m.dev.Pressure, m.tun.PressureThreshold))
	if err != nil {
		return m.fail(&res, err)
	}
	if !hit {
		m.enter(&res, model.StateTactileTimeout)
		m.logger.Infof("round %d: no press >= %d within %dms", index, m.tun.PressureThreshold, m.tun.TactileWindowMs)
		return m.abort(ctx, &res, model.OutcomeAbortedTactileTimeout)
	}
	res.Record.TactileMs = model.Ms(tick)
	m.enter(&res, model.StateTactileDone)
	if err := m.dev.Display.DisplayValue(ctx, LabelTactile, tick); err != nil {
		return m.fail(&res, capability.NewFault("display", err))
	}

	return m.report(ctx, &res, sc)
}

func (m *Machine) report(ctx context.Context, res *Result, sc Scorer) (Result, error) {
	rec := &res.Record
	rec.TotalMs = model.Ms(rec.VisualMs.Value + rec.TactileMs.Value)
	rec.Outcome = model.OutcomeCompleted
	m.enter(res, model.StateReport)

	improved, err := sc.Submit(*rec)
	if err != nil {
		return m.fail(res, err)
	}
	res.Improved = improved
	if err := m.dev.Display.DisplayValue(ctx, LabelTotal, rec.TotalMs.Value); err != nil {
		return m.fail(res, capability.NewFault("display", err))
	}
	best := sc.Best()
	if err := m.dev.Reporter.ReportResult(ctx, *rec, best); err != nil {
		m.logger.Warnf("round %d: failed to report result: %v", rec.RoundIndex, err)
	}
	m.logger.Infof("round %d completed: visual=%dms tactile=%dms total=%dms best=%s",
		rec.RoundIndex, rec.VisualMs.Value, rec.TactileMs.Value, rec.TotalMs.Value, best)

	if improved {
		m.enter(res, model.StateFeedback)
		if err := m.dev.Feedback.FeedbackAlert(ctx); err != nil {
			return m.fail(res, capability.NewFault("feedback", err))
		}
		if err := m.dev.Display.DisplayMessage(ctx, LabelBest); err != nil {
			return m.fail(res, capability.NewFault("display", err))
		}
	}
	res.Final = m.state
	return *res, nil
}

func (m *Machine) abort(ctx context.Context, res *Result, outcome model.Outcome) (Result, error) {
	res.Record.Outcome = outcome
	m.enter(res, model.StateAbortRetry)
	m.clk.Reset()
	m.logger.Infof("round %d aborted: %s", res.Record.RoundIndex, outcome)
	if err := m.dev.Display.DisplayMessage(ctx, LabelRetry); err != nil {
		return m.fail(res, capability.NewFault("display", err))
	}
	res.Final = m.state
	return *res, nil
}

func (m *Machine) fail(res *Result, err error) (Result, error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		m.logger.Infof("round %d interrupted in %s: %v", res.Record.RoundIndex, m.state, err)
	} else {
		m.logger.Errorf("round %d failed in %s: %v", res.Record.RoundIndex, m.state, err)
	}
	res.Final = m.state
	return *res, err
}

func (m *Machine) enter(res *Result, to model.RoundState) {
	from := m.state
	m.state = to
	res.Path = append(res.Path, to)
	m.logger.Debugf("round %d: %s -> %s", m.round, from, to)
	for _, fn := range m.observers {
		fn(m.round, from, to)
	}
}
