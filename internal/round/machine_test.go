package round

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"go.viam.com/rdk/logging"

	"github.com/verte-zerg/reflex/internal/capability"
	"github.com/verte-zerg/reflex/internal/clock"
	"github.com/verte-zerg/reflex/internal/generator"
	"github.com/verte-zerg/reflex/internal/model"
	"github.com/verte-zerg/reflex/internal/score"
	"github.com/verte-zerg/reflex/internal/sim"
)

type fixedWait uint32

func (f fixedWait) RandomWaitMs(uint8, model.Tunables) uint32 {
	return uint32(f)
}

func newMachine(t *testing.T, script *sim.Script, wait WaitSource) (*Machine, *clock.Sim) {
	t.Helper()
	clk := clock.NewSim()
	m, err := New(script.Device(), clk, wait, model.DefaultTunables(), logging.NewTestLogger(t))
	if err != nil {
		t.Fatalf("new machine: %v", err)
	}
	return m, clk
}

func TestRunCompletedRoundEntersFeedback(t *testing.T) {
	script := sim.NewScript(sim.Step{Difficulty: 50, VisualAt: model.Ms(300), TactileAt: model.Ms(250)})
	m, clk := newMachine(t, script, fixedWait(2000))
	tracker := score.NewTracker()

	res, err := m.Run(context.Background(), 1, tracker)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	rec := res.Record
	if !res.Started || rec.Outcome != model.OutcomeCompleted {
		t.Fatalf("expected completed round, got %+v", res)
	}
	if rec.RoundIndex != 1 || rec.Difficulty != 50 || rec.WaitMs != 2000 {
		t.Fatalf("unexpected record header: %+v", rec)
	}
	if rec.VisualMs != model.Ms(300) || rec.TactileMs != model.Ms(250) || rec.TotalMs != model.Ms(550) {
		t.Fatalf("unexpected measurements: %+v", rec)
	}
	if !res.Improved || tracker.Best() != model.Ms(550) {
		t.Fatalf("expected best 550 and improvement, got %v improved=%v", tracker.Best(), res.Improved)
	}
	wantPath := []model.RoundState{
		model.StateIdle, model.StateArmed, model.StateStimOn, model.StateVisualDone,
		model.StateTactileDone, model.StateReport, model.StateFeedback,
	}
	if !reflect.DeepEqual(res.Path, wantPath) {
		t.Fatalf("unexpected path: %v", res.Path)
	}
	if res.Final != model.StateFeedback || m.State() != model.StateFeedback {
		t.Fatalf("expected to finish in FEEDBACK, got %s", res.Final)
	}
	if script.Stimuli != 1 || script.Alerts != 1 {
		t.Fatalf("expected one stimulus and one alert, got %d/%d", script.Stimuli, script.Alerts)
	}
	if len(script.Reports) != 1 || script.Reports[0].Best != model.Ms(550) || script.Reports[0].Record != rec {
		t.Fatalf("unexpected reports: %+v", script.Reports)
	}
	wantValues := []sim.Value{{Label: LabelVisual, Value: 300}, {Label: LabelTactile, Value: 250}, {Label: LabelTotal, Value: 550}}
	if !reflect.DeepEqual(script.Values, wantValues) {
		t.Fatalf("unexpected display values: %+v", script.Values)
	}
	if !reflect.DeepEqual(script.Messages, []string{LabelGo, LabelBest}) {
		t.Fatalf("unexpected display messages: %v", script.Messages)
	}
	if clk.Elapsed() != 2550*time.Millisecond {
		t.Fatalf("expected 2550 ticks elapsed, got %v", clk.Elapsed())
	}
}

func TestRunWithoutImprovementEndsAtReport(t *testing.T) {
	script := sim.NewScript(
		sim.Step{VisualAt: model.Ms(200), TactileAt: model.Ms(200)},
		sim.Step{VisualAt: model.Ms(300), TactileAt: model.Ms(200)},
	)
	m, _ := newMachine(t, script, fixedWait(1000))
	tracker := score.NewTracker()
	if _, err := m.Run(context.Background(), 1, tracker); err != nil {
		t.Fatalf("round 1: %v", err)
	}
	res, err := m.Run(context.Background(), 2, tracker)
	if err != nil {
		t.Fatalf("round 2: %v", err)
	}
	if res.Improved || res.Final != model.StateReport {
		t.Fatalf("expected round to end at REPORT without feedback, got %s improved=%v", res.Final, res.Improved)
	}
	if script.Alerts != 1 {
		t.Fatalf("expected only the first round to alert, got %d", script.Alerts)
	}
	if len(script.Reports) != 2 || script.Reports[1].Best != model.Ms(400) {
		t.Fatalf("expected second report to carry best 400, got %+v", script.Reports)
	}
}

func TestRunTactileTimeout(t *testing.T) {
	script := sim.NewScript(sim.Step{VisualAt: model.Ms(300)})
	m, clk := newMachine(t, script, fixedWait(1500))
	tracker := score.NewTracker()

	res, err := m.Run(context.Background(), 4, tracker)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Record.Outcome != model.OutcomeAbortedTactileTimeout {
		t.Fatalf("expected tactile timeout, got %s", res.Record.Outcome)
	}
	if !res.Record.VisualMs.Valid || res.Record.TactileMs.Valid || res.Record.TotalMs.Valid {
		t.Fatalf("expected only visual measurement, got %+v", res.Record)
	}
	wantTail := []model.RoundState{model.StateVisualDone, model.StateTactileTimeout, model.StateAbortRetry}
	if got := res.Path[len(res.Path)-3:]; !reflect.DeepEqual(got, wantTail) {
		t.Fatalf("unexpected path tail: %v", got)
	}
	if len(script.Reports) != 0 || tracker.Best().Valid {
		t.Fatalf("expected nothing scored or reported")
	}
	if clk.Elapsed() != 0 {
		t.Fatalf("expected elapsed accumulator reset on abort, got %v", clk.Elapsed())
	}
	if script.Messages[len(script.Messages)-1] != LabelRetry {
		t.Fatalf("expected RETRY on the display, got %v", script.Messages)
	}
}

func TestRunVisualTimeout(t *testing.T) {
	script := sim.NewScript(sim.Step{TactileAt: model.Ms(10)})
	m, _ := newMachine(t, script, fixedWait(1000))
	tracker := score.NewTracker()

	res, err := m.Run(context.Background(), 1, tracker)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Record.Outcome != model.OutcomeAbortedVisualTimeout || res.Final != model.StateAbortRetry {
		t.Fatalf("expected visual timeout abort, got %s in %s", res.Record.Outcome, res.Final)
	}
	if res.Record.VisualMs.Valid {
		t.Fatalf("expected visual measurement to be absent")
	}
	if len(script.Reports) != 0 || tracker.Best().Valid {
		t.Fatalf("expected no record to reach the tracker or reporter")
	}
	for _, st := range res.Path {
		if st == model.StateVisualDone {
			t.Fatalf("tactile phase must not start after a visual timeout")
		}
	}
}

func TestRunEarlyTriggerAbortsAtAnyDifficulty(t *testing.T) {
	for _, d := range []uint8{0, 50, 100} {
		script := sim.NewScript(sim.Step{Difficulty: d, EarlyAt: model.Ms(10), VisualAt: model.Ms(100), TactileAt: model.Ms(100)})
		clk := clock.NewSim()
		m, err := New(script.Device(), clk, generator.NewSeeded(int64(d)), model.DefaultTunables(), logging.NewTestLogger(t))
		if err != nil {
			t.Fatalf("new machine: %v", err)
		}
		res, err := m.Run(context.Background(), 1, score.NewTracker())
		if err != nil {
			t.Fatalf("difficulty %d: %v", d, err)
		}
		if res.Record.Outcome != model.OutcomeAbortedEarly {
			t.Fatalf("difficulty %d: expected early abort, got %s", d, res.Record.Outcome)
		}
		if script.Stimuli != 0 {
			t.Fatalf("difficulty %d: stimulus must not fire after a false start", d)
		}
		if !reflect.DeepEqual(res.Path, []model.RoundState{model.StateIdle, model.StateArmed, model.StateAbortRetry}) {
			t.Fatalf("difficulty %d: unexpected path %v", d, res.Path)
		}
	}
}

func TestRunWindowBoundIsTimeout(t *testing.T) {
	tun := model.DefaultTunables()
	cases := []struct {
		name    string
		step    sim.Step
		outcome model.Outcome
	}{
		{"visual just inside", sim.Step{VisualAt: model.Ms(tun.VisualWindowMs - 1), TactileAt: model.Ms(0)}, model.OutcomeCompleted},
		{"visual at bound", sim.Step{VisualAt: model.Ms(tun.VisualWindowMs), TactileAt: model.Ms(0)}, model.OutcomeAbortedVisualTimeout},
		{"tactile just inside", sim.Step{VisualAt: model.Ms(0), TactileAt: model.Ms(tun.TactileWindowMs - 1)}, model.OutcomeCompleted},
		{"tactile at bound", sim.Step{VisualAt: model.Ms(0), TactileAt: model.Ms(tun.TactileWindowMs)}, model.OutcomeAbortedTactileTimeout},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, _ := newMachine(t, sim.NewScript(tc.step), fixedWait(1000))
			res, err := m.Run(context.Background(), 1, score.NewTracker())
			if err != nil {
				t.Fatalf("run: %v", err)
			}
			if res.Record.Outcome != tc.outcome {
				t.Fatalf("expected %s, got %s", tc.outcome, res.Record.Outcome)
			}
		})
	}
}

func TestRunPressureThreshold(t *testing.T) {
	below := sim.NewScript(sim.Step{VisualAt: model.Ms(100), TactileAt: model.Ms(50), Pressure: 399})
	m, _ := newMachine(t, below, fixedWait(1000))
	res, err := m.Run(context.Background(), 1, score.NewTracker())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Record.Outcome != model.OutcomeAbortedTactileTimeout {
		t.Fatalf("expected reading below threshold to time out, got %s", res.Record.Outcome)
	}

	at := sim.NewScript(sim.Step{VisualAt: model.Ms(100), TactileAt: model.Ms(50), Pressure: 400})
	m, _ = newMachine(t, at, fixedWait(1000))
	res, err = m.Run(context.Background(), 1, score.NewTracker())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Record.TactileMs != model.Ms(50) {
		t.Fatalf("expected reading at threshold to count, got %+v", res.Record)
	}
}

func TestRunWithoutStartIsNoop(t *testing.T) {
	script := sim.NewScript(sim.Step{NoStart: true})
	m, clk := newMachine(t, script, fixedWait(1000))
	res, err := m.Run(context.Background(), 1, score.NewTracker())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Started || res.Final != model.StateIdle {
		t.Fatalf("expected idle no-op, got %+v", res)
	}
	if script.Polls != 0 || clk.Elapsed() != 0 {
		t.Fatalf("expected no polling without a start signal")
	}
}

func TestRunCapabilityFaultsPropagate(t *testing.T) {
	for _, fault := range []string{sim.FaultStart, sim.FaultDifficulty, sim.FaultVisual, sim.FaultPressure, sim.FaultStimulus, sim.FaultDisplay, sim.FaultFeedback} {
		t.Run(fault, func(t *testing.T) {
			script := sim.NewScript(sim.Step{VisualAt: model.Ms(100), TactileAt: model.Ms(100), Fault: fault})
			m, _ := newMachine(t, script, fixedWait(1000))
			_, err := m.Run(context.Background(), 1, score.NewTracker())
			if !capability.IsFault(err) {
				t.Fatalf("expected capability fault, got %v", err)
			}
		})
	}
}

func TestRunReporterFailureIsNotFatal(t *testing.T) {
	script := sim.NewScript(sim.Step{VisualAt: model.Ms(100), TactileAt: model.Ms(100), Fault: sim.FaultReporter})
	m, _ := newMachine(t, script, fixedWait(1000))
	res, err := m.Run(context.Background(), 1, score.NewTracker())
	if err != nil {
		t.Fatalf("expected reporter failure to be logged only, got %v", err)
	}
	if res.Record.Outcome != model.OutcomeCompleted {
		t.Fatalf("expected completed round, got %s", res.Record.Outcome)
	}
}

func TestRunRejectsOutOfRangeReadings(t *testing.T) {
	script := sim.NewScript(sim.Step{Difficulty: 101})
	m, _ := newMachine(t, script, fixedWait(1000))
	if _, err := m.Run(context.Background(), 1, score.NewTracker()); !capability.IsFault(err) {
		t.Fatalf("expected fault for difficulty 101, got %v", err)
	}

	script = sim.NewScript(sim.Step{})
	m, _ = newMachine(t, script, fixedWait(5000))
	if _, err := m.Run(context.Background(), 1, score.NewTracker()); !capability.IsFault(err) {
		t.Fatalf("expected fault for wait outside bounds, got %v", err)
	}
}

func TestRunCancelledContext(t *testing.T) {
	script := sim.NewScript(sim.Step{VisualAt: model.Ms(100), TactileAt: model.Ms(100)})
	m, _ := newMachine(t, script, fixedWait(1000))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := m.Run(ctx, 1, score.NewTracker())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRunCancellationIsNotLoggedAsFailure(t *testing.T) {
	script := sim.NewScript(sim.Step{VisualAt: model.Ms(100), TactileAt: model.Ms(100)})
	logger, logs := logging.NewObservedTestLogger(t)
	m, err := New(script.Device(), clock.NewSim(), fixedWait(1000), model.DefaultTunables(), logger)
	if err != nil {
		t.Fatalf("new machine: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := m.Run(ctx, 1, score.NewTracker()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if n := logs.FilterMessageSnippet("failed").Len(); n != 0 {
		t.Fatalf("expected no failure log for cancellation, got %d", n)
	}
	if n := logs.FilterMessageSnippet("interrupted").Len(); n != 1 {
		t.Fatalf("expected one interruption log, got %d", n)
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	script := sim.NewScript()
	tun := model.DefaultTunables()
	tun.PressureThreshold = 2000
	_, err := New(script.Device(), clock.NewSim(), fixedWait(1000), tun, logging.NewTestLogger(t))
	var cfgErr *model.ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Field != "pressure-threshold" {
		t.Fatalf("expected pressure-threshold config error, got %v", err)
	}

	dev := script.Device()
	dev.Reporter = nil
	if _, err := New(dev, clock.NewSim(), fixedWait(1000), model.DefaultTunables(), logging.NewTestLogger(t)); err == nil {
		t.Fatalf("expected error for missing reporter")
	}
}

func TestObserverSeesTransitions(t *testing.T) {
	script := sim.NewScript(sim.Step{VisualAt: model.Ms(10), TactileAt: model.Ms(10)})
	var seen []model.RoundState
	m, err := New(script.Device(), clock.NewSim(), fixedWait(1000), model.DefaultTunables(), logging.NewTestLogger(t),
		WithObserver(func(round uint32, _, to model.RoundState) {
			if round != 7 {
				t.Errorf("unexpected round %d", round)
			}
			seen = append(seen, to)
		}))
	if err != nil {
		t.Fatalf("new machine: %v", err)
	}
	res, err := m.Run(context.Background(), 7, score.NewTracker())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !reflect.DeepEqual(seen, res.Path) {
		t.Fatalf("observer saw %v, path %v", seen, res.Path)
	}
}
