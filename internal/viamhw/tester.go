// Package viamhw runs reaction-time sessions on real hardware wired
// through a Viam machine: a start switch, range finder, pressure pad and
// optional potentiometer in, LED, vibration motor and buzzer out.
package viamhw

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.viam.com/rdk/components/sensor"
	toggleswitch "go.viam.com/rdk/components/switch"
	"go.viam.com/rdk/logging"
	"go.viam.com/rdk/resource"
	generic "go.viam.com/rdk/services/generic"

	"github.com/verte-zerg/reflex/internal/capability"
	"github.com/verte-zerg/reflex/internal/clock"
	"github.com/verte-zerg/reflex/internal/generator"
	"github.com/verte-zerg/reflex/internal/model"
	"github.com/verte-zerg/reflex/internal/report"
	"github.com/verte-zerg/reflex/internal/round"
	"github.com/verte-zerg/reflex/internal/session"
)

var Tester = resource.NewModel("verte-zerg", "reflex", "tester")

// mqttConn is the broker link a tester publishes through.
type mqttConn interface {
	report.Publisher
	Disconnect(ctx context.Context) error
}

var dialMQTT = func(ctx, life context.Context, cfg report.MQTTConfig, logger logging.Logger) (mqttConn, error) {
	return report.Connect(ctx, life, cfg, logger)
}

func init() {
	resource.RegisterService(generic.API, Tester,
		resource.Registration[resource.Resource, *Config]{
			Constructor: newTester,
		},
	)
}

// Config names the machine components the tester drives. Difficulty is
// read from a potentiometer sensor when set, else fixed_difficulty
// applies. Reading keys default to "distance" for the crossing sensor
// and "value" for the others; crossing_below defaults to 0.1.
type Config struct {
	StartButton string `json:"start_button"`
	Crossing    string `json:"crossing"`
	Pressure    string `json:"pressure"`
	LED         string `json:"led"`

	Vibration     string  `json:"vibration,omitempty"`
	Buzzer        string  `json:"buzzer,omitempty"`
	Difficulty    string  `json:"difficulty,omitempty"`
	FixedLevel    int     `json:"fixed_difficulty,omitempty"`
	CrossingKey   string  `json:"crossing_key,omitempty"`
	CrossingBelow float64 `json:"crossing_below,omitempty"`
	PressureKey   string  `json:"pressure_key,omitempty"`
	DifficultyKey string  `json:"difficulty_key,omitempty"`
	AlertMs       int     `json:"alert_ms,omitempty"`

	Rounds            int  `json:"rounds,omitempty"`
	WaitMinMs         int  `json:"wait_min_ms,omitempty"`
	WaitMaxMs         int  `json:"wait_max_ms,omitempty"`
	VisualWindowMs    int  `json:"visual_window_ms,omitempty"`
	TactileWindowMs   int  `json:"tactile_window_ms,omitempty"`
	PressureThreshold int  `json:"pressure_threshold,omitempty"`
	DifficultyShrink  *int `json:"difficulty_shrink,omitempty"`

	MQTTURL     string `json:"mqtt_url,omitempty"`
	TopicPrefix string `json:"topic_prefix,omitempty"`
}

func (cfg *Config) Validate(path string) ([]string, []string, error) {
	if cfg.StartButton == "" {
		return nil, nil, fmt.Errorf("%s: start_button is required", path)
	}
	if cfg.Crossing == "" {
		return nil, nil, fmt.Errorf("%s: crossing is required", path)
	}
	if cfg.Pressure == "" {
		return nil, nil, fmt.Errorf("%s: pressure is required", path)
	}
	if cfg.LED == "" {
		return nil, nil, fmt.Errorf("%s: led is required", path)
	}
	if cfg.FixedLevel < 0 || cfg.FixedLevel > model.DifficultyMax {
		return nil, nil, fmt.Errorf("%s: fixed_difficulty must be within 0..%d", path, model.DifficultyMax)
	}
	if cfg.Rounds < 0 || int64(cfg.Rounds) > math.MaxUint32 {
		return nil, nil, fmt.Errorf("%s: rounds must be within 0..%d", path, uint32(math.MaxUint32))
	}
	if _, err := cfg.tunables(); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	deps := []string{cfg.StartButton, cfg.Crossing, cfg.Pressure, cfg.LED}
	for _, opt := range []string{cfg.Vibration, cfg.Buzzer, cfg.Difficulty} {
		if opt != "" {
			deps = append(deps, opt)
		}
	}
	return deps, nil, nil
}

// tunables overlays configured values on the defaults and validates them.
func (cfg *Config) tunables() (model.Tunables, error) {
	t := model.DefaultTunables()
	for _, f := range []struct {
		name string
		dst  *uint32
		v    int
	}{
		{"wait-min", &t.WaitMinMs, cfg.WaitMinMs},
		{"wait-max", &t.WaitMaxMs, cfg.WaitMaxMs},
		{"visual-window", &t.VisualWindowMs, cfg.VisualWindowMs},
		{"tactile-window", &t.TactileWindowMs, cfg.TactileWindowMs},
	} {
		if int64(f.v) > math.MaxUint32 {
			return t, &model.ConfigError{Field: f.name, Reason: fmt.Sprintf("must be within 0..%d", uint32(math.MaxUint32))}
		}
		if f.v > 0 {
			*f.dst = uint32(f.v)
		}
	}
	if cfg.PressureThreshold > 0 {
		if cfg.PressureThreshold > model.PressureMax {
			return t, &model.ConfigError{Field: "pressure-threshold", Reason: fmt.Sprintf("must be within 0..%d", model.PressureMax)}
		}
		t.PressureThreshold = uint16(cfg.PressureThreshold)
	}
	if cfg.DifficultyShrink != nil {
		if *cfg.DifficultyShrink < 0 || *cfg.DifficultyShrink > 100 {
			return t, &model.ConfigError{Field: "difficulty-shrink", Reason: "must be within 0..100"}
		}
		t.DifficultyShrink = uint8(*cfg.DifficultyShrink)
	}
	return t, t.Validate()
}

type reflexTester struct {
	resource.AlwaysRebuild

	name   resource.Name
	logger logging.Logger
	cfg    *Config
	tun    model.Tunables

	dev      capability.Device
	panel    *panel
	mqtt     report.Publisher
	closeMQ  func()
	newClock func() clock.Clock

	mu        sync.Mutex
	running   bool
	sessionID string
	summary   model.Summary
	lastErr   error
	stop      context.CancelFunc
	done      chan struct{}

	cancelCtx  context.Context
	cancelFunc func()
}

func newTester(ctx context.Context, deps resource.Dependencies, rawConf resource.Config, logger logging.Logger) (resource.Resource, error) {
	conf, err := resource.NativeConfig[*Config](rawConf)
	if err != nil {
		return nil, err
	}
	return NewTester(ctx, deps, rawConf.ResourceName(), conf, logger)
}

// NewTester wires the configured components into a reflex tester.
func NewTester(ctx context.Context, deps resource.Dependencies, name resource.Name, conf *Config, logger logging.Logger) (resource.Resource, error) {
	tun, err := conf.tunables()
	if err != nil {
		return nil, err
	}
	start, err := toggleswitch.FromDependencies(deps, conf.StartButton)
	if err != nil {
		return nil, fmt.Errorf("getting start button: %w", err)
	}
	crossing, err := sensor.FromDependencies(deps, conf.Crossing)
	if err != nil {
		return nil, fmt.Errorf("getting crossing sensor: %w", err)
	}
	pressure, err := sensor.FromDependencies(deps, conf.Pressure)
	if err != nil {
		return nil, fmt.Errorf("getting pressure sensor: %w", err)
	}
	led, err := toggleswitch.FromDependencies(deps, conf.LED)
	if err != nil {
		return nil, fmt.Errorf("getting led switch: %w", err)
	}

	p := &panel{
		logger:   logger,
		led:      led,
		alertFor: time.Duration(orDefault(conf.AlertMs, defaultAlertMs)) * time.Millisecond,
	}
	if conf.Vibration != "" {
		if p.vibration, err = toggleswitch.FromDependencies(deps, conf.Vibration); err != nil {
			return nil, fmt.Errorf("getting vibration switch: %w", err)
		}
	}
	if conf.Buzzer != "" {
		if p.buzzer, err = toggleswitch.FromDependencies(deps, conf.Buzzer); err != nil {
			return nil, fmt.Errorf("getting buzzer switch: %w", err)
		}
	}

	var difficulty capability.DifficultyProvider = capability.FixedDifficulty(conf.FixedLevel)
	if conf.Difficulty != "" {
		pot, err := sensor.FromDependencies(deps, conf.Difficulty)
		if err != nil {
			return nil, fmt.Errorf("getting difficulty sensor: %w", err)
		}
		difficulty = potentiometer{sensor: pot, key: orDefaultKey(conf.DifficultyKey, "value")}
	}

	below := conf.CrossingBelow
	if below <= 0 {
		below = 0.1
	}

	cancelCtx, cancelFunc := context.WithCancel(context.Background())
	t := &reflexTester{
		name:   name,
		logger: logger,
		cfg:    conf,
		tun:    tun,
		dev: capability.Device{
			Start:      startButton{sw: start},
			Difficulty: difficulty,
			Visual:     rangeFinder{sensor: crossing, key: orDefaultKey(conf.CrossingKey, "distance"), below: below},
			Pressure:   pressurePad{sensor: pressure, key: orDefaultKey(conf.PressureKey, "value")},
			Stimulus:   p,
			Display:    p,
			Feedback:   p,
			Reporter:   p,
		},
		panel:      p,
		newClock:   func() clock.Clock { return clock.NewWall() },
		cancelCtx:  cancelCtx,
		cancelFunc: cancelFunc,
	}

	if conf.MQTTURL != "" {
		// ctx only covers construction; the link lives until Close.
		linkCtx, linkCancel := context.WithCancel(context.Background())
		cm, err := dialMQTT(ctx, linkCtx, report.MQTTConfig{URL: conf.MQTTURL, ClientID: "reflex-" + name.Name}, logger)
		if err != nil {
			linkCancel()
			cancelFunc()
			return nil, fmt.Errorf("connecting to mqtt: %w", err)
		}
		t.mqtt = cm
		t.closeMQ = func() {
			defer linkCancel()
			dctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := cm.Disconnect(dctx); err != nil {
				logger.Warnf("mqtt disconnect: %v", err)
			}
		}
	}
	return t, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func orDefaultKey(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func (t *reflexTester) Name() resource.Name {
	return t.name
}

func (t *reflexTester) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	command, ok := cmd["command"].(string)
	if !ok {
		return nil, fmt.Errorf("missing or invalid 'command' field")
	}

	switch command {
	case "start_session":
		return t.handleStartSession(cmd)
	case "stop_session":
		return t.handleStopSession(ctx)
	case "status":
		return t.GetState(), nil
	default:
		return nil, fmt.Errorf("unknown command: %s", command)
	}
}

func (t *reflexTester) handleStartSession(cmd map[string]interface{}) (map[string]interface{}, error) {
	rounds := uint32(orDefault(t.cfg.Rounds, model.DefaultRounds))
	if raw, ok := cmd["rounds"]; ok {
		n, ok := raw.(float64)
		if !ok || n < 0 || n > math.MaxUint32 {
			return nil, fmt.Errorf("rounds must be a number within 0..%d", uint32(math.MaxUint32))
		}
		rounds = uint32(n)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		return nil, fmt.Errorf("session %s already running", t.sessionID)
	}

	id := uuid.NewString()
	dev := t.dev
	if t.mqtt != nil {
		source := report.Source{SessionID: id, DeviceID: t.name.Name}
		dev.Reporter = report.Multi{t.panel, report.NewMQTTReporter(t.mqtt, t.cfg.TopicPrefix, source)}
	}
	clk := t.newClock()
	machine, err := round.New(dev, clk, generator.New(), t.tun, t.logger, round.WithObserver(t.panel.observe))
	if err != nil {
		return nil, err
	}
	t.panel.reset()
	sess := session.New(id, machine, clk, t.logger, session.WithProgress(t.progress))

	ctx, stop := context.WithCancel(t.cancelCtx)
	t.running, t.sessionID, t.stop = true, id, stop
	t.summary, t.lastErr = model.Summary{SessionID: id}, nil
	t.done = make(chan struct{})
	go t.run(ctx, sess, clk, rounds, t.done)

	return map[string]interface{}{"status": "started", "session_id": id, "rounds": rounds}, nil
}

func (t *reflexTester) run(ctx context.Context, sess *session.Session, clk clock.Clock, rounds uint32, done chan struct{}) {
	defer close(done)
	if w, ok := clk.(*clock.Wall); ok {
		defer w.Stop()
	}
	summary, err := sess.Run(ctx, rounds)
	t.panel.off(context.WithoutCancel(ctx))
	if err != nil {
		t.logger.Errorf("session %s stopped: %v", summary.SessionID, err)
	}
	t.mu.Lock()
	t.running, t.summary, t.lastErr = false, summary, err
	t.mu.Unlock()
}

func (t *reflexTester) progress(summary model.Summary) {
	t.mu.Lock()
	t.summary = summary
	t.mu.Unlock()
}

func (t *reflexTester) handleStopSession(ctx context.Context) (map[string]interface{}, error) {
	t.mu.Lock()
	stop, done := t.stop, t.done
	running := t.running
	t.mu.Unlock()
	if !running {
		return nil, errors.New("no session running")
	}
	stop()
	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	state := t.GetState()
	state["status"] = "stopped"
	return state, nil
}

// GetState reports the session progress and last readout.
func (t *reflexTester) GetState() map[string]interface{} {
	state := t.panel.snapshot()
	t.mu.Lock()
	defer t.mu.Unlock()
	state["running"] = t.running
	state["session_id"] = t.sessionID
	state["rounds_done"] = t.summary.Rounds
	state["completed"] = t.summary.Completed
	state["aborted"] = t.summary.Aborted
	if t.lastErr != nil {
		state["error"] = t.lastErr.Error()
	}
	return state
}

func (t *reflexTester) Close(context.Context) error {
	t.cancelFunc()
	t.mu.Lock()
	done := t.done
	t.mu.Unlock()
	if done != nil {
		<-done
	}
	if t.closeMQ != nil {
		t.closeMQ()
	}
	return nil
}
