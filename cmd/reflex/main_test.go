package main

import (
	"bytes"
	"context"
	"math"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/BurntSushi/toml"
	"go.viam.com/rdk/logging"

	"github.com/verte-zerg/reflex/internal/clock"
	"github.com/verte-zerg/reflex/internal/config"
	"github.com/verte-zerg/reflex/internal/console"
	"github.com/verte-zerg/reflex/internal/generator"
	"github.com/verte-zerg/reflex/internal/model"
	"github.com/verte-zerg/reflex/internal/round"
	"github.com/verte-zerg/reflex/internal/session"
)

func TestConfigTemplateUncommented(t *testing.T) {
	commented := regexp.MustCompile(`(?m)^# ([a-z-]+ = )`)
	text := commented.ReplaceAllString(defaultConfigTemplate(), "$1")

	var cfg config.FileConfig
	if _, err := toml.Decode(text, &cfg); err != nil {
		t.Fatalf("decode template: %v\n%s", err, text)
	}
	if cfg.Session.Rounds == nil || *cfg.Session.Rounds != model.DefaultRounds {
		t.Fatalf("expected rounds %d, got %v", model.DefaultRounds, cfg.Session.Rounds)
	}
	if cfg.Session.Backend == nil || *cfg.Session.Backend != defaultBackend {
		t.Fatalf("expected backend %q, got %v", defaultBackend, cfg.Session.Backend)
	}
	if cfg.Tunables.WaitMin == nil || *cfg.Tunables.WaitMin != model.DefaultWaitMinMs {
		t.Fatalf("expected wait-min %d, got %v", model.DefaultWaitMinMs, cfg.Tunables.WaitMin)
	}
	if cfg.Tunables.PressureThreshold == nil || *cfg.Tunables.PressureThreshold != model.DefaultPressureThreshold {
		t.Fatalf("expected pressure-threshold %d, got %v", model.DefaultPressureThreshold, cfg.Tunables.PressureThreshold)
	}
	if cfg.MQTT.TopicPrefix == nil || *cfg.MQTT.TopicPrefix != "reflex" {
		t.Fatalf("expected topic-prefix reflex, got %v", cfg.MQTT.TopicPrefix)
	}
}

func TestApplyFileConfigKeepsExplicitFlags(t *testing.T) {
	cmd := newRootCmd()
	if err := cmd.Flags().Set("rounds", "3"); err != nil {
		t.Fatalf("set flag: %v", err)
	}
	rounds, waitMin, backend := 10, 1500, "random"
	applyFileConfig(cmd, config.FileConfig{
		Session:  config.SessionConfig{Rounds: &rounds, Backend: &backend},
		Tunables: config.TunablesConfig{WaitMin: &waitMin},
	})
	if sessionRounds != 3 {
		t.Fatalf("expected explicit --rounds to win, got %d", sessionRounds)
	}
	if tuneWaitMin != 1500 {
		t.Fatalf("expected wait-min from config, got %d", tuneWaitMin)
	}
	if sessionBackend != "random" {
		t.Fatalf("expected backend from config, got %q", sessionBackend)
	}
	if tuneWaitMax != model.DefaultWaitMaxMs {
		t.Fatalf("expected default wait-max, got %d", tuneWaitMax)
	}
}

func TestBuildTunables(t *testing.T) {
	newRootCmd()
	tun, err := buildTunables()
	if err != nil {
		t.Fatalf("defaults: %v", err)
	}
	if tun != model.DefaultTunables() {
		t.Fatalf("expected default tunables, got %+v", tun)
	}

	beyond := int64(math.MaxUint32) + 1501
	cases := []struct {
		name   string
		field  string
		mutate func()
	}{
		{"wait-max below wait-min", "wait-max", func() { tuneWaitMin, tuneWaitMax = 3000, 1000 }},
		{"wait-max beyond uint32", "wait-max", func() { tuneWaitMax = int(beyond) }},
		{"tactile-window beyond uint32", "tactile-window", func() { tuneTactileWindow = int(beyond) }},
		{"pressure-threshold", "pressure-threshold", func() { tuneThreshold = 1024 }},
		{"difficulty-shrink", "difficulty-shrink", func() { tuneShrink = 101 }},
		{"visual-window", "visual-window", func() { tuneVisualWindow = -1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if strconv.IntSize < 64 && strings.Contains(tc.name, "uint32") {
				t.Skip("int cannot exceed uint32 range")
			}
			newRootCmd()
			tc.mutate()
			_, err := buildTunables()
			if err == nil || !strings.Contains(err.Error(), tc.field) {
				t.Fatalf("expected error naming %s, got %v", tc.field, err)
			}
		})
	}
}

func TestValidateSessionFlags(t *testing.T) {
	newRootCmd()
	if err := validateSessionFlags(); err != nil {
		t.Fatalf("defaults: %v", err)
	}
	sessionBackend = "serial"
	if err := validateSessionFlags(); err == nil {
		t.Fatalf("expected unknown backend to be rejected")
	}
	newRootCmd()
	tuneDifficulty = 101
	if err := validateSessionFlags(); err == nil {
		t.Fatalf("expected out-of-range difficulty to be rejected")
	}
	newRootCmd()
	sessionRounds = -1
	if err := validateSessionFlags(); err == nil {
		t.Fatalf("expected negative rounds to be rejected")
	}
	if strconv.IntSize == 64 {
		newRootCmd()
		rounds := int64(math.MaxUint32) + 1
		sessionRounds = int(rounds)
		if err := validateSessionFlags(); err == nil || !strings.Contains(err.Error(), "--rounds") {
			t.Fatalf("expected rounds beyond uint32 to be rejected, got %v", err)
		}
	}
}

func TestMockBackendSession(t *testing.T) {
	newRootCmd()
	var buf bytes.Buffer
	tun := model.DefaultTunables()
	dev := simDevice(backendMock, tun, console.New(&buf, false))
	clk := clock.NewSim()
	logger := logging.NewTestLogger(t)
	machine, err := round.New(dev, clk, generator.NewSeeded(7), tun, logger)
	if err != nil {
		t.Fatalf("round.New: %v", err)
	}
	summary, err := session.New("s", machine, clk, logger).Run(context.Background(), model.DefaultRounds)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Rounds != 6 || summary.Completed != 5 || summary.Aborted != 1 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	if got := strings.Count(buf.String(), "STIM"); got != 6 {
		t.Fatalf("expected 6 stimulus lines, got %d:\n%s", got, buf.String())
	}
}
