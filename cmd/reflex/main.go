// Package main provides the CLI entrypoint for reflex.
package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.viam.com/rdk/logging"
	"golang.org/x/term"

	"github.com/verte-zerg/reflex/internal/capability"
	"github.com/verte-zerg/reflex/internal/clock"
	"github.com/verte-zerg/reflex/internal/config"
	"github.com/verte-zerg/reflex/internal/console"
	"github.com/verte-zerg/reflex/internal/generator"
	"github.com/verte-zerg/reflex/internal/live"
	"github.com/verte-zerg/reflex/internal/model"
	"github.com/verte-zerg/reflex/internal/report"
	"github.com/verte-zerg/reflex/internal/round"
	"github.com/verte-zerg/reflex/internal/session"
	"github.com/verte-zerg/reflex/internal/sim"
	"github.com/verte-zerg/reflex/internal/store"
)

const (
	backendMock   = "mock"
	backendRandom = "random"
	backendLive   = "live"

	defaultBackend    = backendMock
	defaultLiveLevel  = 50
	noFixedDifficulty = -1
)

var (
	sessionRounds  int
	sessionBackend string
	sessionSeed    int64
	sessionDB      string
	sessionNoStore bool
	sessionDebug   bool

	tuneWaitMin       int
	tuneWaitMax       int
	tuneVisualWindow  int
	tuneTactileWindow int
	tuneThreshold     int
	tuneShrink        int
	tuneDifficulty    int

	mqttURL         string
	mqttTopicPrefix string
	mqttDeviceID    string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "reflex",
		Short:         "Reaction-time tester",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runSessionCmd,
	}

	rootCmd.Flags().IntVar(&sessionRounds, "rounds", model.DefaultRounds, "rounds to play (0 = until stopped)")
	rootCmd.Flags().StringVar(&sessionBackend, "backend", defaultBackend, "capability backend: mock, random or live")
	rootCmd.Flags().Int64Var(&sessionSeed, "seed", 0, "random seed for waits and the random backend (0 = time)")
	rootCmd.Flags().StringVar(&sessionDB, "db", "", "result log path (default: XDG data dir)")
	rootCmd.Flags().BoolVar(&sessionNoStore, "no-store", false, "do not write results to the result log")
	rootCmd.Flags().BoolVar(&sessionDebug, "debug", false, "log every state transition")

	rootCmd.Flags().IntVar(&tuneWaitMin, "wait-min", model.DefaultWaitMinMs, "shortest random wait (ms)")
	rootCmd.Flags().IntVar(&tuneWaitMax, "wait-max", model.DefaultWaitMaxMs, "longest random wait (ms)")
	rootCmd.Flags().IntVar(&tuneVisualWindow, "visual-window", model.DefaultVisualWindowMs, "visual reaction window (ms)")
	rootCmd.Flags().IntVar(&tuneTactileWindow, "tactile-window", model.DefaultTactileWindowMs, "tactile reaction window (ms)")
	rootCmd.Flags().IntVar(&tuneThreshold, "pressure-threshold", model.DefaultPressureThreshold, "pressure reading that counts as a press (0-1023)")
	rootCmd.Flags().IntVar(&tuneShrink, "difficulty-shrink", model.DefaultDifficultyShrink, "percent of the wait span removed at difficulty 100 (0-100)")
	rootCmd.Flags().IntVar(&tuneDifficulty, "difficulty", noFixedDifficulty, "fixed difficulty 0-100 instead of the backend's")

	rootCmd.Flags().StringVar(&mqttURL, "mqtt-url", "", "publish results to this MQTT broker (e.g. mqtt://localhost:1883)")
	rootCmd.Flags().StringVar(&mqttTopicPrefix, "topic-prefix", report.DefaultTopicPrefix, "MQTT topic prefix")
	rootCmd.Flags().StringVar(&mqttDeviceID, "device-id", "", "device id in published topics (default: random)")

	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newHistoryCmd())

	return rootCmd
}

func runSessionCmd(cmd *cobra.Command, _ []string) error {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	applyFileConfig(cmd, fileCfg)

	tun, err := buildTunables()
	if err != nil {
		return err
	}
	if err := validateSessionFlags(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger()
	sessionID := uuid.NewString()
	deviceID := mqttDeviceID
	if deviceID == "" {
		deviceID = "reflex-" + strings.SplitN(uuid.NewString(), "-", 2)[0]
	}
	source := report.Source{SessionID: sessionID, DeviceID: deviceID}

	var reporters report.Multi
	if !sessionNoStore {
		dbPath := sessionDB
		if dbPath == "" {
			dbPath = config.DefaultDBPath()
		}
		st, err := store.Open(dbPath)
		if err != nil {
			return fmt.Errorf("failed to open db: %w", err)
		}
		defer func() {
			if cerr := st.Close(); cerr != nil {
				logErrf("failed to close db: %v\n", cerr)
			}
		}()
		reporters = append(reporters, report.NewStoreReporter(st, source))
	}
	if mqttURL != "" {
		cm, err := report.Connect(ctx, ctx, report.MQTTConfig{URL: mqttURL, ClientID: deviceID}, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to mqtt: %w", err)
		}
		defer func() {
			dctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := cm.Disconnect(dctx); err != nil {
				logErrf("failed to disconnect from mqtt: %v\n", err)
			}
		}()
		reporters = append(reporters, report.NewMQTTReporter(cm, mqttTopicPrefix, source))
	}

	var waits round.WaitSource = generator.New()
	if sessionSeed != 0 {
		waits = generator.NewSeeded(sessionSeed)
	}
	play := func(ctx context.Context, dev capability.Device, clk clock.Clock, opts ...round.Option) (model.Summary, error) {
		if tuneDifficulty != noFixedDifficulty {
			dev.Difficulty = capability.FixedDifficulty(tuneDifficulty)
		}
		if len(reporters) > 0 {
			dev.Reporter = append(report.Multi{dev.Reporter}, reporters...)
		}
		machine, err := round.New(dev, clk, waits, tun, logger, opts...)
		if err != nil {
			return model.Summary{}, err
		}
		return session.New(sessionID, machine, clk, logger).Run(ctx, uint32(sessionRounds))
	}

	var summary model.Summary
	switch sessionBackend {
	case backendLive:
		level := uint8(defaultLiveLevel)
		if tuneDifficulty != noFixedDifficulty {
			level = uint8(tuneDifficulty)
		}
		summary, err = live.Run(ctx, level, func(ctx context.Context, dev capability.Device, opts ...round.Option) (model.Summary, error) {
			clk := clock.NewWall()
			defer clk.Stop()
			return play(ctx, dev, clk, opts...)
		})
	default:
		out := console.New(os.Stdout, term.IsTerminal(int(os.Stdout.Fd())))
		summary, err = play(ctx, simDevice(sessionBackend, tun, out), clock.NewSim())
	}

	if rerr := console.RenderSummary(os.Stdout, summary); rerr != nil {
		logErrf("failed to write summary: %v\n", rerr)
	}
	return err
}

// simDevice pairs a synthetic input backend with the console outputs.
func simDevice(backend string, tun model.Tunables, out *console.Console) capability.Device {
	type inputs interface {
		capability.StartSignal
		capability.DifficultyProvider
		capability.VisualSensor
		capability.PressureSensor
		capability.Stimulus
	}
	var in inputs = sim.NewMock(tun.PressureThreshold)
	if backend == backendRandom {
		in = sim.NewRandom(sessionSeed, sim.DefaultRandomProfile(), tun.PressureThreshold)
	}
	return capability.Device{
		Start:      in,
		Difficulty: in,
		Visual:     in,
		Pressure:   in,
		Stimulus:   capability.Stimuli{in, out},
		Display:    out,
		Feedback:   out,
		Reporter:   out,
	}
}

func newLogger() logging.Logger {
	var logger logging.Logger
	if sessionBackend == backendLive {
		logger = logging.NewBlankLogger("reflex")
	} else {
		logger = logging.NewLogger("reflex")
	}
	if sessionDebug {
		logger.SetLevel(logging.DEBUG)
	}
	return logger
}

func buildTunables() (model.Tunables, error) {
	for name, v := range map[string]int{
		"wait-min":           tuneWaitMin,
		"wait-max":           tuneWaitMax,
		"visual-window":      tuneVisualWindow,
		"tactile-window":     tuneTactileWindow,
		"pressure-threshold": tuneThreshold,
		"difficulty-shrink":  tuneShrink,
	} {
		if v < 0 || int64(v) > math.MaxUint32 {
			return model.Tunables{}, fmt.Errorf("--%s must be between 0 and %d", name, uint32(math.MaxUint32))
		}
	}
	if tuneThreshold > model.PressureMax {
		return model.Tunables{}, fmt.Errorf("--pressure-threshold must be between 0 and %d", model.PressureMax)
	}
	if tuneShrink > 100 {
		return model.Tunables{}, fmt.Errorf("--difficulty-shrink must be between 0 and 100")
	}
	tun := model.Tunables{
		WaitMinMs:         uint32(tuneWaitMin),
		WaitMaxMs:         uint32(tuneWaitMax),
		VisualWindowMs:    uint32(tuneVisualWindow),
		TactileWindowMs:   uint32(tuneTactileWindow),
		PressureThreshold: uint16(tuneThreshold),
		DifficultyShrink:  uint8(tuneShrink),
	}
	if err := tun.Validate(); err != nil {
		return model.Tunables{}, err
	}
	return tun, nil
}

func validateSessionFlags() error {
	if sessionRounds < 0 || int64(sessionRounds) > math.MaxUint32 {
		return fmt.Errorf("--rounds must be between 0 and %d", uint32(math.MaxUint32))
	}
	switch sessionBackend {
	case backendMock, backendRandom, backendLive:
	default:
		return fmt.Errorf("--backend must be one of %s, %s, %s", backendMock, backendRandom, backendLive)
	}
	if tuneDifficulty != noFixedDifficulty && (tuneDifficulty < 0 || tuneDifficulty > model.DifficultyMax) {
		return fmt.Errorf("--difficulty must be between 0 and %d", model.DifficultyMax)
	}
	return nil
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
