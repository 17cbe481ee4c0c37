package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/verte-zerg/reflex/internal/config"
	"github.com/verte-zerg/reflex/internal/model"
	"github.com/verte-zerg/reflex/internal/report"
)

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

// applyFileConfig copies config file values into every flag the user did
// not set on the command line.
func applyFileConfig(cmd *cobra.Command, cfg config.FileConfig) {
	applyIntConfig(cmd, "rounds", &sessionRounds, cfg.Session.Rounds)
	applyStringConfig(cmd, "backend", &sessionBackend, cfg.Session.Backend)
	applyInt64Config(cmd, "seed", &sessionSeed, cfg.Session.Seed)
	applyStringConfig(cmd, "db", &sessionDB, cfg.Session.DB)
	applyBoolConfig(cmd, "no-store", &sessionNoStore, cfg.Session.NoStore)

	applyIntConfig(cmd, "wait-min", &tuneWaitMin, cfg.Tunables.WaitMin)
	applyIntConfig(cmd, "wait-max", &tuneWaitMax, cfg.Tunables.WaitMax)
	applyIntConfig(cmd, "visual-window", &tuneVisualWindow, cfg.Tunables.VisualWindow)
	applyIntConfig(cmd, "tactile-window", &tuneTactileWindow, cfg.Tunables.TactileWindow)
	applyIntConfig(cmd, "pressure-threshold", &tuneThreshold, cfg.Tunables.PressureThreshold)
	applyIntConfig(cmd, "difficulty-shrink", &tuneShrink, cfg.Tunables.DifficultyShrink)
	applyIntConfig(cmd, "difficulty", &tuneDifficulty, cfg.Tunables.Difficulty)

	applyStringConfig(cmd, "mqtt-url", &mqttURL, cfg.MQTT.URL)
	applyStringConfig(cmd, "topic-prefix", &mqttTopicPrefix, cfg.MQTT.TopicPrefix)
	applyStringConfig(cmd, "device-id", &mqttDeviceID, cfg.MQTT.DeviceID)
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyInt64Config(cmd *cobra.Command, name string, target, value *int64) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# reflex configuration
# Uncomment a value to enable it. CLI flags override config values.

[session]
# rounds = %d                 # Rounds per session (0 = until stopped)
# backend = %q            # mock, random or live
# seed = 0                   # Random seed (0 = time)
# db = ""                    # Result log path (default: XDG data dir)
# no-store = false           # Do not write results to the result log

[tunables]
# wait-min = %d            # Shortest random wait (ms)
# wait-max = %d            # Longest random wait (ms)
# visual-window = %d       # Visual reaction window (ms)
# tactile-window = %d      # Tactile reaction window (ms)
# pressure-threshold = %d   # Pressure reading that counts as a press (0-1023)
# difficulty-shrink = %d     # Percent of the wait span removed at difficulty 100
# difficulty = 50            # Fixed difficulty instead of the backend's (0-100)

[mqtt]
# url = "mqtt://localhost:1883"  # Publish results to this broker
# topic-prefix = %q         # Topic prefix
# device-id = "bench-1"          # Device id in published topics
`,
		model.DefaultRounds,
		defaultBackend,
		model.DefaultWaitMinMs,
		model.DefaultWaitMaxMs,
		model.DefaultVisualWindowMs,
		model.DefaultTactileWindowMs,
		model.DefaultPressureThreshold,
		model.DefaultDifficultyShrink,
		report.DefaultTopicPrefix,
	)
}
