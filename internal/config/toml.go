// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Session  SessionConfig  `toml:"session"`
	Tunables TunablesConfig `toml:"tunables"`
	MQTT     MQTTConfig     `toml:"mqtt"`
}

// SessionConfig maps session-level settings.
type SessionConfig struct {
	Rounds  *int    `toml:"rounds"`
	Backend *string `toml:"backend"`
	Seed    *int64  `toml:"seed"`
	DB      *string `toml:"db"`
	NoStore *bool   `toml:"no-store"`
}

// TunablesConfig maps timing and threshold parameters.
type TunablesConfig struct {
	WaitMin           *int `toml:"wait-min"`
	WaitMax           *int `toml:"wait-max"`
	VisualWindow      *int `toml:"visual-window"`
	TactileWindow     *int `toml:"tactile-window"`
	PressureThreshold *int `toml:"pressure-threshold"`
	DifficultyShrink  *int `toml:"difficulty-shrink"`
	Difficulty        *int `toml:"difficulty"`
}

// MQTTConfig maps the result broker settings.
type MQTTConfig struct {
	URL         *string `toml:"url"`
	TopicPrefix *string `toml:"topic-prefix"`
	DeviceID    *string `toml:"device-id"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}
