// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Environment variables that take precedence over file values.
const (
	EnvHandleRinging = "CALLAUDIO_HANDLE_RINGING"
	EnvStrict        = "CALLAUDIO_STRICT"
	EnvSoundEngine   = "CALLAUDIO_SOUND_ENGINE"
	EnvSilenced      = "CALLAUDIO_SILENCED"
	EnvDevices       = "CALLAUDIO_DEVICES"
)

// Config represents the application configuration.
type Config struct {
	Coordinator CoordinatorConfig `yaml:"coordinator"`
	Ringing     RingingConfig     `yaml:"ringing"`
	Sound       SoundConfig       `yaml:"sound"`
	Hardware    HardwareConfig    `yaml:"hardware"`
}

// CoordinatorConfig represents call-audio coordinator configuration.
type CoordinatorConfig struct {
	HandleRinging  *bool `yaml:"handle_ringing" default:"true"`
	Strict         bool  `yaml:"strict"`
	DialingDelayMs int   `yaml:"dialing_delay_ms" default:"200" validate:"gt=0,lte=5000"`
	BusyTeardownMs int   `yaml:"busy_teardown_ms" default:"4000" validate:"gt=0,lte=30000"`
}

// RingingConfig represents incoming call ringing configuration.
type RingingConfig struct {
	VibrateRepeatMs int `yaml:"vibrate_repeat_ms" default:"1600" validate:"gt=0,lte=10000"`
	PulseMs         int `yaml:"pulse_ms" default:"200" validate:"gt=0,ltfield=VibrateRepeatMs"`
}

// SoundConfig represents sound effect engine configuration.
type SoundConfig struct {
	Engine   string         `yaml:"engine" default:"tone" validate:"oneof=tone log"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// HardwareConfig represents the simulated audio hardware.
type HardwareConfig struct {
	InitialDevices   []string `yaml:"initial_devices" validate:"dive,oneof=wired_headset headphones bluetooth_hfp bluetooth_a2dp usb_audio car_audio"`
	Silenced         bool     `yaml:"silenced"`
	SpeakerLatencyMs int      `yaml:"speaker_latency_ms" default:"50" validate:"gte=0,lte=5000"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse builds a configuration from YAML bytes, applying env overrides, defaults and validation.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	if err := cfg.overrideFromEnv(); err != nil {
		return nil, err
	}

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// Default returns the configuration used when no config file is given.
func Default() (*Config, error) {
	return Parse(nil)
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() error {
	if v := os.Getenv(EnvHandleRinging); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "invalid %s", EnvHandleRinging)
		}
		c.Coordinator.HandleRinging = &b
	}
	if v := os.Getenv(EnvStrict); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "invalid %s", EnvStrict)
		}
		c.Coordinator.Strict = b
	}
	if v := os.Getenv(EnvSoundEngine); v != "" {
		c.Sound.Engine = v
	}
	if v := os.Getenv(EnvSilenced); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return errors.Wrapf(err, "invalid %s", EnvSilenced)
		}
		c.Hardware.Silenced = b
	}
	if v := os.Getenv(EnvDevices); v != "" {
		c.Hardware.InitialDevices = strings.Split(v, ",")
	}
	return nil
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// HandlesRinging reports whether the coordinator drives ringing itself.
func (c CoordinatorConfig) HandlesRinging() bool {
	return c.HandleRinging == nil || *c.HandleRinging
}

// DialingDelay returns the delay before the connecting sound.
func (c CoordinatorConfig) DialingDelay() time.Duration {
	return time.Duration(c.DialingDelayMs) * time.Millisecond
}

// BusyTeardown returns the delay between the busy tone and teardown.
func (c CoordinatorConfig) BusyTeardown() time.Duration {
	return time.Duration(c.BusyTeardownMs) * time.Millisecond
}

// VibrateRepeat returns the interval between vibration pulse pairs.
func (c RingingConfig) VibrateRepeat() time.Duration {
	return time.Duration(c.VibrateRepeatMs) * time.Millisecond
}

// Pulse returns the gap between the two pulses of a pair.
func (c RingingConfig) Pulse() time.Duration {
	return time.Duration(c.PulseMs) * time.Millisecond
}

// SpeakerLatency returns the simulated time an output override takes.
func (c HardwareConfig) SpeakerLatency() time.Duration {
	return time.Duration(c.SpeakerLatencyMs) * time.Millisecond
}
