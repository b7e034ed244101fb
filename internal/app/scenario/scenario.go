// Package scenario loads and runs scripted call sequences against the coordinator.
package scenario

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/osa030/callaudio/internal/domain/call"
)

// Kind identifies what a step does.
type Kind string

const (
	KindState   Kind = "state"   // call state transition
	KindMute    Kind = "mute"    // mute flag
	KindHold    Kind = "hold"    // hold flag
	KindVideo   Kind = "video"   // local video flag
	KindPlug    Kind = "plug"    // attach an audio device
	KindUnplug  Kind = "unplug"  // detach an audio device
	KindSilence Kind = "silence" // ringer switch
	KindSpeaker Kind = "speaker" // speakerphone request
	KindSelect  Kind = "select"  // audio source selection
)

// Scenario is an ordered list of steps.
type Scenario struct {
	Name        string `yaml:"name" validate:"required"`
	Description string `yaml:"description"`
	SettleMs    int    `yaml:"settle_ms" default:"500" validate:"gte=0,lte=60000"`
	Steps       []Step `yaml:"steps" validate:"required,min=1,dive"`
}

// Step is one scripted event, applied AfterMs after the previous step.
type Step struct {
	AfterMs int    `yaml:"after_ms" validate:"gte=0,lte=600000"`
	Kind    Kind   `yaml:"kind" validate:"required,oneof=state mute hold video plug unplug silence speaker select"`
	State   string `yaml:"state"`
	Value   *bool  `yaml:"value"`
	Device  string `yaml:"device"`
}

// After returns the delay before the step.
func (s Step) After() time.Duration {
	return time.Duration(s.AfterMs) * time.Millisecond
}

// Settle returns how long to wait after the last step.
func (sc *Scenario) Settle() time.Duration {
	return time.Duration(sc.SettleMs) * time.Millisecond
}

// CallState parses the step's state.
func (s Step) CallState() (call.State, error) {
	return call.ParseState(s.State)
}

// Flag returns the step's boolean value.
func (s Step) Flag() bool {
	return s.Value != nil && *s.Value
}

// Load reads a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read scenario file")
	}
	return Parse(data)
}

// Parse decodes, defaults and validates a scenario.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, errors.Wrap(err, "failed to parse scenario file")
	}
	if err := defaults.Set(&sc); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := sc.Validate(); err != nil {
		return nil, errors.Wrap(err, "scenario validation failed")
	}
	return &sc, nil
}

// Validate checks the struct tags and the fields each step kind needs.
func (sc *Scenario) Validate() error {
	if err := validator.New().Struct(sc); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	for i, step := range sc.Steps {
		if err := step.validate(); err != nil {
			return errors.Wrapf(err, "step %d (%s)", i+1, step.Kind)
		}
	}
	return nil
}

func (s Step) validate() error {
	switch s.Kind {
	case KindState:
		if _, err := s.CallState(); err != nil {
			return err
		}
	case KindMute, KindHold, KindVideo, KindSilence, KindSpeaker:
		if s.Value == nil {
			return errors.New("value is required")
		}
	case KindPlug, KindUnplug, KindSelect:
		if s.Device == "" {
			return errors.New("device is required")
		}
	}
	return nil
}
