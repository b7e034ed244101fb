// Package sound provides the sound effect engines used by the coordinator.
package sound

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/callaudio/internal/app/playback"
	"github.com/osa030/callaudio/internal/infra/config"
	"github.com/osa030/callaudio/internal/infra/tone"
)

// Engine is a sound effect engine owning device resources.
type Engine interface {
	playback.Engine
	Close() error
}

// Options carries collaborators that do not come from configuration.
type Options struct {
	// Output replaces the malgo device for the tone engine.
	Output Output
	// OnEvent receives a line for every handle operation.
	OnEvent func(event string)
}

// ToneSettings configures the tone engine.
type ToneSettings struct {
	SampleRate int     `yaml:"sample_rate" mapstructure:"sample_rate" default:"16000" validate:"oneof=8000 16000 22050 44100 48000"`
	Channels   int     `yaml:"channels" mapstructure:"channels" default:"1" validate:"gte=1,lte=2"`
	Volume     float64 `yaml:"volume" mapstructure:"volume" default:"0.5" validate:"gt=0,lte=1"`
	FadeMs     int     `yaml:"fade_ms" mapstructure:"fade_ms" default:"5" validate:"gte=0,lte=50"`
}

// Format converts the settings to a synthesis format.
func (s ToneSettings) Format() tone.Format {
	return tone.Format{
		SampleRate: s.SampleRate,
		Channels:   s.Channels,
		Volume:     s.Volume,
		Fade:       time.Duration(s.FadeMs) * time.Millisecond,
	}
}

// LogSettings configures the log engine.
type LogSettings struct {
	// Drain makes a stopped one-shot effect report completion instead of stopping.
	Drain bool `yaml:"drain" mapstructure:"drain"`
}

// New creates the engine selected by the configuration.
func New(cfg config.SoundConfig, opts Options) (Engine, error) {
	zlog.Debug().Msgf("sound: creating engine: type=%s settings=%+v", cfg.Engine, cfg.Settings)

	switch cfg.Engine {
	case "tone", "":
		var settings ToneSettings
		if err := decodeSettings(cfg.Settings, &settings); err != nil {
			return nil, errors.Wrap(err, "invalid tone engine settings")
		}
		output := opts.Output
		if output == nil {
			output = NewMalgoOutput()
		}
		zlog.Info().Msgf("sound: tone engine: sample_rate=%d channels=%d volume=%.2f",
			settings.SampleRate, settings.Channels, settings.Volume)
		return NewToneEngine(settings.Format(), output, opts.OnEvent), nil

	case "log":
		var settings LogSettings
		if err := decodeSettings(cfg.Settings, &settings); err != nil {
			return nil, errors.Wrap(err, "invalid log engine settings")
		}
		zlog.Info().Msg("sound: log engine")
		return NewLogEngine(settings, opts.OnEvent), nil

	default:
		return nil, errors.Newf("unsupported sound engine: %s", cfg.Engine)
	}
}

// decodeSettings maps a free-form settings block onto a typed struct, then applies defaults and validation.
func decodeSettings(settings map[string]any, out any) error {
	if len(settings) > 0 {
		if err := mapstructure.Decode(settings, out); err != nil {
			return errors.Wrap(err, "failed to decode settings")
		}
	}
	if err := defaults.Set(out); err != nil {
		return errors.Wrap(err, "failed to set defaults")
	}
	if err := validator.New().Struct(out); err != nil {
		return errors.Wrap(err, "validation failed")
	}
	return nil
}
