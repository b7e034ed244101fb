package sound

import (
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/callaudio/internal/app/playback"
	"github.com/osa030/callaudio/internal/domain/audio"
)

// LogEngine records handle operations without producing audio.
type LogEngine struct {
	settings LogSettings
	onEvent  func(string)
}

// NewLogEngine creates a log engine.
func NewLogEngine(settings LogSettings, onEvent func(string)) *LogEngine {
	return &LogEngine{settings: settings, onEvent: onEvent}
}

// Prepare always succeeds.
func (e *LogEngine) Prepare(effect audio.SoundEffect, behavior playback.Behavior) (playback.Handle, error) {
	return &logHandle{engine: e, effect: effect, behavior: behavior}, nil
}

// Close is a no-op.
func (e *LogEngine) Close() error {
	return nil
}

type logHandle struct {
	engine   *LogEngine
	effect   audio.SoundEffect
	behavior playback.Behavior
}

func (h *logHandle) Play()  { h.emit("play") }
func (h *logHandle) Pause() { h.emit("pause") }

func (h *logHandle) Stop() {
	if h.engine.settings.Drain && h.behavior == playback.BehaviorOnce {
		h.emit("drain")
		return
	}
	h.emit("stop")
}

func (h *logHandle) emit(op string) {
	zlog.Info().Msgf("sound: %s %s (%s)", op, h.effect, h.behavior)
	if h.engine.onEvent != nil {
		h.engine.onEvent("sound " + op + " " + h.effect.String())
	}
}
