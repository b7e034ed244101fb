package playback

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/callaudio/internal/domain/audio"
)

// ErrNoPlayer is reported when the engine returns no handle for an effect.
var ErrNoPlayer = errors.New("sound engine returned no player")

// Slot owns at most one playing sound effect handle.
// Not safe for concurrent use; the coordinator confines it to its queue.
type Slot struct {
	engine        Engine
	current       Handle
	currentEffect audio.SoundEffect
}

// NewSlot creates an empty slot.
func NewSlot(engine Engine) *Slot {
	return &Slot{engine: engine}
}

// Play supersedes the current effect with a new one.
// The previous handle is stopped before the new one is prepared, so its stop
// side effects cannot tear down the new handle's session activity.
// Engine failures are logged and the effect is skipped.
func (s *Slot) Play(effect audio.SoundEffect) error {
	s.StopCurrent()

	behavior := BehaviorFor(effect)
	handle, err := s.engine.Prepare(effect, behavior)
	if err == nil && handle == nil {
		err = ErrNoPlayer
	}
	if err != nil {
		zlog.Error().Err(err).Msgf("playback: skipping sound effect: effect=%s", effect)
		return errors.Wrapf(err, "failed to prepare %s", effect)
	}

	zlog.Debug().Msgf("playback: playing sound effect: effect=%s behavior=%s", effect, behavior)
	handle.Play()
	s.current = handle
	s.currentEffect = effect
	return nil
}

// StopCurrent stops and clears the current handle. No-op when empty.
func (s *Slot) StopCurrent() {
	if s.current == nil {
		return
	}
	zlog.Debug().Msgf("playback: stopping sound effect: effect=%s", s.currentEffect)
	s.current.Stop()
	s.current = nil
}

// Current returns the effect currently held by the slot.
func (s *Slot) Current() (audio.SoundEffect, bool) {
	if s.current == nil {
		return 0, false
	}
	return s.currentEffect, true
}
