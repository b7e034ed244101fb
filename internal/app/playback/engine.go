package playback

import "github.com/osa030/callaudio/internal/domain/audio"

// Behavior tells the engine how a prepared effect should play.
type Behavior int

const (
	BehaviorOnce Behavior = iota // Play to the end, then stop
	BehaviorLoop                 // Repeat until stopped
)

// String returns the string representation of the behavior.
func (b Behavior) String() string {
	switch b {
	case BehaviorOnce:
		return "once"
	case BehaviorLoop:
		return "loop"
	default:
		return "unknown"
	}
}

// BehaviorFor returns the default behavior of an effect.
func BehaviorFor(effect audio.SoundEffect) Behavior {
	if effect.Loops() {
		return BehaviorLoop
	}
	return BehaviorOnce
}

// Handle is one playing instance of a sound effect.
type Handle interface {
	Play()
	Pause()
	// Stop releases the handle's claim on the audio session. A stopped handle is never played again.
	Stop()
}

// Engine prepares sound effect players.
type Engine interface {
	// Prepare returns a handle ready to Play. A nil handle with nil error means the
	// engine could not construct a player for the effect.
	Prepare(effect audio.SoundEffect, behavior Behavior) (Handle, error)
}
