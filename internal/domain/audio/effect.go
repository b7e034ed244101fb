package audio

import "github.com/cockroachdb/errors"

// SoundEffect identifies a short audio clip played by the coordinator.
type SoundEffect int

const (
	EffectConnecting      SoundEffect = iota // Outgoing call being set up
	EffectOutboundRinging                    // Ringback while the callee rings
	EffectRingtone                           // Incoming call ringtone
	EffectCallEnded                          // Call finished
	EffectCallBusy                           // Callee busy
)

// AllEffects lists every sound effect.
func AllEffects() []SoundEffect {
	return []SoundEffect{EffectConnecting, EffectOutboundRinging, EffectRingtone, EffectCallEnded, EffectCallBusy}
}

// String returns the string representation of the effect.
func (e SoundEffect) String() string {
	switch e {
	case EffectConnecting:
		return "connecting"
	case EffectOutboundRinging:
		return "outbound_ringing"
	case EffectRingtone:
		return "ringtone"
	case EffectCallEnded:
		return "call_ended"
	case EffectCallBusy:
		return "call_busy"
	default:
		return "unknown"
	}
}

// Loops reports whether the effect repeats until stopped.
func (e SoundEffect) Loops() bool {
	switch e {
	case EffectConnecting, EffectOutboundRinging, EffectRingtone:
		return true
	default:
		return false
	}
}

// ParseSoundEffect parses an effect name as produced by String.
func ParseSoundEffect(name string) (SoundEffect, error) {
	for _, e := range AllEffects() {
		if e.String() == name {
			return e, nil
		}
	}
	return 0, errors.Newf("unknown sound effect: %q", name)
}
