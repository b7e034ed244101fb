// Package policy maps call status onto the audio session configuration and applies it only on change.
package policy

import (
	"github.com/osa030/callaudio/internal/domain/audio"
	"github.com/osa030/callaudio/internal/domain/call"
)

// Target returns the session configuration a call in the given status needs.
// A nil status means there is no call.
func Target(status *call.Status) audio.SessionConfig {
	switch {
	case status == nil || status.Ended():
		return audio.AmbientConfig()
	case status.State == call.StateLocalRinging:
		// Playback ignores the ringer switch; the ringing controller pauses the ringtone itself.
		return audio.SessionConfig{Category: audio.CategoryPlayback, Mode: audio.ModeDefault}
	case status.HasLocalVideo:
		return audio.SessionConfig{
			Category: audio.CategoryPlayAndRecord,
			Mode:     audio.ModeVideoChat,
			Options:  audio.OptionAllowBluetooth,
		}
	default:
		return audio.SessionConfig{
			Category: audio.CategoryPlayAndRecord,
			Mode:     audio.ModeVoiceChat,
			Options:  audio.OptionAllowBluetooth,
		}
	}
}
