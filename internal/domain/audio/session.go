// Package audio provides the audio session, route, source and sound effect domain types.
package audio

import (
	"fmt"
	"strings"
)

// Category represents the audio session category.
type Category int

const (
	CategorySoloAmbient   Category = iota // Non-exclusive, silenced by the ringer switch
	CategoryPlayback                      // Output only, ignores the ringer switch
	CategoryPlayAndRecord                 // Full duplex for calls
)

// String returns the string representation of the category.
func (c Category) String() string {
	switch c {
	case CategorySoloAmbient:
		return "solo_ambient"
	case CategoryPlayback:
		return "playback"
	case CategoryPlayAndRecord:
		return "play_and_record"
	default:
		return "unknown"
	}
}

// Mode represents the audio session mode.
type Mode int

const (
	ModeNone      Mode = iota // Leave the hardware mode untouched
	ModeDefault               // Default signal processing
	ModeVoiceChat             // Echo cancellation tuned for voice
	ModeVideoChat             // Echo cancellation tuned for video
)

// String returns the string representation of the mode.
func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeDefault:
		return "default"
	case ModeVoiceChat:
		return "voice_chat"
	case ModeVideoChat:
		return "video_chat"
	default:
		return "unknown"
	}
}

// Options is a set of session option flags.
type Options uint8

const (
	OptionAllowBluetooth Options = 1 << iota
	OptionDefaultToSpeaker
	OptionMixWithOthers
	OptionDuckOthers
)

var optionNames = []struct {
	opt  Options
	name string
}{
	{OptionAllowBluetooth, "allow_bluetooth"},
	{OptionDefaultToSpeaker, "default_to_speaker"},
	{OptionMixWithOthers, "mix_with_others"},
	{OptionDuckOthers, "duck_others"},
}

// Has reports whether every flag in opt is set.
func (o Options) Has(opt Options) bool {
	return o&opt == opt
}

// String returns the set as "{a,b}".
func (o Options) String() string {
	names := make([]string, 0, len(optionNames))
	for _, n := range optionNames {
		if o.Has(n.opt) {
			names = append(names, n.name)
		}
	}
	return "{" + strings.Join(names, ",") + "}"
}

// SessionConfig is the category, mode and options triple applied to the audio hardware.
type SessionConfig struct {
	Category Category
	Mode     Mode
	Options  Options
}

// AmbientConfig returns the configuration used when no call needs exclusive audio.
func AmbientConfig() SessionConfig {
	return SessionConfig{Category: CategorySoloAmbient, Mode: ModeDefault}
}

// Equal compares two configurations field by field.
func (c SessionConfig) Equal(other SessionConfig) bool {
	return c.Category == other.Category &&
		c.Mode == other.Mode &&
		c.Options == other.Options
}

// String returns a compact representation for logs.
func (c SessionConfig) String() string {
	return fmt.Sprintf("%s/%s/%s", c.Category, c.Mode, c.Options)
}
