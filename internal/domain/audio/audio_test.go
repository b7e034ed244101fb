package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionConfig_Equal(t *testing.T) {
	voice := SessionConfig{Category: CategoryPlayAndRecord, Mode: ModeVoiceChat, Options: OptionAllowBluetooth}

	tests := []struct {
		name     string
		other    SessionConfig
		expected bool
	}{
		{name: "identical", other: voice, expected: true},
		{name: "different mode", other: SessionConfig{Category: CategoryPlayAndRecord, Mode: ModeVideoChat, Options: OptionAllowBluetooth}, expected: false},
		{name: "different options", other: SessionConfig{Category: CategoryPlayAndRecord, Mode: ModeVoiceChat}, expected: false},
		{name: "different category", other: SessionConfig{Category: CategoryPlayback, Mode: ModeVoiceChat, Options: OptionAllowBluetooth}, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, voice.Equal(tt.other))
		})
	}
}

func TestAmbientConfig(t *testing.T) {
	cfg := AmbientConfig()
	assert.Equal(t, CategorySoloAmbient, cfg.Category)
	assert.Equal(t, ModeDefault, cfg.Mode)
	assert.Equal(t, Options(0), cfg.Options)
	assert.Equal(t, "solo_ambient/default/{}", cfg.String())
}

func TestOptions_String(t *testing.T) {
	assert.Equal(t, "{}", Options(0).String())
	assert.Equal(t, "{allow_bluetooth}", OptionAllowBluetooth.String())
	assert.Equal(t, "{allow_bluetooth,duck_others}", (OptionAllowBluetooth | OptionDuckOthers).String())
	assert.True(t, (OptionAllowBluetooth | OptionMixWithOthers).Has(OptionMixWithOthers))
	assert.False(t, OptionAllowBluetooth.Has(OptionDefaultToSpeaker))
}

func TestSource_Equal(t *testing.T) {
	headset := SourceFromPort(Port{UID: "h1", Name: "Headset", Type: PortHeadsetMic})
	sameHeadset := SourceFromPort(Port{UID: "h1", Name: "Headset (renamed)", Type: PortHeadsetMic})
	mic := SourceFromPort(Port{UID: "m1", Name: "iPhone Microphone", Type: PortBuiltInMic})

	assert.True(t, headset.Equal(sameHeadset))
	assert.False(t, headset.Equal(mic))
	assert.True(t, BuiltInSpeaker().Equal(BuiltInSpeaker()))
	assert.False(t, BuiltInSpeaker().Equal(mic))

	var none *Source
	assert.True(t, none.Equal(nil))
	assert.False(t, none.Equal(mic))
	assert.Equal(t, "none", none.String())
}

func TestSoundEffect(t *testing.T) {
	for _, e := range AllEffects() {
		parsed, err := ParseSoundEffect(e.String())
		require.NoError(t, err)
		assert.Equal(t, e, parsed)
	}

	assert.True(t, EffectRingtone.Loops())
	assert.True(t, EffectOutboundRinging.Loops())
	assert.False(t, EffectCallEnded.Loops())
	assert.False(t, EffectCallBusy.Loops())

	_, err := ParseSoundEffect("chime")
	assert.Error(t, err)
}

func TestRoute_Find(t *testing.T) {
	route := Route{
		Inputs:  []Port{{UID: "mic", Type: PortBuiltInMic}},
		Outputs: []Port{{UID: "rcv", Type: PortBuiltInReceiver}},
	}

	p, ok := route.FindInput(PortBuiltInMic)
	require.True(t, ok)
	assert.Equal(t, "mic", p.UID)

	_, ok = route.FindOutput(PortBuiltInSpeaker)
	assert.False(t, ok)
}
