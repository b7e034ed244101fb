package simhw

import (
	"github.com/google/uuid"

	"github.com/osa030/callaudio/internal/domain/audio"
)

// Device kinds accepted by Plug.
const (
	KindWiredHeadset  = "wired_headset"
	KindHeadphones    = "headphones"
	KindBluetoothHFP  = "bluetooth_hfp"
	KindBluetoothA2DP = "bluetooth_a2dp"
	KindUSBAudio      = "usb_audio"
	KindCarAudio      = "car_audio"
)

// Built-in ports.
var (
	BuiltInMic      = audio.Port{UID: "builtin-mic", Name: "iPhone Microphone", Type: audio.PortBuiltInMic}
	BuiltInReceiver = audio.Port{UID: "builtin-receiver", Name: "Receiver", Type: audio.PortBuiltInReceiver}
	BuiltInSpeaker  = audio.Port{UID: "builtin-speaker", Name: "Speaker", Type: audio.PortBuiltInSpeaker}
)

type portTemplate struct {
	name   string
	input  audio.PortType // empty when output only
	output audio.PortType
	// voice reports whether the output can carry a two-way call.
	voice bool
}

var templates = map[string]portTemplate{
	KindWiredHeadset:  {name: "Headset", input: audio.PortHeadsetMic, output: audio.PortHeadphones, voice: true},
	KindHeadphones:    {name: "Headphones", output: audio.PortHeadphones, voice: true},
	KindBluetoothHFP:  {name: "Bluetooth Headset", input: audio.PortBluetoothHFP, output: audio.PortBluetoothHFP, voice: true},
	KindBluetoothA2DP: {name: "Bluetooth Speaker", output: audio.PortBluetoothA2DP},
	KindUSBAudio:      {name: "USB Audio", input: audio.PortUSBAudio, output: audio.PortUSBAudio, voice: true},
	KindCarAudio:      {name: "CarPlay", input: audio.PortCarAudio, output: audio.PortCarAudio, voice: true},
}

// Kinds lists every supported device kind.
func Kinds() []string {
	return []string{KindWiredHeadset, KindHeadphones, KindBluetoothHFP, KindBluetoothA2DP, KindUSBAudio, KindCarAudio}
}

// attachment is a plugged-in device.
type attachment struct {
	kind   string
	voice  bool
	input  *audio.Port
	output audio.Port
}

func newAttachment(kind string, tpl portTemplate) attachment {
	id := uuid.NewString()
	a := attachment{
		kind:   kind,
		voice:  tpl.voice,
		output: audio.Port{UID: id + "-out", Name: tpl.name, Type: tpl.output},
	}
	if tpl.input != "" {
		a.input = &audio.Port{UID: id + "-in", Name: tpl.name, Type: tpl.input}
	}
	return a
}
