package audio

// PortType identifies the kind of a hardware audio port.
type PortType string

const (
	PortBuiltInMic      PortType = "builtin_mic"
	PortBuiltInReceiver PortType = "builtin_receiver"
	PortBuiltInSpeaker  PortType = "builtin_speaker"
	PortHeadphones      PortType = "headphones"
	PortHeadsetMic      PortType = "headset_mic"
	PortBluetoothHFP    PortType = "bluetooth_hfp"
	PortBluetoothA2DP   PortType = "bluetooth_a2dp"
	PortBluetoothLE     PortType = "bluetooth_le"
	PortUSBAudio        PortType = "usb_audio"
	PortCarAudio        PortType = "car_audio"
	PortAirPlay         PortType = "airplay"
)

// Port describes one hardware input or output port.
type Port struct {
	UID  string
	Name string
	Type PortType
}

// Route is the set of ports currently carrying audio.
type Route struct {
	Inputs  []Port
	Outputs []Port
}

// FindInput returns the first input of the given type.
func (r Route) FindInput(t PortType) (Port, bool) {
	return findPort(r.Inputs, t)
}

// FindOutput returns the first output of the given type.
func (r Route) FindOutput(t PortType) (Port, bool) {
	return findPort(r.Outputs, t)
}

func findPort(ports []Port, t PortType) (Port, bool) {
	for _, p := range ports {
		if p.Type == t {
			return p, true
		}
	}
	return Port{}, false
}

// RouteChangeReason explains why the hardware route changed.
type RouteChangeReason int

const (
	RouteChangeUnknown RouteChangeReason = iota
	RouteChangeNewDevice
	RouteChangeOldDeviceUnavailable
	RouteChangeCategoryChange
	RouteChangeOverride
	RouteChangeConfiguration
)

// String returns the string representation of the reason.
func (r RouteChangeReason) String() string {
	switch r {
	case RouteChangeNewDevice:
		return "new_device"
	case RouteChangeOldDeviceUnavailable:
		return "old_device_unavailable"
	case RouteChangeCategoryChange:
		return "category_change"
	case RouteChangeOverride:
		return "override"
	case RouteChangeConfiguration:
		return "route_configuration_change"
	default:
		return "unknown"
	}
}

// OutputOverride forces the output port regardless of the route.
type OutputOverride int

const (
	OverrideNone    OutputOverride = iota // Follow the route
	OverrideSpeaker                       // Force the built-in speaker
)

// String returns the string representation of the override.
func (o OutputOverride) String() string {
	switch o {
	case OverrideNone:
		return "none"
	case OverrideSpeaker:
		return "speaker"
	default:
		return "unknown"
	}
}
