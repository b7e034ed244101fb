// Package simhw simulates the audio hardware of a phone: session configuration, routes computed
// from attached devices, the ringer switch and the vibration motor.
package simhw

import (
	"strconv"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/callaudio/internal/app/notification"
	"github.com/osa030/callaudio/internal/domain/audio"
)

// Errors
var (
	ErrUnknownDevice   = errors.New("unknown device kind")
	ErrAlreadyPlugged  = errors.New("device already plugged")
	ErrNotPlugged      = errors.New("device not plugged")
	ErrUnavailablePort = errors.New("port not available")
	ErrClosed          = errors.New("device closed")
)

// Config holds simulation settings.
type Config struct {
	InitialDevices []string
	Silenced       bool
	SpeakerLatency time.Duration // time an output override takes to apply
	Clock          clock.Clock   // wall clock when nil
	OnEvent        func(event string)
}

// Device is a simulated phone. Safe for concurrent use.
// Notifications are delivered synchronously on the goroutine that caused them.
type Device struct {
	clock   clock.Clock
	latency time.Duration
	onEvent func(string)

	mu          sync.Mutex
	config      *audio.SessionConfig
	override    audio.OutputOverride
	preferred   *audio.Port
	attachments []attachment
	rejected    map[audio.Mode]error
	vibrations  int
	route       audio.Route
	closed      bool

	routes   *notification.Hub[audio.RouteChangeReason]
	silenced *notification.Hub[bool]
	// Serializes ringer switch flips.
	silenceMu sync.Mutex
}

// New creates a device with the configured devices attached.
func New(cfg Config) (*Device, error) {
	clk := cfg.Clock
	if clk == nil {
		clk = clock.New()
	}
	d := &Device{
		clock:    clk,
		latency:  cfg.SpeakerLatency,
		onEvent:  cfg.OnEvent,
		rejected: make(map[audio.Mode]error),
		routes:   notification.NewHub[audio.RouteChangeReason](),
		silenced: notification.NewReplayHub(cfg.Silenced),
	}
	for _, kind := range cfg.InitialDevices {
		tpl, ok := templates[kind]
		if !ok {
			return nil, errors.Wrapf(ErrUnknownDevice, "%q", kind)
		}
		d.attachments = append(d.attachments, newAttachment(kind, tpl))
	}
	d.route = d.computeRoute()
	zlog.Debug().Msgf("simhw: created: devices=%v silenced=%t", cfg.InitialDevices, cfg.Silenced)
	return d, nil
}

// ApplyConfig activates a session configuration.
// A category change reroutes audio and is reported as a route change.
func (d *Device) ApplyConfig(cfg audio.SessionConfig) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	if err := d.rejected[cfg.Mode]; err != nil {
		d.mu.Unlock()
		return errors.Wrapf(err, "rejected %s", cfg)
	}
	categoryChanged := d.config == nil || d.config.Category != cfg.Category
	c := cfg
	d.config = &c
	changed := d.rerouteLocked()
	d.mu.Unlock()

	d.emit("session " + cfg.String())
	if categoryChanged || changed {
		d.publish(audio.RouteChangeCategoryChange)
	}
	return nil
}

// CurrentRoute returns the active route.
func (d *Device) CurrentRoute() audio.Route {
	d.mu.Lock()
	defer d.mu.Unlock()
	return copyRoute(d.route)
}

// AvailableInputs lists the built-in microphone and every attached input.
func (d *Device) AvailableInputs() []audio.Port {
	d.mu.Lock()
	defer d.mu.Unlock()
	inputs := []audio.Port{BuiltInMic}
	for _, a := range d.attachments {
		if a.input != nil {
			inputs = append(inputs, *a.input)
		}
	}
	return inputs
}

// SetPreferredInput selects an input port; nil clears the preference.
func (d *Device) SetPreferredInput(port *audio.Port) error {
	d.mu.Lock()
	if port != nil && !d.hasInputLocked(port.UID) {
		d.mu.Unlock()
		return errors.Wrapf(ErrUnavailablePort, "%s", port.Name)
	}
	if port == nil {
		d.preferred = nil
	} else {
		p := *port
		d.preferred = &p
	}
	changed := d.rerouteLocked()
	d.mu.Unlock()

	name := "none"
	if port != nil {
		name = port.Name
	}
	d.emit("preferred input " + name)
	if changed {
		d.publish(audio.RouteChangeConfiguration)
	}
	return nil
}

// OverrideOutput forces the output. It blocks for the configured latency.
func (d *Device) OverrideOutput(override audio.OutputOverride) error {
	if d.latency > 0 {
		d.clock.Sleep(d.latency)
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	d.override = override
	changed := d.rerouteLocked()
	d.mu.Unlock()

	d.emit("override " + override.String())
	if changed {
		d.publish(audio.RouteChangeOverride)
	}
	return nil
}

// SubscribeRouteChanges registers fn for route-change notifications.
func (d *Device) SubscribeRouteChanges(fn func(reason audio.RouteChangeReason)) (*notification.Subscription, error) {
	if d.isClosed() {
		return nil, ErrClosed
	}
	return d.routes.Subscribe(fn), nil
}

// SubscribeSilenced registers fn for ringer switch changes. fn receives the current value first.
func (d *Device) SubscribeSilenced(fn func(silenced bool)) (*notification.Subscription, error) {
	if d.isClosed() {
		return nil, ErrClosed
	}
	return d.silenced.Subscribe(fn), nil
}

// Vibrate triggers one vibration pulse.
func (d *Device) Vibrate() {
	d.mu.Lock()
	d.vibrations++
	d.mu.Unlock()
	d.emit("vibrate")
}

// Vibrations returns the number of pulses so far.
func (d *Device) Vibrations() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.vibrations
}

// Config returns the active session configuration.
func (d *Device) Config() (audio.SessionConfig, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.config == nil {
		return audio.SessionConfig{}, false
	}
	return *d.config, true
}

// Plug attaches a device of the given kind.
func (d *Device) Plug(kind string) error {
	tpl, ok := templates[kind]
	if !ok {
		return errors.Wrapf(ErrUnknownDevice, "%q", kind)
	}

	d.mu.Lock()
	if d.findLocked(kind) >= 0 {
		d.mu.Unlock()
		return errors.Wrapf(ErrAlreadyPlugged, "%s", kind)
	}
	d.attachments = append(d.attachments, newAttachment(kind, tpl))
	d.rerouteLocked()
	d.mu.Unlock()

	d.emit("plug " + kind)
	d.publish(audio.RouteChangeNewDevice)
	return nil
}

// Unplug detaches a device. A preferred input on it is forgotten.
func (d *Device) Unplug(kind string) error {
	d.mu.Lock()
	i := d.findLocked(kind)
	if i < 0 {
		d.mu.Unlock()
		return errors.Wrapf(ErrNotPlugged, "%s", kind)
	}
	removed := d.attachments[i]
	d.attachments = append(d.attachments[:i], d.attachments[i+1:]...)
	if d.preferred != nil && removed.input != nil && d.preferred.UID == removed.input.UID {
		d.preferred = nil
	}
	d.rerouteLocked()
	d.mu.Unlock()

	d.emit("unplug " + kind)
	d.publish(audio.RouteChangeOldDeviceUnavailable)
	return nil
}

// SetSilenced flips the ringer switch.
func (d *Device) SetSilenced(silenced bool) {
	d.silenceMu.Lock()
	defer d.silenceMu.Unlock()
	if latest, ok := d.silenced.Latest(); ok && latest == silenced {
		return
	}
	d.emit("ringer silenced=" + strconv.FormatBool(silenced))
	d.silenced.Publish(silenced)
}

// RejectMode makes ApplyConfig fail for configurations using mode. A nil err accepts it again.
func (d *Device) RejectMode(mode audio.Mode, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err == nil {
		delete(d.rejected, mode)
		return
	}
	d.rejected[mode] = err
}

// Close drops every subscriber.
func (d *Device) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.routes.Close()
	d.silenced.Close()
}

func (d *Device) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// rerouteLocked recomputes the route and reports whether it changed.
func (d *Device) rerouteLocked() bool {
	next := d.computeRoute()
	changed := !sameRoute(d.route, next)
	d.route = next
	return changed
}

// computeRoute must be called with the lock held.
// Playback categories send output to the newest external device or the speaker and record nothing.
// Play-and-record follows the speaker override, then the preferred input, then the newest voice-capable
// device, then the receiver and built-in microphone.
func (d *Device) computeRoute() audio.Route {
	if d.config == nil || d.config.Category != audio.CategoryPlayAndRecord {
		if n := len(d.attachments); n > 0 {
			return audio.Route{Outputs: []audio.Port{d.attachments[n-1].output}}
		}
		return audio.Route{Outputs: []audio.Port{BuiltInSpeaker}}
	}

	if d.override == audio.OverrideSpeaker {
		return audio.Route{Inputs: []audio.Port{BuiltInMic}, Outputs: []audio.Port{BuiltInSpeaker}}
	}

	if d.preferred != nil {
		if d.preferred.UID == BuiltInMic.UID {
			return audio.Route{Inputs: []audio.Port{BuiltInMic}, Outputs: []audio.Port{BuiltInReceiver}}
		}
		for _, a := range d.attachments {
			if a.input != nil && a.input.UID == d.preferred.UID {
				return audio.Route{Inputs: []audio.Port{*a.input}, Outputs: []audio.Port{a.output}}
			}
		}
	}

	for i := len(d.attachments) - 1; i >= 0; i-- {
		a := d.attachments[i]
		if !a.voice {
			continue
		}
		if a.input != nil {
			return audio.Route{Inputs: []audio.Port{*a.input}, Outputs: []audio.Port{a.output}}
		}
		return audio.Route{Inputs: []audio.Port{BuiltInMic}, Outputs: []audio.Port{a.output}}
	}
	return audio.Route{Inputs: []audio.Port{BuiltInMic}, Outputs: []audio.Port{BuiltInReceiver}}
}

func (d *Device) hasInputLocked(uid string) bool {
	if uid == BuiltInMic.UID {
		return true
	}
	for _, a := range d.attachments {
		if a.input != nil && a.input.UID == uid {
			return true
		}
	}
	return false
}

func (d *Device) findLocked(kind string) int {
	for i, a := range d.attachments {
		if a.kind == kind {
			return i
		}
	}
	return -1
}

func (d *Device) publish(reason audio.RouteChangeReason) {
	zlog.Debug().Msgf("simhw: route changed: reason=%s", reason)
	d.routes.Publish(reason)
}

func (d *Device) emit(event string) {
	zlog.Debug().Msgf("simhw: %s", event)
	if d.onEvent != nil {
		d.onEvent(event)
	}
}

func sameRoute(a, b audio.Route) bool {
	return samePorts(a.Inputs, b.Inputs) && samePorts(a.Outputs, b.Outputs)
}

func samePorts(a, b []audio.Port) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].UID != b[i].UID {
			return false
		}
	}
	return true
}

func copyRoute(r audio.Route) audio.Route {
	return audio.Route{
		Inputs:  append([]audio.Port(nil), r.Inputs...),
		Outputs: append([]audio.Port(nil), r.Outputs...),
	}
}
