// Package coordinator maps call lifecycle transitions onto audio session configuration,
// sound effects and ringing, keeping exactly one audio behavior active at a time.
package coordinator

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/callaudio/internal/app/dispatch"
	"github.com/osa030/callaudio/internal/app/playback"
	"github.com/osa030/callaudio/internal/app/policy"
	"github.com/osa030/callaudio/internal/app/ringing"
	"github.com/osa030/callaudio/internal/app/route"
	"github.com/osa030/callaudio/internal/domain/audio"
	"github.com/osa030/callaudio/internal/domain/call"
)

const (
	// The hardware needs time to settle after a category change before audio is audible.
	DefaultDialingDelay = 200 * time.Millisecond
	// Long enough for the busy tone to be heard.
	DefaultBusyTeardownDelay = 4 * time.Second
)

// Errors
var (
	ErrDelegateAlreadySet = errors.New("delegate already set")
	ErrNilDelegate        = errors.New("delegate is nil")
)

// Delegate receives coordinator outputs on the coordination queue.
type Delegate interface {
	AudioSessionDidChange()
	AudioSourceDidChange(source *audio.Source)
}

// Hardware is the audio hardware session.
type Hardware interface {
	policy.Session
	route.Hardware
}

// CallSource delivers call status callbacks to registered observers.
type CallSource interface {
	AddObserver(o call.Observer)
	RemoveObserver(o call.Observer)
}

// Config holds coordinator configuration.
type Config struct {
	HandleRinging     bool          // False when a platform call-management facility rings
	DialingDelay      time.Duration // Delay before the connecting sound
	BusyTeardownDelay time.Duration // Delay between the busy tone and teardown
	VibrateRepeat     time.Duration // Ringing vibration pair interval
	Pulse             time.Duration // Gap between the two pulses of a pair
	Strict            bool          // Panic on programmer misuse instead of logging it
}

// Deps holds the external collaborators.
type Deps struct {
	Hardware Hardware
	Engine   playback.Engine
	Ringer   ringing.SilenceSource
	Vibrator ringing.Vibrator
	Calls    CallSource  // Optional; registered on New, unregistered on Close
	Clock    clock.Clock // Optional; wall clock when nil
}

// Coordinator is the call-audio state machine.
// Every field below the queue is owned by the queue goroutine.
type Coordinator struct {
	config Config
	calls  CallSource
	queue  *dispatch.Queue

	vibrator ringing.Vibrator
	applier  *policy.Applier
	slot     *playback.Slot
	ringing  *ringing.Controller
	routes   *route.Observer

	status     *call.Status
	generation uint64
	pending    []*dispatch.Task

	delegateMu sync.Mutex
	delegate   Delegate

	closeOnce sync.Once
}

// Snapshot is a point-in-time view of the coordinator, for diagnostics and tests.
type Snapshot struct {
	Status        *call.Status
	SessionConfig audio.SessionConfig
	HasConfig     bool
	Effect        audio.SoundEffect
	HasEffect     bool
	Ringing       bool
	Generation    uint64
}

// New creates a coordinator, starts route observation and registers with the call source.
func New(config Config, deps Deps) (*Coordinator, error) {
	if deps.Hardware == nil || deps.Engine == nil || deps.Ringer == nil || deps.Vibrator == nil {
		return nil, errors.New("hardware, engine, ringer and vibrator are required")
	}
	if config.DialingDelay <= 0 {
		config.DialingDelay = DefaultDialingDelay
	}
	if config.BusyTeardownDelay <= 0 {
		config.BusyTeardownDelay = DefaultBusyTeardownDelay
	}

	queue := dispatch.NewQueue("call-audio", deps.Clock)
	c := &Coordinator{
		config:   config,
		calls:    deps.Calls,
		queue:    queue,
		vibrator: deps.Vibrator,
		applier:  policy.NewApplier(deps.Hardware),
		slot:     playback.NewSlot(deps.Engine),
		ringing: ringing.NewController(queue, deps.Engine, deps.Ringer, deps.Vibrator, ringing.Config{
			VibrateRepeat: config.VibrateRepeat,
			Pulse:         config.Pulse,
			Owned:         config.HandleRinging,
		}),
		pending: make([]*dispatch.Task, 0),
	}
	c.routes = route.NewObserver(queue, deps.Hardware, c.audioSourceDidChange)

	if err := c.routes.Start(); err != nil {
		c.routes.Close()
		queue.Close()
		return nil, errors.Wrap(err, "failed to start route observer")
	}
	if c.calls != nil {
		c.calls.AddObserver(c)
	}

	zlog.Info().Msgf("coordinator: created: handle_ringing=%t dialing_delay=%v busy_teardown=%v strict=%t",
		config.HandleRinging, config.DialingDelay, config.BusyTeardownDelay, config.Strict)
	return c, nil
}

// StateDidChange handles a call lifecycle transition.
func (c *Coordinator) StateDidChange(status call.Status) {
	c.post("state", func() { c.handleStateChange(status) })
}

// MuteDidChange re-evaluates the session configuration.
func (c *Coordinator) MuteDidChange(status call.Status) {
	c.post("mute", func() { c.handleFlagChange("mute", status) })
}

// HoldDidChange re-evaluates the session configuration.
func (c *Coordinator) HoldDidChange(status call.Status) {
	c.post("hold", func() { c.handleFlagChange("hold", status) })
}

// HasLocalVideoDidChange re-evaluates the session configuration.
func (c *Coordinator) HasLocalVideoDidChange(status call.Status) {
	c.post("video", func() { c.handleFlagChange("video", status) })
}

// SetHandleRinging switches ringing between this coordinator and the platform.
func (c *Coordinator) SetHandleRinging(handle bool) {
	c.post("handle_ringing", func() { c.ringing.SetOwned(handle) })
}

// SetDelegate installs the delegate. Only one delegate may be installed at a time.
func (c *Coordinator) SetDelegate(d Delegate) error {
	if d == nil {
		return ErrNilDelegate
	}

	c.delegateMu.Lock()
	defer c.delegateMu.Unlock()

	if c.delegate != nil {
		c.misuse(errors.WithAssertionFailure(ErrDelegateAlreadySet))
		return ErrDelegateAlreadySet
	}
	c.delegate = d
	return nil
}

// ClearDelegate removes the delegate, if any.
func (c *Coordinator) ClearDelegate() {
	c.delegateMu.Lock()
	defer c.delegateMu.Unlock()
	c.delegate = nil
}

// CurrentSource returns the audio source of the current hardware route, nil if undeterminable.
func (c *Coordinator) CurrentSource() *audio.Source {
	return c.routes.CurrentSource()
}

// AvailableSources lists the selectable audio sources.
func (c *Coordinator) AvailableSources() []*audio.Source {
	return c.routes.AvailableSources()
}

// HasExternalInputs reports whether a non built-in input is available.
func (c *Coordinator) HasExternalInputs() bool {
	return c.routes.HasExternalInputs()
}

// SelectSource routes audio through source. The result is reported via AudioSourceDidChange.
func (c *Coordinator) SelectSource(source *audio.Source) error {
	return c.routes.SelectSource(source)
}

// RequestSpeakerphone toggles the speaker override in the background.
// Completion is reported via AudioSourceDidChange, not by return.
func (c *Coordinator) RequestSpeakerphone(enabled bool) {
	c.routes.SetSpeakerphone(enabled)
}

// Snapshot returns the coordinator's current state.
// May be called from a Delegate callback.
func (c *Coordinator) Snapshot() Snapshot {
	var s Snapshot
	c.onQueue(func() {
		s.Status = c.status
		s.SessionConfig, s.HasConfig = c.applier.Current()
		s.Effect, s.HasEffect = c.slot.Current()
		s.Ringing = c.ringing.IsRinging()
		s.Generation = c.generation
	})
	return s
}

// Close unregisters from the call source and releases every timer, sound and subscription.
// Safe to call more than once, but not from a Delegate callback.
func (c *Coordinator) Close() {
	c.closeOnce.Do(func() {
		if c.calls != nil {
			c.calls.RemoveObserver(c)
		}
		c.queue.Sync(func() {
			c.generation++
			c.cancelPending()
			c.stopPlayingAnySounds()
			c.ringing.Close()
		})
		c.routes.Close()
		c.queue.Close()
		zlog.Info().Msg("coordinator: closed")
	})
}

// onQueue runs fn inline when already on the queue, else waits for it there.
func (c *Coordinator) onQueue(fn func()) {
	if c.queue.OnQueue() {
		fn()
		return
	}
	c.queue.Sync(fn)
}

func (c *Coordinator) post(event string, fn func()) {
	if !c.queue.Async(fn) {
		zlog.Warn().Msgf("coordinator: closed, dropping %s event", event)
	}
}

func (c *Coordinator) handleStateChange(status call.Status) {
	if !c.assertOnQueue("handleStateChange") {
		return
	}
	zlog.Info().Msgf("coordinator: call state changed: %s", status)

	c.status = &status
	c.generation++
	c.cancelPending()

	// Audio from two states must never overlap.
	c.stopPlayingAnySounds()
	c.ensureProperAudioSession()

	switch status.State {
	case call.StateIdle, call.StateAnswering, call.StateConnected, call.StateReconnecting:
		// No sound effect.
	case call.StateDialing:
		c.schedule(c.config.DialingDelay, "connecting sound", func() {
			c.play(audio.EffectConnecting)
		})
	case call.StateRemoteRinging:
		c.play(audio.EffectOutboundRinging)
	case call.StateLocalRinging:
		c.ringing.Start(c.ensureProperAudioSession)
	case call.StateRemoteHangup, call.StateRemoteHangupNeedPermission:
		c.vibrator.Vibrate()
		c.play(audio.EffectCallEnded)
		c.handleCallEnded()
	case call.StateRemoteBusy:
		c.play(audio.EffectCallBusy)
		c.schedule(c.config.BusyTeardownDelay, "busy teardown", c.handleCallEnded)
	case call.StateLocalFailure,
		call.StateLocalHangup,
		call.StateAnsweredElsewhere,
		call.StateDeclinedElsewhere,
		call.StateBusyElsewhere:
		c.play(audio.EffectCallEnded)
		c.handleCallEnded()
	default:
		zlog.Warn().Msgf("coordinator: unhandled call state: %s", status.State)
	}
}

func (c *Coordinator) handleFlagChange(flag string, status call.Status) {
	if !c.assertOnQueue("handleFlagChange") {
		return
	}
	zlog.Debug().Msgf("coordinator: %s changed: %s", flag, status)
	c.status = &status
	c.ensureProperAudioSession()
}

// handleCallEnded tears the call audio down.
func (c *Coordinator) handleCallEnded() {
	if !c.assertOnQueue("handleCallEnded") {
		return
	}
	// Stopping explicitly releases the handle's session activity deterministically.
	c.slot.StopCurrent()
	c.applySessionConfig(audio.AmbientConfig())
}

func (c *Coordinator) ensureProperAudioSession() {
	c.applySessionConfig(policy.Target(c.status))
}

func (c *Coordinator) applySessionConfig(cfg audio.SessionConfig) {
	changed, err := c.applier.Apply(cfg)
	if err != nil {
		// Logged by the applier; the call continues on the retained configuration.
		return
	}
	if changed {
		if d := c.currentDelegate(); d != nil {
			d.AudioSessionDidChange()
		}
	}
}

func (c *Coordinator) stopPlayingAnySounds() {
	c.slot.StopCurrent()
	c.ringing.Stop()
}

func (c *Coordinator) play(effect audio.SoundEffect) {
	// Failures are logged by the slot; the call continues without the effect.
	_ = c.slot.Play(effect)
}

// schedule runs fn after d unless another transition happens first.
func (c *Coordinator) schedule(d time.Duration, name string, fn func()) {
	generation := c.generation
	task := c.queue.After(d, func() {
		if generation != c.generation {
			zlog.Debug().Msgf("coordinator: dropping stale %s: scheduled=%d current=%d", name, generation, c.generation)
			return
		}
		fn()
	})
	c.pending = append(c.pending, task)
}

func (c *Coordinator) cancelPending() {
	for _, t := range c.pending {
		t.Cancel()
	}
	c.pending = c.pending[:0]
}

func (c *Coordinator) audioSourceDidChange(source *audio.Source) {
	if d := c.currentDelegate(); d != nil {
		d.AudioSourceDidChange(source)
	}
}

func (c *Coordinator) currentDelegate() Delegate {
	c.delegateMu.Lock()
	defer c.delegateMu.Unlock()
	return c.delegate
}

func (c *Coordinator) assertOnQueue(op string) bool {
	if c.queue.OnQueue() {
		return true
	}
	c.misuse(errors.AssertionFailedf("%s called off the %s queue", op, c.queue.Name()))
	return false
}

// misuse panics in strict mode and is logged otherwise.
func (c *Coordinator) misuse(err error) {
	if c.config.Strict {
		panic(err)
	}
	zlog.Error().Err(err).Msg("coordinator: programmer misuse ignored")
}
