package coordinator

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/callaudio/internal/app/notification"
	"github.com/osa030/callaudio/internal/app/playback"
	"github.com/osa030/callaudio/internal/domain/audio"
	"github.com/osa030/callaudio/internal/domain/call"
)

const (
	waitFor = time.Second
	tick    = 2 * time.Millisecond
)

var (
	voiceConfig = audio.SessionConfig{Category: audio.CategoryPlayAndRecord, Mode: audio.ModeVoiceChat, Options: audio.OptionAllowBluetooth}
	videoConfig = audio.SessionConfig{Category: audio.CategoryPlayAndRecord, Mode: audio.ModeVideoChat, Options: audio.OptionAllowBluetooth}
	ringConfig  = audio.SessionConfig{Category: audio.CategoryPlayback, Mode: audio.ModeDefault}
)

// journal records every side effect in order across all fakes.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(format string, args ...any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, fmt.Sprintf(format, args...))
}

func (j *journal) all() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

func (j *journal) count(entry string) int {
	n := 0
	for _, e := range j.all() {
		if e == entry {
			n++
		}
	}
	return n
}

func (j *journal) reset() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = nil
}

type fakeHardware struct {
	journal *journal
	mu      sync.Mutex
	route   audio.Route
	reject  map[audio.SessionConfig]error
	routes  *notification.Hub[audio.RouteChangeReason]
}

func (h *fakeHardware) ApplyConfig(cfg audio.SessionConfig) error {
	h.mu.Lock()
	err := h.reject[cfg]
	h.mu.Unlock()
	if err != nil {
		return err
	}
	h.journal.add("apply %s", cfg)
	return nil
}

func (h *fakeHardware) CurrentRoute() audio.Route {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.route
}

func (h *fakeHardware) AvailableInputs() []audio.Port {
	return h.CurrentRoute().Inputs
}

func (h *fakeHardware) SetPreferredInput(port *audio.Port) error {
	h.journal.add("prefer %v", port != nil)
	return nil
}

func (h *fakeHardware) OverrideOutput(o audio.OutputOverride) error {
	h.journal.add("override %s", o)
	return nil
}

func (h *fakeHardware) SubscribeRouteChanges(fn func(audio.RouteChangeReason)) (*notification.Subscription, error) {
	return h.routes.Subscribe(fn), nil
}

type fakeEngine struct {
	journal *journal
}

type fakeHandle struct {
	effect  audio.SoundEffect
	journal *journal
}

func (h *fakeHandle) Play()  { h.journal.add("play %s", h.effect) }
func (h *fakeHandle) Pause() { h.journal.add("pause %s", h.effect) }
func (h *fakeHandle) Stop()  { h.journal.add("stop %s", h.effect) }

func (e *fakeEngine) Prepare(effect audio.SoundEffect, behavior playback.Behavior) (playback.Handle, error) {
	return &fakeHandle{effect: effect, journal: e.journal}, nil
}

type fakeRinger struct {
	hub *notification.Hub[bool]
}

func (r *fakeRinger) SubscribeSilenced(fn func(bool)) (*notification.Subscription, error) {
	return r.hub.Subscribe(fn), nil
}

type fakeVibrator struct {
	journal *journal
}

func (v *fakeVibrator) Vibrate() { v.journal.add("vibrate") }

type fakeDelegate struct {
	mu             sync.Mutex
	sessionChanges int
	sources        []*audio.Source
}

func (d *fakeDelegate) AudioSessionDidChange() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sessionChanges++
}

func (d *fakeDelegate) AudioSourceDidChange(s *audio.Source) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sources = append(d.sources, s)
}

func (d *fakeDelegate) SessionChanges() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sessionChanges
}

func (d *fakeDelegate) Sources() []*audio.Source {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*audio.Source(nil), d.sources...)
}

// snapshotDelegate reads the coordinator state from inside its callbacks.
type snapshotDelegate struct {
	fakeDelegate
	coord *Coordinator
	seen  []Snapshot
}

func (d *snapshotDelegate) AudioSessionDidChange() {
	snap := d.coord.Snapshot()
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen = append(d.seen, snap)
}

func (d *snapshotDelegate) Seen() []Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Snapshot(nil), d.seen...)
}

type fakeCalls struct {
	mu        sync.Mutex
	observers []call.Observer
}

func (f *fakeCalls) AddObserver(o call.Observer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.observers = append(f.observers, o)
}

func (f *fakeCalls) RemoveObserver(o call.Observer) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, existing := range f.observers {
		if existing == o {
			f.observers = append(f.observers[:i], f.observers[i+1:]...)
			return
		}
	}
}

func (f *fakeCalls) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.observers)
}

type fixture struct {
	journal  *journal
	mock     *clock.Mock
	hardware *fakeHardware
	ringer   *fakeRinger
	calls    *fakeCalls
	delegate *fakeDelegate
	coord    *Coordinator
}

func newFixture(t *testing.T, config Config) *fixture {
	t.Helper()
	j := &journal{}
	f := &fixture{
		journal: j,
		mock:    clock.NewMock(),
		hardware: &fakeHardware{
			journal: j,
			reject:  make(map[audio.SessionConfig]error),
			routes:  notification.NewHub[audio.RouteChangeReason](),
		},
		ringer:   &fakeRinger{hub: notification.NewReplayHub(false)},
		calls:    &fakeCalls{},
		delegate: &fakeDelegate{},
	}

	coord, err := New(config, Deps{
		Hardware: f.hardware,
		Engine:   &fakeEngine{journal: j},
		Ringer:   f.ringer,
		Vibrator: &fakeVibrator{journal: j},
		Calls:    f.calls,
		Clock:    f.mock,
	})
	require.NoError(t, err)
	require.NoError(t, coord.SetDelegate(f.delegate))
	f.coord = coord
	t.Cleanup(coord.Close)
	return f
}

// state delivers a transition and waits until the coordinator has handled it.
func (f *fixture) state(s call.State) {
	f.coord.StateDidChange(call.Status{State: s})
	f.flush()
}

func (f *fixture) flush() {
	f.coord.queue.Sync(func() {})
}

func (f *fixture) advance(d time.Duration) {
	f.mock.Add(d)
}

func (f *fixture) applied() []string {
	var out []string
	for _, e := range f.journal.all() {
		if len(e) > 6 && e[:6] == "apply " {
			out = append(out, e)
		}
	}
	return out
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(Config{}, Deps{})
	require.Error(t, err)
}

func TestNew_RegistersWithCallSource(t *testing.T) {
	f := newFixture(t, Config{HandleRinging: true})
	assert.Equal(t, 1, f.calls.Count())

	f.coord.Close()
	f.coord.Close()
	assert.Equal(t, 0, f.calls.Count())
}

func TestCoordinator_OutgoingCallScenario(t *testing.T) {
	f := newFixture(t, Config{HandleRinging: true})

	// dialing: voice session now, connecting sound after the settle delay.
	f.state(call.StateDialing)
	assert.Equal(t, []string{"apply " + voiceConfig.String()}, f.journal.all())
	assert.Equal(t, 1, f.delegate.SessionChanges())

	f.advance(DefaultDialingDelay)
	assert.Eventually(t, func() bool { return f.journal.count("play connecting") == 1 }, waitFor, tick)

	// remoteRinging: unchanged session, connecting superseded by ringback.
	f.journal.reset()
	f.state(call.StateRemoteRinging)
	assert.Equal(t, []string{
		"stop connecting",
		"play outbound_ringing",
	}, f.journal.all())

	// connected: unchanged session, silence.
	f.journal.reset()
	f.state(call.StateConnected)
	assert.Equal(t, []string{"stop outbound_ringing"}, f.journal.all())

	// remoteHangup: vibrate, call ended, ambient.
	f.journal.reset()
	f.state(call.StateRemoteHangup)
	assert.Equal(t, []string{
		"apply " + audio.AmbientConfig().String(),
		"vibrate",
		"play call_ended",
		"stop call_ended",
	}, f.journal.all())
	assert.Equal(t, 2, f.delegate.SessionChanges(), "only the two real config changes are reported")

	snap := f.coord.Snapshot()
	require.True(t, snap.HasConfig)
	assert.Equal(t, audio.AmbientConfig(), snap.SessionConfig)
	assert.False(t, snap.HasEffect)
}

func TestCoordinator_StaleDialingSoundIsDropped(t *testing.T) {
	f := newFixture(t, Config{HandleRinging: true})

	f.state(call.StateDialing)
	f.state(call.StateConnected)

	f.advance(time.Second)
	time.Sleep(20 * time.Millisecond)
	f.flush()
	assert.Zero(t, f.journal.count("play connecting"))
}

func TestCoordinator_RemoteBusyTearsDownAfterDelay(t *testing.T) {
	f := newFixture(t, Config{HandleRinging: true})

	f.state(call.StateConnected)
	f.journal.reset()

	f.state(call.StateRemoteBusy)
	assert.Equal(t, []string{
		"apply " + audio.AmbientConfig().String(),
		"play call_busy",
	}, f.journal.all())

	f.advance(DefaultBusyTeardownDelay - time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	f.flush()
	assert.Zero(t, f.journal.count("stop call_busy"))

	f.advance(time.Millisecond)
	assert.Eventually(t, func() bool { return f.journal.count("stop call_busy") == 1 }, waitFor, tick)

	snap := f.coord.Snapshot()
	assert.Equal(t, audio.AmbientConfig(), snap.SessionConfig)
	assert.False(t, snap.HasEffect)
}

func TestCoordinator_NewCallCancelsBusyTeardown(t *testing.T) {
	f := newFixture(t, Config{HandleRinging: true})

	f.state(call.StateRemoteBusy)
	f.state(call.StateDialing)
	f.advance(DefaultDialingDelay)
	assert.Eventually(t, func() bool { return f.journal.count("play connecting") == 1 }, waitFor, tick)

	f.advance(DefaultBusyTeardownDelay)
	time.Sleep(20 * time.Millisecond)
	f.flush()

	snap := f.coord.Snapshot()
	assert.Equal(t, voiceConfig, snap.SessionConfig, "stale teardown must not revert the new call")
	effect, ok := snap.Effect, snap.HasEffect
	require.True(t, ok)
	assert.Equal(t, audio.EffectConnecting, effect)
}

func TestCoordinator_TerminalStatesEndInAmbient(t *testing.T) {
	terminal := []call.State{
		call.StateLocalFailure,
		call.StateLocalHangup,
		call.StateRemoteHangup,
		call.StateRemoteHangupNeedPermission,
		call.StateAnsweredElsewhere,
		call.StateDeclinedElsewhere,
		call.StateBusyElsewhere,
	}

	for _, s := range terminal {
		t.Run(s.String(), func(t *testing.T) {
			f := newFixture(t, Config{HandleRinging: true})
			f.state(call.StateConnected)
			f.state(s)

			assert.Equal(t, 1, f.journal.count("play call_ended"))
			assert.Equal(t, 1, f.journal.count("stop call_ended"))
			snap := f.coord.Snapshot()
			assert.Equal(t, audio.AmbientConfig(), snap.SessionConfig)
			assert.False(t, snap.HasEffect)
		})
	}
}

func TestCoordinator_LocalRingingOwned(t *testing.T) {
	f := newFixture(t, Config{HandleRinging: true})

	f.state(call.StateLocalRinging)
	assert.Eventually(t, func() bool { return f.journal.count("play ringtone") == 1 }, waitFor, tick)
	assert.Equal(t, 1, f.journal.count("vibrate"))

	snap := f.coord.Snapshot()
	assert.True(t, snap.Ringing)
	assert.Equal(t, ringConfig, snap.SessionConfig)

	// Silencing pauses the ringtone; vibration continues.
	f.ringer.hub.Publish(true)
	assert.Eventually(t, func() bool { return f.journal.count("pause ringtone") == 1 }, waitFor, tick)
	f.advance(200 * time.Millisecond)
	assert.Eventually(t, func() bool { return f.journal.count("vibrate") == 2 }, waitFor, tick)

	// Answering stops both.
	f.state(call.StateConnected)
	assert.Equal(t, 1, f.journal.count("stop ringtone"))
	assert.Equal(t, 0, f.ringer.hub.SubscriberCount())

	f.advance(10 * time.Second)
	time.Sleep(20 * time.Millisecond)
	f.flush()
	assert.Equal(t, 2, f.journal.count("vibrate"))
	assert.Equal(t, voiceConfig, f.coord.Snapshot().SessionConfig)
}

func TestCoordinator_LocalRingingDelegated(t *testing.T) {
	f := newFixture(t, Config{HandleRinging: false})

	f.state(call.StateLocalRinging)
	f.advance(5 * time.Second)
	time.Sleep(20 * time.Millisecond)
	f.flush()

	assert.Zero(t, f.journal.count("vibrate"))
	assert.Zero(t, f.journal.count("play ringtone"))
	assert.Equal(t, 0, f.ringer.hub.SubscriberCount())
	assert.False(t, f.coord.Snapshot().Ringing)
}

func TestCoordinator_SetHandleRinging(t *testing.T) {
	f := newFixture(t, Config{HandleRinging: false})

	f.coord.SetHandleRinging(true)
	f.state(call.StateLocalRinging)
	assert.True(t, f.coord.Snapshot().Ringing)

	f.coord.SetHandleRinging(false)
	f.flush()
	assert.False(t, f.coord.Snapshot().Ringing)
	assert.Equal(t, 1, f.journal.count("stop ringtone"))
}

func TestCoordinator_FlagChangesOnlyReconfigureSession(t *testing.T) {
	f := newFixture(t, Config{HandleRinging: true})
	f.state(call.StateConnected)
	f.journal.reset()

	f.coord.MuteDidChange(call.Status{State: call.StateConnected, IsMuted: true})
	f.coord.HoldDidChange(call.Status{State: call.StateConnected, IsMuted: true, IsOnHold: true})
	f.flush()
	assert.Empty(t, f.journal.all(), "mute and hold do not change the session config")
	assert.Equal(t, 1, f.delegate.SessionChanges())

	f.coord.HasLocalVideoDidChange(call.Status{State: call.StateConnected, HasLocalVideo: true})
	f.flush()
	assert.Equal(t, []string{"apply " + videoConfig.String()}, f.journal.all())
	assert.Equal(t, 2, f.delegate.SessionChanges())
}

func TestCoordinator_HardwareRejectionIsNotFatal(t *testing.T) {
	f := newFixture(t, Config{HandleRinging: true})
	f.hardware.mu.Lock()
	f.hardware.reject[videoConfig] = errors.New("video chat mode unavailable")
	f.hardware.mu.Unlock()

	f.state(call.StateConnected)
	f.coord.HasLocalVideoDidChange(call.Status{State: call.StateConnected, HasLocalVideo: true})
	f.flush()

	snap := f.coord.Snapshot()
	assert.Equal(t, voiceConfig, snap.SessionConfig, "hardware keeps the previous config")
	assert.Equal(t, 1, f.delegate.SessionChanges())

	f.state(call.StateLocalHangup)
	assert.Equal(t, audio.AmbientConfig(), f.coord.Snapshot().SessionConfig)
}

func TestCoordinator_RouteChangesReachDelegate(t *testing.T) {
	f := newFixture(t, Config{HandleRinging: true})

	headset := audio.Port{UID: "hs", Name: "Headset", Type: audio.PortHeadsetMic}
	f.hardware.mu.Lock()
	f.hardware.route = audio.Route{Inputs: []audio.Port{headset}, Outputs: []audio.Port{{UID: "hp", Type: audio.PortHeadphones}}}
	f.hardware.mu.Unlock()

	f.hardware.routes.Publish(audio.RouteChangeNewDevice)
	assert.Eventually(t, func() bool { return len(f.delegate.Sources()) == 1 }, waitFor, tick)
	assert.True(t, audio.SourceFromPort(headset).Equal(f.delegate.Sources()[0]))
	assert.True(t, audio.SourceFromPort(headset).Equal(f.coord.CurrentSource()))
	assert.True(t, f.coord.HasExternalInputs())
	assert.Len(t, f.coord.AvailableSources(), 2)

	f.coord.RequestSpeakerphone(true)
	assert.Eventually(t, func() bool { return f.journal.count("override speaker") == 1 }, waitFor, tick)

	require.NoError(t, f.coord.SelectSource(audio.SourceFromPort(headset)))
	assert.Eventually(t, func() bool { return f.journal.count("override none") == 1 }, waitFor, tick)
	assert.Equal(t, 1, f.journal.count("prefer true"))
}

func TestCoordinator_DelegateOwnership(t *testing.T) {
	f := newFixture(t, Config{HandleRinging: true})

	err := f.coord.SetDelegate(&fakeDelegate{})
	assert.ErrorIs(t, err, ErrDelegateAlreadySet)
	assert.ErrorIs(t, f.coord.SetDelegate(nil), ErrNilDelegate)

	f.coord.ClearDelegate()
	replacement := &fakeDelegate{}
	require.NoError(t, f.coord.SetDelegate(replacement))

	f.state(call.StateConnected)
	assert.Equal(t, 1, replacement.SessionChanges())
	assert.Equal(t, 0, f.delegate.SessionChanges())
}

func TestCoordinator_SnapshotFromDelegateCallback(t *testing.T) {
	f := newFixture(t, Config{HandleRinging: true})
	f.coord.ClearDelegate()
	d := &snapshotDelegate{coord: f.coord}
	require.NoError(t, f.coord.SetDelegate(d))

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.state(call.StateConnected)
	}()
	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("snapshot from delegate callback blocked the queue")
	}

	seen := d.Seen()
	require.Len(t, seen, 1)
	require.NotNil(t, seen[0].Status)
	assert.Equal(t, call.StateConnected, seen[0].Status.State)
	assert.True(t, seen[0].HasConfig)
}

func TestCoordinator_StrictModePanicsOnMisuse(t *testing.T) {
	f := newFixture(t, Config{HandleRinging: true, Strict: true})

	assert.Panics(t, func() { _ = f.coord.SetDelegate(&fakeDelegate{}) })
	assert.Panics(t, func() { f.coord.handleStateChange(call.Status{State: call.StateConnected}) })
}

func TestCoordinator_OffQueueCallIsIgnored(t *testing.T) {
	f := newFixture(t, Config{HandleRinging: true})

	f.coord.handleStateChange(call.Status{State: call.StateConnected})
	assert.Empty(t, f.journal.all())
	assert.Nil(t, f.coord.Snapshot().Status)
}

func TestCoordinator_CloseReleasesResources(t *testing.T) {
	f := newFixture(t, Config{HandleRinging: true})

	f.state(call.StateLocalRinging)
	assert.Equal(t, 1, f.ringer.hub.SubscriberCount())
	assert.Equal(t, 1, f.hardware.routes.SubscriberCount())

	f.coord.Close()

	assert.Equal(t, 1, f.journal.count("stop ringtone"))
	assert.Equal(t, 0, f.ringer.hub.SubscriberCount())
	assert.Equal(t, 0, f.hardware.routes.SubscriberCount())

	// Events after close are dropped without panicking.
	assert.NotPanics(t, func() { f.coord.StateDidChange(call.Status{State: call.StateConnected}) })
}
