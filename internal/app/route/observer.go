// Package route observes hardware audio route changes and selects audio sources.
package route

import (
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/callaudio/internal/app/dispatch"
	"github.com/osa030/callaudio/internal/app/notification"
	"github.com/osa030/callaudio/internal/domain/audio"
)

// Hardware is the part of the audio hardware session that deals with routes.
type Hardware interface {
	CurrentRoute() audio.Route
	AvailableInputs() []audio.Port
	// SetPreferredInput selects an input port; nil clears the preference.
	SetPreferredInput(port *audio.Port) error
	OverrideOutput(override audio.OutputOverride) error
	SubscribeRouteChanges(fn func(reason audio.RouteChangeReason)) (*notification.Subscription, error)
}

// Listener receives the audio source after every route change, on the queue.
type Listener func(source *audio.Source)

// Observer republishes the current audio source whenever the hardware route changes.
type Observer struct {
	queue    *dispatch.Queue
	hardware Hardware
	listener Listener

	sub     *notification.Subscription
	speaker *speakerWorker
}

// NewObserver creates an observer. Call Start to begin observing.
func NewObserver(queue *dispatch.Queue, hardware Hardware, listener Listener) *Observer {
	return &Observer{
		queue:    queue,
		hardware: hardware,
		listener: listener,
		speaker:  newSpeakerWorker(hardware),
	}
}

// Start subscribes to route-change notifications.
func (o *Observer) Start() error {
	if o.sub != nil {
		return nil
	}
	sub, err := o.hardware.SubscribeRouteChanges(func(reason audio.RouteChangeReason) {
		// Notifications arrive on a hardware goroutine.
		o.queue.Async(func() { o.routeDidChange(reason) })
	})
	if err != nil {
		return errors.Wrap(err, "failed to observe route changes")
	}
	o.sub = sub
	return nil
}

// Close stops observing and shuts down the speakerphone worker.
func (o *Observer) Close() {
	o.sub.Cancel()
	o.sub = nil
	o.speaker.close()
}

// CurrentSource derives the current source from the hardware route.
// Returns nil when no source can be determined.
func (o *Observer) CurrentSource() *audio.Source {
	return SourceForRoute(o.hardware.CurrentRoute())
}

// AvailableSources lists the built-in speaker followed by every available input.
func (o *Observer) AvailableSources() []*audio.Source {
	inputs := o.hardware.AvailableInputs()
	sources := make([]*audio.Source, 0, len(inputs)+1)
	sources = append(sources, audio.BuiltInSpeaker())
	for _, p := range inputs {
		sources = append(sources, audio.SourceFromPort(p))
	}
	return sources
}

// HasExternalInputs reports whether any input other than the built-in microphone is available.
func (o *Observer) HasExternalInputs() bool {
	for _, p := range o.hardware.AvailableInputs() {
		if p.Type != audio.PortBuiltInMic {
			return true
		}
	}
	return false
}

// SelectSource routes audio through source.
// The speakerphone part is applied asynchronously; the new source is reported
// through the listener once the hardware route changes.
func (o *Observer) SelectSource(source *audio.Source) error {
	if source != nil && source.IsBuiltInSpeaker {
		o.SetSpeakerphone(true)
		return nil
	}

	o.SetSpeakerphone(false)

	var port *audio.Port
	if source != nil {
		port = source.Port
	}
	if err := o.hardware.SetPreferredInput(port); err != nil {
		zlog.Error().Err(err).Msgf("route: failed to select source: source=%s", source)
		return errors.Wrapf(err, "failed to select source %s", source)
	}
	return nil
}

// SetSpeakerphone requests the speaker override on a background worker and returns immediately.
func (o *Observer) SetSpeakerphone(enabled bool) {
	o.speaker.request(enabled)
}

func (o *Observer) routeDidChange(reason audio.RouteChangeReason) {
	current := o.hardware.CurrentRoute()
	source := SourceForRoute(current)
	if source == nil && expectsSource(current) {
		err := errors.AssertionFailedf("no audio source for current route after %s", reason)
		zlog.Error().Err(err).Msg("route: hardware route desynced, assuming built-in speaker")
		source = audio.BuiltInSpeaker()
	}
	zlog.Debug().Msgf("route: route changed: reason=%s source=%s", reason, source)
	if o.listener != nil {
		o.listener(source)
	}
}

// SourceForRoute picks the source a route represents: the built-in microphone when it is
// paired with the built-in receiver, else the built-in speaker when it is an output,
// else the first input of the route.
func SourceForRoute(route audio.Route) *audio.Source {
	if mic, ok := route.FindInput(audio.PortBuiltInMic); ok {
		if _, ok := route.FindOutput(audio.PortBuiltInReceiver); ok {
			return audio.SourceFromPort(mic)
		}
	}
	if _, ok := route.FindOutput(audio.PortBuiltInSpeaker); ok {
		return audio.BuiltInSpeaker()
	}
	if len(route.Inputs) > 0 {
		return audio.SourceFromPort(route.Inputs[0])
	}
	return nil
}

// expectsSource reports whether a route should resolve to a source.
// Output-only routes belong to playback categories and legitimately have none.
func expectsSource(route audio.Route) bool {
	return len(route.Inputs) > 0 || len(route.Outputs) == 0
}
