package scenario

import (
	"context"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/callaudio/internal/domain/audio"
	"github.com/osa030/callaudio/internal/domain/call"
)

// SpeakerDevice selects the built-in speaker in a select step.
const SpeakerDevice = "speaker"

// Calls drives the call status.
type Calls interface {
	SetState(state call.State)
	SetMuted(muted bool)
	SetOnHold(onHold bool)
	SetLocalVideo(hasVideo bool)
}

// Hardware drives the simulated device.
type Hardware interface {
	Plug(device string) error
	Unplug(device string) error
	SetSilenced(silenced bool)
}

// Routing selects audio sources.
type Routing interface {
	AvailableSources() []*audio.Source
	SelectSource(source *audio.Source) error
	RequestSpeakerphone(enabled bool)
}

// Runner applies scenario steps in order.
type Runner struct {
	calls    Calls
	hardware Hardware
	routing  Routing
	clock    clock.Clock

	// OnStep, when set, is called before each step is applied.
	OnStep func(index int, step Step)
}

// NewRunner creates a runner. A nil clock uses the wall clock.
func NewRunner(calls Calls, hardware Hardware, routing Routing, clk clock.Clock) *Runner {
	if clk == nil {
		clk = clock.New()
	}
	return &Runner{calls: calls, hardware: hardware, routing: routing, clock: clk}
}

// Run applies every step, then waits for the settle period.
// Step failures are returned immediately; cancelling ctx stops between steps.
func (r *Runner) Run(ctx context.Context, sc *Scenario) error {
	zlog.Info().Msgf("scenario: running %q: steps=%d", sc.Name, len(sc.Steps))
	for i, step := range sc.Steps {
		if err := r.wait(ctx, step.After()); err != nil {
			return err
		}
		if r.OnStep != nil {
			r.OnStep(i, step)
		}
		if err := r.apply(step); err != nil {
			return errors.Wrapf(err, "step %d (%s) failed", i+1, step.Kind)
		}
	}
	if err := r.wait(ctx, sc.Settle()); err != nil {
		return err
	}
	zlog.Info().Msgf("scenario: finished %q", sc.Name)
	return nil
}

func (r *Runner) wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := r.clock.Timer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (r *Runner) apply(step Step) error {
	zlog.Debug().Msgf("scenario: step: kind=%s state=%s value=%t device=%s", step.Kind, step.State, step.Flag(), step.Device)
	switch step.Kind {
	case KindState:
		state, err := step.CallState()
		if err != nil {
			return err
		}
		r.calls.SetState(state)
	case KindMute:
		r.calls.SetMuted(step.Flag())
	case KindHold:
		r.calls.SetOnHold(step.Flag())
	case KindVideo:
		r.calls.SetLocalVideo(step.Flag())
	case KindPlug:
		return r.hardware.Plug(step.Device)
	case KindUnplug:
		return r.hardware.Unplug(step.Device)
	case KindSilence:
		r.hardware.SetSilenced(step.Flag())
	case KindSpeaker:
		r.routing.RequestSpeakerphone(step.Flag())
	case KindSelect:
		source, err := r.findSource(step.Device)
		if err != nil {
			return err
		}
		return r.routing.SelectSource(source)
	default:
		return errors.Newf("unknown step kind: %s", step.Kind)
	}
	return nil
}

// findSource matches a device against the built-in speaker, a port type or a source name.
func (r *Runner) findSource(device string) (*audio.Source, error) {
	sources := r.routing.AvailableSources()
	for _, s := range sources {
		if device == SpeakerDevice && s.IsBuiltInSpeaker {
			return s, nil
		}
		if s.Port != nil && (string(s.Port.Type) == device || strings.EqualFold(s.Name, device)) {
			return s, nil
		}
	}
	return nil, errors.Newf("no available source matches %q", device)
}
