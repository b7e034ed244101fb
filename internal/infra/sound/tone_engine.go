package sound

import (
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/callaudio/internal/app/playback"
	"github.com/osa030/callaudio/internal/domain/audio"
	"github.com/osa030/callaudio/internal/infra/tone"
)

// ToneEngine synthesizes effects and plays them through one output, one handle at a time.
// A stopped one-shot handle that is playing drains to the end of its clip unless superseded.
type ToneEngine struct {
	format  tone.Format
	output  Output
	onEvent func(string)

	mu      sync.Mutex
	cache   map[audio.SoundEffect][]int16
	active  *toneHandle
	started bool
	closed  bool
}

// NewToneEngine creates an engine. The output is started by the first Prepare.
func NewToneEngine(format tone.Format, output Output, onEvent func(string)) *ToneEngine {
	return &ToneEngine{
		format:  format,
		output:  output,
		onEvent: onEvent,
		cache:   make(map[audio.SoundEffect][]int16),
	}
}

// Prepare renders effect and returns a paused handle.
func (e *ToneEngine) Prepare(effect audio.SoundEffect, behavior playback.Behavior) (playback.Handle, error) {
	samples, err := e.samples(effect)
	if err != nil {
		return nil, err
	}
	if err := e.ensureStarted(); err != nil {
		return nil, err
	}
	return &toneHandle{
		engine:   e,
		effect:   effect,
		behavior: behavior,
		stream:   tone.NewStream(samples, e.format.Channels, behavior == playback.BehaviorLoop),
	}, nil
}

// Active returns the effect currently routed to the output.
func (e *ToneEngine) Active() (audio.SoundEffect, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return 0, false
	}
	return e.active.effect, true
}

// Close releases the output.
func (e *ToneEngine) Close() error {
	e.mu.Lock()
	e.closed = true
	e.active = nil
	started := e.started
	e.mu.Unlock()

	if !started {
		return nil
	}
	return errors.Wrap(e.output.Close(), "failed to close output")
}

func (e *ToneEngine) samples(effect audio.SoundEffect) ([]int16, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.cache[effect]; ok {
		return s, nil
	}
	pattern, err := tone.PatternFor(effect)
	if err != nil {
		return nil, err
	}
	s, err := tone.Synthesize(pattern, e.format)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to synthesize %s", effect)
	}
	e.cache[effect] = s
	return s, nil
}

func (e *ToneEngine) ensureStarted() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return errors.New("tone engine closed")
	}
	if e.started {
		return nil
	}
	if err := e.output.Start(e.format, e.render); err != nil {
		return errors.Wrap(err, "failed to start output")
	}
	e.started = true
	return nil
}

// render runs on the audio device thread.
func (e *ToneEngine) render(out []byte) {
	e.mu.Lock()
	h := e.active
	e.mu.Unlock()

	if h == nil {
		for i := range out {
			out[i] = 0
		}
		return
	}
	h.stream.Read(out)
	if h.stream.Done() {
		e.release(h)
		h.emit("finished")
	}
}

func (e *ToneEngine) activate(h *toneHandle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = h
}

func (e *ToneEngine) release(h *toneHandle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == h {
		e.active = nil
	}
}

type toneHandle struct {
	engine   *ToneEngine
	effect   audio.SoundEffect
	behavior playback.Behavior
	stream   *tone.Stream

	mu      sync.Mutex
	playing bool
	stopped bool
}

func (h *toneHandle) Play() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.playing = true
	h.mu.Unlock()

	h.stream.Resume()
	h.engine.activate(h)
	h.emit("play")
}

func (h *toneHandle) Pause() {
	h.mu.Lock()
	h.playing = false
	h.mu.Unlock()

	h.stream.Pause()
	h.emit("pause")
}

func (h *toneHandle) Stop() {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return
	}
	h.stopped = true
	drain := h.playing && h.behavior == playback.BehaviorOnce
	h.mu.Unlock()

	if drain && !h.stream.Done() {
		h.emit("drain")
		return
	}
	h.stream.Pause()
	h.engine.release(h)
	h.emit("stop")
}

func (h *toneHandle) emit(op string) {
	zlog.Debug().Msgf("sound: %s %s (%s)", op, h.effect, h.behavior)
	if h.engine.onEvent != nil {
		h.engine.onEvent("sound " + op + " " + h.effect.String())
	}
}
