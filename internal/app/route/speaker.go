package route

import (
	"sync"

	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/callaudio/internal/domain/audio"
)

// speakerWorker applies speaker overrides off the coordination queue; the hardware call is slow
// and its effect only becomes visible through a later route change.
type speakerWorker struct {
	hardware Hardware
	requests chan bool
	done     chan struct{}
	once     sync.Once
	wg       sync.WaitGroup
}

func newSpeakerWorker(hardware Hardware) *speakerWorker {
	w := &speakerWorker{
		hardware: hardware,
		requests: make(chan bool, 8),
		done:     make(chan struct{}),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

func (w *speakerWorker) request(enabled bool) {
	select {
	case w.requests <- enabled:
	case <-w.done:
		zlog.Warn().Msgf("route: speakerphone worker closed, dropping request: enabled=%t", enabled)
	}
}

func (w *speakerWorker) run() {
	defer w.wg.Done()
	for {
		select {
		case enabled := <-w.requests:
			w.apply(enabled)
		case <-w.done:
			return
		}
	}
}

func (w *speakerWorker) apply(enabled bool) {
	override := audio.OverrideNone
	if enabled {
		override = audio.OverrideSpeaker
	}
	if err := w.hardware.OverrideOutput(override); err != nil {
		zlog.Error().Err(err).Msgf("route: failed to override output: override=%s", override)
		return
	}
	zlog.Debug().Msgf("route: output override applied: override=%s", override)
}

func (w *speakerWorker) close() {
	w.once.Do(func() {
		close(w.done)
	})
	w.wg.Wait()
}
