package main

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/osa030/callaudio/internal/app/scenario"
	"github.com/osa030/callaudio/internal/domain/audio"
	"github.com/osa030/callaudio/internal/infra/simhw"
)

// transcript prints simulator events with the time since start.
// Events arrive from the coordinator queue, the speaker worker and the audio thread.
type transcript struct {
	mu    sync.Mutex
	w     io.Writer
	start time.Time
}

func newTranscript(w io.Writer) *transcript {
	return &transcript{w: w, start: time.Now()}
}

func (t *transcript) printf(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.w, "%7.3fs  ", time.Since(t.start).Seconds())
	fmt.Fprintf(t.w, format, args...)
}

func (t *transcript) hardware(event string) { t.printf("hw        %s\n", event) }
func (t *transcript) sound(event string)    { t.printf("sound     %s\n", event) }

func (t *transcript) step(i int, s scenario.Step) {
	detail := ""
	switch s.Kind {
	case scenario.KindState:
		detail = s.State
	case scenario.KindPlug, scenario.KindUnplug, scenario.KindSelect:
		detail = s.Device
	default:
		detail = fmt.Sprintf("%t", s.Flag())
	}
	t.printf("step %-3d  %s %s\n", i+1, s.Kind, detail)
}

// delegate prints coordinator outputs.
type delegate struct {
	out    *transcript
	device *simhw.Device
}

func (d *delegate) AudioSessionDidChange() {
	cfg, _ := d.device.Config()
	d.out.printf("delegate  session changed: %s\n", cfg)
}

func (d *delegate) AudioSourceDidChange(source *audio.Source) {
	d.out.printf("delegate  source changed: %s\n", source)
}
