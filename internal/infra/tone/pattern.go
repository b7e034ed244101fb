// Package tone synthesizes telephony sound effects as 16-bit PCM.
package tone

import (
	"time"

	"github.com/cockroachdb/errors"

	"github.com/osa030/callaudio/internal/domain/audio"
)

// Segment is a span of summed sine tones. No frequencies means silence.
type Segment struct {
	Frequencies []float64
	Duration    time.Duration
}

// Pattern is the cadence of one sound effect.
type Pattern struct {
	Segments []Segment
}

// Duration returns the length of one pass through the pattern.
func (p Pattern) Duration() time.Duration {
	var total time.Duration
	for _, s := range p.Segments {
		total += s.Duration
	}
	return total
}

func on(d time.Duration, freqs ...float64) Segment {
	return Segment{Frequencies: freqs, Duration: d}
}

func off(d time.Duration) Segment {
	return Segment{Duration: d}
}

const ms = time.Millisecond

var patterns = map[audio.SoundEffect]Pattern{
	// Two short pips while the call is set up.
	audio.EffectConnecting: {Segments: []Segment{
		on(120*ms, 480), off(120 * ms), on(120*ms, 480), off(1640 * ms),
	}},
	// North American ringback: 440+480 Hz, 2 s on, 4 s off.
	audio.EffectOutboundRinging: {Segments: []Segment{
		on(2000*ms, 440, 480), off(4000 * ms),
	}},
	// Alternating trill, repeated at the vibration cadence.
	audio.EffectRingtone: {Segments: []Segment{
		on(100*ms, 880), on(100*ms, 660), on(100*ms, 880), on(100*ms, 660), off(1200 * ms),
	}},
	// Descending three-note chime.
	audio.EffectCallEnded: {Segments: []Segment{
		on(150*ms, 660), off(50 * ms), on(150*ms, 520), off(50 * ms), on(250*ms, 400),
	}},
	// Busy signal: 480+620 Hz, 0.5 s on, 0.5 s off, four times.
	audio.EffectCallBusy: {Segments: []Segment{
		on(500*ms, 480, 620), off(500 * ms),
		on(500*ms, 480, 620), off(500 * ms),
		on(500*ms, 480, 620), off(500 * ms),
		on(500*ms, 480, 620), off(500 * ms),
	}},
}

// PatternFor returns the cadence of effect.
func PatternFor(effect audio.SoundEffect) (Pattern, error) {
	p, ok := patterns[effect]
	if !ok {
		return Pattern{}, errors.Newf("no tone pattern for %s", effect)
	}
	return p, nil
}
