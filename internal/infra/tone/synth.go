package tone

import (
	"math"
	"time"

	"github.com/cockroachdb/errors"
)

// Format describes the PCM output.
type Format struct {
	SampleRate int     // frames per second
	Channels   int     // interleaved channels
	Volume     float64 // 0..1
	Fade       time.Duration
}

// DefaultFormat is mono 16 kHz at half volume with 5 ms edge fades.
var DefaultFormat = Format{SampleRate: 16000, Channels: 1, Volume: 0.5, Fade: 5 * time.Millisecond}

func (f Format) frames(d time.Duration) int {
	return int(d * time.Duration(f.SampleRate) / time.Second)
}

// Synthesize renders one pass of p as interleaved signed 16-bit samples.
func Synthesize(p Pattern, f Format) ([]int16, error) {
	if f.SampleRate <= 0 || f.Channels <= 0 {
		return nil, errors.Newf("invalid format: sample_rate=%d channels=%d", f.SampleRate, f.Channels)
	}
	if f.Volume < 0 || f.Volume > 1 {
		return nil, errors.Newf("volume out of range: %v", f.Volume)
	}

	total := f.frames(p.Duration())
	out := make([]int16, 0, total*f.Channels)
	fade := f.frames(f.Fade)

	for _, seg := range p.Segments {
		n := f.frames(seg.Duration)
		for i := 0; i < n; i++ {
			v := 0.0
			if len(seg.Frequencies) > 0 {
				t := float64(i) / float64(f.SampleRate)
				for _, freq := range seg.Frequencies {
					v += math.Sin(2 * math.Pi * freq * t)
				}
				v = v / float64(len(seg.Frequencies)) * f.Volume * envelope(i, n, fade)
			}
			s := int16(math.Round(v * math.MaxInt16))
			for c := 0; c < f.Channels; c++ {
				out = append(out, s)
			}
		}
	}
	return out, nil
}

// envelope ramps the first and last fade frames of a segment linearly.
func envelope(i, n, fade int) float64 {
	if fade <= 0 {
		return 1
	}
	if fade*2 > n {
		fade = n / 2
	}
	switch {
	case fade == 0:
		return 1
	case i < fade:
		return float64(i) / float64(fade)
	case i >= n-fade:
		return float64(n-1-i) / float64(fade)
	default:
		return 1
	}
}
