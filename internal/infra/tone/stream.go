package tone

import (
	"encoding/binary"
	"sync"
)

// Stream reads rendered samples into device buffers, optionally looping.
// Pause outputs silence without advancing. Safe for concurrent use.
type Stream struct {
	mu       sync.Mutex
	samples  []int16
	channels int
	loop     bool
	pos      int
	paused   bool
	done     bool
}

// NewStream wraps interleaved samples with the given channel count.
func NewStream(samples []int16, channels int, loop bool) *Stream {
	if channels <= 0 {
		channels = 1
	}
	return &Stream{samples: samples, channels: channels, loop: loop, paused: true, done: len(samples) == 0}
}

// Resume continues output from the current position.
func (s *Stream) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
}

// Pause silences output and keeps the position.
func (s *Stream) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
}

// Done reports whether a one-shot stream has played to the end.
func (s *Stream) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Read fills out with little-endian S16 frames and returns the number of frames taken from the clip.
// Space past the end of a one-shot clip and every frame while paused is zeroed.
func (s *Stream) Read(out []byte) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	written := 0
	for i := 0; i+1 < len(out); i += 2 {
		var v int16
		if !s.paused && !s.done {
			v = s.samples[s.pos]
			s.pos++
			written++
			if s.pos == len(s.samples) {
				if s.loop {
					s.pos = 0
				} else {
					s.done = true
				}
			}
		}
		binary.LittleEndian.PutUint16(out[i:], uint16(v))
	}
	return written / s.channels
}
