package audio

import (
	"io"
	"time"
)

// Source produces a finite, non-restartable stream of interleaved float32
// sample blocks at a known sample rate. Decoded assets and synthesized tones
// are both played through this one capability.
type Source interface {
	SampleRate() int
	Channels() int
	// Read fills buf with the next interleaved samples and returns how many
	// were written. It returns io.EOF once the stream is exhausted.
	Read(buf []float32) (int, error)
	// Duration is the total play time of the stream.
	Duration() time.Duration
}

// bufferSource reads from a shared, immutable sample slice.
type bufferSource struct {
	samples    []float32
	sampleRate int
	channels   int
	pos        int
}

func newBufferSource(samples []float32, sampleRate, channels int) *bufferSource {
	return &bufferSource{samples: samples, sampleRate: sampleRate, channels: channels}
}

func (s *bufferSource) SampleRate() int { return s.sampleRate }
func (s *bufferSource) Channels() int   { return s.channels }

func (s *bufferSource) Read(buf []float32) (int, error) {
	if s.pos >= len(s.samples) {
		return 0, io.EOF
	}
	n := copy(buf, s.samples[s.pos:])
	s.pos += n
	return n, nil
}

func (s *bufferSource) Duration() time.Duration {
	return samplesDuration(len(s.samples), s.sampleRate, s.channels)
}

func samplesDuration(n, sampleRate, channels int) time.Duration {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	frames := int64(n / channels)
	return time.Duration(frames) * time.Second / time.Duration(sampleRate)
}
