package audio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"
)

// ErrInvalidTone is returned by Tone.Validate.
var ErrInvalidTone = errors.New("invalid tone parameters")

// MaxToneSampleRate bounds the accepted tone sample rate.
const MaxToneSampleRate = 384000

// maxToneMillis keeps Duration and NumSamples inside int64.
const maxToneMillis = math.MaxInt64 / int64(time.Millisecond)

// Tone describes a mono sine wave. Amplitude is in dB and converted to a
// linear gain of 10^(dB/20).
type Tone struct {
	Freq        float64
	DurationMs  int64
	AmplitudeDB float64
	SampleRate  int
}

// Validate checks the parameters. maxDuration <= 0 disables the length cap.
func (t Tone) Validate(maxDuration time.Duration) error {
	switch {
	case t.Freq <= 0 || math.IsInf(t.Freq, 0) || math.IsNaN(t.Freq):
		return fmt.Errorf("%w: frequency must be positive", ErrInvalidTone)
	case t.DurationMs <= 0:
		return fmt.Errorf("%w: duration must be positive", ErrInvalidTone)
	case t.DurationMs > maxToneMillis:
		return fmt.Errorf("%w: duration out of range", ErrInvalidTone)
	case maxDuration > 0 && t.DurationMs > int64(maxDuration/time.Millisecond):
		return fmt.Errorf("%w: duration exceeds %s", ErrInvalidTone, maxDuration)
	case t.SampleRate <= 0 || t.SampleRate > MaxToneSampleRate:
		return fmt.Errorf("%w: sample rate must be in 1..%d", ErrInvalidTone, MaxToneSampleRate)
	case math.IsInf(t.AmplitudeDB, 0) || math.IsNaN(t.AmplitudeDB):
		return fmt.Errorf("%w: amplitude must be finite", ErrInvalidTone)
	}
	return nil
}

// Duration returns the requested tone length.
func (t Tone) Duration() time.Duration {
	return time.Duration(t.DurationMs) * time.Millisecond
}

// NumSamples is duration × sample rate, truncated.
func (t Tone) NumSamples() int {
	return int(t.DurationMs * int64(t.SampleRate) / 1000)
}

// Gain returns the linear amplitude.
func (t Tone) Gain() float64 {
	return math.Pow(10, t.AmplitudeDB/20)
}

// Sample returns sample i: gain·sin(2π·freq·i/rate).
func (t Tone) Sample(i int) float32 {
	return float32(t.Gain() * math.Sin(2*math.Pi*t.Freq*float64(i)/float64(t.SampleRate)))
}

// Samples renders the whole tone.
func (t Tone) Samples() []float32 {
	n := t.NumSamples()
	gain := t.Gain()
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(gain * math.Sin(2*math.Pi*t.Freq*float64(i)/float64(t.SampleRate)))
	}
	return out
}

// Source returns a Source that synthesizes the tone block by block.
func (t Tone) Source() Source {
	return &toneSource{tone: t, gain: t.Gain(), total: t.NumSamples()}
}

// WAV renders the tone as a mono 32-bit float WAV file.
func (t Tone) WAV() []byte {
	return EncodeWAV(t.Samples(), t.SampleRate, 1)
}

// Label names a played tone in logs, e.g. tone_1000Hz_500ms_40dB_@48000Hz.
func (t Tone) Label() string {
	return "tone_" + t.baseName()
}

// FileName is the download name of an exported tone.
func (t Tone) FileName() string {
	return t.baseName() + ".wav"
}

func (t Tone) baseName() string {
	return fmt.Sprintf("%sHz_%dms_%sdB_@%dHz",
		strconv.FormatFloat(t.Freq, 'f', -1, 64),
		t.DurationMs,
		strconv.FormatFloat(t.AmplitudeDB, 'f', -1, 64),
		t.SampleRate)
}

type toneSource struct {
	tone  Tone
	gain  float64
	total int
	pos   int
}

func (s *toneSource) SampleRate() int { return s.tone.SampleRate }
func (s *toneSource) Channels() int   { return 1 }

func (s *toneSource) Read(buf []float32) (int, error) {
	if s.pos >= s.total {
		return 0, io.EOF
	}
	n := 0
	rate := float64(s.tone.SampleRate)
	for n < len(buf) && s.pos < s.total {
		buf[n] = float32(s.gain * math.Sin(2*math.Pi*s.tone.Freq*float64(s.pos)/rate))
		n++
		s.pos++
	}
	return n, nil
}

func (s *toneSource) Duration() time.Duration {
	return samplesDuration(s.total, s.tone.SampleRate, 1)
}
