package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// ErrDeviceUnavailable means the host has no usable audio output. It is an
// expected outcome of Output.Open, not a crash.
var ErrDeviceUnavailable = errors.New("audio output device unavailable")

// Output is the host audio output. Open is an explicit probe: a missing or
// busy device is reported as an error wrapping ErrDeviceUnavailable.
type Output interface {
	Open(ctx context.Context) (Sink, error)
}

// Sink is an opened output channel that items are played through.
type Sink interface {
	// Play blocks until src has finished playing.
	Play(ctx context.Context, src Source) error
	Pause()
	Resume()
	Close() error
}

// Player names accepted by NewOutput.
const (
	PlayerFFplay = "ffplay"
	PlayerAplay  = "aplay"
	PlayerNull   = "null"
)

// NewOutput returns the Output for a player name. bin overrides the binary
// path for exec-based players.
func NewOutput(player, bin string) (Output, error) {
	switch player {
	case PlayerFFplay, PlayerAplay:
		if bin == "" {
			bin = player
		}
		return &ExecOutput{Player: player, Bin: bin}, nil
	case PlayerNull:
		return NullOutput{}, nil
	default:
		return nil, fmt.Errorf("unknown output player %q", player)
	}
}

// NullOutput discards audio but keeps real-time pacing, so a headless host
// behaves like one with speakers.
type NullOutput struct{}

// Open implements Output.
func (NullOutput) Open(context.Context) (Sink, error) {
	return &nullSink{}, nil
}

type nullSink struct{}

// frameDuration is the pacing granularity of nullSink.
const frameDuration = 20 * time.Millisecond

func (s *nullSink) Play(ctx context.Context, src Source) error {
	rate, channels := src.SampleRate(), src.Channels()
	if rate <= 0 || channels <= 0 {
		return fmt.Errorf("invalid source format %d Hz × %d", rate, channels)
	}
	frame := rate * channels * int(frameDuration/time.Millisecond) / 1000
	if frame < channels {
		frame = channels
	}
	buf := make([]float32, frame)
	start := time.Now()
	var played int64
	timer := time.NewTimer(0)
	defer timer.Stop()
	<-timer.C

	for {
		n, err := src.Read(buf)
		played += int64(n)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		due := start.Add(time.Duration(played) * time.Second / time.Duration(rate*channels))
		timer.Reset(time.Until(due))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (s *nullSink) Pause()       {}
func (s *nullSink) Resume()      {}
func (s *nullSink) Close() error { return nil }
