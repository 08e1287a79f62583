package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// ExecOutput plays through an external player process (ffplay or aplay),
// one process per item, feeding raw float32 PCM on stdin.
type ExecOutput struct {
	Player string
	Bin    string
}

// probeTimeout bounds the device probe run by Open.
const probeTimeout = 5 * time.Second

// Open implements Output. The player binary must be on PATH and must play a
// short burst of silence; a player that cannot reach a device exits non-zero.
func (o *ExecOutput) Open(ctx context.Context) (Sink, error) {
	path, err := exec.LookPath(o.Bin)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrDeviceUnavailable, o.Bin, err)
	}
	sink := &execSink{player: o.Player, path: path}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := sink.Play(probeCtx, silence(50*time.Millisecond)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	}
	return sink, nil
}

// silence returns d of mono silence at 8 kHz.
func silence(d time.Duration) Source {
	const rate = 8000
	return newBufferSource(make([]float32, int(d.Seconds()*rate)), rate, 1)
}

func (o *ExecOutput) args(rate, channels int) []string {
	if o.Player == PlayerAplay {
		return []string{"-q", "-t", "raw", "-f", "FLOAT_LE", "-r", strconv.Itoa(rate), "-c", strconv.Itoa(channels), "-"}
	}
	return []string{
		"-nodisp", "-autoexit", "-loglevel", "error",
		"-f", "f32le",
		"-ar", strconv.Itoa(rate),
		"-ch_layout", channelLayout(channels),
		"-i", "pipe:0",
	}
}

func channelLayout(channels int) string {
	switch channels {
	case 1:
		return "mono"
	case 2:
		return "stereo"
	default:
		return strconv.Itoa(channels) + "c"
	}
}

type execSink struct {
	player string
	path   string
}

// blockFrames is the number of frames written to the player per chunk.
const blockFrames = 4096

func (s *execSink) Play(ctx context.Context, src Source) error {
	o := ExecOutput{Player: s.player}
	cmd := exec.CommandContext(ctx, s.path, o.args(src.SampleRate(), src.Channels())...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("player stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start player: %w", err)
	}

	writeErr := make(chan error, 1)
	go func() {
		defer stdin.Close()
		buf := make([]float32, blockFrames*src.Channels())
		out := make([]byte, 0, len(buf)*4)
		for {
			n, err := src.Read(buf)
			if n > 0 {
				if _, werr := stdin.Write(float32ToBytes(out[:0], buf[:n])); werr != nil {
					writeErr <- werr
					return
				}
			}
			if errors.Is(err, io.EOF) {
				writeErr <- nil
				return
			}
			if err != nil {
				writeErr <- err
				return
			}
		}
	}()

	waitErr := cmd.Wait()
	werr := <-writeErr
	if waitErr != nil {
		return fmt.Errorf("%s exited: %w: %s", s.player, waitErr, strings.TrimSpace(stderr.String()))
	}
	return werr
}

// Pause and Resume are no-ops: between items no player process runs, so the
// output is already silent.
func (s *execSink) Pause()  {}
func (s *execSink) Resume() {}

func (s *execSink) Close() error { return nil }
