package audio

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"
	"strconv"
)

// PCM is decoded interleaved audio at its native sample rate.
type PCM struct {
	Samples    []float32
	SampleRate int
	Channels   int
}

// Decoder turns an audio file into PCM.
type Decoder interface {
	Decode(ctx context.Context, path string) (PCM, error)
}

// FFmpegDecoder decodes any format FFmpeg understands. ffprobe reports the
// native sample rate and channel count, ffmpeg then emits raw float32 PCM
// without resampling.
type FFmpegDecoder struct {
	FFmpegBin  string
	FFprobeBin string
}

// NewFFmpegDecoder returns a decoder using the given binaries, falling back to
// "ffmpeg" and "ffprobe" on PATH.
func NewFFmpegDecoder(ffmpegBin, ffprobeBin string) *FFmpegDecoder {
	if ffmpegBin == "" {
		ffmpegBin = "ffmpeg"
	}
	if ffprobeBin == "" {
		ffprobeBin = "ffprobe"
	}
	return &FFmpegDecoder{FFmpegBin: ffmpegBin, FFprobeBin: ffprobeBin}
}

type probeOutput struct {
	Streams []struct {
		SampleRate string `json:"sample_rate"`
		Channels   int    `json:"channels"`
	} `json:"streams"`
}

// Decode implements Decoder.
func (d *FFmpegDecoder) Decode(ctx context.Context, path string) (PCM, error) {
	rate, channels, err := d.probe(ctx, path)
	if err != nil {
		return PCM{}, err
	}

	cmd := exec.CommandContext(ctx, d.FFmpegBin,
		"-v", "error",
		"-i", path,
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-ar", strconv.Itoa(rate),
		"-ac", strconv.Itoa(channels),
		"pipe:1",
	)
	out, err := cmd.Output()
	if err != nil {
		return PCM{}, fmt.Errorf("ffmpeg decode %s: %w", path, err)
	}
	return PCM{Samples: bytesToFloat32(out), SampleRate: rate, Channels: channels}, nil
}

func (d *FFmpegDecoder) probe(ctx context.Context, path string) (rate, channels int, err error) {
	cmd := exec.CommandContext(ctx, d.FFprobeBin,
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=sample_rate,channels",
		"-of", "json",
		path,
	)
	out, err := cmd.Output()
	if err != nil {
		return 0, 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return parseProbe(out)
}

func parseProbe(out []byte) (rate, channels int, err error) {
	var p probeOutput
	if err := json.Unmarshal(out, &p); err != nil {
		return 0, 0, fmt.Errorf("parse ffprobe output: %w", err)
	}
	if len(p.Streams) == 0 {
		return 0, 0, fmt.Errorf("no audio stream")
	}
	rate, err = strconv.Atoi(p.Streams[0].SampleRate)
	if err != nil || rate <= 0 {
		return 0, 0, fmt.Errorf("bad sample rate %q", p.Streams[0].SampleRate)
	}
	channels = p.Streams[0].Channels
	if channels <= 0 {
		return 0, 0, fmt.Errorf("bad channel count %d", channels)
	}
	return rate, channels, nil
}

func bytesToFloat32(b []byte) []float32 {
	samples := make([]float32, len(b)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return samples
}

// float32ToBytes appends samples to dst as little-endian float32.
func float32ToBytes(dst []byte, samples []float32) []byte {
	for _, s := range samples {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(s))
	}
	return dst
}
