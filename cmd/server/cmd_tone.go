package main

import (
	"fmt"
	"os"
	"strconv"

	"audio-server/internal/audio"

	"github.com/spf13/cobra"
)

var toneCmd = &cobra.Command{
	Use:   "tone FREQ DURATION_MS AMPLITUDE_DB SAMPLE_RATE",
	Short: "Write a sine tone to a WAV file",
	Args:  cobra.ExactArgs(4),
	RunE:  runTone,
}

func init() {
	toneCmd.Flags().StringP("output", "o", "", "output file (default <freq>Hz_<dur>ms_<amp>dB_@<rate>Hz.wav)")
}

func runTone(cmd *cobra.Command, args []string) error {
	freq, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return fmt.Errorf("frequency: %w", err)
	}
	dur, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("duration: %w", err)
	}
	amp, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		return fmt.Errorf("amplitude: %w", err)
	}
	rate, err := strconv.Atoi(args[3])
	if err != nil {
		return fmt.Errorf("sample rate: %w", err)
	}

	tone := audio.Tone{Freq: freq, DurationMs: dur, AmplitudeDB: amp, SampleRate: rate}
	if err := tone.Validate(cfg.MaxToneDuration); err != nil {
		return err
	}
	path, _ := cmd.Flags().GetString("output")
	if path == "" {
		path = tone.FileName()
	}
	if err := os.WriteFile(path, tone.WAV(), 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d samples)\n", path, tone.NumSamples())
	return nil
}
