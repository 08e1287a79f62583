package main

import (
	"errors"
	"fmt"
	"sort"

	"audio-server/internal/audio"

	"github.com/spf13/cobra"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Load assets and playlists, probe the audio output and report problems",
	RunE:  runCheck,
}

func runCheck(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	assets, repo, res, err := loadLibrary(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "audio files: %d in %s\n", assets.Len(), cfg.AudioDir)
	fmt.Fprintf(w, "playlists:   %d loaded, %d rejected in %s\n", repo.Count(), len(res.Rejected), cfg.PlaylistDir)

	rejected := make([]string, 0, len(res.Rejected))
	for name := range res.Rejected {
		rejected = append(rejected, name)
	}
	sort.Strings(rejected)
	for _, name := range rejected {
		fmt.Fprintf(w, "  rejected %s: %v\n", name, res.Rejected[name])
	}

	out, err := audio.NewOutput(cfg.OutputPlayer, cfg.PlayerBin)
	if err != nil {
		return err
	}
	sink, err := out.Open(ctx)
	switch {
	case errors.Is(err, audio.ErrDeviceUnavailable):
		fmt.Fprintf(w, "audio output (%s): unavailable: %v\n", cfg.OutputPlayer, err)
	case err != nil:
		return err
	default:
		sink.Close()
		fmt.Fprintf(w, "audio output (%s): ok\n", cfg.OutputPlayer)
	}

	if len(rejected) > 0 {
		return fmt.Errorf("%d playlist(s) rejected", len(rejected))
	}
	return nil
}
