package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"audio-server/internal/audio"
	"audio-server/internal/audioserver"
	"audio-server/internal/platform/config"
	"audio-server/internal/platform/logger"
	"audio-server/internal/platform/metrics"
	"audio-server/internal/playback"
	"audio-server/internal/playlist"
	"audio-server/internal/sessionlog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var (
	cfg config.Config
	log *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:               "audio-server",
	Short:             "Play audio on this host when an HTTP request arrives",
	Long:              "audio-server plays audio files, sine tones, random queues and playlists on the host's audio output and logs when each item started.",
	PersistentPreRunE: loadConfig,
	RunE:              runServe,
	SilenceUsage:      true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server (default command)",
	RunE:  runServe,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("env-file", ".env", "environment file to load")
	pf.String("audio-dir", "", "folder with audio files (AUDIO_DIR)")
	pf.String("playlist-dir", "", "folder with playlist files (PLAYLIST_DIR)")
	pf.String("log-dir", "", "folder for session logs (LOG_DIR)")
	pf.String("log-level", "", "debug, info, warn or error (LOG_LEVEL)")
	pf.String("log-format", "", "json or text (LOG_FORMAT)")
	pf.String("player", "", "audio output: ffplay, aplay or null (OUTPUT_PLAYER)")

	for _, c := range []*cobra.Command{rootCmd, serveCmd} {
		c.Flags().String("port", "", "listen port (PORT)")
		c.Flags().String("bind", "", "listen address (BIND)")
	}

	rootCmd.AddCommand(serveCmd, toneCmd, checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads .env and the environment, then applies flags that were set.
func loadConfig(cmd *cobra.Command, _ []string) error {
	envFile, _ := cmd.Flags().GetString("env-file")
	_ = config.Load(envFile)
	cfg = config.FromEnv()

	overrides := map[string]*string{
		"audio-dir":    &cfg.AudioDir,
		"playlist-dir": &cfg.PlaylistDir,
		"log-dir":      &cfg.LogDir,
		"log-level":    &cfg.LogLevel,
		"log-format":   &cfg.LogFormat,
		"player":       &cfg.OutputPlayer,
		"port":         &cfg.Port,
		"bind":         &cfg.Bind,
	}
	for name, dst := range overrides {
		f := cmd.Flags().Lookup(name)
		if f != nil && f.Changed {
			*dst = f.Value.String()
		}
	}

	log = logger.New(cfg.LogLevel, cfg.LogFormat)
	return nil
}

// loadLibrary decodes the assets and loads the playlists that reference them.
func loadLibrary(ctx context.Context) (*audio.AssetStore, *playlist.Repository, playlist.ReloadResult, error) {
	dec := audio.NewFFmpegDecoder(cfg.FFmpegBin, cfg.FFprobeBin)
	assets, err := audio.LoadAssets(ctx, cfg.AudioDir, dec, cfg.DecodeWorkers, log)
	if err != nil {
		return nil, nil, playlist.ReloadResult{}, fmt.Errorf("load assets: %w", err)
	}
	repo := playlist.NewRepository(playlist.NewDirStore(cfg.PlaylistDir), assets, cfg.MaxPause, log)
	res, err := repo.Reload(ctx)
	if err != nil {
		return nil, nil, res, fmt.Errorf("load playlists: %w", err)
	}
	return assets, repo, res, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	assets, repo, _, err := loadLibrary(ctx)
	if err != nil {
		return err
	}

	met := metrics.New()
	logs, err := sessionlog.New(cfg.LogDir, log)
	if err != nil {
		return err
	}
	logs.OnWriteError = func(error) { met.IncLogWriteFailures() }

	out, err := audio.NewOutput(cfg.OutputPlayer, cfg.PlayerBin)
	if err != nil {
		return err
	}
	worker := playback.NewWorker(playback.NewEngine(out, cfg.MaxPause, log), log)
	workerDone := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(workerDone)
	}()

	svc := audioserver.NewService(assets, repo, worker, logs, audioserver.Options{
		MaxPause:          cfg.MaxPause,
		MaxToneDuration:   cfg.MaxToneDuration,
		MaxFileCount:      cfg.MaxFileCount,
		RandomFileCount:   cfg.RandomFileCount,
		PlaylistFileCount: cfg.PlaylistFileCount,
		PlaylistDir:       cfg.PlaylistDir,
	}, log, met)
	svc.RefreshGauges()
	h := audioserver.NewHandler(svc, log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(logger.RequestLogger(log))
	r.Use(metrics.RequestMiddleware(met))
	r.Get("/metrics", met.Handler(svc.RefreshGauges).ServeHTTP)
	h.Routes(r)

	srv := &http.Server{Addr: cfg.Addr(), Handler: r}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("server starting",
		"addr", cfg.Addr(),
		"audio_files", assets.Len(),
		"playlists", repo.Count(),
		"player", cfg.OutputPlayer,
		"log_dir", cfg.LogDir,
		"log_level", cfg.LogLevel,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	for sig := range sigCh {
		if sig != syscall.SIGHUP {
			break
		}
		log.Info("SIGHUP received, reloading playlists")
		if _, err := svc.Reload(ctx); err != nil {
			log.Error("playlist reload failed", "error", err)
		}
	}
	signal.Stop(sigCh)

	log.Info("shutdown signal received, draining connections")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	cancel()
	select {
	case <-workerDone:
	case <-shutdownCtx.Done():
		log.Warn("playback still running at exit")
	}

	log.Info("server stopped")
	return nil
}
