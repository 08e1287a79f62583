package audioserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"audio-server/internal/audio"
	"audio-server/internal/platform/metrics"
	"audio-server/internal/playback"
	"audio-server/internal/playlist"
	"audio-server/internal/sessionlog"
)

// ErrInvalidParams is returned for out of range request parameters.
var ErrInvalidParams = errors.New("invalid parameters")

// Options bounds what callers may request.
type Options struct {
	// MaxPause caps break_between_files and pauses in stored playlists.
	MaxPause        time.Duration
	MaxToneDuration time.Duration
	MaxFileCount    int
	// RandomFileCount is the file_count used by PlayRandom when none is given.
	RandomFileCount int
	// PlaylistFileCount replaces a zero file_count in CreatePlaylist.
	PlaylistFileCount int
	// PlaylistDir is reported back to clients after CreatePlaylist.
	PlaylistDir string
}

// Player runs playback jobs one at a time. *playback.Worker implements it.
type Player interface {
	Submit(ctx context.Context, job playback.Job) (playback.Summary, error)
}

// Result is what a playback operation reports back to the caller.
type Result struct {
	Message string
	Summary playback.Summary
}

// Listing names everything that can be played.
type Listing struct {
	AudioFiles []string `json:"audio_files"`
	Playlists  []string `json:"playlists"`
}

// Service is the application state shared by all handlers: the asset store,
// the playlist repository, the playback worker and the session logs.
type Service struct {
	assets    *audio.AssetStore
	playlists *playlist.Repository
	player    Player
	logs      *sessionlog.Logger
	opts      Options
	log       *slog.Logger
	metrics   *metrics.Metrics
}

// NewService returns a Service. m may be nil to disable metric recording.
func NewService(assets *audio.AssetStore, playlists *playlist.Repository, player Player, logs *sessionlog.Logger, opts Options, log *slog.Logger, m *metrics.Metrics) *Service {
	return &Service{
		assets:    assets,
		playlists: playlists,
		player:    player,
		logs:      logs,
		opts:      opts,
		log:       log,
		metrics:   m,
	}
}

// Options returns the limits the service enforces.
func (s *Service) Options() Options { return s.opts }

// PlaylistDir returns the folder playlists are stored in.
func (s *Service) PlaylistDir() string { return s.opts.PlaylistDir }

// PlayAsset plays one asset and logs it to the global stream.
func (s *Service) PlayAsset(ctx context.Context, name, clientTS string) (Result, error) {
	if !s.assets.Has(name) {
		return Result{}, fmt.Errorf("%w: %s", audio.ErrAssetNotFound, name)
	}
	sum, err := s.play(ctx, sessionlog.KindSingle, playback.Job{
		Items:           []playlist.Item{playlist.AudioRef(name)},
		Sources:         s.assets,
		Session:         s.logs.Global(),
		Label:           name,
		ClientTimestamp: clientTS,
	})
	if err != nil {
		return Result{Summary: sum}, err
	}
	return Result{
		Message: fmt.Sprintf("At %d played %s", sum.StartedAt.UnixNano(), name),
		Summary: sum,
	}, nil
}

// toneSources resolves the single label of a tone job to a fresh tone source.
type toneSources struct {
	label string
	tone  audio.Tone
}

func (t toneSources) Source(name string) (audio.Source, bool) {
	if name != t.label {
		return nil, false
	}
	return t.tone.Source(), true
}

// PlayTone synthesizes and plays a sine tone, logging to the global stream.
func (s *Service) PlayTone(ctx context.Context, tone audio.Tone, clientTS string) (Result, error) {
	if err := tone.Validate(s.opts.MaxToneDuration); err != nil {
		return Result{}, err
	}
	label := tone.Label()
	sum, err := s.play(ctx, sessionlog.KindTone, playback.Job{
		Items:           []playlist.Item{playlist.AudioRef(label)},
		Sources:         toneSources{label: label, tone: tone},
		Session:         s.logs.Global(),
		Label:           label,
		ClientTimestamp: clientTS,
	})
	if err != nil {
		return Result{Summary: sum}, err
	}
	return Result{
		Message: fmt.Sprintf("At %d played %s", sum.StartedAt.UnixNano(), label),
		Summary: sum,
	}, nil
}

// ExportTone renders a tone as WAV bytes and returns them with the download name.
func (s *Service) ExportTone(tone audio.Tone) ([]byte, string, error) {
	if err := tone.Validate(s.opts.MaxToneDuration); err != nil {
		return nil, "", err
	}
	return tone.WAV(), tone.FileName(), nil
}

// PlayRandom plays fileCount randomly chosen assets with breakMs between
// them, in a session log of its own.
func (s *Service) PlayRandom(ctx context.Context, breakMs int64, fileCount int, clientTS string) (Result, error) {
	received := time.Now()
	if err := s.checkQueueParams(breakMs, fileCount); err != nil {
		return Result{}, err
	}
	items, err := playlist.Generate(s.assets, fileCount, breakMs, nil)
	if err != nil {
		return Result{}, err
	}

	session := s.startSession(sessionlog.KindRandom, "Received /play/random", received, clientTS)
	sum, err := s.play(ctx, sessionlog.KindRandom, playback.Job{
		Items:               items,
		Sources:             s.assets,
		Session:             session,
		Label:               "random",
		ClientTimestamp:     clientTS,
		ItemClientTimestamp: sessionlog.NoClientTimestamp,
	})
	if err != nil {
		return Result{Summary: sum}, err
	}
	return Result{
		Message: fmt.Sprintf("At %d started %d random audio files. Playback took %s seconds. Total time since request: %s seconds.",
			sum.StartedAt.UnixNano(), fileCount, seconds(sum.Elapsed), seconds(time.Since(received))),
		Summary: sum,
	}, nil
}

// PlayPlaylist plays a stored playlist in a session log of its own.
func (s *Service) PlayPlaylist(ctx context.Context, name, clientTS string) (Result, error) {
	received := time.Now()
	if s.assets.Len() == 0 {
		return Result{}, playlist.ErrNoAssetsAvailable
	}
	pl, err := s.playlists.Get(name)
	if err != nil {
		return Result{}, err
	}

	session := s.startSession(sessionlog.KindPlaylist, "Received /playlist/"+name, received, clientTS)
	sum, err := s.play(ctx, sessionlog.KindPlaylist, playback.Job{
		Items:               pl.Items,
		Sources:             s.assets,
		Session:             session,
		Label:               name,
		ClientTimestamp:     clientTS,
		ItemClientTimestamp: sessionlog.NoClientTimestamp,
	})
	if err != nil {
		return Result{Summary: sum}, err
	}
	return Result{
		Message: fmt.Sprintf("At %d started playlist %s (%d audio files). Playback took %s seconds. Total time since request: %s seconds.",
			sum.StartedAt.UnixNano(), name, pl.AudioCount(), seconds(sum.Elapsed), seconds(time.Since(received))),
		Summary: sum,
	}, nil
}

// CreatePlaylist generates a random playlist and stores it under its
// content-derived name. A zero fileCount uses Options.PlaylistFileCount.
func (s *Service) CreatePlaylist(ctx context.Context, breakMs int64, fileCount int) (playlist.Created, error) {
	if fileCount == 0 {
		fileCount = s.opts.PlaylistFileCount
	}
	if err := s.checkQueueParams(breakMs, fileCount); err != nil {
		return playlist.Created{}, err
	}
	if s.assets.Len() == 0 {
		return playlist.Created{}, playlist.ErrNoAssetsAvailable
	}
	items, err := playlist.Generate(s.assets, fileCount, breakMs, nil)
	if err != nil {
		return playlist.Created{}, err
	}
	created, err := s.playlists.Create(ctx, items)
	if err != nil {
		return playlist.Created{}, err
	}
	s.log.Info("playlist created",
		slog.String("name", created.Playlist.Name),
		slog.String("id", created.Playlist.ID),
		slog.Int("items", len(created.Playlist.Items)),
		slog.Bool("reused", created.Reused))
	s.refreshGauges()
	return created, nil
}

// List returns the sorted asset and playlist names.
func (s *Service) List() Listing {
	return Listing{
		AudioFiles: s.assets.Names(),
		Playlists:  s.playlists.Names(),
	}
}

// StartNewLog rotates the global session log.
func (s *Service) StartNewLog() (string, error) {
	return s.logs.StartNewLog()
}

// Reload re-reads the playlist folder and swaps in the result.
func (s *Service) Reload(ctx context.Context) (playlist.ReloadResult, error) {
	res, err := s.playlists.Reload(ctx)
	if err != nil {
		return res, err
	}
	if s.metrics != nil {
		s.metrics.AddPlaylistRejections(len(res.Rejected))
	}
	s.refreshGauges()
	return res, nil
}

// RefreshGauges updates the asset and playlist gauges; used before scrapes.
func (s *Service) RefreshGauges() { s.refreshGauges() }

func (s *Service) refreshGauges() {
	if s.metrics == nil {
		return
	}
	s.metrics.SetAssetsLoaded(s.assets.Len())
	s.metrics.SetPlaylistsLoaded(s.playlists.Count())
}

func (s *Service) checkQueueParams(breakMs int64, fileCount int) error {
	if breakMs < 0 {
		return fmt.Errorf("%w: break_between_files must not be negative", ErrInvalidParams)
	}
	if fileCount < 0 || (s.opts.MaxFileCount > 0 && fileCount > s.opts.MaxFileCount) {
		return fmt.Errorf("%w: file_count must be in 0..%d", ErrInvalidParams, s.opts.MaxFileCount)
	}
	if breakMs > playlist.MaxPauseMillis || (s.opts.MaxPause > 0 && playlist.Pause(breakMs).PauseExceeds(s.opts.MaxPause)) {
		return fmt.Errorf("%w: %dms exceeds %s", playlist.ErrPauseTooLong, breakMs, s.opts.MaxPause)
	}
	return nil
}

// startSession opens a per-session log and writes the request row. When the
// file cannot be created the global stream is used instead.
func (s *Service) startSession(kind sessionlog.Kind, request string, received time.Time, clientTS string) *sessionlog.Session {
	session, err := s.logs.StartSession(kind)
	if err != nil {
		s.log.Error("session log unavailable, using global log",
			slog.String("kind", string(kind)),
			slog.String("error", err.Error()))
		if s.metrics != nil {
			s.metrics.IncLogWriteFailures()
		}
		session = s.logs.Global()
	}
	session.Record(sessionlog.Event{
		HostTimestamp:   received.UnixNano(),
		Label:           request,
		Status:          sessionlog.StatusSuccess,
		ClientTimestamp: clientTS,
	})
	return session
}

// play submits job and turns an aborted summary into an error.
func (s *Service) play(ctx context.Context, kind sessionlog.Kind, job playback.Job) (playback.Summary, error) {
	sum, err := s.player.Submit(ctx, job)
	if err != nil {
		return sum, err
	}
	if s.metrics != nil {
		if errors.Is(sum.Err, playback.ErrDeviceUnavailable) {
			s.metrics.IncDeviceUnavailable()
		}
		s.metrics.ObserveSession(string(kind), sum.State.String(), sum.Played, sum.Elapsed)
	}
	if sum.State == playback.StateAborted {
		return sum, sum.Err
	}
	s.log.Info("playback finished",
		slog.String("kind", string(kind)),
		slog.String("job", job.Label),
		slog.Int("played", sum.Played),
		slog.Int64("elapsed_ms", sum.Elapsed.Milliseconds()))
	return sum, nil
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}
