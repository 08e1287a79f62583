package audioserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"

	"audio-server/internal/audio"
	"audio-server/internal/playback"
	"audio-server/internal/playlist"

	"github.com/go-chi/chi/v5"
)

// Handler exposes the audio server HTTP endpoints using go-chi.
type Handler struct {
	svc *Service
	log *slog.Logger
}

// NewHandler returns a Handler that uses the given Service and Logger.
func NewHandler(svc *Service, log *slog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Routes mounts every endpoint on r.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.Index)
	r.Get("/ping", h.Ping)
	r.Get("/list", h.List)
	r.Get("/startnewlog", h.StartNewLog)
	r.Get("/play/random", h.PlayRandom)
	r.Get("/play/{name}", h.PlayAsset)
	r.Get("/tone/{freq}/{duration}/{amplitude}/{sample_rate}", h.PlayTone)
	r.Get("/save_tone/{freq}/{duration}/{amplitude}/{sample_rate}", h.SaveTone)
	r.Get("/playlist/create", h.CreatePlaylist)
	r.Get("/playlist/{name}", h.PlayPlaylist)
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, messageResponse{Message: msg})
}

// writeError maps service errors to a status code and JSON message.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *playlist.ValidationError
	status, msg := http.StatusInternalServerError, err.Error()
	switch {
	case errors.Is(err, playback.ErrDeviceUnavailable):
		status = http.StatusServiceUnavailable
		msg = "Could not open the audio output. Is there any audio output device available? - Error: " + err.Error()
	case errors.Is(err, playlist.ErrNoAssetsAvailable):
		status, msg = http.StatusNotFound, "No audio files found"
	case errors.Is(err, playlist.ErrPlaylistNotFound):
		status, msg = http.StatusNotFound, "Playlist file name not found"
	case errors.Is(err, playlist.ErrPlaylistEmpty):
		status, msg = http.StatusNotFound, "Playlist is empty"
	case errors.Is(err, audio.ErrAssetNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrInvalidParams), errors.Is(err, audio.ErrInvalidTone), errors.Is(err, playlist.ErrPauseTooLong):
		status = http.StatusBadRequest
	case errors.Is(err, playlist.ErrIDCollision):
		status = http.StatusConflict
	case errors.As(err, &verr):
		status = http.StatusUnprocessableEntity
	}

	attrs := []any{
		slog.String("path", r.URL.Path),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	}
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", attrs...)
	} else {
		h.log.Info("request rejected", attrs...)
	}
	writeMessage(w, status, msg)
}

// writeAborted reports a session that stopped part way through.
func (h *Handler) writeAborted(w http.ResponseWriter, r *http.Request, res Result, err error) {
	if errors.Is(err, playback.ErrDeviceUnavailable) || res.Summary.State != playback.StateAborted {
		h.writeError(w, r, err)
		return
	}
	h.log.Error("playback aborted",
		slog.String("path", r.URL.Path),
		slog.Int("played", res.Summary.Played),
		slog.Int("total", res.Summary.Total),
		slog.String("error", err.Error()))
	writeMessage(w, http.StatusInternalServerError,
		fmt.Sprintf("Playback aborted after %d of %d items: %v", res.Summary.Played, res.Summary.Total, err))
}

// pathParam returns the unescaped URL parameter key.
func pathParam(r *http.Request, key string) string {
	v := chi.URLParam(r, key)
	if u, err := url.PathUnescape(v); err == nil {
		return u
	}
	return v
}

func queryInt64(r *http.Request, key string, fallback int64) (int64, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", ErrInvalidParams, key)
	}
	return n, nil
}

func queryBool(r *http.Request, key string) (bool, error) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean", ErrInvalidParams, key)
	}
	return b, nil
}

func parseTone(r *http.Request) (audio.Tone, error) {
	freq, err1 := strconv.ParseFloat(chi.URLParam(r, "freq"), 64)
	dur, err2 := strconv.ParseInt(chi.URLParam(r, "duration"), 10, 64)
	amp, err3 := strconv.ParseFloat(chi.URLParam(r, "amplitude"), 64)
	rate, err4 := strconv.Atoi(chi.URLParam(r, "sample_rate"))
	if err := errors.Join(err1, err2, err3, err4); err != nil {
		return audio.Tone{}, fmt.Errorf("%w: tone parameters must be numeric", ErrInvalidParams)
	}
	return audio.Tone{Freq: freq, DurationMs: dur, AmplitudeDB: amp, SampleRate: rate}, nil
}

// Index handles GET / with a plain text overview of the routes.
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(indexText))
}

// Ping handles GET /ping.
func (h *Handler) Ping(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("pong"))
}

// List handles GET /list.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.List())
}

// StartNewLog handles GET /startnewlog.
func (h *Handler) StartNewLog(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.StartNewLog()
	if err != nil {
		h.log.Error("start new log failed", slog.String("error", err.Error()))
		writeMessage(w, http.StatusInternalServerError, "Error: Couldn't create new file: "+err.Error())
		return
	}
	writeMessage(w, http.StatusOK, "Started new log file: "+p)
}

// PlayAsset handles GET /play/{name}?time=.
func (h *Handler) PlayAsset(w http.ResponseWriter, r *http.Request) {
	name := pathParam(r, "name")
	res, err := h.svc.PlayAsset(r.Context(), name, r.URL.Query().Get("time"))
	if errors.Is(err, audio.ErrAssetNotFound) {
		h.log.Info("audio file not found", slog.String("name", name))
		writeMessage(w, http.StatusNotFound, fmt.Sprintf("Audio file %s not found", name))
		return
	}
	if err != nil {
		h.writeAborted(w, r, res, err)
		return
	}
	writeMessage(w, http.StatusOK, res.Message)
}

// PlayTone handles GET /tone/{freq}/{duration}/{amplitude}/{sample_rate}?time=.
func (h *Handler) PlayTone(w http.ResponseWriter, r *http.Request) {
	tone, err := parseTone(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.svc.PlayTone(r.Context(), tone, r.URL.Query().Get("time"))
	if err != nil {
		h.writeAborted(w, r, res, err)
		return
	}
	writeMessage(w, http.StatusOK, res.Message)
}

// SaveTone handles GET /save_tone/{freq}/{duration}/{amplitude}/{sample_rate}
// with a WAV download.
func (h *Handler) SaveTone(w http.ResponseWriter, r *http.Request) {
	tone, err := parseTone(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	wav, name, err := h.svc.ExportTone(tone)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Disposition", "attachment; filename="+name)
	w.Header().Set("Content-Length", strconv.Itoa(len(wav)))
	w.WriteHeader(http.StatusOK)
	w.Write(wav)
}

// PlayRandom handles GET /play/random?break_between_files&file_count&time.
func (h *Handler) PlayRandom(w http.ResponseWriter, r *http.Request) {
	breakMs, err := queryInt64(r, "break_between_files", 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	count, err := queryInt64(r, "file_count", int64(h.svc.Options().RandomFileCount))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	res, err := h.svc.PlayRandom(r.Context(), breakMs, int(count), r.URL.Query().Get("time"))
	if err != nil {
		h.writeAborted(w, r, res, err)
		return
	}
	writeMessage(w, http.StatusOK, res.Message)
}

// CreatePlaylist handles GET /playlist/create?break_between_files&file_count&no_download.
// The playlist text is returned as a download unless no_download is set.
func (h *Handler) CreatePlaylist(w http.ResponseWriter, r *http.Request) {
	breakMs, err := queryInt64(r, "break_between_files", 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	count, err := queryInt64(r, "file_count", 0)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	noDownload, err := queryBool(r, "no_download")
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	created, err := h.svc.CreatePlaylist(r.Context(), breakMs, int(count))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	name := created.Playlist.Name
	if noDownload {
		writeMessage(w, http.StatusOK, fmt.Sprintf(
			"Created new playlist file server-side: %s. To play this new playlist, visit: /playlist/%s",
			filepath.Join(h.svc.PlaylistDir(), name), url.PathEscape(name)))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+name)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(created.Body))
}

// PlayPlaylist handles GET /playlist/{name}?time=.
func (h *Handler) PlayPlaylist(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.PlayPlaylist(r.Context(), pathParam(r, "name"), r.URL.Query().Get("time"))
	if err != nil {
		h.writeAborted(w, r, res, err)
		return
	}
	writeMessage(w, http.StatusOK, res.Message)
}

const indexText = `
Available routes:
    - GET /ping                         --> pong

    - GET /list                         --> list all available audio files and playlists (JSON)

    - GET /startnewlog                  --> start a new global log file

    - GET /play/{audio_file_name}       --> play the audio file
            optional: time (client timestamp, written to the log)
            (eg. /play/1.wav)

    - GET /tone/{freq}/{duration}/{amplitude}/{sample_rate}
                                        --> play a pure sine tone
            (eg. /tone/1000/500/40/96000 plays 1000Hz for 500ms at 40dB)

    - GET /save_tone/{freq}/{duration}/{amplitude}/{sample_rate}
                                        --> download a .wav file of a pure sine tone
            (eg. /save_tone/1000/500/40/96000 downloads 1000Hz_500ms_40dB_@96000Hz.wav)

    - GET /play/random                  --> play random audio files
            optional: break_between_files (ms, default 0)
                      file_count (default 100)
                      time

    - GET /playlist/create              --> create a random playlist from the available audio files
            optional: break_between_files (ms, default 0)
                      file_count (default 10)
                      no_download (true to skip the file download)

    - GET /playlist/{playlist_file_name} --> play a playlist
            optional: time

    - GET /metrics                      --> Prometheus metrics
`
