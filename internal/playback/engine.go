package playback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"audio-server/internal/audio"
	"audio-server/internal/playlist"
	"audio-server/internal/sessionlog"
)

// ErrDeviceUnavailable is audio.ErrDeviceUnavailable, re-exported for callers
// that only deal with the engine.
var ErrDeviceUnavailable = audio.ErrDeviceUnavailable

// deviceLabel is the event label used when the device probe fails and the
// job carries no label of its own.
const deviceLabel = "audio_output"

// State is the engine's position in a session.
type State int32

const (
	StateIdle State = iota
	StateDeviceOpening
	StateDraining
	StatePaused
	StateCompleted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDeviceOpening:
		return "device_opening"
	case StateDraining:
		return "draining"
	case StatePaused:
		return "paused"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// SourceResolver returns a fresh playable source for an asset name.
type SourceResolver interface {
	Source(name string) (audio.Source, bool)
}

// Recorder receives one event per played item.
type Recorder interface {
	Record(ev sessionlog.Event)
}

// Job is one session's worth of work for the engine.
type Job struct {
	Items   []playlist.Item
	Sources SourceResolver
	Session Recorder
	// Label identifies the job in logs and in the device failure event.
	Label           string
	ClientTimestamp string
	// ItemClientTimestamp, when set, replaces ClientTimestamp on success
	// rows. Error rows always carry ClientTimestamp.
	ItemClientTimestamp string
}

// Summary reports how a session ended.
type Summary struct {
	State     State
	StartedAt time.Time
	Elapsed   time.Duration
	// Played counts items (audio and pauses) that finished.
	Played int
	Total  int
	// Err is set when State is StateAborted.
	Err error
}

// Engine drains item sequences onto the audio output in real time. It is
// not safe for concurrent use; Worker serializes access to it.
type Engine struct {
	output   audio.Output
	maxPause time.Duration
	log      *slog.Logger
	now      func() time.Time
	state    atomic.Int32
}

// NewEngine returns an engine playing through output. Pauses longer than
// maxPause are clamped; maxPause <= 0 disables the clamp.
func NewEngine(output audio.Output, maxPause time.Duration, log *slog.Logger) *Engine {
	return &Engine{output: output, maxPause: maxPause, log: log, now: time.Now}
}

// State returns the current state.
func (e *Engine) State() State { return State(e.state.Load()) }

func (e *Engine) setState(s State) { e.state.Store(int32(s)) }

// Run plays job.Items in order, blocking until the last item has finished or
// the session aborts. Every finished item produces one success event; a
// failure produces one error event and stops the session.
func (e *Engine) Run(ctx context.Context, job Job) Summary {
	sum := Summary{StartedAt: e.now(), Total: len(job.Items)}
	defer func() {
		sum.Elapsed = e.now().Sub(sum.StartedAt)
		e.setState(StateIdle)
	}()

	e.setState(StateDeviceOpening)
	sink, err := e.output.Open(ctx)
	if err != nil {
		if !errors.Is(err, ErrDeviceUnavailable) {
			err = fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
		}
		label := job.Label
		if label == "" {
			label = deviceLabel
		}
		e.record(job, e.now(), label, sessionlog.StatusError)
		e.log.Warn("audio output unavailable",
			slog.String("job", job.Label),
			slog.String("error", err.Error()))
		e.setState(StateAborted)
		sum.State = StateAborted
		sum.Err = err
		return sum
	}
	defer sink.Close()

	for i, it := range job.Items {
		start := e.now()
		if err := e.playItem(ctx, sink, job, it); err != nil {
			e.record(job, start, it.Label(), sessionlog.StatusError)
			e.log.Error("playback aborted",
				slog.String("job", job.Label),
				slog.String("item", it.Label()),
				slog.Int("index", i),
				slog.Int("of", len(job.Items)),
				slog.String("error", err.Error()))
			e.setState(StateAborted)
			sum.State = StateAborted
			sum.Err = fmt.Errorf("item %d (%s): %w", i, it.Label(), err)
			return sum
		}
		e.record(job, start, it.Label(), sessionlog.StatusSuccess)
		sum.Played++
		e.log.Debug("item played",
			slog.String("job", job.Label),
			slog.String("item", it.Label()),
			slog.Int("index", i),
			slog.Int("of", len(job.Items)),
			slog.Int64("duration_ms", e.now().Sub(start).Milliseconds()))
	}

	e.setState(StateCompleted)
	sum.State = StateCompleted
	return sum
}

func (e *Engine) playItem(ctx context.Context, sink audio.Sink, job Job, it playlist.Item) error {
	if it.IsPause() {
		e.setState(StatePaused)
		d := it.PauseDuration()
		if e.maxPause > 0 && it.PauseExceeds(e.maxPause) {
			e.log.Warn("pause clamped",
				slog.String("item", it.Label()),
				slog.Duration("max_pause", e.maxPause))
			d = e.maxPause
		}
		sink.Pause()
		err := sleep(ctx, d)
		sink.Resume()
		return err
	}

	e.setState(StateDraining)
	if job.Sources == nil {
		return fmt.Errorf("%w: %s", audio.ErrAssetNotFound, it.Name)
	}
	src, ok := job.Sources.Source(it.Name)
	if !ok {
		return fmt.Errorf("%w: %s", audio.ErrAssetNotFound, it.Name)
	}
	return sink.Play(ctx, src)
}

func (e *Engine) record(job Job, at time.Time, label string, status sessionlog.Status) {
	if job.Session == nil {
		return
	}
	clientTS := job.ClientTimestamp
	if status == sessionlog.StatusSuccess && job.ItemClientTimestamp != "" {
		clientTS = job.ItemClientTimestamp
	}
	job.Session.Record(sessionlog.Event{
		HostTimestamp:   at.UnixNano(),
		Label:           label,
		Status:          status,
		ClientTimestamp: clientTS,
	})
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
