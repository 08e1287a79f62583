package playback

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"audio-server/internal/audio"
	"audio-server/internal/playlist"
	"audio-server/internal/sessionlog"
)

type memRecorder struct {
	mu     sync.Mutex
	events []sessionlog.Event
}

func (r *memRecorder) Record(ev sessionlog.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *memRecorder) Events() []sessionlog.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sessionlog.Event(nil), r.events...)
}

// mockSink blocks for the source's duration instead of producing sound.
type mockSink struct {
	mu      sync.Mutex
	played  []time.Duration
	pauses  int
	resumes int
	failOn  int
}

func (s *mockSink) Play(ctx context.Context, src audio.Source) error {
	s.mu.Lock()
	s.played = append(s.played, src.Duration())
	n := len(s.played)
	s.mu.Unlock()
	if s.failOn > 0 && n == s.failOn {
		return fmt.Errorf("sink exploded")
	}
	select {
	case <-time.After(src.Duration()):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *mockSink) Pause()       { s.mu.Lock(); s.pauses++; s.mu.Unlock() }
func (s *mockSink) Resume()      { s.mu.Lock(); s.resumes++; s.mu.Unlock() }
func (s *mockSink) Close() error { return nil }

type mockOutput struct {
	sink  *mockSink
	err   error
	opens int
}

func (o *mockOutput) Open(context.Context) (audio.Sink, error) {
	o.opens++
	if o.err != nil {
		return nil, o.err
	}
	return o.sink, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testAssets returns mono 1 kHz assets of the given lengths in milliseconds.
func testAssets(lengths map[string]int) *audio.AssetStore {
	var assets []*audio.Asset
	for name, ms := range lengths {
		assets = append(assets, &audio.Asset{Name: name, Samples: make([]float32, ms), SampleRate: 1000, Channels: 1})
	}
	return audio.NewAssetStore(assets...)
}

func TestEngine_Run_timing_and_events(t *testing.T) {
	sink := &mockSink{}
	eng := NewEngine(&mockOutput{sink: sink}, time.Minute, quietLogger())
	rec := &memRecorder{}
	job := Job{
		Items:           []playlist.Item{playlist.AudioRef("x.wav"), playlist.Pause(500), playlist.AudioRef("y.wav")},
		Sources:         testAssets(map[string]int{"x.wav": 200, "y.wav": 300}),
		Session:         rec,
		Label:           "test",
		ClientTimestamp: "client-1",
	}

	start := time.Now()
	sum := eng.Run(context.Background(), job)
	elapsed := time.Since(start)

	if elapsed < time.Second {
		t.Errorf("expected at least 1s of blocking, got %v", elapsed)
	}
	if sum.State != StateCompleted || sum.Err != nil {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if sum.Played != 3 || sum.Total != 3 {
		t.Errorf("Played=%d Total=%d", sum.Played, sum.Total)
	}
	if sum.Elapsed < time.Second {
		t.Errorf("Summary.Elapsed = %v", sum.Elapsed)
	}

	events := rec.Events()
	want := []string{"x.wav", "pause_500ms", "y.wav"}
	if len(events) != len(want) {
		t.Fatalf("expected %d events, got %+v", len(want), events)
	}
	for i, ev := range events {
		if ev.Label != want[i] || ev.Status != sessionlog.StatusSuccess || ev.ClientTimestamp != "client-1" {
			t.Errorf("event %d = %+v", i, ev)
		}
		if i > 0 && ev.HostTimestamp <= events[i-1].HostTimestamp {
			t.Errorf("event %d timestamp not after previous", i)
		}
	}
	if sink.pauses != 1 || sink.resumes != 1 {
		t.Errorf("pause/resume = %d/%d", sink.pauses, sink.resumes)
	}
	if eng.State() != StateIdle {
		t.Errorf("engine should return to idle, got %v", eng.State())
	}
}

func TestEngine_Run_device_unavailable(t *testing.T) {
	sink := &mockSink{}
	out := &mockOutput{sink: sink, err: fmt.Errorf("%w: no soundcards", audio.ErrDeviceUnavailable)}
	eng := NewEngine(out, time.Minute, quietLogger())
	rec := &memRecorder{}

	sum := eng.Run(context.Background(), Job{
		Items:   []playlist.Item{playlist.AudioRef("x.wav"), playlist.Pause(10), playlist.AudioRef("y.wav")},
		Sources: testAssets(map[string]int{"x.wav": 10, "y.wav": 10}),
		Session: rec,
		Label:   "pl.txt",
	})

	if sum.State != StateAborted || !errors.Is(sum.Err, ErrDeviceUnavailable) {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if sum.Played != 0 || len(sink.played) != 0 || sink.pauses != 0 {
		t.Error("no item should be attempted")
	}
	events := rec.Events()
	if len(events) != 1 || events[0].Status != sessionlog.StatusError || events[0].Label != "pl.txt" {
		t.Errorf("expected one error event, got %+v", events)
	}
}

func TestEngine_Run_other_open_error_is_device_unavailable(t *testing.T) {
	eng := NewEngine(&mockOutput{err: errors.New("busy")}, 0, quietLogger())
	sum := eng.Run(context.Background(), Job{Items: []playlist.Item{playlist.Pause(1)}})
	if !errors.Is(sum.Err, ErrDeviceUnavailable) {
		t.Errorf("expected ErrDeviceUnavailable, got %v", sum.Err)
	}
}

func TestEngine_Run_item_failure_aborts(t *testing.T) {
	sink := &mockSink{failOn: 2}
	eng := NewEngine(&mockOutput{sink: sink}, time.Minute, quietLogger())
	rec := &memRecorder{}

	sum := eng.Run(context.Background(), Job{
		Items:   []playlist.Item{playlist.AudioRef("x.wav"), playlist.AudioRef("y.wav"), playlist.AudioRef("x.wav")},
		Sources: testAssets(map[string]int{"x.wav": 10, "y.wav": 10}),
		Session: rec,
	})

	if sum.State != StateAborted || sum.Played != 1 || sum.Err == nil {
		t.Fatalf("unexpected summary %+v", sum)
	}
	events := rec.Events()
	if len(events) != 2 || events[0].Status != sessionlog.StatusSuccess || events[1].Status != sessionlog.StatusError || events[1].Label != "y.wav" {
		t.Errorf("unexpected events %+v", events)
	}
	if len(sink.played) != 2 {
		t.Errorf("remaining items should not be attempted, played %d", len(sink.played))
	}
}

func TestEngine_Run_unknown_asset(t *testing.T) {
	eng := NewEngine(&mockOutput{sink: &mockSink{}}, time.Minute, quietLogger())
	rec := &memRecorder{}
	sum := eng.Run(context.Background(), Job{
		Items:   []playlist.Item{playlist.AudioRef("ghost.wav")},
		Sources: testAssets(nil),
		Session: rec,
	})
	if !errors.Is(sum.Err, audio.ErrAssetNotFound) {
		t.Errorf("expected ErrAssetNotFound, got %v", sum.Err)
	}
	if ev := rec.Events(); len(ev) != 1 || ev[0].Status != sessionlog.StatusError {
		t.Errorf("unexpected events %+v", ev)
	}
}

func TestEngine_Run_clamps_pause(t *testing.T) {
	eng := NewEngine(&mockOutput{sink: &mockSink{}}, 20*time.Millisecond, quietLogger())
	rec := &memRecorder{}

	start := time.Now()
	sum := eng.Run(context.Background(), Job{Items: []playlist.Item{playlist.Pause(60000)}, Session: rec})
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Fatalf("pause was not clamped, took %v", elapsed)
	}
	if sum.State != StateCompleted {
		t.Errorf("unexpected summary %+v", sum)
	}
	if ev := rec.Events(); len(ev) != 1 || ev[0].Label != "pause_60000ms" {
		t.Errorf("pause event should keep the requested label, got %+v", ev)
	}
}

func TestEngine_Run_clamps_huge_pause(t *testing.T) {
	eng := NewEngine(&mockOutput{sink: &mockSink{}}, 30*time.Millisecond, quietLogger())
	rec := &memRecorder{}

	start := time.Now()
	sum := eng.Run(context.Background(), Job{Items: []playlist.Item{playlist.Pause(10000000000000)}, Session: rec})
	elapsed := time.Since(start)

	if elapsed < 25*time.Millisecond {
		t.Errorf("pause returned after %v, expected the 30ms cap", elapsed)
	}
	if elapsed > 5*time.Second {
		t.Fatalf("pause was not clamped, took %v", elapsed)
	}
	if sum.State != StateCompleted || sum.Played != 1 {
		t.Errorf("unexpected summary %+v", sum)
	}
}

func TestEngine_Run_item_client_timestamp(t *testing.T) {
	sink := &mockSink{failOn: 2}
	eng := NewEngine(&mockOutput{sink: sink}, time.Minute, quietLogger())
	rec := &memRecorder{}

	eng.Run(context.Background(), Job{
		Items:               []playlist.Item{playlist.AudioRef("x.wav"), playlist.AudioRef("y.wav")},
		Sources:             testAssets(map[string]int{"x.wav": 10, "y.wav": 10}),
		Session:             rec,
		ClientTimestamp:     "client-7",
		ItemClientTimestamp: sessionlog.NoClientTimestamp,
	})

	events := rec.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %+v", events)
	}
	if events[0].ClientTimestamp != sessionlog.NoClientTimestamp {
		t.Errorf("success row client time = %q", events[0].ClientTimestamp)
	}
	if events[1].Status != sessionlog.StatusError || events[1].ClientTimestamp != "client-7" {
		t.Errorf("error row should keep the client time, got %+v", events[1])
	}
}
