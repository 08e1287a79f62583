package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeDecoder struct {
	mu    sync.Mutex
	calls []string
}

func (d *fakeDecoder) Decode(_ context.Context, path string) (PCM, error) {
	d.mu.Lock()
	d.calls = append(d.calls, filepath.Base(path))
	d.mu.Unlock()
	if strings.Contains(path, "broken") {
		return PCM{}, fmt.Errorf("corrupt file")
	}
	// 100ms of stereo audio at 1 kHz.
	return PCM{Samples: make([]float32, 200), SampleRate: 1000, Channels: 2}, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadAssets(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"a.wav", "b.MP3", "c.flac", "d.ogg", "notes.txt", "broken.wav"} {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.wav"), 0o755); err != nil {
		t.Fatal(err)
	}

	dec := &fakeDecoder{}
	store, err := LoadAssets(context.Background(), dir, dec, 2, quietLogger())
	if err != nil {
		t.Fatalf("LoadAssets: %v", err)
	}
	if store.Len() != 4 {
		t.Fatalf("expected 4 assets, got %d (%v)", store.Len(), store.Names())
	}
	if len(dec.calls) != 5 {
		t.Errorf("expected 5 decode calls, got %v", dec.calls)
	}

	names := store.Names()
	want := []string{"a.wav", "b.MP3", "c.flac", "d.ogg"}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, names[i], want[i])
		}
	}

	t.Run("lookup", func(t *testing.T) {
		a, ok := store.Lookup("a.wav")
		if !ok || a.SampleRate != 1000 || a.Channels != 2 {
			t.Fatalf("Lookup: ok=%v asset=%+v", ok, a)
		}
		if !store.Has("c.flac") || store.Has("notes.txt") || store.Has("broken.wav") {
			t.Error("Has returned wrong result")
		}
	})

	t.Run("duration", func(t *testing.T) {
		d, ok := store.Duration("a.wav")
		if !ok || d != 100*time.Millisecond {
			t.Errorf("Duration = %v ok=%v", d, ok)
		}
		if _, ok := store.Duration("nope"); ok {
			t.Error("Duration of unknown asset should be !ok")
		}
	})

	t.Run("sources_are_independent", func(t *testing.T) {
		s1, _ := store.Source("a.wav")
		s2, _ := store.Source("a.wav")
		buf := make([]float32, 500)
		n1, _ := s1.Read(buf)
		n2, _ := s2.Read(buf)
		if n1 != 200 || n2 != 200 {
			t.Errorf("each source should start at the beginning: %d %d", n1, n2)
		}
		if _, err := s1.Read(buf); !errors.Is(err, io.EOF) {
			t.Errorf("expected io.EOF, got %v", err)
		}
	})
}

func TestLoadAssets_missing_folder(t *testing.T) {
	_, err := LoadAssets(context.Background(), filepath.Join(t.TempDir(), "absent"), &fakeDecoder{}, 1, quietLogger())
	if !errors.Is(err, ErrAssetFolderMissing) {
		t.Errorf("expected ErrAssetFolderMissing, got %v", err)
	}
}

func TestLoadAssets_empty_folder(t *testing.T) {
	store, err := LoadAssets(context.Background(), t.TempDir(), &fakeDecoder{}, 0, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if store.Len() != 0 || len(store.Names()) != 0 {
		t.Errorf("expected empty store, got %v", store.Names())
	}
}

func TestIsAudioFile(t *testing.T) {
	for name, want := range map[string]bool{
		"a.wav": true, "b.MP3": true, "c.Flac": true, "d.ogg": true,
		"e.txt": false, "noext": false, "wav": false,
	} {
		if got := IsAudioFile(name); got != want {
			t.Errorf("IsAudioFile(%q) = %v", name, got)
		}
	}
}

func TestParseProbe(t *testing.T) {
	rate, ch, err := parseProbe([]byte(`{"streams":[{"sample_rate":"44100","channels":2}]}`))
	if err != nil || rate != 44100 || ch != 2 {
		t.Errorf("parseProbe: rate=%d ch=%d err=%v", rate, ch, err)
	}
	for _, bad := range []string{`{"streams":[]}`, `not json`, `{"streams":[{"sample_rate":"x","channels":2}]}`, `{"streams":[{"sample_rate":"8000","channels":0}]}`} {
		if _, _, err := parseProbe([]byte(bad)); err == nil {
			t.Errorf("parseProbe(%s) should fail", bad)
		}
	}
}

func TestFloat32Bytes_round_trip(t *testing.T) {
	in := []float32{0, 1, -1, 0.5, 100, -3.25}
	out := bytesToFloat32(float32ToBytes(nil, in))
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("sample %d: %v != %v", i, out[i], in[i])
		}
	}
}
