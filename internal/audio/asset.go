package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

var (
	// ErrAssetFolderMissing is returned by LoadAssets when the folder does not exist.
	ErrAssetFolderMissing = errors.New("audio folder not found")

	// ErrAssetNotFound is returned when no asset is registered under a name.
	ErrAssetNotFound = errors.New("audio file not found")
)

var audioExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".flac": true,
	".ogg":  true,
}

// IsAudioFile reports whether name has a recognized audio extension.
func IsAudioFile(name string) bool {
	return audioExtensions[strings.ToLower(filepath.Ext(name))]
}

// Asset is a decoded audio file held in memory.
type Asset struct {
	Name       string
	Samples    []float32
	SampleRate int
	Channels   int
}

// Duration returns the play time of the asset.
func (a *Asset) Duration() time.Duration {
	return samplesDuration(len(a.Samples), a.SampleRate, a.Channels)
}

// Source returns a fresh Source over the asset's samples.
func (a *Asset) Source() Source {
	return newBufferSource(a.Samples, a.SampleRate, a.Channels)
}

// AssetStore maps asset names to decoded assets. It is immutable once built,
// so reads need no locking.
type AssetStore struct {
	assets map[string]*Asset
	names  []string
}

// NewAssetStore builds a store from already decoded assets.
func NewAssetStore(assets ...*Asset) *AssetStore {
	s := &AssetStore{assets: make(map[string]*Asset, len(assets))}
	for _, a := range assets {
		s.assets[a.Name] = a
	}
	s.names = make([]string, 0, len(s.assets))
	for name := range s.assets {
		s.names = append(s.names, name)
	}
	sort.Strings(s.names)
	return s
}

// LoadAssets decodes every recognized audio file in dir. A missing folder is
// fatal; a file that fails to decode is logged and skipped. Up to workers
// files are decoded at once (NumCPU when workers <= 0).
func LoadAssets(ctx context.Context, dir string, dec Decoder, workers int, log *slog.Logger) (*AssetStore, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrAssetFolderMissing, dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read audio folder: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && IsAudioFile(e.Name()) {
			files = append(files, e.Name())
		}
	}

	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	decoded := make([]*Asset, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, name := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			pcm, err := dec.Decode(gctx, filepath.Join(dir, name))
			if err != nil {
				log.Warn("skipping undecodable audio file", slog.String("file", name), slog.String("error", err.Error()))
				return nil
			}
			if pcm.SampleRate <= 0 || pcm.Channels <= 0 {
				log.Warn("skipping audio file with no stream info", slog.String("file", name))
				return nil
			}
			decoded[i] = &Asset{Name: name, Samples: pcm.Samples, SampleRate: pcm.SampleRate, Channels: pcm.Channels}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	assets := make([]*Asset, 0, len(decoded))
	for _, a := range decoded {
		if a != nil {
			assets = append(assets, a)
		}
	}
	log.Info("audio files preloaded", slog.String("dir", dir), slog.Int("count", len(assets)), slog.Int("skipped", len(files)-len(assets)))
	return NewAssetStore(assets...), nil
}

// Lookup returns the asset registered under name.
func (s *AssetStore) Lookup(name string) (*Asset, bool) {
	a, ok := s.assets[name]
	return a, ok
}

// Has reports whether an asset named name exists.
func (s *AssetStore) Has(name string) bool {
	_, ok := s.assets[name]
	return ok
}

// Names returns all asset names, sorted.
func (s *AssetStore) Names() []string {
	return append([]string(nil), s.names...)
}

// Duration returns the play time of the named asset.
func (s *AssetStore) Duration(name string) (time.Duration, bool) {
	a, ok := s.assets[name]
	if !ok {
		return 0, false
	}
	return a.Duration(), true
}

// Len returns the number of assets.
func (s *AssetStore) Len() int { return len(s.assets) }

// Source returns a new playback source for the named asset.
func (s *AssetStore) Source(name string) (Source, bool) {
	a, ok := s.assets[name]
	if !ok {
		return nil, false
	}
	return a.Source(), true
}
