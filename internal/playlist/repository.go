package playlist

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"
	"sync"
	"time"
)

var (
	// ErrPlaylistNotFound is returned when no playlist is registered under a name.
	ErrPlaylistNotFound = errors.New("playlist not found")

	// ErrPlaylistEmpty is returned when a playlist has no items after parsing.
	ErrPlaylistEmpty = errors.New("playlist is empty")

	// ErrUnknownAsset is wrapped by a ValidationError naming an asset that is
	// not in the catalog.
	ErrUnknownAsset = errors.New("audio file not found")

	// ErrPauseTooLong is returned when a pause exceeds the configured maximum.
	ErrPauseTooLong = errors.New("pause exceeds maximum duration")

	// ErrIDCollision is returned when a generated playlist id is already used
	// by a playlist with different content.
	ErrIDCollision = errors.New("playlist id collision")
)

// ValidationError reports why a playlist was rejected.
type ValidationError struct {
	Playlist string
	// Missing is the first asset name that did not resolve, if any.
	Missing string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Missing != "" {
		return fmt.Sprintf("playlist %q: audio file %q not found", e.Playlist, e.Missing)
	}
	return fmt.Sprintf("playlist %q: %v", e.Playlist, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ReloadResult summarizes one reload pass.
type ReloadResult struct {
	Loaded   int
	Rejected map[string]error
}

// Created describes the outcome of Repository.Create.
type Created struct {
	Playlist *Playlist
	// Body is the serialized playlist text, as offered for download.
	Body string
	// Reused is true when an identical file already existed and was kept.
	Reused bool
}

// Repository is the concurrency-safe playlist mapping.
// Readers take the read lock; Reload builds a complete new mapping under
// reloadMu and holds the write lock only for the swap.
type Repository struct {
	mu        sync.RWMutex
	playlists map[string]*Playlist

	// reloadMu orders reloads so an older listing never replaces a newer one.
	reloadMu sync.Mutex

	// createMu serializes Create so two identical requests cannot race the
	// existence check.
	createMu sync.Mutex

	store    Store
	catalog  Catalog
	maxPause time.Duration
	log      *slog.Logger
}

// NewRepository returns an empty repository backed by store and validating
// against catalog. maxPause <= 0 disables the pause cap. Call Reload to
// populate it.
func NewRepository(store Store, catalog Catalog, maxPause time.Duration, log *slog.Logger) *Repository {
	if log == nil {
		log = slog.Default()
	}
	return &Repository{
		playlists: make(map[string]*Playlist),
		store:     store,
		catalog:   catalog,
		maxPause:  maxPause,
		log:       log,
	}
}

// Validate checks items against the catalog and returns the resulting
// Playlist. It does not register anything.
func (r *Repository) Validate(name string, items []Item) (*Playlist, error) {
	if len(items) == 0 {
		return nil, &ValidationError{Playlist: name, Err: ErrPlaylistEmpty}
	}
	for _, it := range items {
		if it.IsPause() {
			if it.Millis > MaxPauseMillis || (r.maxPause > 0 && it.PauseExceeds(r.maxPause)) {
				return nil, &ValidationError{Playlist: name, Err: fmt.Errorf("%w: %s", ErrPauseTooLong, it.Label())}
			}
			continue
		}
		if !r.catalog.Has(it.Name) {
			return nil, &ValidationError{Playlist: name, Missing: it.Name, Err: ErrUnknownAsset}
		}
	}
	hash := ContentHash(Serialize(items))
	return &Playlist{
		Name:        name,
		ID:          IDFromHash(hash),
		Items:       append([]Item(nil), items...),
		ContentHash: hash,
	}, nil
}

// Register validates items and, if valid, adds them under name.
// On rejection the mapping is left unchanged.
func (r *Repository) Register(name string, items []Item) error {
	p, err := r.Validate(name, items)
	if err != nil {
		r.log.Warn("playlist rejected", slog.String("playlist", name), slog.String("error", err.Error()))
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	next := make(map[string]*Playlist, len(r.playlists)+1)
	for k, v := range r.playlists {
		next[k] = v
	}
	next[name] = p
	r.playlists = next
	return nil
}

// Reload re-reads every playlist file from the store and atomically replaces
// the active mapping. A file that fails to read, parse, or validate is left
// out and reported in the result; it never affects other files.
func (r *Repository) Reload(ctx context.Context) (ReloadResult, error) {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	names, err := r.store.List()
	if err != nil {
		return ReloadResult{}, err
	}

	res := ReloadResult{Rejected: make(map[string]error)}
	next := make(map[string]*Playlist, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return ReloadResult{}, err
		}
		body, err := r.store.Read(name)
		if err != nil {
			res.Rejected[name] = err
			r.log.Warn("playlist unreadable", slog.String("playlist", name), slog.String("error", err.Error()))
			continue
		}
		p, err := r.Validate(name, Parse(body))
		if err != nil {
			res.Rejected[name] = err
			r.log.Warn("playlist rejected", slog.String("playlist", name), slog.String("error", err.Error()))
			continue
		}
		next[name] = p
	}
	res.Loaded = len(next)

	r.mu.Lock()
	r.playlists = next
	r.mu.Unlock()

	r.log.Info("playlists loaded", slog.Int("loaded", res.Loaded), slog.Int("rejected", len(res.Rejected)))
	return res, nil
}

// Get returns the playlist registered under name.
func (r *Repository) Get(name string) (*Playlist, error) {
	r.mu.RLock()
	p, ok := r.playlists[name]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrPlaylistNotFound
	}
	if len(p.Items) == 0 {
		return nil, ErrPlaylistEmpty
	}
	return p, nil
}

// Names returns the registered playlist names, sorted.
func (r *Repository) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.playlists))
	for name := range r.playlists {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Count returns the number of registered playlists.
func (r *Repository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.playlists)
}

// Create persists items as a content-addressed playlist and reloads the
// mapping. The id is derived from the serialized body only, so the same
// content always yields the same id and file name; an identical existing file
// is reused rather than rewritten.
func (r *Repository) Create(ctx context.Context, items []Item) (Created, error) {
	body := Serialize(items)
	hash := ContentHash(body)
	id := IDFromHash(hash)
	name := GeneratedFileName(id, TotalDuration(items, r.catalog), len(items))

	if _, err := r.Validate(name, items); err != nil {
		return Created{}, err
	}

	r.createMu.Lock()
	defer r.createMu.Unlock()

	r.mu.RLock()
	for _, p := range r.playlists {
		if p.ID == id && p.ContentHash != hash {
			r.mu.RUnlock()
			return Created{}, fmt.Errorf("%w: %s already used by %s", ErrIDCollision, id, p.Name)
		}
	}
	r.mu.RUnlock()

	reused := false
	existing, err := r.store.Read(name)
	switch {
	case err == nil && ContentHash(Serialize(Parse(existing))) == hash:
		reused = true
	case err == nil:
		return Created{}, fmt.Errorf("%w: %s holds different content", ErrIDCollision, name)
	case errors.Is(err, fs.ErrNotExist):
		if err := r.store.Write(name, body+"\n"); err != nil {
			return Created{}, err
		}
	default:
		return Created{}, err
	}

	if _, err := r.Reload(ctx); err != nil {
		return Created{}, err
	}
	p, err := r.Get(name)
	if err != nil {
		return Created{}, fmt.Errorf("playlist %s not registered after reload: %w", name, err)
	}

	r.log.Info("playlist created",
		slog.String("playlist", name),
		slog.String("id", id),
		slog.Int("items", len(items)),
		slog.Bool("reused", reused))
	return Created{Playlist: p, Body: body, Reused: reused}, nil
}
