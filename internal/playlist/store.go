package playlist

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Store is the persistence abstraction for playlist files.
// The Repository reads and writes playlist text only through a Store, so it
// does not need to know whether the files live on disk or in memory.
type Store interface {
	// List returns the names of all playlist files, sorted.
	// A missing backing folder is not an error; it lists nothing.
	List() ([]string, error)
	Read(name string) (string, error)
	// Write replaces the file content in one step (never appends).
	Write(name, body string) error
}

// DirStore keeps playlists as .txt files in a directory.
type DirStore struct {
	dir string
}

// NewDirStore returns a Store rooted at dir. The directory is created on the
// first Write.
func NewDirStore(dir string) *DirStore {
	return &DirStore{dir: dir}
}

// Dir returns the backing directory.
func (s *DirStore) Dir() string { return s.dir }

// List implements Store.List.
func (s *DirStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read playlist dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".txt") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Read implements Store.Read.
func (s *DirStore) Read(name string) (string, error) {
	b, err := os.ReadFile(filepath.Join(s.dir, filepath.Base(name)))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Write implements Store.Write with a temp file and rename so a concurrent
// reload never reads a half-written playlist.
func (s *DirStore) Write(name, body string) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create playlist dir: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, ".playlist-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp playlist: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(body); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write playlist: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close playlist: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, filepath.Base(name))); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename playlist: %w", err)
	}
	return nil
}

// MemoryStore is an in-memory Store, used in tests.
type MemoryStore struct {
	mu    sync.Mutex
	files map[string]string
}

// NewMemoryStore returns a MemoryStore seeded with files.
func NewMemoryStore(files map[string]string) *MemoryStore {
	m := &MemoryStore{files: make(map[string]string, len(files))}
	for k, v := range files {
		m.files[k] = v
	}
	return m
}

// List implements Store.List.
func (m *MemoryStore) List() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.files))
	for name := range m.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Read implements Store.Read.
func (m *MemoryStore) Read(name string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.files[name]
	if !ok {
		return "", fs.ErrNotExist
	}
	return body, nil
}

// Write implements Store.Write.
func (m *MemoryStore) Write(name, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = body
	return nil
}
