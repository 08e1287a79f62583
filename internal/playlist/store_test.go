package playlist

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func TestDirStore_List_missing_dir(t *testing.T) {
	store := NewDirStore(filepath.Join(t.TempDir(), "absent"))
	names, err := store.List()
	if err != nil || len(names) != 0 {
		t.Errorf("missing dir should list nothing, got %v err=%v", names, err)
	}
}

func TestDirStore_List_filters_txt(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"b.txt", "a.TXT", "notes.md", "c.txt.bak"} {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.txt"), 0o755); err != nil {
		t.Fatal(err)
	}

	names, err := NewDirStore(dir).List()
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "a.TXT" || names[1] != "b.txt" {
		t.Errorf("unexpected listing %v", names)
	}
}

func TestDirStore_Write_overwrites(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "playlists")
	store := NewDirStore(dir)

	if err := store.Write("p.txt", "a.wav\n"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := store.Write("p.txt", "b.wav\n"); err != nil {
		t.Fatalf("second Write: %v", err)
	}
	got, err := store.Read("p.txt")
	if err != nil {
		t.Fatal(err)
	}
	if got != "b.wav\n" {
		t.Errorf("expected overwrite, got %q", got)
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestDirStore_Read_missing(t *testing.T) {
	_, err := NewDirStore(t.TempDir()).Read("nope.txt")
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected fs.ErrNotExist, got %v", err)
	}
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore(map[string]string{"b.txt": "b", "a.txt": "a"})
	names, _ := store.List()
	if len(names) != 2 || names[0] != "a.txt" {
		t.Errorf("unexpected listing %v", names)
	}
	if _, err := store.Read("c.txt"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected fs.ErrNotExist, got %v", err)
	}
	_ = store.Write("c.txt", "c")
	if body, _ := store.Read("c.txt"); body != "c" {
		t.Errorf("Write/Read mismatch: %q", body)
	}
}
