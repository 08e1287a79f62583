package sessionlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Header is the first row of every session log file.
var Header = []string{"timestamp_audio", "audio_filename", "status", "timestamp_client"}

// Status of a logged event.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Kind names what started a session.
type Kind string

const (
	KindGlobal   Kind = "global"
	KindSingle   Kind = "single"
	KindTone     Kind = "tone"
	KindRandom   Kind = "random"
	KindPlaylist Kind = "playlist"
)

// timeLayout is the YYYYmmdd-HHMMSS stamp used in file names.
const timeLayout = "20060102-150405"

// maxNameAttempts bounds the -n suffixes tried when a file name is taken.
const maxNameAttempts = 1000

// NoClientTimestamp fills the client column of item rows in bulk sessions,
// whose client time is on the request row.
const NoClientTimestamp = "N/A"

// Event is one row of a session log.
type Event struct {
	// HostTimestamp is nanoseconds since the Unix epoch.
	HostTimestamp   int64
	Label           string
	Status          Status
	ClientTimestamp string
}

// Logger creates session log files under one directory and owns the global
// stream used by single plays, tone plays and manual resets.
type Logger struct {
	dir string
	log *slog.Logger

	// OnWriteError, when set, is called after a failed write.
	OnWriteError func(error)

	now func() time.Time

	mu         sync.Mutex
	globalPath string
}

// New creates dir if needed and opens the first global stream.
func New(dir string, log *slog.Logger) (*Logger, error) {
	l := &Logger{dir: dir, log: log, now: time.Now}
	if _, err := l.StartNewLog(); err != nil {
		return nil, err
	}
	return l, nil
}

// Dir returns the log directory.
func (l *Logger) Dir() string { return l.dir }

// StartNewLog rotates the global stream to a fresh file and returns its path.
func (l *Logger) StartNewLog() (string, error) {
	path, err := l.create("log")
	if err != nil {
		return "", err
	}
	l.mu.Lock()
	l.globalPath = path
	l.mu.Unlock()
	l.log.Info("global session log started", slog.String("path", path))
	return path, nil
}

// GlobalPath returns the file the global stream currently writes to.
func (l *Logger) GlobalPath() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.globalPath
}

// Global returns a session bound to the global stream. Rotations made with
// StartNewLog apply to subsequent writes.
func (l *Logger) Global() *Session {
	return &Session{
		ID:        uuid.New(),
		Kind:      KindGlobal,
		StartTime: l.now(),
		logger:    l,
	}
}

// StartSession opens a new stream for one bulk session.
func (l *Logger) StartSession(kind Kind) (*Session, error) {
	start := l.now()
	path, err := l.create("log_" + string(kind))
	if err != nil {
		return nil, err
	}
	s := &Session{
		ID:        uuid.New(),
		Kind:      kind,
		StartTime: start,
		logger:    l,
		path:      path,
	}
	l.log.Debug("session log started",
		slog.String("session_id", s.ID.String()),
		slog.String("kind", string(kind)),
		slog.String("path", path))
	return s, nil
}

// create makes <prefix>_<stamp>[-n].csv exclusively and writes the header.
func (l *Logger) create(prefix string) (string, error) {
	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return "", fmt.Errorf("create log dir: %w", err)
	}
	stamp := l.now().Format(timeLayout)
	for i := 0; i < maxNameAttempts; i++ {
		name := prefix + "_" + stamp
		if i > 0 {
			name += "-" + strconv.Itoa(i)
		}
		path := filepath.Join(l.dir, name+".csv")
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create session log: %w", err)
		}
		w := csv.NewWriter(f)
		w.Write(Header)
		w.Flush()
		werr := w.Error()
		if cerr := f.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil {
			return "", fmt.Errorf("write session log header: %w", werr)
		}
		return path, nil
	}
	return "", fmt.Errorf("create session log: no free name for %s_%s", prefix, stamp)
}

// append writes one row. The file is opened and closed per write.
func (l *Logger) append(path string, ev Event) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)
	w.Write([]string{
		strconv.FormatInt(ev.HostTimestamp, 10),
		ev.Label,
		string(ev.Status),
		ev.ClientTimestamp,
	})
	w.Flush()
	err = w.Error()
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

// Session is one logical playback run with its own event stream.
type Session struct {
	ID        uuid.UUID
	Kind      Kind
	StartTime time.Time

	logger *Logger
	// path is empty for the global session, which resolves it per write.
	path string
}

// Path returns the file events are currently written to.
func (s *Session) Path() string {
	if s.path == "" {
		return s.logger.GlobalPath()
	}
	return s.path
}

// Record appends ev. Write failures are logged and reported through
// OnWriteError; they never reach the caller.
func (s *Session) Record(ev Event) {
	l := s.logger
	l.mu.Lock()
	path := s.path
	if path == "" {
		path = l.globalPath
	}
	err := l.append(path, ev)
	l.mu.Unlock()

	if err != nil {
		l.log.Error("session log write failed",
			slog.String("session_id", s.ID.String()),
			slog.String("path", path),
			slog.String("item", ev.Label),
			slog.String("error", err.Error()))
		if l.OnWriteError != nil {
			l.OnWriteError(err)
		}
	}
}
