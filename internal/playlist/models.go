package playlist

import (
	"fmt"
	"math"
	"time"
)

// ItemKind distinguishes the two kinds of scheduling unit.
type ItemKind int

const (
	KindAudio ItemKind = iota
	KindPause
)

// Item is an atomic scheduling unit: either a reference to a named audio asset
// or a timed pause. Items are immutable values.
type Item struct {
	Kind ItemKind
	// Name is the asset name for KindAudio items.
	Name string
	// Millis is the pause length for KindPause items.
	Millis int64
}

// AudioRef returns an item that plays the named asset.
func AudioRef(name string) Item {
	return Item{Kind: KindAudio, Name: name}
}

// Pause returns an item that keeps the output silent for ms milliseconds.
func Pause(ms int64) Item {
	return Item{Kind: KindPause, Millis: ms}
}

// IsPause reports whether the item is a pause.
func (it Item) IsPause() bool { return it.Kind == KindPause }

// MaxPauseMillis is the longest pause a time.Duration can hold.
const MaxPauseMillis = math.MaxInt64 / int64(time.Millisecond)

// PauseDuration returns the pause length as a time.Duration (zero for audio
// items). Lengths past MaxPauseMillis saturate instead of wrapping negative.
func (it Item) PauseDuration() time.Duration {
	if it.Kind != KindPause || it.Millis <= 0 {
		return 0
	}
	if it.Millis > MaxPauseMillis {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(it.Millis) * time.Millisecond
}

// PauseExceeds reports whether the item is a pause longer than max.
// It compares milliseconds so huge values cannot overflow past the check.
func (it Item) PauseExceeds(max time.Duration) bool {
	return it.Kind == KindPause && it.Millis > int64(max/time.Millisecond)
}

// Label is the text used for the item in playlist files and session logs.
func (it Item) Label() string {
	if it.Kind == KindPause {
		return fmt.Sprintf("pause_%dms", it.Millis)
	}
	return it.Name
}

func (it Item) String() string { return it.Label() }

// Playlist is a validated, non-empty item sequence loaded from disk or
// generated. A Playlist is replaced wholesale on reload and never mutated.
type Playlist struct {
	// Name is the playlist file name and the lookup key.
	Name string
	// ID is the first IDLength hex characters of ContentHash.
	ID          string
	Items       []Item
	ContentHash string
}

// AudioCount returns the number of audio items in the playlist.
func (p *Playlist) AudioCount() int {
	n := 0
	for _, it := range p.Items {
		if !it.IsPause() {
			n++
		}
	}
	return n
}

// Catalog is the read-only view of the asset store that playlists are
// validated and generated against.
type Catalog interface {
	Has(name string) bool
	Names() []string
	Duration(name string) (time.Duration, bool)
}
