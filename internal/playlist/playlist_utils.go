package playlist

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// IDLength is the number of hex characters of the content hash used as a
// playlist id. 32 bits: collisions become likely past a few tens of thousands
// of distinct playlists, so Create rejects them instead of overwriting.
const IDLength = 8

var pauseLine = regexp.MustCompile(`^pause_(\d+)ms$`)

// Parse converts playlist text into an ordered item sequence.
// Lines are trimmed and blank lines are skipped. A line of the form
// pause_<N>ms becomes Pause(N); anything else is taken as an asset name.
func Parse(text string) []Item {
	var items []Item
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if m := pauseLine.FindStringSubmatch(line); m != nil {
			if ms, err := strconv.ParseInt(m[1], 10, 64); err == nil {
				items = append(items, Pause(ms))
				continue
			}
		}
		items = append(items, AudioRef(line))
	}
	return items
}

// Serialize writes items back in the line grammar accepted by Parse,
// one item per line with no trailing newline.
func Serialize(items []Item) string {
	var b strings.Builder
	for i, it := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(it.Label())
	}
	return b.String()
}

// ContentHash returns the hex SHA-256 of the serialized body.
func ContentHash(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

// IDFromHash truncates a content hash to a playlist id.
func IDFromHash(hash string) string {
	if len(hash) < IDLength {
		return hash
	}
	return hash[:IDLength]
}

// TotalDuration sums asset durations and pauses. Unknown assets count as zero.
// The sum saturates at the largest time.Duration.
func TotalDuration(items []Item, catalog Catalog) time.Duration {
	var total time.Duration
	for _, it := range items {
		var d time.Duration
		switch {
		case it.IsPause():
			d = it.PauseDuration()
		case catalog != nil:
			d, _ = catalog.Duration(it.Name)
		}
		if d > 0 && total > time.Duration(math.MaxInt64)-d {
			return time.Duration(math.MaxInt64)
		}
		total += d
	}
	return total
}

// GeneratedFileName builds playlist_<id>_<seconds>s_<count>count.txt.
// Whole seconds keep one decimal place ("12.0s") so every name has the
// same shape.
func GeneratedFileName(id string, total time.Duration, count int) string {
	secs := strconv.FormatFloat(float64(total.Milliseconds())/1000, 'f', -1, 64)
	if !strings.ContainsAny(secs, ".eE") {
		secs += ".0"
	}
	return fmt.Sprintf("playlist_%s_%ss_%dcount.txt", id, secs, count)
}
