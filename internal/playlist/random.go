package playlist

import (
	"errors"
	"math/rand/v2"
)

// ErrNoAssetsAvailable is returned when a queue is requested from an empty catalog.
var ErrNoAssetsAvailable = errors.New("no audio files found")

// Generate samples fileCount asset names uniformly with replacement. When
// breakMs > 0 a Pause(breakMs) is placed between consecutive audio items,
// never before the first or after the last. rng may be nil to use the
// package-level source.
func Generate(catalog Catalog, fileCount int, breakMs int64, rng *rand.Rand) ([]Item, error) {
	names := catalog.Names()
	if len(names) == 0 {
		return nil, ErrNoAssetsAvailable
	}
	if fileCount <= 0 {
		return nil, nil
	}

	size := fileCount
	if breakMs > 0 {
		size = 2*fileCount - 1
	}
	items := make([]Item, 0, size)
	for i := 0; i < fileCount; i++ {
		if i > 0 && breakMs > 0 {
			items = append(items, Pause(breakMs))
		}
		var idx int
		if rng != nil {
			idx = rng.IntN(len(names))
		} else {
			idx = rand.IntN(len(names))
		}
		items = append(items, AudioRef(names[idx]))
	}
	return items, nil
}
