// Package queue implements the pure queue algorithms used by the playback
// session: circular queue construction, shuffle orderings pinned on the
// current track, index-safe reordering and deduplicated appends. All
// functions return fresh slices and never mutate their inputs, so callers
// can hand queue snapshots to readers without copying.
package queue

import (
	"math/rand"

	"resona/pkg/models"
)

// IndexOf returns the position of the track with the given id in order, or
// -1 if it is not present.
func IndexOf(order []models.Track, id string) int {
	for i, t := range order {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// Contains reports whether order holds a track with the given id.
func Contains(order []models.Track, id string) bool {
	return IndexOf(order, id) >= 0
}

// Circular builds a play order that starts at the selected track and wraps
// through the rest of the source list: selected first, then everything after
// it, then everything before it. If selected is not part of source, or
// source has at most one element, the result is just the selected track.
func Circular(selected models.Track, source []models.Track) []models.Track {
	idx := IndexOf(source, selected.ID)
	if idx < 0 || len(source) <= 1 {
		return []models.Track{selected}
	}

	order := make([]models.Track, 0, len(source))
	order = append(order, source[idx])
	order = append(order, source[idx+1:]...)
	order = append(order, source[:idx]...)
	return order
}

// Shuffle returns a shuffled copy of canonical. When current is non-nil and
// present in canonical, it is pinned at index 0 and only the remaining
// tracks are shuffled, so the playing track never moves. Uses an unbiased
// Fisher-Yates shuffle.
func Shuffle(canonical []models.Track, current *models.Track) []models.Track {
	if len(canonical) == 0 {
		return nil
	}

	if current == nil || !Contains(canonical, current.ID) {
		shuffled := make([]models.Track, len(canonical))
		copy(shuffled, canonical)
		rand.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		return shuffled
	}

	rest := make([]models.Track, 0, len(canonical)-1)
	for _, t := range canonical {
		if t.ID != current.ID {
			rest = append(rest, t)
		}
	}
	rand.Shuffle(len(rest), func(i, j int) {
		rest[i], rest[j] = rest[j], rest[i]
	})

	shuffled := make([]models.Track, 0, len(canonical))
	shuffled = append(shuffled, *current)
	shuffled = append(shuffled, rest...)
	return shuffled
}

// Reorder moves the element at from to position to and rebases currentIndex
// so it keeps pointing at the same track. Out-of-range indices and
// from == to leave the order untouched and return the inputs unchanged.
func Reorder(order []models.Track, currentIndex, from, to int) ([]models.Track, int) {
	if from == to {
		return order, currentIndex
	}
	if from < 0 || to < 0 || from >= len(order) || to >= len(order) {
		return order, currentIndex
	}

	reordered := make([]models.Track, 0, len(order))
	reordered = append(reordered, order[:from]...)
	reordered = append(reordered, order[from+1:]...)
	moved := order[from]
	reordered = append(reordered[:to], append([]models.Track{moved}, reordered[to:]...)...)

	newIndex := currentIndex
	switch {
	case from == currentIndex:
		newIndex = to
	case from < currentIndex && to >= currentIndex:
		newIndex = currentIndex - 1
	case from > currentIndex && to <= currentIndex:
		newIndex = currentIndex + 1
	}
	return reordered, newIndex
}

// AppendUnique appends the tracks from add whose ids are not already in
// order, preserving their relative order.
func AppendUnique(order []models.Track, add []models.Track) []models.Track {
	seen := make(map[string]struct{}, len(order))
	for _, t := range order {
		seen[t.ID] = struct{}{}
	}

	result := make([]models.Track, len(order), len(order)+len(add))
	copy(result, order)
	for _, t := range add {
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		result = append(result, t)
	}
	return result
}
