package session

import "resona/pkg/models"

// preloadAhead and preloadBehind bound the artwork-warming window around
// the current track.
const (
	preloadAhead  = 3
	preloadBehind = 1
)

// schedulePreload warms artwork for the tracks surrounding activeIndex in
// the given order. Each track is marked before its fetch is issued so a
// failed fetch is never retried on later scheduling passes.
func (s *Session) schedulePreload(order []models.Track, activeIndex int) {
	if len(order) == 0 {
		return
	}

	candidates := make([]models.Track, 0, preloadAhead+preloadBehind)
	for offset := 1; offset <= preloadAhead; offset++ {
		if i := activeIndex + offset; i < len(order) {
			candidates = append(candidates, order[i])
		}
	}
	if i := activeIndex - 1; i >= 0 {
		candidates = append(candidates, order[i])
	}

	s.preloadMu.Lock()
	pending := make([]models.Track, 0, len(candidates))
	for _, t := range candidates {
		if t.ArtworkURL == "" {
			continue
		}
		if _, done := s.preloaded[t.ID]; done {
			continue
		}
		s.preloaded[t.ID] = struct{}{}
		pending = append(pending, t)
	}
	s.preloadMu.Unlock()

	for _, t := range pending {
		go func(ref string) {
			s.prefetcher.Prefetch(ref)
		}(t.ArtworkURL)
	}
}
