package session

import (
	"time"

	"github.com/sirupsen/logrus"

	"resona/internal/lyrics"
	"resona/internal/queue"
)

// advanceEpsilonMs: the progress clock treats a track as finished once the
// engine reports a position within this many milliseconds of the duration.
const advanceEpsilonMs = 100

// runProgressClock polls the engine's position and duration readbacks,
// updates the synced-lyric index, and auto-advances at track boundaries.
func (s *Session) runProgressClock() {
	ticker := time.NewTicker(s.opts.ProgressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.progressTick()
		}
	}
}

func (s *Session) progressTick() {
	if !s.bridge.IsConnected() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state.Snapshot()
	if st.CurrentTrack == nil || !st.IsPlaying {
		return
	}

	pos := s.bridge.PositionMs()
	dur := s.bridge.DurationMs()
	if dur <= 0 {
		dur = st.DurationMs
	}

	lyricIndex := lyrics.IndexForPosition(st.CurrentTrack.Lyrics, pos)
	if pos != st.PositionMs || dur != st.DurationMs || lyricIndex != st.CurrentLyricIndex {
		s.state.Update(func(ps *PlaybackState) {
			ps.PositionMs = pos
			ps.DurationMs = dur
			ps.CurrentLyricIndex = lyricIndex
		})
	}

	if dur <= 0 {
		return
	}

	// Every track change arms a suppression until the position is seen
	// clear of the boundary; without it, readbacks that lag behind an
	// advance would skip a second track.
	if pos < dur-2*advanceEpsilonMs && s.advancedFrom != "" {
		s.advancedFrom = ""
	}

	if pos >= dur-advanceEpsilonMs && s.advancedFrom == "" {
		s.advancedFrom = st.CurrentTrack.ID
		s.playNextLocked()
	}
}

// runReconcileLoop watches the engine's reported track id and corrects the
// session when the engine moved on its own (gapless advance, external
// control). Reconciliation adjusts session state to match the engine; it
// never commands the engine back.
func (s *Session) runReconcileLoop() {
	ticker := time.NewTicker(s.opts.ReconcileInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.reconcileTick()
		}
	}
}

func (s *Session) reconcileTick() {
	if !s.bridge.IsConnected() {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	engineID := s.bridge.CurrentTrackID()
	if engineID == "" || engineID == s.lastEngineID {
		return
	}

	st := s.state.Snapshot()
	if st.CurrentTrack != nil && st.CurrentTrack.ID == engineID {
		// Session already agrees; just remember the id.
		s.lastEngineID = engineID
		return
	}

	active, _ := st.ActiveOrder()
	activeIndex := queue.IndexOf(active, engineID)
	if activeIndex < 0 {
		// Engine is playing something we never queued; leave it alone.
		s.lastEngineID = engineID
		return
	}

	s.lastEngineID = engineID
	target := active[activeIndex]
	s.logger.WithFields(logrus.Fields{
		"track_id": engineID,
		"title":    target.Title,
	}).Debug("Reconciling session to engine track")

	canonicalIndex := queue.IndexOf(st.Queue, engineID)
	if canonicalIndex < 0 {
		canonicalIndex = 0
	}
	shuffled := st.ShuffleEnabled && len(st.ShuffledQueue) > 0

	pos := s.bridge.PositionMs()
	dur := s.bridge.DurationMs()
	if dur <= 0 {
		dur = target.DurationMs
	}

	s.advancedFrom = target.ID
	s.state.Update(func(ps *PlaybackState) {
		ps.CurrentTrack = &target
		ps.CurrentIndex = canonicalIndex
		if shuffled {
			ps.ShuffledIndex = activeIndex
		} else {
			ps.ShuffledIndex = 0
		}
		ps.PositionMs = pos
		ps.DurationMs = dur
		ps.CurrentLyricIndex = lyrics.IndexForPosition(target.Lyrics, pos)
		ps.IsLiked = false // refreshed asynchronously
	})

	s.runTrackSideEffects(target)
	s.schedulePreload(active, activeIndex)
}
