// Package session owns the authoritative playback state and keeps it in
// sync with the external media engine. Callers submit intents (play, skip,
// shuffle, reorder); the session updates its state optimistically, commands
// the engine, and reconciles against what the engine actually reports.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/sirupsen/logrus"

	"resona/internal/artwork"
	"resona/internal/engine"
	"resona/internal/lyrics"
	"resona/internal/queue"
	"resona/pkg/models"
)

// previousRestartThresholdMs: a "previous" tap this far into a track
// restarts it instead of moving back.
const previousRestartThresholdMs = 3000

// Repository is the catalog/history store the session records plays into
// and reads liked state from.
type Repository interface {
	GetTrackByID(id string) (*models.Track, error)
	GetRandomTracks(n int) ([]models.Track, error)
	IncrementPlayCount(id string) error
	AddToHistory(id string) error
	IsLiked(id string) (bool, error)
	AddLiked(id string) error
	RemoveLiked(id string) error
}

// AccentSource derives a UI accent color from an artwork reference.
type AccentSource interface {
	AccentColor(ctx context.Context, artworkRef string, fallback colorful.Color) colorful.Color
}

// Prefetcher warms caches for upcoming tracks' artwork.
type Prefetcher interface {
	Prefetch(artworkRef string)
}

// Options are the session tuning parameters.
type Options struct {
	// ProgressInterval is the position/duration poll cadence.
	ProgressInterval time.Duration
	// ReconcileInterval is the engine track-id reconciliation cadence.
	ReconcileInterval time.Duration
	// Speed is the initial playback speed applied on engine connect.
	Speed float64
}

func (o *Options) applyDefaults() {
	if o.ProgressInterval <= 0 {
		o.ProgressInterval = 100 * time.Millisecond
	}
	if o.ReconcileInterval <= 0 {
		o.ReconcileInterval = 500 * time.Millisecond
	}
	if o.Speed <= 0 {
		o.Speed = 1.0
	}
}

// Session is the playback orchestrator. All intent handling and loop ticks
// are serialized through a single mutex so concurrent intents never
// interleave partial state writes.
type Session struct {
	bridge     engine.Bridge
	repo       Repository
	colors     AccentSource
	prefetcher Prefetcher
	state      *State
	logger     *logrus.Logger
	opts       Options

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once

	mu sync.Mutex
	// advancedFrom, when non-empty, suppresses the auto-advance until the
	// engine's position is observed clear of the track boundary. Set on
	// every track change so lagging readbacks cannot double-skip.
	advancedFrom string
	// lastEngineID is the reconciliation loop's memory of the engine's
	// reported track, so unchanged ids never re-trigger side effects.
	lastEngineID string
	speed        float64

	preloadMu sync.Mutex
	preloaded map[string]struct{}
}

// New creates a session over the given collaborators and starts its
// background loops. The session subscribes to the bridge's connection state
// for its whole lifetime; Close tears everything down together.
func New(bridge engine.Bridge, repo Repository, colors AccentSource, prefetcher Prefetcher, opts Options, logger *logrus.Logger) *Session {
	opts.applyDefaults()

	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		bridge:     bridge,
		repo:       repo,
		colors:     colors,
		prefetcher: prefetcher,
		state:      NewState(),
		logger:     logger,
		opts:       opts,
		ctx:        ctx,
		cancel:     cancel,
		speed:      opts.Speed,
		preloaded:  make(map[string]struct{}),
	}

	go s.watchConnState(bridge.ConnState())
	go s.runProgressClock()
	go s.runReconcileLoop()

	return s
}

// State exposes the session's state store for snapshots and subscriptions.
func (s *Session) State() *State {
	return s.state
}

// Close cancels the background loops. No timer keeps writing into the state
// after Close returns. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.logger.Info("Playback session closed")
	})
}

// WatchSpeed applies playback-speed preference changes for the session's
// lifetime.
func (s *Session) WatchSpeed(updates <-chan float64) {
	go func() {
		for {
			select {
			case <-s.ctx.Done():
				return
			case speed, ok := <-updates:
				if !ok {
					return
				}
				s.mu.Lock()
				s.speed = speed
				s.mu.Unlock()
				s.bridge.SetSpeed(speed)
			}
		}
	}()
}

// watchConnState re-applies the playback speed whenever the engine link
// comes up.
func (s *Session) watchConnState(transitions <-chan bool) {
	for {
		select {
		case <-s.ctx.Done():
			return
		case up, ok := <-transitions:
			if !ok {
				return
			}
			if up {
				s.mu.Lock()
				speed := s.speed
				s.mu.Unlock()
				s.bridge.SetSpeed(speed)
			}
		}
	}
}

// PlayTrack starts playback of track within the given browsing context. The
// queue wraps circularly around the tapped track; any shuffle ordering is
// discarded.
func (s *Session) PlayTrack(track models.Track, contextList []models.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var order []models.Track
	if len(contextList) <= 1 {
		order = []models.Track{track}
	} else {
		order = queue.Circular(track, contextList)
	}

	current := track
	s.advancedFrom = track.ID
	s.state.Update(func(st *PlaybackState) {
		st.CurrentTrack = &current
		st.Queue = order
		st.ShuffledQueue = nil
		st.ShuffledIndex = 0
		st.CurrentIndex = 0
		st.ShuffleEnabled = false
		st.IsPlaying = true
		st.PositionMs = 0
		st.DurationMs = track.DurationMs
		st.IsLiked = false // refreshed asynchronously
		st.CurrentLyricIndex = -1
	})

	s.bridge.SetQueue(order, 0, 0)
	s.runTrackSideEffects(current)
	s.schedulePreload(order, 0)
}

// PlayTrackByID looks a track up in the catalog and plays it on its own.
// Unknown ids are skipped silently.
func (s *Session) PlayTrackByID(id string) {
	track, err := s.repo.GetTrackByID(id)
	if err != nil {
		s.logger.WithError(err).WithField("track_id", id).Warn("Failed to load track")
		return
	}
	if track == nil {
		return
	}
	s.PlayTrack(*track, nil)
}

// PlayFromQueueItem jumps to a track that is already in the active order
// without rebuilding the queue. Unknown tracks are ignored.
func (s *Session) PlayFromQueueItem(track models.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state.Snapshot()
	active, _ := st.ActiveOrder()
	activeIndex := queue.IndexOf(active, track.ID)
	if activeIndex < 0 {
		return
	}

	s.changeToTrack(st, active, activeIndex, true)
}

// PlayNext advances to the next track according to the repeat mode.
func (s *Session) PlayNext() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playNextLocked()
}

func (s *Session) playNextLocked() {
	st := s.state.Snapshot()
	if st.CurrentTrack == nil || len(st.Queue) == 0 {
		return
	}

	if st.RepeatMode == models.RepeatOne {
		s.seekLocked(0)
		return
	}

	active, activeIndex := st.ActiveOrder()
	next := activeIndex + 1
	if next >= len(active) {
		if st.RepeatMode != models.RepeatAll {
			return // end of queue
		}
		next = 0
	}

	s.changeToTrack(st, active, next, true)
}

// PlayPrevious moves back one track, or restarts the current track when
// more than three seconds in.
func (s *Session) PlayPrevious() {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state.Snapshot()
	if st.CurrentTrack == nil || len(st.Queue) == 0 {
		return
	}

	if st.PositionMs > previousRestartThresholdMs {
		s.seekLocked(0)
		return
	}

	active, activeIndex := st.ActiveOrder()
	prev := activeIndex - 1
	if prev < 0 {
		if st.RepeatMode != models.RepeatAll {
			s.seekLocked(0) // restart current track
			return
		}
		prev = len(active) - 1
	}

	s.changeToTrack(st, active, prev, true)
}

// changeToTrack is the shared manual-skip path: optimistic state update,
// engine command, async side effects, preload. Callers hold s.mu.
func (s *Session) changeToTrack(st PlaybackState, active []models.Track, activeIndex int, commandEngine bool) {
	target := active[activeIndex]

	canonicalIndex := queue.IndexOf(st.Queue, target.ID)
	if canonicalIndex < 0 {
		canonicalIndex = 0
	}
	shuffled := st.ShuffleEnabled && len(st.ShuffledQueue) > 0

	s.advancedFrom = target.ID
	s.state.Update(func(ps *PlaybackState) {
		ps.CurrentTrack = &target
		ps.CurrentIndex = canonicalIndex
		if shuffled {
			ps.ShuffledIndex = activeIndex
		} else {
			ps.ShuffledIndex = 0
		}
		ps.IsPlaying = true
		ps.PositionMs = 0
		ps.DurationMs = target.DurationMs
		ps.IsLiked = false // refreshed asynchronously
		ps.CurrentLyricIndex = -1
	})

	if commandEngine {
		s.bridge.SetQueue(active, activeIndex, 0)
	}
	s.runTrackSideEffects(target)
	s.schedulePreload(active, activeIndex)
}

// TogglePlayPause flips the playing state optimistically and mirrors the
// command to the engine.
func (s *Session) TogglePlayPause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state.Snapshot()
	if st.CurrentTrack == nil {
		return
	}

	if st.IsPlaying {
		s.bridge.Pause()
	} else {
		s.bridge.Play()
	}
	s.state.Update(func(ps *PlaybackState) {
		ps.IsPlaying = !ps.IsPlaying
	})
}

// ToggleShuffle switches between the canonical and a freshly computed
// shuffled ordering. The playing track keeps its position: the engine is
// re-commanded at the preserved offset, never restarted.
func (s *Session) ToggleShuffle() {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state.Snapshot()
	enabling := !st.ShuffleEnabled

	if enabling {
		if len(st.Queue) == 0 {
			s.state.Update(func(ps *PlaybackState) { ps.ShuffleEnabled = true })
			s.bridge.SetShuffleFlag(true)
			return
		}

		shuffledOrder := queue.Shuffle(st.Queue, st.CurrentTrack)
		s.state.Update(func(ps *PlaybackState) {
			ps.ShuffleEnabled = true
			ps.ShuffledQueue = shuffledOrder
			ps.ShuffledIndex = 0
		})

		if st.CurrentTrack != nil {
			s.bridge.SetQueue(shuffledOrder, 0, st.PositionMs)
			s.schedulePreload(shuffledOrder, 0)
		} else {
			s.bridge.SetQueue(shuffledOrder, 0, 0)
		}
	} else {
		canonicalIndex := st.CurrentIndex
		if st.CurrentTrack != nil {
			if idx := queue.IndexOf(st.Queue, st.CurrentTrack.ID); idx >= 0 {
				canonicalIndex = idx
			}
		}

		s.state.Update(func(ps *PlaybackState) {
			ps.ShuffleEnabled = false
			ps.ShuffledQueue = nil
			ps.ShuffledIndex = 0
			ps.CurrentIndex = canonicalIndex
		})

		if st.CurrentTrack != nil && len(st.Queue) > 0 {
			s.bridge.SetQueue(st.Queue, canonicalIndex, st.PositionMs)
			s.schedulePreload(st.Queue, canonicalIndex)
		}
	}

	s.bridge.SetShuffleFlag(enabling)
}

// ToggleRepeat cycles off, all, one.
func (s *Session) ToggleRepeat() {
	s.mu.Lock()
	defer s.mu.Unlock()

	var mode models.RepeatMode
	s.state.Update(func(ps *PlaybackState) {
		ps.RepeatMode = ps.RepeatMode.Next()
		mode = ps.RepeatMode
	})
	s.bridge.SetRepeatMode(mode)
}

// ReorderQueue moves an item within the active order, rebasing the current
// index. Out-of-range moves are silently dropped.
func (s *Session) ReorderQueue(from, to int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state.Snapshot()
	active, _ := st.ActiveOrder()
	if from == to || from < 0 || to < 0 || from >= len(active) || to >= len(active) {
		return
	}

	if st.ShuffleEnabled && len(st.ShuffledQueue) > 0 {
		newOrder, newIndex := queue.Reorder(st.ShuffledQueue, st.ShuffledIndex, from, to)
		s.state.Update(func(ps *PlaybackState) {
			ps.ShuffledQueue = newOrder
			ps.ShuffledIndex = newIndex
		})
	} else {
		newOrder, newIndex := queue.Reorder(st.Queue, st.CurrentIndex, from, to)
		s.state.Update(func(ps *PlaybackState) {
			ps.Queue = newOrder
			ps.CurrentIndex = newIndex
		})
	}

	s.bridge.MoveItem(from, to)
}

// AddToQueue appends tracks that are not already queued. When nothing is
// playing, playback starts with the first appended track.
func (s *Session) AddToQueue(tracks []models.Track) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addToQueueLocked(tracks)
}

func (s *Session) addToQueueLocked(tracks []models.Track) {
	if len(tracks) == 0 {
		return
	}

	st := s.state.Snapshot()

	// Only tracks genuinely new to the live queue get sent to the engine.
	newTracks := make([]models.Track, 0, len(tracks))
	seen := make(map[string]struct{}, len(tracks))
	for _, t := range tracks {
		if _, dup := seen[t.ID]; dup {
			continue
		}
		seen[t.ID] = struct{}{}
		if !queue.Contains(st.Queue, t.ID) {
			newTracks = append(newTracks, t)
		}
	}
	if len(newTracks) == 0 {
		return
	}

	if st.CurrentTrack == nil {
		first := newTracks[0]
		s.advancedFrom = first.ID
		s.state.Update(func(ps *PlaybackState) {
			ps.CurrentTrack = &first
			ps.Queue = newTracks
			ps.ShuffledQueue = nil
			ps.ShuffledIndex = 0
			ps.CurrentIndex = 0
			ps.ShuffleEnabled = false
			ps.IsPlaying = true
			ps.PositionMs = 0
			ps.DurationMs = first.DurationMs
			ps.CurrentLyricIndex = -1
		})

		s.bridge.SetQueue(newTracks, 0, 0)
		s.runTrackSideEffects(first)
		s.schedulePreload(newTracks, 0)
		return
	}

	s.state.Update(func(ps *PlaybackState) {
		ps.Queue = queue.AppendUnique(ps.Queue, newTracks)
		if ps.ShuffleEnabled && len(ps.ShuffledQueue) > 0 {
			ps.ShuffledQueue = queue.AppendUnique(ps.ShuffledQueue, newTracks)
		}
	})
	s.bridge.AppendTracks(newTracks)
}

// AddRandomTracksToQueue queues up to count random catalog tracks.
func (s *Session) AddRandomTracksToQueue(count int) {
	tracks, err := s.repo.GetRandomTracks(count)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to load random tracks")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.addToQueueLocked(tracks)
}

// ClearUpcoming collapses the queue to just the current track.
func (s *Session) ClearUpcoming() {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state.Snapshot()
	if st.CurrentTrack == nil || len(st.Queue) == 0 {
		return
	}

	remaining := []models.Track{*st.CurrentTrack}
	s.state.Update(func(ps *PlaybackState) {
		ps.Queue = remaining
		ps.CurrentIndex = 0
		if ps.ShuffleEnabled {
			ps.ShuffledQueue = remaining
			ps.ShuffledIndex = 0
		}
	})

	s.bridge.SetQueue(remaining, 0, st.PositionMs)
}

// Seek jumps to a position in the current track.
func (s *Session) Seek(positionMs int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seekLocked(positionMs)
}

func (s *Session) seekLocked(positionMs int64) {
	s.bridge.Seek(positionMs)
	s.state.Update(func(ps *PlaybackState) {
		ps.PositionMs = positionMs
		if ps.CurrentTrack != nil {
			ps.CurrentLyricIndex = lyrics.IndexForPosition(ps.CurrentTrack.Lyrics, positionMs)
		}
	})
}

// ToggleLike optimistically flips the liked flag and persists it in the
// background. The write-back is tied to the track that was current at tap
// time.
func (s *Session) ToggleLike() {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.state.Snapshot()
	if st.CurrentTrack == nil {
		return
	}
	trackID := st.CurrentTrack.ID
	wasLiked := st.IsLiked

	s.state.Update(func(ps *PlaybackState) {
		ps.IsLiked = !wasLiked
	})

	go func() {
		var err error
		if wasLiked {
			err = s.repo.RemoveLiked(trackID)
		} else {
			err = s.repo.AddLiked(trackID)
		}
		if err != nil {
			s.logger.WithError(err).WithField("track_id", trackID).Warn("Failed to persist liked state")
		}
	}()
}

// runTrackSideEffects fires the non-blocking per-track-change work: liked
// state and accent color merge back into the state only while the track is
// still current; play count and history are recorded regardless.
func (s *Session) runTrackSideEffects(track models.Track) {
	expectedID := track.ID

	go func() {
		liked := false
		if got, err := s.repo.IsLiked(expectedID); err == nil {
			liked = got
		} else {
			s.logger.WithError(err).WithField("track_id", expectedID).Debug("Failed to read liked state")
		}

		accent := s.colors.AccentColor(s.ctx, track.ArtworkURL, artwork.DefaultAccent)

		s.state.Update(func(ps *PlaybackState) {
			// Discard if a newer track became current while we were out.
			if ps.CurrentTrack == nil || ps.CurrentTrack.ID != expectedID {
				return
			}
			ps.IsLiked = liked
			ps.AccentColor = accent.Hex()
		})
	}()

	go func() {
		if err := s.repo.IncrementPlayCount(expectedID); err != nil {
			s.logger.WithError(err).WithField("track_id", expectedID).Warn("Failed to increment play count")
		}
		if err := s.repo.AddToHistory(expectedID); err != nil {
			s.logger.WithError(err).WithField("track_id", expectedID).Warn("Failed to record history")
		}
	}()
}
