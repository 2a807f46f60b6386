package session

import (
	"sync"

	"resona/internal/artwork"
	"resona/pkg/models"
)

// PlaybackState is the authoritative playback snapshot owned by the session.
// Queue and ShuffledQueue always hold the same multiset of tracks whenever
// both are non-empty; when shuffle is enabled the shuffled queue's head is
// the current track.
type PlaybackState struct {
	CurrentTrack      *models.Track     `json:"currentTrack,omitempty"`
	Queue             []models.Track    `json:"queue"`
	ShuffledQueue     []models.Track    `json:"shuffledQueue,omitempty"`
	CurrentIndex      int               `json:"currentIndex"`
	ShuffledIndex     int               `json:"shuffledIndex"`
	IsPlaying         bool              `json:"isPlaying"`
	PositionMs        int64             `json:"positionMs"`
	DurationMs        int64             `json:"durationMs"`
	ShuffleEnabled    bool              `json:"shuffleEnabled"`
	RepeatMode        models.RepeatMode `json:"repeatMode"`
	IsLiked           bool              `json:"isLiked"`
	CurrentLyricIndex int               `json:"currentLyricIndex"`
	AccentColor       string            `json:"accentColor"`
}

// ActiveOrder returns whichever ordering is authoritative for index-based
// operations, together with the current index into it.
func (st PlaybackState) ActiveOrder() ([]models.Track, int) {
	if st.ShuffleEnabled && len(st.ShuffledQueue) > 0 {
		return st.ShuffledQueue, st.ShuffledIndex
	}
	return st.Queue, st.CurrentIndex
}

// State serializes all PlaybackState mutation through Update and hands out
// consistent snapshots to readers and subscribers.
type State struct {
	mutex     sync.RWMutex
	current   PlaybackState
	listeners []chan PlaybackState
}

// NewState creates an idle playback state.
func NewState() *State {
	return &State{
		current: PlaybackState{
			CurrentLyricIndex: -1,
			AccentColor:       artwork.DefaultAccent.Hex(),
		},
	}
}

// Snapshot returns a copy of the current state. Queue slices are shared but
// never mutated in place, so the copy stays consistent.
func (s *State) Snapshot() PlaybackState {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.current
}

// Update applies fn to the state under the write lock and notifies
// subscribers. This is the only mutation path.
func (s *State) Update(fn func(*PlaybackState)) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	fn(&s.current)
	s.notifyListeners()
}

// Subscribe adds a listener for state changes.
func (s *State) Subscribe() <-chan PlaybackState {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	ch := make(chan PlaybackState, 16)
	s.listeners = append(s.listeners, ch)
	return ch
}

// Unsubscribe removes a listener and closes its channel.
func (s *State) Unsubscribe(ch <-chan PlaybackState) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for i, listener := range s.listeners {
		if listener == ch {
			close(listener)
			s.listeners = append(s.listeners[:i], s.listeners[i+1:]...)
			return
		}
	}
}

// notifyListeners pushes the current snapshot to all subscribers without
// blocking. Must be called with the write lock held.
func (s *State) notifyListeners() {
	for _, listener := range s.listeners {
		select {
		case listener <- s.current:
		default:
			// Listener is full; it will catch up on the next update.
		}
	}
}
