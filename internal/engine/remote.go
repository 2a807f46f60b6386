package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"resona/pkg/models"
)

// queueEntry is the wire form of a queued track sent to the engine daemon.
type queueEntry struct {
	ID         string `json:"id"`
	MediaPath  string `json:"mediaPath,omitempty"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	DurationMs int64  `json:"durationMs"`
}

// command is a single fire-and-forget instruction for the engine daemon.
type command struct {
	Cmd             string       `json:"cmd"`
	Tracks          []queueEntry `json:"tracks,omitempty"`
	StartIndex      int          `json:"startIndex,omitempty"`
	StartPositionMs int64        `json:"startPositionMs,omitempty"`
	PositionMs      int64        `json:"positionMs,omitempty"`
	From            int          `json:"from,omitempty"`
	To              int          `json:"to,omitempty"`
	Speed           float64      `json:"speed,omitempty"`
	Mode            string       `json:"mode,omitempty"`
	Enabled         bool         `json:"enabled,omitempty"`
}

// engineStatus is what the daemon reports about its live playback state.
type engineStatus struct {
	TrackID    string `json:"trackId"`
	PositionMs int64  `json:"positionMs"`
	DurationMs int64  `json:"durationMs"`
}

// Remote is a Bridge implementation that talks to a local playback daemon
// over HTTP. Commands are posted from their own goroutines so callers never
// block; readbacks are served from a mirror refreshed by a status poll that
// runs while connected.
type Remote struct {
	baseURL        string
	client         *http.Client
	logger         *logrus.Logger
	statusInterval time.Duration

	mu        sync.Mutex
	connected bool
	cancel    context.CancelFunc
	connCh    chan bool

	mirrorMu sync.RWMutex
	mirror   engineStatus
}

// NewRemote creates a bridge for the engine daemon at baseURL. The bridge
// starts disconnected; call Connect before issuing commands.
func NewRemote(baseURL string, statusInterval time.Duration, logger *logrus.Logger) *Remote {
	if statusInterval <= 0 {
		statusInterval = 250 * time.Millisecond
	}
	return &Remote{
		baseURL:        baseURL,
		client:         &http.Client{Timeout: 5 * time.Second},
		logger:         logger,
		statusInterval: statusInterval,
		connCh:         make(chan bool, 8),
	}
}

// Connect starts the status poll loop. Repeated calls while connected are
// no-ops.
func (r *Remote) Connect() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.connected {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.connected = true
	go r.pollStatus(ctx)

	r.notifyConn(true)
	r.logger.WithField("engine_url", r.baseURL).Info("Engine bridge connected")
}

// Disconnect stops the poll loop and zeroes the readback mirror. Idempotent.
func (r *Remote) Disconnect() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.connected {
		return
	}

	r.cancel()
	r.cancel = nil
	r.connected = false

	r.mirrorMu.Lock()
	r.mirror = engineStatus{}
	r.mirrorMu.Unlock()

	r.notifyConn(false)
	r.logger.Info("Engine bridge disconnected")
}

// IsConnected reports whether the bridge link is up.
func (r *Remote) IsConnected() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.connected
}

// ConnState returns the connection transition channel.
func (r *Remote) ConnState() <-chan bool {
	return r.connCh
}

// notifyConn emits a transition without blocking. Must be called with r.mu
// held.
func (r *Remote) notifyConn(up bool) {
	select {
	case r.connCh <- up:
	default:
		r.logger.Warn("Connection state listener is lagging, dropping transition")
	}
}

// SetQueue replaces the engine queue.
func (r *Remote) SetQueue(tracks []models.Track, startIndex int, startPositionMs int64) {
	r.send(command{
		Cmd:             "set_queue",
		Tracks:          toEntries(tracks),
		StartIndex:      startIndex,
		StartPositionMs: startPositionMs,
	})
}

func (r *Remote) Play()  { r.send(command{Cmd: "play"}) }
func (r *Remote) Pause() { r.send(command{Cmd: "pause"}) }

func (r *Remote) Seek(positionMs int64) {
	r.send(command{Cmd: "seek", PositionMs: positionMs})
}

func (r *Remote) MoveItem(from, to int) {
	r.send(command{Cmd: "move_item", From: from, To: to})
}

func (r *Remote) AppendTracks(tracks []models.Track) {
	if len(tracks) == 0 {
		return
	}
	r.send(command{Cmd: "append", Tracks: toEntries(tracks)})
}

func (r *Remote) SetSpeed(multiplier float64) {
	r.send(command{Cmd: "set_speed", Speed: multiplier})
}

func (r *Remote) SetRepeatMode(mode models.RepeatMode) {
	r.send(command{Cmd: "set_repeat", Mode: mode.String()})
}

func (r *Remote) SetShuffleFlag(enabled bool) {
	r.send(command{Cmd: "set_shuffle", Enabled: enabled})
}

// PositionMs returns the engine's last reported position, 0 when
// disconnected.
func (r *Remote) PositionMs() int64 {
	r.mirrorMu.RLock()
	defer r.mirrorMu.RUnlock()
	return r.mirror.PositionMs
}

// DurationMs returns the engine's last reported duration, 0 when
// disconnected.
func (r *Remote) DurationMs() int64 {
	r.mirrorMu.RLock()
	defer r.mirrorMu.RUnlock()
	return r.mirror.DurationMs
}

// CurrentTrackID returns the id the engine reports as playing, empty when
// disconnected.
func (r *Remote) CurrentTrackID() string {
	r.mirrorMu.RLock()
	defer r.mirrorMu.RUnlock()
	return r.mirror.TrackID
}

// send posts a command from its own goroutine. Failures are logged and
// swallowed so the session keeps operating on optimistic state.
func (r *Remote) send(cmd command) {
	go func() {
		body, err := json.Marshal(cmd)
		if err != nil {
			r.logger.WithError(err).WithField("cmd", cmd.Cmd).Error("Failed to encode engine command")
			return
		}

		resp, err := r.client.Post(r.baseURL+"/command", "application/json", bytes.NewReader(body))
		if err != nil {
			r.logger.WithError(err).WithField("cmd", cmd.Cmd).Warn("Engine command failed")
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
			r.logger.WithFields(logrus.Fields{
				"cmd":    cmd.Cmd,
				"status": resp.StatusCode,
			}).Warn("Engine rejected command")
		}
	}()
}

// pollStatus refreshes the readback mirror until ctx is cancelled.
func (r *Remote) pollStatus(ctx context.Context) {
	ticker := time.NewTicker(r.statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			status, err := r.fetchStatus(ctx)
			if err != nil {
				// Keep the last-known mirror; transient daemon hiccups
				// must not wipe readbacks.
				r.logger.WithError(err).Debug("Engine status poll failed")
				continue
			}
			r.mirrorMu.Lock()
			r.mirror = status
			r.mirrorMu.Unlock()
		}
	}
}

func (r *Remote) fetchStatus(ctx context.Context) (engineStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/status", nil)
	if err != nil {
		return engineStatus{}, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return engineStatus{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return engineStatus{}, fmt.Errorf("engine status returned %d", resp.StatusCode)
	}

	var status engineStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return engineStatus{}, fmt.Errorf("failed to decode engine status: %w", err)
	}
	return status, nil
}

func toEntries(tracks []models.Track) []queueEntry {
	entries := make([]queueEntry, len(tracks))
	for i, t := range tracks {
		entries[i] = queueEntry{
			ID:         t.ID,
			MediaPath:  t.FilePath,
			Title:      t.Title,
			Artist:     t.Artist,
			DurationMs: t.DurationMs,
		}
	}
	return entries
}
