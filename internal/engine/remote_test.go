package engine

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"resona/pkg/models"
)

// fakeDaemon is a minimal stand-in for the engine daemon: it records posted
// commands and serves a fixed status.
type fakeDaemon struct {
	mu       sync.Mutex
	commands []command
	status   engineStatus
}

func (d *fakeDaemon) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/command", func(w http.ResponseWriter, r *http.Request) {
		var cmd command
		if err := json.NewDecoder(r.Body).Decode(&cmd); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		d.mu.Lock()
		d.commands = append(d.commands, cmd)
		d.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		d.mu.Lock()
		status := d.status
		d.mu.Unlock()
		json.NewEncoder(w).Encode(status)
	})
	return mux
}

func (d *fakeDaemon) recorded() []command {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]command, len(d.commands))
	copy(out, d.commands)
	return out
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func TestRemoteConnectIsIdempotent(t *testing.T) {
	daemon := &fakeDaemon{}
	server := httptest.NewServer(daemon.handler())
	defer server.Close()

	bridge := NewRemote(server.URL, 10*time.Millisecond, testLogger())
	defer bridge.Disconnect()

	bridge.Connect()
	bridge.Connect()
	bridge.Connect()

	if !bridge.IsConnected() {
		t.Fatal("bridge should be connected")
	}

	// Exactly one transition for the three Connect calls.
	select {
	case up := <-bridge.ConnState():
		if !up {
			t.Errorf("first transition = %v, want true", up)
		}
	default:
		t.Fatal("expected a connection transition")
	}
	select {
	case up := <-bridge.ConnState():
		t.Errorf("unexpected extra transition: %v", up)
	default:
	}
}

func TestRemoteDisconnectZeroesReadbacks(t *testing.T) {
	daemon := &fakeDaemon{status: engineStatus{TrackID: "t1", PositionMs: 1500, DurationMs: 90_000}}
	server := httptest.NewServer(daemon.handler())
	defer server.Close()

	bridge := NewRemote(server.URL, 10*time.Millisecond, testLogger())
	bridge.Connect()

	waitFor(t, time.Second, func() bool { return bridge.CurrentTrackID() == "t1" })
	if bridge.PositionMs() != 1500 || bridge.DurationMs() != 90_000 {
		t.Errorf("readbacks = %d/%d, want 1500/90000", bridge.PositionMs(), bridge.DurationMs())
	}

	bridge.Disconnect()
	bridge.Disconnect() // idempotent

	if bridge.CurrentTrackID() != "" || bridge.PositionMs() != 0 || bridge.DurationMs() != 0 {
		t.Errorf("readbacks after disconnect = %q/%d/%d, want empty/0/0",
			bridge.CurrentTrackID(), bridge.PositionMs(), bridge.DurationMs())
	}
}

func TestRemoteCommandsReachDaemon(t *testing.T) {
	daemon := &fakeDaemon{}
	server := httptest.NewServer(daemon.handler())
	defer server.Close()

	bridge := NewRemote(server.URL, time.Hour, testLogger())
	bridge.Connect()
	defer bridge.Disconnect()

	tracks := []models.Track{{ID: "a", Title: "A"}, {ID: "b", Title: "B"}}
	bridge.SetQueue(tracks, 1, 2500)
	bridge.Seek(42)
	bridge.SetRepeatMode(models.RepeatAll)
	bridge.SetShuffleFlag(true)
	bridge.SetSpeed(1.5)
	bridge.MoveItem(0, 1)

	waitFor(t, time.Second, func() bool { return len(daemon.recorded()) == 6 })

	byName := map[string]command{}
	for _, cmd := range daemon.recorded() {
		byName[cmd.Cmd] = cmd
	}

	sq, ok := byName["set_queue"]
	if !ok {
		t.Fatal("set_queue never arrived")
	}
	if len(sq.Tracks) != 2 || sq.StartIndex != 1 || sq.StartPositionMs != 2500 {
		t.Errorf("set_queue = %+v", sq)
	}
	if byName["seek"].PositionMs != 42 {
		t.Errorf("seek position = %d, want 42", byName["seek"].PositionMs)
	}
	if byName["set_repeat"].Mode != "all" {
		t.Errorf("repeat mode = %q, want all", byName["set_repeat"].Mode)
	}
	if !byName["set_shuffle"].Enabled {
		t.Error("shuffle flag not set")
	}
	if byName["set_speed"].Speed != 1.5 {
		t.Errorf("speed = %v, want 1.5", byName["set_speed"].Speed)
	}
}

func TestRemoteCommandFailureIsSwallowed(t *testing.T) {
	// Point at a closed server: commands must not panic or block.
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	bridge := NewRemote(url, time.Hour, testLogger())
	bridge.Connect()
	defer bridge.Disconnect()

	done := make(chan struct{})
	go func() {
		bridge.Play()
		bridge.Pause()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("command issuing blocked the caller")
	}
}
