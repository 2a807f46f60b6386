// Package engine adapts the external media engine behind a narrow command
// and readback surface. The engine owns audio decode and render; this
// package never originates playback decisions, it only executes commands
// issued by the session and mirrors back what the engine reports.
package engine

import "resona/pkg/models"

// Bridge is the command/readback surface of the external media engine.
//
// Commands are fire-and-forget: they return immediately and failures are
// logged downstream rather than surfaced, so the session keeps operating on
// its own optimistic state. Readbacks return the last-known value and zero
// values while disconnected.
type Bridge interface {
	// Connect establishes the engine link. Calling it while already
	// connected is a no-op.
	Connect()

	// Disconnect tears the link down. Idempotent.
	Disconnect()

	// IsConnected reports the current link state.
	IsConnected() bool

	// ConnState delivers link-state transitions. The channel is owned by
	// the bridge and stays open across reconnects.
	ConnState() <-chan bool

	// SetQueue replaces the engine's queue and starts at the given index
	// and position.
	SetQueue(tracks []models.Track, startIndex int, startPositionMs int64)

	Play()
	Pause()
	Seek(positionMs int64)
	MoveItem(from, to int)
	AppendTracks(tracks []models.Track)
	SetSpeed(multiplier float64)
	SetRepeatMode(mode models.RepeatMode)
	SetShuffleFlag(enabled bool)

	// Readbacks.
	PositionMs() int64
	DurationMs() int64
	CurrentTrackID() string
}
