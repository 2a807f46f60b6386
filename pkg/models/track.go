package models

import "time"

// Track represents a music track in the catalog. Tracks are immutable from
// the player's point of view: the session only ever holds copies and never
// writes back into them.
type Track struct {
	ID         string      `json:"id"`
	Title      string      `json:"title"`
	Artist     string      `json:"artist"`
	Album      string      `json:"album"`
	ArtworkURL string      `json:"artworkUrl,omitempty"`
	DurationMs int64       `json:"durationMs"`
	Lyrics     []LyricLine `json:"lyrics,omitempty"`
	FilePath   string      `json:"-"` // don't expose file path to clients
	FileSize   int64       `json:"fileSize,omitempty"`
	PlayCount  int         `json:"playCount"`
	AddedAt    time.Time   `json:"addedAt,omitempty"`
}

// LyricLine is a single timed lyric line. A track's lyric list is ordered by
// ascending TimestampMs.
type LyricLine struct {
	TimestampMs int64  `json:"timestampMs"`
	Text        string `json:"text"`
}
