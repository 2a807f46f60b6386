// Package database is the sqlite-backed catalog, history and liked-track
// store consumed by the playback session.
package database

import (
	"database/sql"
	"fmt"
	"time"

	"resona/pkg/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// historyLimit caps the recently-played list at the most recent entries.
const historyLimit = 10

// Database wraps a *sql.DB providing higher-level helper methods for the
// track catalog and per-user playback data. It is safe for concurrent use
// because the underlying *sql.DB is concurrency-safe.
type Database struct {
	conn   *sql.DB
	logger *logrus.Logger

	// Prepared statements for the hot paths hit on every track change
	getTrackByIDStmt *sql.Stmt
	incrementStmt    *sql.Stmt
	isLikedStmt      *sql.Stmt
}

// NewDatabase opens (or creates) a SQLite database at the provided path and
// ensures all required tables and indices exist. It also applies lightweight
// performance-oriented pragmas (WAL, cache sizing). Caller should Close() it
// when finished.
func NewDatabase(dbPath string, logger *logrus.Logger) (*Database, error) {
	conn, err := sql.Open("sqlite3", dbPath+"?cache=shared&mode=rwc")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite works better with fewer connections
	conn.SetMaxOpenConns(5)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(15 * time.Minute)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA temp_store=memory;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			logger.WithError(err).WithField("pragma", pragma).Warn("Failed to set pragma")
		}
	}

	db := &Database{
		conn:   conn,
		logger: logger,
	}

	if err := db.createTables(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if err := db.prepareStatements(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	logger.WithField("db_path", dbPath).Info("Database initialized successfully")
	return db, nil
}

// createTables creates tables and indices if they do not already exist. It
// is idempotent and safe to call multiple times.
func (db *Database) createTables() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS tracks (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			artist TEXT NOT NULL,
			album TEXT NOT NULL,
			artwork_url TEXT DEFAULT '',
			duration_ms INTEGER DEFAULT 0,
			file_path TEXT NOT NULL UNIQUE,
			file_size INTEGER DEFAULT 0,
			play_count INTEGER DEFAULT 0,
			added_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE IF NOT EXISTS lyrics (
			track_id TEXT NOT NULL REFERENCES tracks(id) ON DELETE CASCADE,
			timestamp_ms INTEGER NOT NULL,
			line TEXT NOT NULL,
			PRIMARY KEY (track_id, timestamp_ms)
		);`,
		`CREATE TABLE IF NOT EXISTS history (
			track_id TEXT PRIMARY KEY REFERENCES tracks(id) ON DELETE CASCADE,
			played_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS liked (
			track_id TEXT PRIMARY KEY REFERENCES tracks(id) ON DELETE CASCADE,
			liked_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tracks_artist ON tracks(artist);`,
		`CREATE INDEX IF NOT EXISTS idx_tracks_album ON tracks(album);`,
		`CREATE INDEX IF NOT EXISTS idx_history_played_at ON history(played_at DESC);`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}
	return nil
}

// prepareStatements prepares the statements used on every track change.
func (db *Database) prepareStatements() error {
	var err error

	db.getTrackByIDStmt, err = db.conn.Prepare(
		`SELECT id, title, artist, album, artwork_url, duration_ms, file_path, file_size, play_count, added_at
		 FROM tracks WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare getTrackByID: %w", err)
	}

	db.incrementStmt, err = db.conn.Prepare(
		`UPDATE tracks SET play_count = play_count + 1 WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare incrementPlayCount: %w", err)
	}

	db.isLikedStmt, err = db.conn.Prepare(
		`SELECT COUNT(1) FROM liked WHERE track_id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare isLiked: %w", err)
	}

	return nil
}

// Close releases prepared statements and the underlying connection pool.
func (db *Database) Close() error {
	for _, stmt := range []*sql.Stmt{db.getTrackByIDStmt, db.incrementStmt, db.isLikedStmt} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return db.conn.Close()
}

// UpsertTrack inserts a track or refreshes its metadata when the id already
// exists. Play counts are preserved across upserts. Lyrics attached to the
// track are replaced atomically.
func (db *Database) UpsertTrack(track models.Track) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin upsert: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO tracks (id, title, artist, album, artwork_url, duration_ms, file_path, file_size)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			artist = excluded.artist,
			album = excluded.album,
			artwork_url = excluded.artwork_url,
			duration_ms = excluded.duration_ms,
			file_path = excluded.file_path,
			file_size = excluded.file_size`,
		track.ID, track.Title, track.Artist, track.Album,
		track.ArtworkURL, track.DurationMs, track.FilePath, track.FileSize)
	if err != nil {
		return fmt.Errorf("failed to upsert track %s: %w", track.ID, err)
	}

	if _, err := tx.Exec(`DELETE FROM lyrics WHERE track_id = ?`, track.ID); err != nil {
		return fmt.Errorf("failed to clear lyrics for %s: %w", track.ID, err)
	}
	for _, line := range track.Lyrics {
		if _, err := tx.Exec(
			`INSERT OR REPLACE INTO lyrics (track_id, timestamp_ms, line) VALUES (?, ?, ?)`,
			track.ID, line.TimestampMs, line.Text); err != nil {
			return fmt.Errorf("failed to insert lyric line for %s: %w", track.ID, err)
		}
	}

	return tx.Commit()
}

// GetTrackByID returns the track with the given id, or nil when the catalog
// has no such track. A miss is not an error.
func (db *Database) GetTrackByID(id string) (*models.Track, error) {
	track, err := db.scanTrack(db.getTrackByIDStmt.QueryRow(id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get track %s: %w", id, err)
	}

	if err := db.loadLyrics(track); err != nil {
		// Lyrics are a UX enhancement; a track without them is still playable.
		db.logger.WithError(err).WithField("track_id", id).Warn("Failed to load lyrics")
	}
	return track, nil
}

// GetAllTracks returns the whole catalog ordered by artist, album and title.
func (db *Database) GetAllTracks() ([]models.Track, error) {
	rows, err := db.conn.Query(
		`SELECT id, title, artist, album, artwork_url, duration_ms, file_path, file_size, play_count, added_at
		 FROM tracks ORDER BY artist, album, title`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tracks: %w", err)
	}
	defer rows.Close()

	return db.collectTracks(rows)
}

// GetRandomTracks returns up to n random catalog tracks.
func (db *Database) GetRandomTracks(n int) ([]models.Track, error) {
	rows, err := db.conn.Query(
		`SELECT id, title, artist, album, artwork_url, duration_ms, file_path, file_size, play_count, added_at
		 FROM tracks ORDER BY RANDOM() LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query random tracks: %w", err)
	}
	defer rows.Close()

	return db.collectTracks(rows)
}

// IncrementPlayCount bumps the play counter for a track.
func (db *Database) IncrementPlayCount(id string) error {
	if _, err := db.incrementStmt.Exec(id); err != nil {
		return fmt.Errorf("failed to increment play count for %s: %w", id, err)
	}
	return nil
}

// AddToHistory records a play at the front of the recently-played list,
// de-duplicating by track and trimming the list to the most recent entries.
func (db *Database) AddToHistory(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin history update: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO history (track_id, played_at) VALUES (?, ?)
		 ON CONFLICT(track_id) DO UPDATE SET played_at = excluded.played_at`,
		id, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to record history for %s: %w", id, err)
	}

	if _, err := tx.Exec(
		`DELETE FROM history WHERE track_id NOT IN (
			SELECT track_id FROM history ORDER BY played_at DESC LIMIT ?
		)`, historyLimit); err != nil {
		return fmt.Errorf("failed to trim history: %w", err)
	}

	return tx.Commit()
}

// GetHistory returns the recently-played tracks, most recent first.
func (db *Database) GetHistory() ([]models.Track, error) {
	rows, err := db.conn.Query(
		`SELECT t.id, t.title, t.artist, t.album, t.artwork_url, t.duration_ms, t.file_path, t.file_size, t.play_count, t.added_at
		 FROM history h JOIN tracks t ON t.id = h.track_id
		 ORDER BY h.played_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	return db.collectTracks(rows)
}

// IsLiked reports whether the track is in the liked set.
func (db *Database) IsLiked(id string) (bool, error) {
	var count int
	if err := db.isLikedStmt.QueryRow(id).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check liked state for %s: %w", id, err)
	}
	return count > 0, nil
}

// AddLiked puts the track into the liked set. Re-liking is a no-op.
func (db *Database) AddLiked(id string) error {
	if _, err := db.conn.Exec(
		`INSERT OR IGNORE INTO liked (track_id) VALUES (?)`, id); err != nil {
		return fmt.Errorf("failed to like track %s: %w", id, err)
	}
	return nil
}

// RemoveLiked takes the track out of the liked set.
func (db *Database) RemoveLiked(id string) error {
	if _, err := db.conn.Exec(
		`DELETE FROM liked WHERE track_id = ?`, id); err != nil {
		return fmt.Errorf("failed to unlike track %s: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (db *Database) scanTrack(row rowScanner) (*models.Track, error) {
	var track models.Track
	err := row.Scan(&track.ID, &track.Title, &track.Artist, &track.Album,
		&track.ArtworkURL, &track.DurationMs, &track.FilePath, &track.FileSize,
		&track.PlayCount, &track.AddedAt)
	if err != nil {
		return nil, err
	}
	return &track, nil
}

func (db *Database) collectTracks(rows *sql.Rows) ([]models.Track, error) {
	var tracks []models.Track
	for rows.Next() {
		track, err := db.scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track row: %w", err)
		}
		tracks = append(tracks, *track)
	}
	return tracks, rows.Err()
}

func (db *Database) loadLyrics(track *models.Track) error {
	rows, err := db.conn.Query(
		`SELECT timestamp_ms, line FROM lyrics WHERE track_id = ? ORDER BY timestamp_ms`,
		track.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var line models.LyricLine
		if err := rows.Scan(&line.TimestampMs, &line.Text); err != nil {
			return err
		}
		track.Lyrics = append(track.Lyrics, line)
	}
	return rows.Err()
}
