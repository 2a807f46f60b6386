// Package metadata imports local audio files into the track catalog: tag
// reading, duration calculation, lyric sidecars and cover-art discovery.
package metadata

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
	"github.com/mewkiz/flac"
	"github.com/sirupsen/logrus"
	"github.com/tcolgate/mp3"

	"resona/internal/lyrics"
	"resona/pkg/models"
)

// coverNames are the artwork files recognised next to audio files, in
// preference order.
var coverNames = []string{"cover.jpg", "cover.png", "folder.jpg", "folder.png"}

// Extractor builds catalog tracks from audio files on disk.
type Extractor struct {
	supportedFormats []string
	logger           *logrus.Logger
}

// NewExtractor creates a metadata extractor for the given formats (lowercase
// extensions including the dot, e.g. ".mp3").
func NewExtractor(supportedFormats []string, logger *logrus.Logger) *Extractor {
	return &Extractor{
		supportedFormats: supportedFormats,
		logger:           logger,
	}
}

// IsAudioFile checks if a file is a supported audio format.
func (e *Extractor) IsAudioFile(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))
	for _, format := range e.supportedFormats {
		if ext == format {
			return true
		}
	}
	return false
}

// ExtractFromFile builds a Track from an audio file: tags, duration, lyric
// sidecar and cover art. Tag failures degrade to filename-derived metadata
// rather than erroring, so a badly tagged file still enters the catalog.
func (e *Extractor) ExtractFromFile(filePath string) (models.Track, error) {
	startTime := time.Now()

	file, err := os.Open(filePath)
	if err != nil {
		return models.Track{}, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return models.Track{}, fmt.Errorf("failed to stat audio file: %w", err)
	}

	durationMs, err := e.durationMs(filePath)
	if err != nil {
		e.logger.WithError(err).WithField("file_path", filePath).Warn("Failed to calculate duration, setting to 0")
		durationMs = 0
	}

	track := models.Track{
		// Deterministic id derived from the path, so re-imports update the
		// existing row instead of duplicating it.
		ID:         uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filePath)).String(),
		Title:      strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath)),
		Artist:     "Unknown Artist",
		Album:      "Unknown Album",
		DurationMs: durationMs,
		FilePath:   filePath,
		FileSize:   stat.Size(),
		ArtworkURL: findCoverArt(filepath.Dir(filePath)),
		Lyrics:     e.loadLyricSidecar(filePath),
	}

	metadata, err := tag.ReadFrom(file)
	if err != nil {
		e.logger.WithError(err).WithField("file_path", filePath).Warn("Failed to read tags, using filename")
		return track, nil
	}

	if title := metadata.Title(); title != "" {
		track.Title = title
	}
	if artist := metadata.Artist(); artist != "" {
		track.Artist = artist
	}
	if album := metadata.Album(); album != "" {
		track.Album = album
	}

	e.logger.WithFields(logrus.Fields{
		"file_path":       filePath,
		"title":           track.Title,
		"artist":          track.Artist,
		"duration_ms":     track.DurationMs,
		"lyric_lines":     len(track.Lyrics),
		"processing_time": time.Since(startTime),
	}).Debug("Extracted track metadata")

	return track, nil
}

// loadLyricSidecar reads a .lrc file sitting next to the audio file, if any.
func (e *Extractor) loadLyricSidecar(audioPath string) []models.LyricLine {
	lrcPath := strings.TrimSuffix(audioPath, filepath.Ext(audioPath)) + ".lrc"
	f, err := os.Open(lrcPath)
	if err != nil {
		return nil
	}
	defer f.Close()

	lines, err := lyrics.ParseLRC(f)
	if err != nil {
		e.logger.WithError(err).WithField("lrc_path", lrcPath).Warn("Failed to parse lyric sidecar")
		return nil
	}
	return lines
}

// findCoverArt returns the path of a recognised cover image in dir, or "".
func findCoverArt(dir string) string {
	for _, name := range coverNames {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// durationMs calculates the duration of an audio file in milliseconds.
func (e *Extractor) durationMs(filePath string) (int64, error) {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".mp3":
		return e.durationMP3(filePath)
	case ".flac":
		return e.durationFLAC(filePath)
	case ".wav":
		return e.durationWAV(filePath)
	default:
		return 0, fmt.Errorf("unsupported format: %s", filepath.Ext(filePath))
	}
}

// durationMP3 sums frame durations; if no frame decodes, estimates from the
// file size assuming 192 kbps.
func (e *Extractor) durationMP3(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dec := mp3.NewDecoder(f)
	var total time.Duration
	var skipped int
	frames := 0
	for {
		var frame mp3.Frame
		if err := dec.Decode(&frame, &skipped); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if frames == 0 {
				return e.estimateFromFileSize(path, 192_000)
			}
			break // partial decode; use what we have
		}
		total += frame.Duration()
		frames++
	}
	return total.Milliseconds(), nil
}

// durationFLAC reads the STREAMINFO metadata block.
func (e *Extractor) durationFLAC(path string) (int64, error) {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return 0, err
	}
	info := stream.Info
	if info.NSamples == 0 || info.SampleRate == 0 {
		return 0, fmt.Errorf("flac stream missing sample info")
	}
	return int64(float64(info.NSamples) / float64(info.SampleRate) * 1000), nil
}

// durationWAV approximates from the header and PCM byte count.
func (e *Extractor) durationWAV(path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return 0, fmt.Errorf("invalid wav file")
	}
	if dec.SampleRate == 0 || dec.BitDepth == 0 || dec.NumChans == 0 {
		return 0, fmt.Errorf("invalid wav header")
	}

	stat, err := f.Stat()
	if err != nil {
		return 0, err
	}
	pcmBytes := stat.Size() - 44 // header
	if pcmBytes < 0 {
		pcmBytes = 0
	}
	bytesPerFrame := int64(dec.BitDepth/8) * int64(dec.NumChans)
	if bytesPerFrame <= 0 {
		return 0, fmt.Errorf("invalid sample frame size")
	}
	frames := pcmBytes / bytesPerFrame
	return int64(float64(frames) / float64(dec.SampleRate) * 1000), nil
}

// estimateFromFileSize provides last-resort estimation if parsing fails.
func (e *Extractor) estimateFromFileSize(path string, bitrate int64) (int64, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if bitrate <= 0 {
		return 0, fmt.Errorf("invalid bitrate")
	}
	return stat.Size() * 8 * 1000 / bitrate, nil
}
