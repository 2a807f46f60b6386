package metadata

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"resona/pkg/models"
)

// Catalog is the slice of the track store the importer writes into.
type Catalog interface {
	UpsertTrack(track models.Track) error
}

// Importer walks a music directory and loads every supported audio file
// into the catalog.
type Importer struct {
	extractor *Extractor
	catalog   Catalog
	logger    *logrus.Logger
}

// NewImporter creates an importer writing through the given catalog.
func NewImporter(extractor *Extractor, catalog Catalog, logger *logrus.Logger) *Importer {
	return &Importer{
		extractor: extractor,
		catalog:   catalog,
		logger:    logger,
	}
}

// ImportDirectory scans root recursively and upserts every supported audio
// file. Files that fail to extract or store are logged and skipped; the scan
// itself only fails when the directory cannot be walked. Returns the number
// of imported tracks.
func (im *Importer) ImportDirectory(root string) (int, error) {
	imported := 0

	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !im.extractor.IsAudioFile(path) {
			return nil
		}

		track, err := im.extractor.ExtractFromFile(path)
		if err != nil {
			im.logger.WithError(err).WithField("file_path", path).Warn("Skipping unreadable audio file")
			return nil
		}
		if err := im.catalog.UpsertTrack(track); err != nil {
			im.logger.WithError(err).WithField("file_path", path).Warn("Failed to store track")
			return nil
		}
		imported++
		return nil
	})
	if err != nil {
		return imported, fmt.Errorf("failed to scan music directory: %w", err)
	}

	im.logger.WithFields(logrus.Fields{
		"library_path": root,
		"imported":     imported,
	}).Info("Music library import finished")
	return imported, nil
}
