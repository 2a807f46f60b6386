package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"resona/internal/artwork"
	"resona/internal/config"
	"resona/internal/database"
	"resona/internal/engine"
	"resona/internal/metadata"
	"resona/internal/session"

	"github.com/sirupsen/logrus"
)

func main() {
	configPath := "./config.toml"

	// Initialize basic logger for startup
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.WithError(err).Fatal("Error loading configuration")
	}

	if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		logger.SetLevel(level)
	}
	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	// Initialize database
	db, err := database.NewDatabase(cfg.Database.Path, logger)
	if err != nil {
		logger.WithError(err).Fatal("Error initializing database")
	}
	defer db.Close()

	// Import the local library into the catalog
	if cfg.Library.ImportOnStartup {
		if _, err := os.Stat(cfg.Library.Path); os.IsNotExist(err) {
			logger.WithField("library_path", cfg.Library.Path).Warn("Music directory does not exist, skipping import")
		} else {
			extractor := metadata.NewExtractor(cfg.Library.SupportedFormats, logger)
			importer := metadata.NewImporter(extractor, db, logger)
			count, err := importer.ImportDirectory(cfg.Library.Path)
			if err != nil {
				logger.WithError(err).Fatal("Error importing music library")
			}
			if count == 0 {
				logger.WithField("supported_formats", cfg.Library.SupportedFormats).Warn("No supported audio files found in music directory")
			}
		}
	}

	// Connect to the media engine daemon
	bridge := engine.NewRemote(cfg.Engine.URL, cfg.Engine.StatusInterval(), logger)
	bridge.Connect()
	defer bridge.Disconnect()

	// Artwork cache, accent colors, and prefetching
	cache := artwork.NewCache(30 * time.Minute)
	colors := artwork.NewExtractor(logger)
	prefetcher := artwork.NewPrefetcher(cache, logger)

	// Playback session
	sess := session.New(bridge, db, colors, prefetcher, session.Options{
		ProgressInterval:  cfg.Player.ProgressInterval(),
		ReconcileInterval: cfg.Player.ReconcileInterval(),
		Speed:             cfg.Player.Speed,
	}, logger)

	// Watch the config file for playback speed changes
	watcher, err := config.NewWatcher(configPath, cfg.Player.Speed, logger)
	if err != nil {
		logger.WithError(err).Warn("Config watching disabled")
	} else {
		defer watcher.Close()
		sess.WatchSpeed(watcher.SpeedUpdates())
	}

	logger.WithFields(logrus.Fields{
		"engine_url": cfg.Engine.URL,
		"database":   cfg.Database.Path,
	}).Info("Resona is ready")

	// Handle graceful shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	logger.Info("Received shutdown signal")
	sess.Close()
}
