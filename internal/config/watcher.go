package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher re-reads the config file when it changes on disk and publishes
// playback-speed changes, so speed preferences apply to a running player
// without a restart.
type Watcher struct {
	configPath string
	logger     *logrus.Logger
	watcher    *fsnotify.Watcher
	speedCh    chan float64
	lastSpeed  float64
	done       chan struct{}
}

// NewWatcher starts watching configPath. currentSpeed seeds change
// detection so an unchanged file never emits.
func NewWatcher(configPath string, currentSpeed float64, logger *logrus.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsWatcher.Add(configPath); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	w := &Watcher{
		configPath: configPath,
		logger:     logger,
		watcher:    fsWatcher,
		speedCh:    make(chan float64, 4),
		lastSpeed:  currentSpeed,
		done:       make(chan struct{}),
	}
	go w.watchLoop()

	logger.WithField("config_path", configPath).Info("Config watcher started")
	return w, nil
}

// SpeedUpdates delivers new playback speeds as they appear in the config
// file.
func (w *Watcher) SpeedUpdates() <-chan float64 {
	return w.speedCh
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}

// watchLoop selects on watcher channels and reloads on writes.
func (w *Watcher) watchLoop() {
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.reload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Error("Config watcher error")
		}
	}
}

// reload parses the file and emits the speed when it changed. Parse errors
// are logged and ignored so a half-written file never breaks playback.
func (w *Watcher) reload() {
	cfg, err := LoadConfig(w.configPath)
	if err != nil {
		w.logger.WithError(err).Warn("Ignoring unreadable config change")
		return
	}

	if cfg.Player.Speed == w.lastSpeed {
		return
	}
	w.lastSpeed = cfg.Player.Speed

	select {
	case w.speedCh <- cfg.Player.Speed:
		w.logger.WithField("speed", cfg.Player.Speed).Info("Playback speed preference changed")
	default:
		w.logger.Warn("Speed subscriber is lagging, dropping update")
	}
}
