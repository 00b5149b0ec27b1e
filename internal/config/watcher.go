package config

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/blockfeed/blockfeed/pkg/logger"
)

// Update is emitted by the Watcher when the config file changes.
// Err is set when the new file failed to load or validate; the old
// configuration stays in effect in that case.
type Update struct {
	Old *Config
	New *Config
	Err error
}

// Watcher reloads the configuration file when it changes on disk.
//
// Updates are delivered on the channel returned by Updates(). The
// watcher never applies a config itself; consumers decide what to do
// with each update.
type Watcher struct {
	path    string
	current *Config
	logger  *logger.Logger

	fsw     *fsnotify.Watcher
	updates chan Update
}

// NewWatcher creates a watcher for the given config file.
func NewWatcher(path string, current *Config, log *logger.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}

	// Watch the directory, not the file: editors replace files on
	// save, which drops a watch registered on the file itself.
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	return &Watcher{
		path:    path,
		current: current,
		logger:  log,
		fsw:     fsw,
		updates: make(chan Update, 1),
	}, nil
}

// Updates returns the channel on which config changes are delivered.
func (w *Watcher) Updates() <-chan Update {
	return w.updates
}

// Run processes filesystem events until the context is cancelled.
// The updates channel is closed when Run returns, so consumers can
// range over Updates() and exit cleanly.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.updates)
	defer w.fsw.Close()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			w.reload()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	update := Update{Old: w.current}

	cfg, err := Load(w.path)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		w.logger.Warn("config reload failed, keeping previous config",
			zap.String("path", w.path),
			zap.Error(err))
		update.Err = err
	} else {
		w.logger.Info("config file reloaded", zap.String("path", w.path))
		update.New = cfg
		w.current = cfg
	}

	// Drop-oldest so a slow consumer never blocks event processing.
	select {
	case w.updates <- update:
	default:
		select {
		case <-w.updates:
		default:
		}
		w.updates <- update
	}
}
