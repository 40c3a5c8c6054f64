package config

import (
	"context"
	"path/filepath"
	"sync"

	"github.com/edaniels/golog"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.viam.com/utils"
)

// A Watcher reports new configs read from a file each time the file changes.
type Watcher interface {
	Config() <-chan *Config
	Close() error
}

type fsConfigWatcher struct {
	fsWatcher  *fsnotify.Watcher
	configCh   chan *Config
	cancel     func()
	workers    sync.WaitGroup
	logger     golog.Logger
	configPath string
}

// NewWatcher returns a Watcher that re-reads the config at configPath whenever it is written.
// Configs that fail to read or validate are logged and skipped.
func NewWatcher(ctx context.Context, configPath string, logger golog.Logger) (Watcher, error) {
	configPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, err
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	// editors often replace files rather than write them in place, so watch the parent.
	if err := fsWatcher.Add(filepath.Dir(configPath)); err != nil {
		return nil, multierr.Combine(errors.Wrapf(err, "cannot watch %q", configPath), fsWatcher.Close())
	}
	cancelCtx, cancel := context.WithCancel(ctx)
	w := &fsConfigWatcher{
		fsWatcher:  fsWatcher,
		configCh:   make(chan *Config),
		cancel:     cancel,
		logger:     logger,
		configPath: configPath,
	}
	w.workers.Add(1)
	utils.ManagedGo(func() {
		w.watch(cancelCtx)
	}, w.workers.Done)
	return w, nil
}

func (w *fsConfigWatcher) watch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Errorw("error watching config", "error", err)
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.configPath {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			newConfig, err := Read(ctx, w.configPath, w.logger)
			if err != nil {
				w.logger.Warnw("ignoring changed config", "path", w.configPath, "error", err)
				continue
			}
			select {
			case <-ctx.Done():
				return
			case w.configCh <- newConfig:
			}
		}
	}
}

func (w *fsConfigWatcher) Config() <-chan *Config {
	return w.configCh
}

func (w *fsConfigWatcher) Close() error {
	w.cancel()
	err := w.fsWatcher.Close()
	w.workers.Wait()
	return err
}
