// Package watch keeps a single filesystem watch on the active save directory
// and turns its events into debounced refreshes.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/joe/savegames/internal/logging"
	"github.com/joe/savegames/internal/metrics"
	"github.com/joe/savegames/internal/refresh"
	"github.com/joe/savegames/pkg/fileops"
	"github.com/joe/savegames/pkg/filesystem"
)

// ErrDirectoryRemoved is reported when the watched directory itself is
// deleted or renamed.
var ErrDirectoryRemoved = errors.New("watched directory was removed")

// Refresher is the part of the refresh scheduler the watch drives.
type Refresher interface {
	Schedule(key string, target refresh.Target)
	RunNow(ctx context.Context, key string, target refresh.Target) error
}

// Notifier receives non-fatal watch failures.
type Notifier interface {
	NotifyError(key string, err error)
}

// Lifecycle owns the one active watch.
type Lifecycle struct {
	Key       string
	FS        filesystem.FileSystem
	Refresher Refresher
	Notifier  Notifier
	Logger    *zap.Logger
	Metrics   *metrics.Metrics

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	dir     string
}

// NewLifecycle creates a lifecycle that refreshes key.
func NewLifecycle(key string, fs filesystem.FileSystem, refresher Refresher, notifier Notifier) *Lifecycle {
	return &Lifecycle{Key: key, FS: fs, Refresher: refresher, Notifier: notifier}
}

// Dir returns the watched directory, or "" when no watch is active.
func (l *Lifecycle) Dir() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.dir
}

// Start replaces the current watch with one on dir, creating dir if needed,
// and runs one refresh right away. The watch stays active when that refresh fails.
func (l *Lifecycle) Start(ctx context.Context, dir string) error {
	dir = filepath.Clean(dir)

	l.mu.Lock()
	l.stopLocked()

	err := l.FS.MkdirAll(dir, fileops.DefaultDirPermissions)
	if err != nil {
		l.mu.Unlock()

		return fmt.Errorf("failed to create save directory %s: %w", dir, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		l.mu.Unlock()

		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	err = watcher.Add(dir)
	if err != nil {
		_ = watcher.Close()
		l.mu.Unlock()

		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	l.watcher = watcher
	l.dir = dir
	l.mu.Unlock()

	go l.loop(watcher, dir)

	logging.OrNop(l.Logger).Info("watching save directory", zap.String("dir", dir))

	return l.Refresher.RunNow(ctx, l.Key, refresh.Target{Dir: dir, Reason: "watch started"})
}

// Stop closes the active watch. Calling it without one is a no-op.
func (l *Lifecycle) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.stopLocked()
}

func (l *Lifecycle) stopLocked() {
	if l.watcher == nil {
		return
	}

	_ = l.watcher.Close()
	l.watcher = nil
	l.dir = ""
}

func (l *Lifecycle) loop(watcher *fsnotify.Watcher, dir string) {
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			if filepath.Clean(event.Name) == dir && event.Has(fsnotify.Remove|fsnotify.Rename) {
				l.fail(watcher, fmt.Errorf("%w: %s", ErrDirectoryRemoved, dir))

				return
			}

			l.Refresher.Schedule(l.Key, refresh.Target{Dir: dir, Reason: event.Op.String()})
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}

			l.fail(watcher, fmt.Errorf("watch on %s failed: %w", dir, err))

			return
		}
	}
}

// fail tears down watcher if it is still the active one and reports err.
func (l *Lifecycle) fail(watcher *fsnotify.Watcher, err error) {
	l.mu.Lock()
	active := l.watcher == watcher

	if active {
		l.watcher = nil
		l.dir = ""
	}
	l.mu.Unlock()

	_ = watcher.Close()

	if !active {
		return
	}

	logging.OrNop(l.Logger).Warn("save directory watch stopped", zap.Error(err))
	l.Metrics.ObserveWatchError()

	if l.Notifier != nil {
		l.Notifier.NotifyError(l.Key, err)
	}
}
