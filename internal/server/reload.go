package server

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/ppiankov/transferguard/internal/logging"
)

// Reloadable is anything that can re-read its policy from disk.
type Reloadable interface {
	ReloadPolicy() error
}

// DefaultDebounce is how long the reloader waits after the last write.
const DefaultDebounce = 500 * time.Millisecond

// Reloader watches policy and denylist files for changes and triggers hot-reload.
type Reloader struct {
	watcher  *fsnotify.Watcher
	target   Reloadable
	paths    []string
	debounce time.Duration
	log      *logrus.Entry
}

// NewReloader creates a file watcher for the given paths. Paths that do
// not exist yet are skipped.
func NewReloader(target Reloadable, paths []string, logger *logrus.Logger) (*Reloader, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	var watched []string
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := watcher.Add(p); err != nil {
			watcher.Close()
			return nil, fmt.Errorf("failed to watch %q: %w", p, err)
		}
		watched = append(watched, p)
	}

	return &Reloader{
		watcher:  watcher,
		target:   target,
		paths:    watched,
		debounce: DefaultDebounce,
		log:      logging.Component(logger, "reload"),
	}, nil
}

// Paths returns the files actually being watched.
func (r *Reloader) Paths() []string {
	return r.paths
}

// Run watches for file changes and reloads policy. Blocks until ctx is cancelled.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()

	var debounce *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(r.debounce, func() {
					if err := r.target.ReloadPolicy(); err != nil {
						r.log.WithError(err).Error("hot-reload failed, keeping previous policy")
					} else {
						r.log.WithField("file", event.Name).Info("hot-reload: policy reloaded")
					}
				})
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			r.log.WithError(err).Warn("file watcher error")
		}
	}
}
