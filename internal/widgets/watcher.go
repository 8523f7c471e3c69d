package widgets

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce batches the burst of events an editor save produces.
const DefaultDebounce = 250 * time.Millisecond

// Watch reloads the registry whenever its file changes, until ctx is done.
// The parent directory is watched because editors usually replace the file
// by rename, which drops a watch on the file itself.
func (r *Registry) Watch(ctx context.Context, debounce time.Duration) error {
	if r.path == "" {
		<-ctx.Done()
		return nil
	}

	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating widget watcher: %w", err)
	}
	defer watcher.Close() //nolint:errcheck // shutdown.

	target := filepath.Clean(r.path)
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watching %s: %w", filepath.Dir(target), err)
	}

	r.log.WithField("path", target).Info("watching widget definitions")

	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if filepath.Clean(event.Name) != target || !event.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename) {
				continue
			}

			timer.Reset(debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			r.log.WithError(err).Warn("widget watcher error")

		case <-timer.C:
			if err := r.Reload(); err != nil {
				r.log.WithError(err).WithField("path", target).Error("widget reload failed, keeping previous definitions")
			}
		}
	}
}
