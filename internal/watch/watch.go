// Package watch runs a callback when files in a directory change.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a burst of file events must be quiet before
// the callback runs
const DefaultDebounce = 500 * time.Millisecond

// Options configures Dir
type Options struct {
	// Match selects the file names that trigger a reload. Nil matches all.
	Match func(name string) bool

	// Debounce defaults to DefaultDebounce
	Debounce time.Duration

	Logger *slog.Logger
}

// Dir watches dir until ctx is done and calls fn once per burst of create,
// write, remove or rename events on matching files. It returns after the
// watcher is set up; watching continues in the background.
func Dir(ctx context.Context, dir string, opts Options, fn func()) error {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	go run(ctx, w, opts, fn)
	return nil
}

func run(ctx context.Context, w *fsnotify.Watcher, opts Options, fn func()) {
	defer func() { _ = w.Close() }()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if opts.Match != nil && !opts.Match(event.Name) {
				continue
			}
			if !event.Has(fsnotify.Create | fsnotify.Write | fsnotify.Remove | fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(opts.Debounce)
			} else {
				timer.Reset(opts.Debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			fn()

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			opts.Logger.Warn("File watcher error", "error", err)
		}
	}
}
