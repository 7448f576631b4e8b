package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/thalib/dock/cmd/dock/internal/constants"
)

// Watch loads path once, then again every time the file is written or
// replaced, passing each result to onResult. It runs until ctx is cancelled.
//
// Watch only re-validates. A running server never sees the new options.
func Watch(ctx context.Context, path string, onResult func(*Options, error), overrides ...Override) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: editors that save atomically replace the inode,
	// which drops a watch on the file itself.
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve config path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}

	onResult(Load(abs, overrides...))

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != abs {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			debounce = time.After(constants.WatchDebounce)

		case <-debounce:
			debounce = nil
			onResult(Load(abs, overrides...))

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			onResult(nil, fmt.Errorf("watcher error: %w", err))
		}
	}
}
