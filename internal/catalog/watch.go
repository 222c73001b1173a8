package catalog

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watchSettle is how long the watcher waits after the last file event before
// refreshing, so editors that write in several steps trigger one refresh.
const watchSettle = 200 * time.Millisecond

// Watch refreshes the loader whenever the catalog file at path changes and
// calls onChange with every newly fetched catalog. It blocks until ctx is done.
//
// The parent directory is watched rather than the file itself so that
// replace-by-rename writes are seen.
func Watch(ctx context.Context, path string, loader *Loader, onChange func(*Catalog)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create catalog watcher: %w", err)
	}
	defer fw.Close()

	target := filepath.Clean(path)
	if err := fw.Add(filepath.Dir(target)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(target), err)
	}

	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				settle = time.After(watchSettle)
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			loader.logger.Warn("catalog watcher error", "error", err)

		case <-settle:
			settle = nil
			cat, changed, err := loader.Refresh(ctx)
			if err != nil {
				loader.logger.Warn("catalog refresh failed", "path", target, "error", err)
				continue
			}
			if changed && onChange != nil {
				onChange(cat)
			}
		}
	}
}
