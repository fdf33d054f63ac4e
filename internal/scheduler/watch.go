package scheduler

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch reloads the schedule whenever the file changes, until the context
// is cancelled. LastRun state survives reloads. Editors that replace the
// file (rename-over) are handled by watching the parent directory.
func (s *Scheduler) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(path)
	if err := watcher.Add(dir); err != nil {
		return err
	}

	target := filepath.Clean(path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			s.reloadIfPresent(path)
		case _, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
		}
	}
}

// reloadIfPresent reloads the schedule only while the file exists. A
// rename-away or a reload error keeps the previous schedule in place; a
// stale schedule on the next tick is better than an empty one.
func (s *Scheduler) reloadIfPresent(path string) {
	if _, err := os.Stat(path); err != nil {
		return
	}
	_ = s.LoadFile(path)
}
