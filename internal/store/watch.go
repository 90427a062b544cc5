package store

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	appLog "calwidget/internal/log"
	"calwidget/internal/model"
)

// Watch reloads the store when its backing file changes on disk, e.g.
// after a hand edit, and fires OnChange subscribers if the content
// actually differs. The directory is watched rather than the file
// because the atomic save replaces the file by rename.
//
// Watch blocks until ctx is done.
func (s *Store) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	path := s.kv.Path()
	if err := w.Add(filepath.Dir(path)); err != nil {
		return err
	}
	appLog.Info("watching state file", "path", path)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != filepath.Clean(path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			s.reloadFromDisk()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			appLog.Error("state file watch error", err)
		}
	}
}

// reloadFromDisk re-reads persisted state and notifies only when the
// event mapping really changed; our own saves round-trip unchanged and
// stay quiet.
func (s *Store) reloadFromDisk() {
	if err := s.kv.Reload(); err != nil {
		appLog.Error("state file reload failed", err)
		return
	}
	s.mu.Lock()
	before, _ := json.Marshal(s.events)
	s.events = map[model.DateKey][]model.Event{}
	s.loadLocked()
	after, _ := json.Marshal(s.events)
	s.mu.Unlock()

	if bytes.Equal(before, after) {
		return
	}
	appLog.Info("state file changed on disk, store reloaded")
	s.changed()
}
