// Package settings provides a JSON-file backed key/value store for user
// preferences.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Store holds a flat JSON object in memory and writes it back on Save.
// Values set through this package are strings; other JSON values written by
// hand are preserved but reported as absent by Get.
type Store struct {
	path   string
	logger *slog.Logger

	mu     sync.RWMutex
	values map[string]json.RawMessage
}

// New creates a store for path. Call Load to read existing values.
func New(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		path:   path,
		logger: logger,
		values: make(map[string]json.RawMessage),
	}
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// Load replaces the in-memory values with the file contents. A missing file
// yields an empty store. The lock is held across the read so a reload can
// never swap in a file older than a concurrent Put.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.values = make(map[string]json.RawMessage)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read settings %s: %w", s.path, err)
	}

	values := make(map[string]json.RawMessage)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &values); err != nil {
			return fmt.Errorf("parse settings %s: %w", s.path, err)
		}
	}
	s.values = values
	return nil
}

// Get returns the string stored under key.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	raw, ok := s.values[key]
	s.mu.RUnlock()
	if !ok {
		return "", false
	}

	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", false
	}
	return v, true
}

// Set stores value under key in memory. Call Save to persist.
func (s *Store) Set(key, value string) {
	raw, _ := json.Marshal(value)

	s.mu.Lock()
	s.values[key] = raw
	s.mu.Unlock()
}

// Put stores value under key and persists it in one step. On a write
// failure the previous in-memory value is restored.
func (s *Store) Put(key, value string) error {
	raw, _ := json.Marshal(value)

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.values[key]
	s.values[key] = raw
	if err := s.save(); err != nil {
		if had {
			s.values[key] = prev
		} else {
			delete(s.values, key)
		}
		return err
	}
	return nil
}

// Save writes all values to disk by renaming a temp file over the target.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save()
}

// save requires s.mu.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("create temp settings: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write settings: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync settings: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close settings: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace settings: %w", err)
	}

	return nil
}

// Watch reloads the store whenever the settings file changes on disk and
// then calls onChange. The parent directory is watched because Save replaces
// the file by rename. Watch returns once the watcher is running.
func (s *Store) Watch(ctx context.Context, onChange func()) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	s.logger.Info("watching settings file for changes", slog.String("path", s.path))

	target := filepath.Clean(s.path)
	go func() {
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				s.logger.Debug("settings watch stopped")
				return

			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
					continue
				}

				if err := s.Load(); err != nil {
					s.logger.Error("failed to reload settings",
						slog.String("error", err.Error()),
						slog.String("path", s.path))
					continue
				}
				onChange()

			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.Error("settings watch error", slog.String("error", err.Error()))
			}
		}
	}()

	return nil
}
