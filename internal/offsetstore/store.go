package offsetstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

var (
	// ErrInvalidKey is returned when an override key is empty.
	ErrInvalidKey = errors.New("override key must not be empty")

	// ErrUnknownKey is returned when deleting an override that does not exist.
	ErrUnknownKey = errors.New("no override for key")
)

// document is the on-disk format of the user override file.
type document struct {
	AdditionalStreams map[string]float64 `json:"additionalStreams"`
}

// Store holds the user's per-stream offset overrides in seconds, keyed by
// driver id or window role. It implements syncengine.OverrideSource.
//
// When backed by a file, external edits to the file are picked up through a
// filesystem watcher and subscribers are notified if any value changed.
type Store struct {
	path    string
	log     *slog.Logger
	watcher *fsnotify.Watcher
	done    chan struct{}

	writeMu sync.Mutex

	mu     sync.RWMutex
	values map[string]float64
	nextID int
	subs   map[int]func()
}

// Open loads the overrides at path and starts watching it. A missing file is
// an empty table. With an empty path the store lives in memory only.
func Open(path string, log *slog.Logger) (*Store, error) {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	s := &Store{
		log:    log,
		values: make(map[string]float64),
		subs:   make(map[int]func()),
	}
	if path == "" {
		return s, nil
	}

	s.path = filepath.Clean(path)
	values, err := readFile(s.path)
	if err != nil {
		return nil, err
	}
	s.values = values

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create override dir %s: %w", dir, err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	// The directory is watched since editors replace files by renaming over them.
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch override dir: %w", err)
	}
	s.watcher = watcher
	s.done = make(chan struct{})
	go s.watchLoop()

	log.Info("user offsets loaded", slog.String("path", s.path), slog.Int("overrides", len(values)))
	return s, nil
}

// Close stops watching the override file.
func (s *Store) Close() error {
	if s.watcher == nil {
		return nil
	}
	err := s.watcher.Close()
	<-s.done
	return err
}

// Override implements syncengine.OverrideSource.
func (s *Store) Override(key string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[key]
	return v, ok
}

// Subscribe implements syncengine.OverrideSource.
func (s *Store) Subscribe(fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
		})
	}
}

// Snapshot returns a copy of all overrides.
func (s *Store) Snapshot() map[string]float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.values)
}

// Set stores an override and persists it.
func (s *Store) Set(key string, seconds float64) error {
	if key == "" {
		return ErrInvalidKey
	}
	return s.update(func(values map[string]float64) error {
		values[key] = seconds
		return nil
	})
}

// Delete removes an override and persists the change.
func (s *Store) Delete(key string) error {
	return s.update(func(values map[string]float64) error {
		if _, ok := values[key]; !ok {
			return ErrUnknownKey
		}
		delete(values, key)
		return nil
	})
}

func (s *Store) update(fn func(values map[string]float64) error) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := s.Snapshot()
	if next == nil {
		next = make(map[string]float64)
	}
	if err := fn(next); err != nil {
		return err
	}
	if s.path != "" {
		if err := writeFile(s.path, next); err != nil {
			return fmt.Errorf("persist overrides: %w", err)
		}
	}
	s.replace(next)
	return nil
}

// replace swaps in values and notifies subscribers if anything changed.
func (s *Store) replace(values map[string]float64) {
	s.mu.Lock()
	if maps.Equal(s.values, values) {
		s.mu.Unlock()
		return
	}
	s.values = values
	fns := make([]func(), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

func (s *Store) watchLoop() {
	defer close(s.done)
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != s.path {
				continue
			}
			// Editors move the file aside before saving; the last table
			// stays in force until the new file is written.
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			s.reload()
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			s.log.Warn("override watcher error", slog.String("error", err.Error()))
		}
	}
}

func (s *Store) reload() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	values, err := readFile(s.path)
	if err != nil {
		// Usually a half-written file; the write that completes it triggers another reload.
		s.log.Debug("override reload skipped", slog.String("error", err.Error()))
		return
	}
	s.replace(values)
}

func readFile(path string) (map[string]float64, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]float64), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read overrides %s: %w", path, err)
	}
	if len(data) == 0 {
		return make(map[string]float64), nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode overrides %s: %w", path, err)
	}
	if doc.AdditionalStreams == nil {
		doc.AdditionalStreams = make(map[string]float64)
	}
	return doc.AdditionalStreams, nil
}

// writeFile replaces path atomically so the watcher never sees a partial document.
func writeFile(path string, values map[string]float64) error {
	data, err := json.MarshalIndent(document{AdditionalStreams: values}, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".overrides-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
