package prefs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"docentgo/internal/models"
)

// Patch carries a partial preferences update. Nil fields are left
// untouched by Set.
type Patch struct {
	Verbosity    *models.Verbosity `json:"verbosity,omitempty"`
	StrictOutput *bool             `json:"strict_output,omitempty"`
	Theme        *models.Theme     `json:"theme,omitempty"`
	CrawlDepth   *int              `json:"crawl_depth,omitempty"`
}

// Store is the singleton preferences record. The on-disk file is the
// durable copy; Get always answers from the in-memory snapshot so callers
// never flicker back to defaults while a load is in flight.
type Store struct {
	path string

	mu          sync.RWMutex
	current     models.Preferences
	subscribers []func(models.Preferences)
}

// NewStore loads the record at path, falling back to defaults when the
// file is absent or unreadable. A load failure is not fatal: the shell
// keeps working on defaults and the next Set rewrites the file.
func NewStore(path string) *Store {
	s := &Store{path: path, current: models.DefaultPreferences()}
	if raw, err := os.ReadFile(path); err == nil {
		var loaded models.Preferences
		if err := json.Unmarshal(raw, &loaded); err == nil && loaded.Validate() == nil {
			s.current = loaded
		}
	}
	return s
}

// Get returns the current snapshot synchronously.
func (s *Store) Get() models.Preferences {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Set merges the patch into the current record, persists it, and returns
// the new snapshot.
func (s *Store) Set(patch Patch) (models.Preferences, error) {
	s.mu.Lock()
	next := s.current
	if patch.Verbosity != nil {
		next.Verbosity = *patch.Verbosity
	}
	if patch.StrictOutput != nil {
		next.StrictOutput = *patch.StrictOutput
	}
	if patch.Theme != nil {
		next.Theme = *patch.Theme
	}
	if patch.CrawlDepth != nil {
		next.CrawlDepth = *patch.CrawlDepth
	}
	if err := next.Validate(); err != nil {
		s.mu.Unlock()
		return s.Get(), err
	}
	if err := s.persist(next); err != nil {
		s.mu.Unlock()
		return s.Get(), err
	}
	s.current = next
	subs := append([]func(models.Preferences){}, s.subscribers...)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(next)
	}
	return next, nil
}

// Subscribe registers a callback invoked after every successful Set (and
// after a watcher reload).
func (s *Store) Subscribe(fn func(models.Preferences)) {
	s.mu.Lock()
	s.subscribers = append(s.subscribers, fn)
	s.mu.Unlock()
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) persist(p models.Preferences) error {
	raw, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create preferences dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".prefs-*")
	if err != nil {
		return fmt.Errorf("stage preferences: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write preferences: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close preferences: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace preferences: %w", err)
	}
	return nil
}

// reload re-reads the file after an external change. Invalid content is
// ignored so a half-written file cannot corrupt the running snapshot.
func (s *Store) reload() {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		return
	}
	var loaded models.Preferences
	if err := json.Unmarshal(raw, &loaded); err != nil || loaded.Validate() != nil {
		return
	}
	s.mu.Lock()
	if loaded == s.current {
		s.mu.Unlock()
		return
	}
	s.current = loaded
	subs := append([]func(models.Preferences){}, s.subscribers...)
	s.mu.Unlock()
	for _, fn := range subs {
		fn(loaded)
	}
}
