package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("setting not found")

var prettyOptions = &pretty.Options{Width: 80, Indent: "    ", SortKeys: true}

// Store is a JSON document on disk addressed with dotted paths ("core.channels").
type Store struct {
	mu   sync.RWMutex
	path string
	data []byte
}

// Open loads the store at path. A missing file is created from defaults.
func Open(path string, defaults map[string]any) (*Store, error) {
	s := &Store{path: path, data: []byte("{}")}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		for key, value := range defaults {
			if err := s.Set(key, value); err != nil {
				return nil, err
			}
		}
		zap.S().Infow("Creating settings file", "path", path)
		if err := s.Save(); err != nil {
			return nil, err
		}
		return s, nil
	}

	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Memory returns a store that is never written to disk.
func Memory() *Store {
	return &Store{data: []byte("{}")}
}

// Path returns the backing file, empty for in-memory stores.
func (s *Store) Path() string {
	return s.path
}

// Load re-reads the backing file, replacing the in-memory document.
func (s *Store) Load() error {
	if s.path == "" {
		return nil
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read settings %s: %w", s.path, err)
	}
	if !gjson.ValidBytes(data) {
		return fmt.Errorf("settings %s: invalid json", s.path)
	}

	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}

// Save writes the document pretty-printed with sorted keys.
func (s *Store) Save() error {
	if s.path == "" {
		return nil
	}

	s.mu.RLock()
	out := pretty.PrettyOptions(s.data, prettyOptions)
	s.mu.RUnlock()

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create settings dir: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// Get returns the value at path.
func (s *Store) Get(path string) (gjson.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := gjson.GetBytes(s.data, path)
	if !result.Exists() {
		return result, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return result, nil
}

// String returns the string at path or def when absent.
func (s *Store) String(path, def string) string {
	result, err := s.Get(path)
	if err != nil {
		return def
	}
	return result.String()
}

// Strings returns the array at path as strings.
func (s *Store) Strings(path string) []string {
	result, err := s.Get(path)
	if err != nil || !result.IsArray() {
		return nil
	}
	var out []string
	for _, item := range result.Array() {
		out = append(out, item.String())
	}
	return out
}

// Set stores value at path, creating intermediate objects.
func (s *Store) Set(path string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := sjson.SetBytes(s.data, path, value)
	if err != nil {
		return fmt.Errorf("failed to set %s: %w", path, err)
	}
	s.data = data
	return nil
}

// Delete removes path. Deleting an absent path is not an error.
func (s *Store) Delete(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := sjson.DeleteBytes(s.data, path)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", path, err)
	}
	s.data = data
	return nil
}

// Raw returns a copy of the current document.
func (s *Store) Raw() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]byte(nil), s.data...)
}
