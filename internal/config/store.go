package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/ini.v1"
)

// Store is the flat section -> key -> value document backing musegen settings.
// Every Set rewrites the whole file; there is no protection against concurrent writers
// in other processes.
type Store struct {
	path string

	mu   sync.Mutex
	file *ini.File
}

// Open loads path, writing the default document first when the file does not exist.
func Open(path string) (*Store, error) {
	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat config %q: %w", path, err)
		}
		if err := writeDefaults(path); err != nil {
			return nil, err
		}
	}

	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("parse config %q: %w", path, err)
	}
	return &Store{path: path, file: file}, nil
}

// Path returns the backing file location.
func (s *Store) Path() string {
	return s.path
}

// Get returns the value for section/key, or fallback when either is missing.
func (s *Store) Get(section, key, fallback string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	sec, err := s.file.GetSection(section)
	if err != nil || !sec.HasKey(key) {
		return fallback
	}
	return sec.Key(key).String()
}

// Lookup returns the value for section/key and whether it is present.
func (s *Store) Lookup(section, key string) (string, bool) {
	k, ok := s.lookup(section, key)
	if !ok {
		return "", false
	}
	return k.String(), true
}

// lookup returns the raw key when present.
func (s *Store) lookup(section, key string) (*ini.Key, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sec, err := s.file.GetSection(section)
	if err != nil || !sec.HasKey(key) {
		return nil, false
	}
	return sec.Key(key), true
}

// Set stores value under section/key, creating the section, and flushes to disk.
func (s *Store) Set(section, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sec, err := s.file.GetSection(section)
	if err != nil {
		sec, err = s.file.NewSection(section)
		if err != nil {
			return fmt.Errorf("create section %q: %w", section, err)
		}
	}
	sec.Key(key).SetValue(value)

	if err := s.file.SaveTo(s.path); err != nil {
		return fmt.Errorf("write config %q: %w", s.path, err)
	}
	return nil
}

// Token returns the stored API token, empty when unset.
func (s *Store) Token() string {
	return s.Get(SectionModelScope, "token", "")
}

// SetToken persists the API token.
func (s *Store) SetToken(value string) error {
	return s.Set(SectionModelScope, "token", value)
}

func writeDefaults(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config dir %q: %w", dir, err)
		}
	}

	file := ini.Empty()
	for _, entry := range defaultDocument() {
		file.Section(entry.section).Key(entry.key).SetValue(entry.value)
	}
	if err := file.SaveTo(path); err != nil {
		return fmt.Errorf("write default config %q: %w", path, err)
	}
	return nil
}
