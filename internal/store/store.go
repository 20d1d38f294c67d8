// Package store keeps durable flags in a JSON file. It is the lightweight
// alternative to the sqlite store for deployments without a database.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
)

type Store struct {
	path string
	mu   sync.Mutex
}

func New(path string) *Store {
	return &Store{path: path}
}

func (s *Store) load() (map[string]bool, error) {
	file, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	flags := map[string]bool{}
	if err := json.NewDecoder(file).Decode(&flags); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return flags, nil
}

// syncFile flushes the temp file before the rename makes it visible.
var syncFile = (*os.File).Sync

func (s *Store) save(flags map[string]bool) error {
	tmpPath := s.path + ".tmp"

	file, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	if err := writeFlags(file, flags); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, s.path)
}

func writeFlags(file *os.File, flags map[string]bool) error {
	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(flags); err != nil {
		file.Close()
		return fmt.Errorf("encode %s: %w", file.Name(), err)
	}
	if err := syncFile(file); err != nil {
		file.Close()
		return fmt.Errorf("sync %s: %w", file.Name(), err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", file.Name(), err)
	}
	return nil
}

// GetFlag returns def when the file or the flag does not exist.
func (s *Store) GetFlag(_ context.Context, name string, def bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	flags, err := s.load()
	if err != nil {
		return def, err
	}
	v, ok := flags[name]
	if !ok {
		return def, nil
	}
	return v, nil
}

func (s *Store) SetFlag(_ context.Context, name string, value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	flags, err := s.load()
	if err != nil {
		return err
	}
	flags[name] = value
	return s.save(flags)
}
