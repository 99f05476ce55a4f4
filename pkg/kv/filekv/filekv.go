// Package filekv implements kv.Store on top of a single JSON file.
package filekv

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/entrhq/recordbook/pkg/kv"
)

const fileVersion = "1.0"

type fileDocument struct {
	Version string            `json:"version"`
	Entries map[string][]byte `json:"entries"`
}

// Store keeps every entry in memory and rewrites the whole file on each
// mutation through a temp file and rename.
type Store struct {
	path    string
	entries map[string][]byte
	mu      sync.RWMutex
	closed  bool
}

var _ kv.Store = (*Store)(nil)

// Open loads the store at path. A missing file yields an empty store.
// If path is empty, defaults to ~/.recordbook/store.json
func Open(path string) (*Store, error) {
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(homeDir, ".recordbook", "store.json")
	}

	s := &Store{
		path:    path,
		entries: make(map[string][]byte),
	}
	if err := s.load(); err != nil {
		return nil, fmt.Errorf("failed to load store from %s: %w", path, err)
	}
	return s, nil
}

// Path returns the file path of the store.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) load() error {
	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open store file: %w", err)
	}
	defer file.Close()

	var doc fileDocument
	if err := json.NewDecoder(file).Decode(&doc); err != nil {
		return fmt.Errorf("failed to decode store file: %w", err)
	}
	if doc.Entries != nil {
		s.entries = doc.Entries
	}
	return nil
}

// flush must be called with the write lock held.
func (s *Store) flush(entries map[string][]byte) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	tempPath := s.path + ".tmp"
	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create temp store file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(fileDocument{Version: fileVersion, Entries: entries}); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode store: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}

// Get implements kv.Store.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, kv.ErrClosed
	}
	v, ok := s.entries[key]
	if !ok {
		return nil, kv.ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Set implements kv.Store. The in-memory view only changes when the file
// write succeeds.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return kv.ErrClosed
	}

	next := make(map[string][]byte, len(s.entries)+1)
	for k, v := range s.entries {
		next[k] = v
	}
	v := make([]byte, len(value))
	copy(v, value)
	next[key] = v

	if err := s.flush(next); err != nil {
		return err
	}
	s.entries = next
	return nil
}

// Delete implements kv.Store.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return kv.ErrClosed
	}
	if _, ok := s.entries[key]; !ok {
		return nil
	}

	next := make(map[string][]byte, len(s.entries))
	for k, v := range s.entries {
		if k != key {
			next[k] = v
		}
	}
	if err := s.flush(next); err != nil {
		return err
	}
	s.entries = next
	return nil
}

// Close implements kv.Store.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
