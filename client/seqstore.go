package client

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// SequenceStore hands out heartbeat sequence numbers that survive process
// restarts. Monotonicity across restarts is what lets the ledger tell a
// live reporter from a superseded background task.
type SequenceStore interface {
	Next() (int64, error)
}

// FileSequenceStore persists the counter to a single file in device-local
// storage. The first run seeds from the wall clock so a reinstall or a
// second device starts above any plausible prior counter.
type FileSequenceStore struct {
	path string

	mu      sync.Mutex
	current int64
	loaded  bool
}

func NewFileSequenceStore(path string) *FileSequenceStore {
	return &FileSequenceStore{path: path}
}

func (s *FileSequenceStore) Next() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		if err := s.load(); err != nil {
			return 0, err
		}
	}

	s.current++
	if err := s.persist(); err != nil {
		return 0, err
	}

	return s.current, nil
}

func (s *FileSequenceStore) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.current = time.Now().Unix()
		s.loaded = true
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read sequence file: %w", err)
	}

	value, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		// Corrupt file, reseed rather than risk reusing an old sequence.
		s.current = time.Now().Unix()
		s.loaded = true
		return nil
	}

	s.current = value
	s.loaded = true
	return nil
}

func (s *FileSequenceStore) persist() error {
	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create sequence dir: %w", err)
	}
	if err := os.WriteFile(tmp, []byte(strconv.FormatInt(s.current, 10)), 0o644); err != nil {
		return fmt.Errorf("failed to write sequence file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace sequence file: %w", err)
	}
	return nil
}
