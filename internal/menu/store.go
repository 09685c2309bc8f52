package menu

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Store holds the published menu snapshot in memory. The snapshot is loaded
// from a YAML file at startup and can be refreshed with Reload (e.g. on
// SIGHUP); readers always see a complete snapshot or none at all.
type Store struct {
	path string

	mu   sync.RWMutex
	snap *Snapshot
}

// NewStore returns a store bound to a snapshot file. The file is not read
// until Reload is called, so the server can start before the menu exists.
func NewStore(path string) *Store {
	return &Store{path: strings.TrimSpace(path)}
}

// Path returns the configured snapshot file path.
func (s *Store) Path() string {
	return s.path
}

// Reload reads and validates the snapshot file, replacing the served
// snapshot only on success. A failed reload keeps the previous snapshot.
func (s *Store) Reload() error {
	if s.path == "" {
		return fmt.Errorf("menu file path is not configured")
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("read menu file: %w", err)
	}

	snap, err := Parse(data)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
	return nil
}

// Snapshot returns the current snapshot. ok is false until the first
// successful Reload.
func (s *Store) Snapshot() (*Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap == nil {
		return nil, false
	}
	return s.snap, true
}

// Parse decodes and validates snapshot YAML.
func Parse(data []byte) (*Snapshot, error) {
	snap := &Snapshot{}
	if err := yaml.Unmarshal(data, snap); err != nil {
		return nil, fmt.Errorf("parse menu file: %w", err)
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return snap, nil
}
