// Package snapshot holds the mutex-guarded, concurrency-safe view of the
// controller's current state: the object the IPC surface reads and the
// loop driver dumps to a JSON file each tick. This is the only mutable
// state shared between the loop goroutine and the IPC goroutine.
package snapshot

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/mycoflow/mycoflow/internal/model"
)

// DefaultDumpPath is where the snapshot is written each tick for
// consumers that cannot use the IPC surface.
const DefaultDumpPath = "/tmp/myco_state.json"

// Store owns the current snapshot behind a single RWMutex. No external
// call is made while the mutex is held.
type Store struct {
	mu   sync.RWMutex
	snap model.Snapshot
}

// New returns an empty Store.
func New() *Store {
	return &Store{}
}

// Update replaces the snapshot atomically.
func (s *Store) Update(snap model.Snapshot) {
	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
}

// Get returns a copy of the current snapshot.
func (s *Store) Get() model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// UpdatePolicy replaces only the policy and reason fields, leaving the
// rest of the snapshot unchanged.
func (s *Store) UpdatePolicy(policy model.Policy, reason string) {
	s.mu.Lock()
	s.snap.Policy = policy
	s.snap.Reason = reason
	s.mu.Unlock()
}

// SetPersonaOverride records the operator override in the snapshot view.
func (s *Store) SetPersonaOverride(active bool, value model.Persona) {
	s.mu.Lock()
	s.snap.PersonaOverride = active
	s.snap.PersonaOverrideValue = value
	s.mu.Unlock()
}

// DumpJSON writes the current snapshot to path via a temp-file-then-rename,
// so readers never observe a partially written file.
func (s *Store) DumpJSON(path string) error {
	snap := s.Get()

	tmpName := path + ".tmp"
	tmp, err := os.Create(tmpName)
	if err != nil {
		return fmt.Errorf("snapshot: create temp file: %w", err)
	}

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(snap); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("snapshot: encode JSON: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("snapshot: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("snapshot: rename into place: %w", err)
	}
	return nil
}
