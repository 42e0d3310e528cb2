// Package runstore persists run state as one JSON file per story id.
// Writes are atomic (write-then-rename) so a crash never leaves a
// half-written record behind.
package runstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/storypipe-dev/storypipe/internal/errors"
	"github.com/storypipe-dev/storypipe/internal/types"
)

// Store persists RunState records under a single directory. Callers are
// responsible for read-modify-write ordering; the pipeline is the single
// writer per story id.
type Store struct {
	dir string // e.g. .storypipe/runs
}

// New creates a store, creating the backing directory and recovering
// any interrupted writes from a previous crash.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating runs dir: %w", err)
	}
	if err := recoverInterruptedWrites(dir); err != nil {
		return nil, fmt.Errorf("recovering interrupted writes: %w", err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the backing directory.
func (s *Store) Dir() string {
	return s.dir
}

// Save persists the record, overwriting any prior record for the same
// story id unconditionally.
func (s *Store) Save(state *types.RunState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return errors.StateIO(state.StoryID, err)
	}

	mainPath := s.path(state.StoryID)
	tmpPath := mainPath + ".tmp"

	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return errors.StateIO(state.StoryID, err)
	}
	if err := os.Rename(tmpPath, mainPath); err != nil {
		os.Remove(tmpPath) // Clean up on failure
		return errors.StateIO(state.StoryID, err)
	}
	return nil
}

// Load returns the stored record for a story id. Absence and corruption
// are distinct error kinds (STATE_001 vs STATE_002); a half-valid record
// is never returned.
func (s *Store) Load(storyID string) (*types.RunState, error) {
	data, err := os.ReadFile(s.path(storyID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.StateNotFound(storyID)
		}
		return nil, errors.StateIO(storyID, err)
	}

	var state types.RunState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, errors.StateCorrupt(storyID, err)
	}
	return &state, nil
}

// Exists reports whether a record exists without deserializing it.
func (s *Store) Exists(storyID string) bool {
	_, err := os.Stat(s.path(storyID))
	return err == nil
}

// Delete removes the record and reports whether anything was deleted.
func (s *Store) Delete(storyID string) (bool, error) {
	err := os.Remove(s.path(storyID))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, errors.StateIO(storyID, err)
	}
	return true, nil
}

// List returns all valid records sorted by UpdatedAt descending.
// Corrupt records are skipped: a status overview must stay available
// even if one record is damaged.
func (s *Store) List() ([]*types.RunState, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var states []*types.RunState
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		state, err := s.Load(strings.TrimSuffix(name, ".json"))
		if err != nil {
			continue // Skip invalid files
		}
		states = append(states, state)
	}

	sort.Slice(states, func(i, j int) bool {
		return states[i].UpdatedAt.After(states[j].UpdatedAt)
	})
	return states, nil
}

func (s *Store) path(storyID string) string {
	return filepath.Join(s.dir, storyID+".json")
}

// recoverInterruptedWrites handles .tmp files left from crashed writes.
func recoverInterruptedWrites(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".json.tmp") {
			continue
		}

		tmpPath := filepath.Join(dir, entry.Name())
		mainPath := strings.TrimSuffix(tmpPath, ".tmp")

		if _, err := os.Stat(mainPath); err == nil {
			// Main file exists, delete orphan temp
			os.Remove(tmpPath)
		} else {
			// Main file missing, promote temp
			os.Rename(tmpPath, mainPath)
		}
	}
	return nil
}
