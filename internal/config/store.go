// Package config persists the set of ProcessDefinitions exeio supervises so
// they survive a supervisor restart (§4.3).
package config

import (
	"encoding/json"
	"errors"
	"os"
	"sync"

	"github.com/google/renameio/v2"
	"go.uber.org/zap"

	"github.com/philopaterwaheed/exeio/internal/supervisor"
)

// Store backs a single JSON array of ProcessDefinitions at a fixed path.
//
// Concurrency model: a single RWMutex guards the file. Load takes a read
// lock (concurrent reads are safe); Save/Upsert/Delete take a write lock so
// concurrent control-plane calls serialize their writes without blocking
// readers against each other.
type Store struct {
	log  *zap.Logger
	path string
	mu   sync.RWMutex
}

// New constructs a Store backed by path. The file is not required to exist
// yet; Load treats a missing or unparseable file as an empty list.
func New(log *zap.Logger, path string) *Store {
	return &Store{log: log.Named("config"), path: path}
}

// Load returns the persisted definition list, or an empty list if the file
// is missing or fails to parse. It never returns an error to the caller —
// load failure degrades to "nothing persisted" per §7.
func (s *Store) Load() []supervisor.ProcessDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() []supervisor.ProcessDefinition {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Warn("read config file", zap.String("path", s.path), zap.Error(err))
		}
		return nil
	}

	var defs []supervisor.ProcessDefinition
	if err := json.Unmarshal(raw, &defs); err != nil {
		s.log.Warn("parse config file, treating as empty", zap.String("path", s.path), zap.Error(err))
		return nil
	}
	return defs
}

// Save atomically replaces the persisted list with defs: write-temp +
// rename on the same filesystem, via renameio, so readers never observe a
// partially written file.
func (s *Store) Save(defs []supervisor.ProcessDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(defs)
}

func (s *Store) saveLocked(defs []supervisor.ProcessDefinition) error {
	if defs == nil {
		defs = []supervisor.ProcessDefinition{}
	}
	raw, err := json.MarshalIndent(defs, "", "  ")
	if err != nil {
		return err
	}
	if err := renameio.WriteFile(s.path, raw, 0o644); err != nil {
		s.log.Error("save config file", zap.String("path", s.path), zap.Error(err))
		return err
	}
	return nil
}

// Upsert loads the list, removes any entry with def.ID, appends def, and
// atomically saves the result.
func (s *Store) Upsert(def supervisor.ProcessDefinition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	defs := s.loadLocked()
	out := make([]supervisor.ProcessDefinition, 0, len(defs)+1)
	for _, d := range defs {
		if d.ID != def.ID {
			out = append(out, d)
		}
	}
	out = append(out, def)
	return s.saveLocked(out)
}

// Delete loads the list, removes the entry with the given id, and
// atomically saves the result. No-op if id isn't present.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	defs := s.loadLocked()
	out := make([]supervisor.ProcessDefinition, 0, len(defs))
	for _, d := range defs {
		if d.ID != id {
			out = append(out, d)
		}
	}
	return s.saveLocked(out)
}
