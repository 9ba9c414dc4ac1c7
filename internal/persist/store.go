// Package persist saves the shared learning memory across sessions using a
// cross-platform data directory, so ducks remember a player between runs.
package persist

import (
	"fmt"

	"github.com/quasilyte/gdata/v2"
	"gopkg.in/yaml.v3"

	"skyhunt/server/internal/engine"
)

const (
	appName = "skyhunt"

	memoryObject   = "memory"
	memoryProperty = "shared"
)

// Store wraps the platform data directory. A nil manager is the degraded
// mode: loads return empty memory and saves are dropped without error.
type Store struct {
	manager *gdata.Manager
}

// Open creates a store rooted at the platform's data directory.
func Open() (*Store, error) {
	manager, err := gdata.Open(gdata.Config{AppName: appName})
	if err != nil {
		return nil, fmt.Errorf("persist: open data dir: %w", err)
	}
	return &Store{manager: manager}, nil
}

// NewStore wraps an existing manager. Tests pass a manager rooted in a
// temporary directory; nil selects the degraded in-memory mode.
func NewStore(manager *gdata.Manager) *Store {
	return &Store{manager: manager}
}

// LoadMemory reads the persisted shared memory. A missing save or degraded
// store yields an empty value, not an error.
func (s *Store) LoadMemory() (engine.SavedMemory, error) {
	var saved engine.SavedMemory
	if s == nil || s.manager == nil {
		return saved, nil
	}
	if !s.manager.ObjectPropExists(memoryObject, memoryProperty) {
		return saved, nil
	}
	data, err := s.manager.LoadObjectProp(memoryObject, memoryProperty)
	if err != nil {
		return saved, fmt.Errorf("persist: load memory: %w", err)
	}
	if err := yaml.Unmarshal(data, &saved); err != nil {
		return engine.SavedMemory{}, fmt.Errorf("persist: decode memory: %w", err)
	}
	return saved, nil
}

// SaveMemory writes the shared memory. The degraded store drops the write
// silently so a session can always end cleanly.
func (s *Store) SaveMemory(saved engine.SavedMemory) error {
	if s == nil || s.manager == nil {
		return nil
	}
	data, err := yaml.Marshal(saved)
	if err != nil {
		return fmt.Errorf("persist: encode memory: %w", err)
	}
	if err := s.manager.SaveObjectProp(memoryObject, memoryProperty, data); err != nil {
		return fmt.Errorf("persist: save memory: %w", err)
	}
	return nil
}

// Reset deletes the persisted memory if present.
func (s *Store) Reset() error {
	if s == nil || s.manager == nil {
		return nil
	}
	if !s.manager.ObjectPropExists(memoryObject, memoryProperty) {
		return nil
	}
	if err := s.manager.DeleteObjectProp(memoryObject, memoryProperty); err != nil {
		return fmt.Errorf("persist: reset memory: %w", err)
	}
	return nil
}
