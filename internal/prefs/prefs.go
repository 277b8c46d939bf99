// Package prefs stores small user preferences in the persistent
// key/value slot, next to (but independent of) the backup blob.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/claude/gymdex/internal/kv"
)

const prefsKey = "user_prefs"

// Prefs are the user-facing defaults the app remembers between runs.
type Prefs struct {
	WeightUnit      string `json:"weightUnit"` // "kg" or "lb"
	DefaultUserName string `json:"defaultUserName,omitempty"`
	LastRoutineID   string `json:"lastRoutineId,omitempty"`
}

// Store reads and writes Prefs through a kv.Store.
type Store struct {
	blobs kv.Store
}

// NewStore creates a preference store over blobs.
func NewStore(blobs kv.Store) *Store {
	return &Store{blobs: blobs}
}

// Load returns the stored preferences, or defaults when none were saved
// yet.
func (s *Store) Load() (*Prefs, error) {
	data, err := s.blobs.Get(prefsKey)
	if errors.Is(err, kv.ErrNotFound) {
		return &Prefs{WeightUnit: "kg"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading preferences: %w", err)
	}

	var p Prefs
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding preferences: %w", err)
	}
	if p.WeightUnit == "" {
		p.WeightUnit = "kg"
	}
	return &p, nil
}

// Save replaces the stored preferences.
func (s *Store) Save(p *Prefs) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding preferences: %w", err)
	}
	if err := s.blobs.Set(prefsKey, data); err != nil {
		return fmt.Errorf("storing preferences: %w", err)
	}
	return nil
}

// Reset removes the stored preferences.
func (s *Store) Reset() error {
	return s.blobs.Remove(prefsKey)
}
