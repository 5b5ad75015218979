// Package settings holds the mutable runtime configuration.
package settings

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"docqa/internal/model"
)

// ApplyTo tells callers which content a settings change affects.
const ApplyTo = "new uploads only"

// Store is a linearizable holder of model.RuntimeConfig. Readers get copies,
// so a value captured at the start of an operation never changes under it.
type Store struct {
	mu  sync.Mutex
	cfg model.RuntimeConfig
	now func() time.Time
}

func NewStore(initial model.RuntimeConfig) (*Store, error) {
	initial.Model = strings.TrimSpace(initial.Model)
	initial.EmbeddingModel = strings.TrimSpace(initial.EmbeddingModel)
	if err := initial.Validate(); err != nil {
		return nil, fmt.Errorf("initial runtime config: %w", err)
	}
	s := &Store{now: time.Now}
	initial.Version = 1
	initial.UpdatedAt = s.now()
	s.cfg = initial
	return s, nil
}

func (s *Store) Get() model.RuntimeConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Update applies patch to the current config and commits it only if the
// result validates. Rejected patches leave the store untouched.
func (s *Store) Update(patch model.RuntimeConfigPatch) (model.RuntimeConfig, error) {
	if patch.IsEmpty() {
		return model.RuntimeConfig{}, fmt.Errorf("%w: no settings to update", model.ErrInvalidInput)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.cfg.Apply(patch)
	if err := next.Validate(); err != nil {
		return model.RuntimeConfig{}, err
	}
	next.Version = s.cfg.Version + 1
	next.UpdatedAt = s.now()
	s.cfg = next
	return next, nil
}
