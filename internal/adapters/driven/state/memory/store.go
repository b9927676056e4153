// Package memory implements an in-memory WatermarkStore for tests and
// dry runs where state must not persist.
package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/harvester/internal/core/domain"
	"github.com/custodia-labs/harvester/internal/core/ports/driven"
)

// Store keeps watermark state in memory.
type Store struct {
	mu    sync.Mutex
	state domain.WatermarkState
	saves int
}

var _ driven.WatermarkStore = (*Store)(nil)

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{state: domain.WatermarkState{}}
}

// NewStoreWith creates a store pre-seeded with state.
func NewStoreWith(state domain.WatermarkState) *Store {
	return &Store{state: state.Clone()}
}

// Load returns a copy of the current state.
func (s *Store) Load(_ context.Context) (domain.WatermarkState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone(), nil
}

// Save replaces the current state.
func (s *Store) Save(_ context.Context, state domain.WatermarkState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state.Clone()
	s.saves++
	return nil
}

// Saves returns how many times Save has been called.
func (s *Store) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
