package memory

import (
	"context"
	"sync"

	"migration-sniper/internal/domain"
	"migration-sniper/internal/storage"
)

// PositionStore is an in-memory implementation of storage.PositionStore.
type PositionStore struct {
	mu        sync.RWMutex
	positions []*domain.Position
	SaveCalls int
}

// NewPositionStore creates a new in-memory position store.
func NewPositionStore() *PositionStore {
	return &PositionStore{}
}

// Save replaces the stored snapshot.
func (s *PositionStore) Save(_ context.Context, positions []*domain.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := make([]*domain.Position, 0, len(positions))
	for _, p := range positions {
		cp := *p
		snapshot = append(snapshot, &cp)
	}
	s.positions = snapshot
	s.SaveCalls++
	return nil
}

// Load returns a copy of the stored snapshot.
func (s *PositionStore) Load(_ context.Context) ([]*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Position, 0, len(s.positions))
	for _, p := range s.positions {
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

var _ storage.PositionStore = (*PositionStore)(nil)
