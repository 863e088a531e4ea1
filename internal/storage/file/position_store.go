// Package file persists the position snapshot as a JSON file. The bot
// must survive a crash-restart without ghost or orphan positions, so
// every write goes through tmp+rename.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"migration-sniper/internal/domain"
	"migration-sniper/internal/storage"
)

// PositionStore implements storage.PositionStore on a single JSON file.
type PositionStore struct {
	path string
}

// NewPositionStore creates a store writing to path.
func NewPositionStore(path string) *PositionStore {
	return &PositionStore{path: path}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

type snapshot struct {
	SavedAt   time.Time          `json:"saved_at"`
	Positions []*domain.Position `json:"positions"`
}

// Save writes the full snapshot atomically.
func (s *PositionStore) Save(_ context.Context, positions []*domain.Position) error {
	snap := snapshot{
		SavedAt:   time.Now().UTC(),
		Positions: positions,
	}
	if snap.Positions == nil {
		snap.Positions = []*domain.Position{}
	}

	data, err := json.MarshalIndent(&snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal position snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".positions-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp snapshot: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}

// Load reads the snapshot. A missing file means a fresh start.
func (s *PositionStore) Load(_ context.Context) ([]*domain.Position, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return []*domain.Position{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read position snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode position snapshot: %w", err)
	}
	if snap.Positions == nil {
		return []*domain.Position{}, nil
	}
	return snap.Positions, nil
}
