package storage

import (
	"context"

	"migration-sniper/internal/domain"
)

// PositionStore persists the open position snapshot. Writes are
// last-write-wins keyed by mint; the whole snapshot is replaced on
// every transition so a crash never leaves a half-written state.
type PositionStore interface {
	// Save replaces the stored snapshot with the given positions.
	Save(ctx context.Context, positions []*domain.Position) error

	// Load returns all stored positions. An absent snapshot is an
	// empty slice, not an error.
	Load(ctx context.Context) ([]*domain.Position, error)
}

// TradeStore is the append-only log of completed trades.
type TradeStore interface {
	// Insert appends a closed trade.
	Insert(ctx context.Context, t *domain.TradeRecord) error

	// GetByMint retrieves all trades for a mint, ordered by exit time ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.TradeRecord, error)

	// GetAll retrieves all trades, ordered by exit time ASC.
	GetAll(ctx context.Context) ([]*domain.TradeRecord, error)
}
