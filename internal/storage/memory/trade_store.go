package memory

import (
	"context"
	"sort"
	"sync"

	"migration-sniper/internal/domain"
	"migration-sniper/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu     sync.RWMutex
	trades []*domain.TradeRecord
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{}
}

// Insert appends a closed trade.
func (s *TradeStore) Insert(_ context.Context, t *domain.TradeRecord) error {
	if t == nil || t.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *t
	s.trades = append(s.trades, &cp)
	return nil
}

// GetByMint retrieves all trades for a mint, ordered by exit time ASC.
func (s *TradeStore) GetByMint(_ context.Context, mint string) ([]*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeRecord
	for _, t := range s.trades {
		if t.Mint == mint {
			cp := *t
			result = append(result, &cp)
		}
	}
	sortByExitTime(result)
	return result, nil
}

// GetAll retrieves all trades, ordered by exit time ASC.
func (s *TradeStore) GetAll(_ context.Context) ([]*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.TradeRecord, 0, len(s.trades))
	for _, t := range s.trades {
		cp := *t
		result = append(result, &cp)
	}
	sortByExitTime(result)
	return result, nil
}

func sortByExitTime(trades []*domain.TradeRecord) {
	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].ExitTime.Before(trades[j].ExitTime)
	})
}

var _ storage.TradeStore = (*TradeStore)(nil)
