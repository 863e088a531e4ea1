package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"migration-sniper/internal/domain"
	"migration-sniper/internal/storage"
)

// TradeStore implements storage.TradeStore using SQLite.
type TradeStore struct {
	db *DB
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(db *DB) *TradeStore {
	return &TradeStore{db: db}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const tradeColumns = `
	mint, symbol, score,
	entry_price, exit_price, amount_raw,
	entry_time, exit_time, exit_reason,
	pnl_pct, buy_signature, sell_signature
`

// Insert appends a closed trade.
func (s *TradeStore) Insert(ctx context.Context, t *domain.TradeRecord) error {
	if t == nil || t.Mint == "" {
		return storage.ErrInvalidInput
	}

	query := `INSERT INTO trades (` + tradeColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		t.Mint, t.Symbol, t.Score,
		t.EntryPrice, t.ExitPrice, int64(t.AmountRaw),
		t.EntryTime, t.ExitTime, t.ExitReason,
		t.PnLPct, t.BuySignature, t.SellSignature,
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// GetByMint retrieves all trades for a mint, ordered by exit time ASC.
func (s *TradeStore) GetByMint(ctx context.Context, mint string) ([]*domain.TradeRecord, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE mint = ? ORDER BY exit_time ASC, id ASC`
	rows, err := s.db.QueryContext(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("get trades by mint: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetAll retrieves all trades, ordered by exit time ASC.
func (s *TradeStore) GetAll(ctx context.Context) ([]*domain.TradeRecord, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades ORDER BY exit_time ASC, id ASC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get all trades: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

func scanTrades(rows *sql.Rows) ([]*domain.TradeRecord, error) {
	var trades []*domain.TradeRecord

	for rows.Next() {
		var t domain.TradeRecord
		var amountRaw int64

		err := rows.Scan(
			&t.Mint, &t.Symbol, &t.Score,
			&t.EntryPrice, &t.ExitPrice, &amountRaw,
			&t.EntryTime, &t.ExitTime, &t.ExitReason,
			&t.PnLPct, &t.BuySignature, &t.SellSignature,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		t.AmountRaw = uint64(amountRaw)
		trades = append(trades, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}
	return trades, nil
}
