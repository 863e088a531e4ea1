// Package sqlite is the default trade log backend: a single local file,
// no server to run next to the bot.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS trades (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	mint           TEXT NOT NULL,
	symbol         TEXT NOT NULL DEFAULT '',
	score          INTEGER NOT NULL DEFAULT 0,
	entry_price    REAL NOT NULL,
	exit_price     REAL NOT NULL,
	amount_raw     INTEGER NOT NULL,
	entry_time     TIMESTAMP NOT NULL,
	exit_time      TIMESTAMP NOT NULL,
	exit_reason    TEXT NOT NULL,
	pnl_pct        REAL NOT NULL,
	buy_signature  TEXT NOT NULL DEFAULT '',
	sell_signature TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_trades_mint ON trades(mint);
CREATE INDEX IF NOT EXISTS idx_trades_exit_time ON trades(exit_time);
`

// DB wraps the sqlite handle for dependency injection.
type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema.
func Open(ctx context.Context, path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	// Single writer; the bot is the only client.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &DB{DB: db}, nil
}

// Close closes the database handle.
func (d *DB) Close() error {
	return d.DB.Close()
}
