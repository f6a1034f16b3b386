// Package audit persists a queryable trade history in SQLite, alongside
// the JSON trade log the Seller appends to (spec §4.5). It is a
// best-effort supplement: Record returns a write failure to its caller,
// which treats it as non-fatal, because the JSON append-only log under
// the state directory is the trade record of record.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/alejandrodnm/momentumcore/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS trades (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    symbol       TEXT     NOT NULL,
    entry_time   DATETIME NOT NULL,
    exit_time    DATETIME NOT NULL,
    entry_price  REAL     NOT NULL,
    exit_price   REAL     NOT NULL,
    quantity     INTEGER  NOT NULL,
    pnl_pct      REAL     NOT NULL,
    pnl_dollars  REAL     NOT NULL,
    reason       TEXT     NOT NULL,
    signal_score REAL     NOT NULL DEFAULT 0,
    recorded_at  DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);
CREATE INDEX IF NOT EXISTS idx_trades_exit   ON trades(exit_time DESC);
`

// Store writes completed trades to a SQLite database for ad-hoc querying
// (win rate by symbol, PnL over time) outside the JSON log.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("audit.Open: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit.Open: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Record inserts a completed trade. Callers treat a returned error as
// non-fatal: log it and continue, since the JSON trade log already has
// the authoritative record.
func (s *Store) Record(ctx context.Context, t domain.Trade) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades
			(symbol, entry_time, exit_time, entry_price, exit_price,
			 quantity, pnl_pct, pnl_dollars, reason, signal_score, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Symbol, t.EntryTime.UTC(), t.ExitTime.UTC(), t.EntryPrice, t.ExitPrice,
		t.Quantity, t.PnLPct, t.PnLDollars, string(t.Reason), t.SignalScore, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("audit.Record: insert %s: %w", t.Symbol, err)
	}
	return nil
}

// WinRate returns the fraction of trades for symbol with PnLPct > 0 since
// since, and the trade count. An empty symbol queries across all symbols.
func (s *Store) WinRate(ctx context.Context, symbol string, since time.Time) (rate float64, count int, err error) {
	query := `SELECT COUNT(*), SUM(CASE WHEN pnl_pct > 0 THEN 1 ELSE 0 END)
	          FROM trades WHERE exit_time >= ?`
	args := []any{since.UTC()}
	if symbol != "" {
		query += ` AND symbol = ?`
		args = append(args, symbol)
	}

	var total int
	var wins sql.NullInt64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total, &wins); err != nil {
		return 0, 0, fmt.Errorf("audit.WinRate: query: %w", err)
	}
	if total == 0 {
		return 0, 0, nil
	}
	return float64(wins.Int64) / float64(total), total, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
