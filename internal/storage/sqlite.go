// Package storage persists trades and accounts in an embedded SQLite
// database. The schema is bootstrapped on open so a fresh deployment
// needs no migration step.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	_ "modernc.org/sqlite"

	"tradejournal/pkg/contracts/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	name       TEXT NOT NULL,
	currency   TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	id          TEXT PRIMARY KEY,
	user_id     TEXT NOT NULL,
	account_id  TEXT NOT NULL REFERENCES accounts(id),
	symbol      TEXT NOT NULL,
	direction   TEXT NOT NULL,
	entry_date  TEXT NOT NULL,
	entry_time  TEXT NOT NULL DEFAULT '',
	entry_price REAL NOT NULL,
	volume      REAL NOT NULL,
	stop_loss   REAL NOT NULL DEFAULT 0,
	take_profit REAL NOT NULL DEFAULT 0,
	exit_date   TEXT NOT NULL DEFAULT '',
	exit_time   TEXT NOT NULL DEFAULT '',
	exit_price  REAL,
	pnl         REAL,
	outcome     TEXT NOT NULL DEFAULT '',
	commission  REAL,
	swap        REAL,
	notes       TEXT NOT NULL DEFAULT '',
	session     TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMP NOT NULL,
	updated_at  TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_account ON trades(account_id, entry_date);
`

// Store wraps a SQLite database and implements the trade and account
// persistence interfaces the import pipeline and HTTP layer depend on.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open opens (or creates) the database at path and bootstraps the
// schema. Use ":memory:" for an ephemeral store in tests.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// modernc.org/sqlite serializes writes itself; a single connection
	// avoids SQLITE_BUSY under concurrent handlers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}
	logger.Info("sqlite store ready", slog.String("path", path))
	return &Store{db: db, logger: logger.With(slog.String("component", "storage"))}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// SaveTrade inserts a trade. It reports false when the row already
// exists, which the import executor counts as a failure rather than a
// duplicate since signature dedup happens before saving.
func (s *Store) SaveTrade(ctx context.Context, trade domain.Trade) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (
			id, user_id, account_id, symbol, direction,
			entry_date, entry_time, entry_price, volume,
			stop_loss, take_profit, exit_date, exit_time, exit_price,
			pnl, outcome, commission, swap, notes, session,
			created_at, updated_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO NOTHING`,
		trade.ID, trade.UserID, trade.AccountID, trade.Symbol, string(trade.Direction),
		trade.EntryDate, trade.EntryTime, trade.EntryPrice, trade.Volume,
		trade.StopLoss, trade.TakeProfit, trade.ExitDate, trade.ExitTime, trade.ExitPrice,
		trade.PnL, string(trade.Outcome), trade.Commission, trade.Swap, trade.Notes, trade.Session,
		trade.CreatedAt, trade.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert trade %s: %w", trade.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert trade %s: %w", trade.ID, err)
	}
	return n > 0, nil
}

// ListTradesLite returns the dedup projection of every trade on the
// account, ordered by entry date for stable iteration.
func (s *Store) ListTradesLite(ctx context.Context, accountID string) ([]domain.TradeLite, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entry_date, entry_time, symbol, direction, entry_price
		FROM trades WHERE account_id = ?
		ORDER BY entry_date, entry_time`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list trades for account %s: %w", accountID, err)
	}
	defer rows.Close()

	var trades []domain.TradeLite
	for rows.Next() {
		var t domain.TradeLite
		var direction string
		if err := rows.Scan(&t.EntryDate, &t.EntryTime, &t.Symbol, &direction, &t.EntryPrice); err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		t.Direction = domain.Direction(direction)
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}
	return trades, nil
}

// ListTrades returns the full trades on an account, newest entry first.
func (s *Store) ListTrades(ctx context.Context, accountID string) ([]domain.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, account_id, symbol, direction,
			entry_date, entry_time, entry_price, volume,
			stop_loss, take_profit, exit_date, exit_time, exit_price,
			pnl, outcome, commission, swap, notes, session,
			created_at, updated_at
		FROM trades WHERE account_id = ?
		ORDER BY entry_date DESC, entry_time DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("list trades for account %s: %w", accountID, err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var direction, outcome string
		if err := rows.Scan(
			&t.ID, &t.UserID, &t.AccountID, &t.Symbol, &direction,
			&t.EntryDate, &t.EntryTime, &t.EntryPrice, &t.Volume,
			&t.StopLoss, &t.TakeProfit, &t.ExitDate, &t.ExitTime, &t.ExitPrice,
			&t.PnL, &outcome, &t.Commission, &t.Swap, &t.Notes, &t.Session,
			&t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		t.Direction = domain.Direction(direction)
		t.Outcome = domain.Outcome(outcome)
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}
	return trades, nil
}

// DeleteAllTrades removes every trade on the account. It reports whether
// the purge ran, so replace-mode imports can abort before saving when
// the old data could not be cleared.
func (s *Store) DeleteAllTrades(ctx context.Context, accountID string) (bool, error) {
	_, err := s.db.ExecContext(ctx, `DELETE FROM trades WHERE account_id = ?`, accountID)
	if err != nil {
		return false, fmt.Errorf("purge trades for account %s: %w", accountID, err)
	}
	return true, nil
}

// CreateAccount inserts a new account.
func (s *Store) CreateAccount(ctx context.Context, account domain.Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, user_id, name, currency, created_at)
		VALUES (?,?,?,?,?)`,
		account.ID, account.UserID, account.Name, strings.ToUpper(account.Currency), account.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert account %s: %w", account.ID, err)
	}
	return nil
}

// GetAccount fetches one account by id. It returns sql.ErrNoRows when
// the account does not exist; callers translate that to their own
// not-found sentinel.
func (s *Store) GetAccount(ctx context.Context, id string) (domain.Account, error) {
	var a domain.Account
	err := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, name, currency, created_at
		FROM accounts WHERE id = ?`, id).
		Scan(&a.ID, &a.UserID, &a.Name, &a.Currency, &a.CreatedAt)
	if err != nil {
		return domain.Account{}, err
	}
	return a, nil
}

// ListAccounts returns every account belonging to the user.
func (s *Store) ListAccounts(ctx context.Context, userID string) ([]domain.Account, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, name, currency, created_at
		FROM accounts WHERE user_id = ?
		ORDER BY created_at`, userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts for user %s: %w", userID, err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var a domain.Account
		if err := rows.Scan(&a.ID, &a.UserID, &a.Name, &a.Currency, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan account row: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate account rows: %w", err)
	}
	return accounts, nil
}
