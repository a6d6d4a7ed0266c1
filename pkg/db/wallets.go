package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"options-core/internal/trade"
)

// Wallet is a per-user, per-mode balance.
type Wallet struct {
	UserID    string          `json:"user_id"`
	Mode      trade.Mode      `json:"mode"`
	Balance   decimal.Decimal `json:"balance"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Transaction is one row of the append-only money log.
type Transaction struct {
	ID        string          `json:"id"`
	UserID    string          `json:"user_id"`
	Mode      trade.Mode      `json:"mode"`
	TradeID   string          `json:"trade_id,omitempty"`
	Type      string          `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	CreatedAt time.Time       `json:"created_at"`
}

// EnsureWallet opens a wallet with an initial balance if the user has none for mode.
// An existing wallet is left untouched.
func (d *Database) EnsureWallet(ctx context.Context, userID string, mode trade.Mode, initial decimal.Decimal) error {
	_, err := d.DB.ExecContext(ctx, `
		INSERT INTO wallets (user_id, mode, balance, updated_at_ms)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, mode) DO NOTHING
	`, userID, string(mode), units(initial), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("ensure wallet: %w", err)
	}
	return nil
}

// Deposit credits a wallet and logs it. Deposits normally arrive from the platform's
// funding flows; this entry point exists for them and for seeding.
func (d *Database) Deposit(ctx context.Context, userID string, mode trade.Mode, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("deposit amount must be > 0")
	}
	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin deposit: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	nowMs := time.Now().UnixMilli()
	if err := creditWallet(ctx, tx, userID, mode, amount, nowMs); err != nil {
		return err
	}
	if err := insertTransaction(ctx, tx, userID, mode, "", TxDeposit, amount, nowMs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit deposit: %w", err)
	}
	return nil
}

// GetWallet returns one wallet or ErrNotFound.
func (d *Database) GetWallet(ctx context.Context, userID string, mode trade.Mode) (Wallet, error) {
	w := Wallet{UserID: userID, Mode: mode}
	var updatedMs int64
	err := d.DB.QueryRowContext(ctx, `
		SELECT balance, updated_at_ms FROM wallets WHERE user_id = ? AND mode = ?
	`, userID, string(mode)).Scan(money{&w.Balance}, &updatedMs)
	if errors.Is(err, sql.ErrNoRows) {
		return w, ErrNotFound
	}
	if err != nil {
		return w, fmt.Errorf("query wallet: %w", err)
	}
	w.UpdatedAt = time.UnixMilli(updatedMs).UTC()
	return w, nil
}

// ListWallets returns every wallet a user holds.
func (d *Database) ListWallets(ctx context.Context, userID string) ([]Wallet, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT mode, balance, updated_at_ms FROM wallets WHERE user_id = ? ORDER BY mode
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query wallets: %w", err)
	}
	defer rows.Close()

	var res []Wallet
	for rows.Next() {
		w := Wallet{UserID: userID}
		var (
			mode      string
			updatedMs int64
		)
		if err := rows.Scan(&mode, money{&w.Balance}, &updatedMs); err != nil {
			return nil, fmt.Errorf("scan wallet: %w", err)
		}
		w.Mode = trade.Mode(mode)
		w.UpdatedAt = time.UnixMilli(updatedMs).UTC()
		res = append(res, w)
	}
	return res, rows.Err()
}

// ListTransactions returns a user's money log, newest first.
func (d *Database) ListTransactions(ctx context.Context, userID string, limit int) ([]Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT id, user_id, mode, COALESCE(trade_id, ''), type, amount, created_at_ms
		FROM transactions
		WHERE user_id = ?
		ORDER BY created_at_ms DESC, rowid DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var res []Transaction
	for rows.Next() {
		var (
			tx        Transaction
			mode      string
			createdMs int64
		)
		if err := rows.Scan(&tx.ID, &tx.UserID, &mode, &tx.TradeID, &tx.Type, money{&tx.Amount}, &createdMs); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		tx.Mode = trade.Mode(mode)
		tx.CreatedAt = time.UnixMilli(createdMs).UTC()
		res = append(res, tx)
	}
	return res, rows.Err()
}

// creditWallet increments a balance in place, creating the wallet if needed.
func creditWallet(ctx context.Context, tx *sql.Tx, userID string, mode trade.Mode, amount decimal.Decimal, atMs int64) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallets (user_id, mode, balance, updated_at_ms)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, mode) DO UPDATE SET
			balance = balance + excluded.balance,
			updated_at_ms = excluded.updated_at_ms
	`, userID, string(mode), units(amount), atMs)
	if err != nil {
		return fmt.Errorf("credit wallet: %w", err)
	}
	return nil
}
