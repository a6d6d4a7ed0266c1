package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"options-core/internal/trade"
)

// Transaction types written to the append-only log.
const (
	TxTradeStake  = "TRADE_STAKE"
	TxTradePayout = "TRADE_PAYOUT"
	TxDeposit     = "DEPOSIT"
)

const tradeColumns = `
	id, user_id, asset_id, asset_symbol, direction, stake, duration_minutes,
	start_time_ms, end_time_ms, entry_price, exit_price, mode, result, payout,
	return_percent, settled_at_ms`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrade(rs rowScanner) (trade.Trade, error) {
	var (
		t         trade.Trade
		startMs   int64
		endMs     int64
		exitPrice sql.NullFloat64
		settledMs sql.NullInt64
		direction string
		mode      string
	)
	err := rs.Scan(&t.ID, &t.UserID, &t.AssetID, &t.AssetSymbol, &direction, money{&t.Stake}, &t.DurationMinutes,
		&startMs, &endMs, &t.EntryPrice, &exitPrice, &mode, &t.Result, money{&t.Payout},
		money{&t.ReturnPercent}, &settledMs)
	if err != nil {
		return trade.Trade{}, err
	}
	t.Direction = trade.Direction(direction)
	t.Mode = trade.Mode(mode)
	t.StartTime = time.UnixMilli(startMs).UTC()
	t.EndTime = time.UnixMilli(endMs).UTC()
	if exitPrice.Valid {
		p := exitPrice.Float64
		t.ExitPrice = &p
	}
	if settledMs.Valid {
		at := time.UnixMilli(settledMs.Int64).UTC()
		t.SettledAt = &at
	}
	return t, nil
}

func collectTrades(rows *sql.Rows) ([]trade.Trade, error) {
	defer rows.Close()
	var res []trade.Trade
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// PlaceTrade inserts a PENDING trade, debits the stake from the user's wallet and logs
// the debit, all in one transaction. A wallet that cannot cover the stake rolls
// everything back with trade.ErrInsufficientBalance.
func (d *Database) PlaceTrade(ctx context.Context, t trade.Trade) error {
	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin place: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	nowMs := t.StartTime.UnixMilli()
	res, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET balance = balance - ?, updated_at_ms = ?
		WHERE user_id = ? AND mode = ? AND balance >= ?
	`, units(t.Stake), nowMs, t.UserID, string(t.Mode), units(t.Stake))
	if err != nil {
		return fmt.Errorf("debit wallet: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("debit wallet: %w", err)
	} else if n == 0 {
		return trade.ErrInsufficientBalance
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO trades (`+tradeColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?, ?, ?, NULL)
	`, t.ID, t.UserID, t.AssetID, t.AssetSymbol, string(t.Direction), units(t.Stake), t.DurationMinutes,
		nowMs, t.EndTime.UnixMilli(), t.EntryPrice, string(t.Mode), trade.ResultPending, units(decimal.Zero),
		units(t.ReturnPercent))
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}

	if err := insertTransaction(ctx, tx, t.UserID, t.Mode, t.ID, TxTradeStake, t.Stake.Neg(), nowMs); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit place: %w", err)
	}
	return nil
}

// SettleTrade applies the terminal write for a pending trade. The update is conditional
// on result='PENDING'; if no row matches, nothing else is written and
// *trade.AlreadySettledError is returned. On WIN the payout is credited to the wallet
// and logged in the same transaction. User stats are updated either way.
func (d *Database) SettleTrade(ctx context.Context, s trade.Settlement) error {
	if !s.Result.Terminal() {
		return fmt.Errorf("settle %s: result %s is not terminal", s.TradeID, s.Result)
	}

	tx, err := d.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin settle: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	atMs := s.SettledAt.UnixMilli()
	res, err := tx.ExecContext(ctx, `
		UPDATE trades
		SET exit_price = ?, result = ?, payout = ?, settled_at_ms = ?
		WHERE id = ? AND result = 'PENDING'
	`, s.ExitPrice, s.Result, units(s.Payout), atMs, s.TradeID)
	if err != nil {
		return fmt.Errorf("update trade: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update trade: %w", err)
	}
	if n == 0 {
		return &trade.AlreadySettledError{TradeID: s.TradeID}
	}

	if s.Result == trade.ResultWin && s.Payout.IsPositive() {
		if err := creditWallet(ctx, tx, s.UserID, s.Mode, s.Payout, atMs); err != nil {
			return err
		}
		if err := insertTransaction(ctx, tx, s.UserID, s.Mode, s.TradeID, TxTradePayout, s.Payout, atMs); err != nil {
			return err
		}
	}

	wins, losses := 0, 1
	if s.Result == trade.ResultWin {
		wins, losses = 1, 0
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_stats (user_id, total_trades, wins, losses, total_invested, total_earned, updated_at_ms)
		VALUES (?, 1, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			total_trades = total_trades + 1,
			wins = wins + excluded.wins,
			losses = losses + excluded.losses,
			total_invested = total_invested + excluded.total_invested,
			total_earned = total_earned + excluded.total_earned,
			updated_at_ms = excluded.updated_at_ms
	`, s.UserID, wins, losses, units(s.Stake), units(s.Payout), atMs)
	if err != nil {
		return fmt.Errorf("update user stats: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit settle: %w", err)
	}
	return nil
}

// ListDueTrades returns PENDING trades whose end time is at or before now.
func (d *Database) ListDueTrades(ctx context.Context, now time.Time) ([]trade.Trade, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT `+tradeColumns+`
		FROM trades
		WHERE result = 'PENDING' AND end_time_ms <= ?
		ORDER BY end_time_ms ASC
	`, now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("query due trades: %w", err)
	}
	return collectTrades(rows)
}

// ListPendingTrades returns every PENDING trade, used to seed the in-memory ledger.
func (d *Database) ListPendingTrades(ctx context.Context) ([]trade.Trade, error) {
	rows, err := d.DB.QueryContext(ctx, `
		SELECT `+tradeColumns+`
		FROM trades
		WHERE result = 'PENDING'
		ORDER BY end_time_ms ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query pending trades: %w", err)
	}
	return collectTrades(rows)
}

// ListTradesByUser returns a user's trades, newest first.
func (d *Database) ListTradesByUser(ctx context.Context, userID string, limit int) ([]trade.Trade, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := d.DB.QueryContext(ctx, `
		SELECT `+tradeColumns+`
		FROM trades
		WHERE user_id = ?
		ORDER BY start_time_ms DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	return collectTrades(rows)
}

// GetTrade returns a trade by id or ErrNotFound.
func (d *Database) GetTrade(ctx context.Context, id string) (trade.Trade, error) {
	row := d.DB.QueryRowContext(ctx, `SELECT `+tradeColumns+` FROM trades WHERE id = ?`, id)
	t, err := scanTrade(row)
	if errors.Is(err, sql.ErrNoRows) {
		return trade.Trade{}, ErrNotFound
	}
	if err != nil {
		return trade.Trade{}, fmt.Errorf("query trade: %w", err)
	}
	return t, nil
}

// GetUserStats returns aggregate settlement stats; users with no settled trades get zeros.
func (d *Database) GetUserStats(ctx context.Context, userID string) (trade.Stats, error) {
	st := trade.Stats{UserID: userID}
	err := d.DB.QueryRowContext(ctx, `
		SELECT total_trades, wins, losses, total_invested, total_earned
		FROM user_stats WHERE user_id = ?
	`, userID).Scan(&st.TotalTrades, &st.Wins, &st.Losses, money{&st.TotalInvested}, money{&st.TotalEarned})
	if errors.Is(err, sql.ErrNoRows) {
		return st, nil
	}
	if err != nil {
		return st, fmt.Errorf("query user stats: %w", err)
	}
	return st, nil
}

func insertTransaction(ctx context.Context, tx *sql.Tx, userID string, mode trade.Mode, tradeID, kind string, amount decimal.Decimal, atMs int64) error {
	var ref any
	if tradeID != "" {
		ref = tradeID
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (id, user_id, mode, trade_id, type, amount, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), userID, string(mode), ref, kind, units(amount), atMs)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}
