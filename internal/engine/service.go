// Package engine is the single entry point the API layer uses to reach the core.
package engine

import (
	"context"

	"options-core/internal/ledger"
	"options-core/internal/market"
	"options-core/internal/signal"
	"options-core/internal/trade"
	"options-core/pkg/db"
)

// Service defines the operations exposed to the API/Control layer.
type Service interface {
	// Trading
	PlaceTrade(ctx context.Context, req ledger.PlaceRequest) (trade.Trade, error)
	ActiveTrades(ctx context.Context, userID string) ([]trade.Trade, error)
	TradeHistory(ctx context.Context, userID string, limit int) ([]trade.Trade, error)
	UserStats(ctx context.Context, userID string) (*StatsView, error)

	// Wallets
	Wallets(ctx context.Context, userID string) ([]db.Wallet, error)
	Transactions(ctx context.Context, userID string, limit int) ([]db.Transaction, error)

	// Market data
	Instruments(ctx context.Context) []market.Instrument
	Quote(ctx context.Context, symbol string) (market.PriceTick, error)
	PriceHistory(ctx context.Context, symbol string, limit int) ([]market.PriceTick, error)
	Signals(ctx context.Context) []signal.Signal
	Signal(ctx context.Context, symbol string) (signal.Signal, bool)

	// System
	GetSystemStatus(ctx context.Context) *SystemStatus
}

// ReadOnlyDB is the read side of the durable store the API may query.
type ReadOnlyDB interface {
	ListTradesByUser(ctx context.Context, userID string, limit int) ([]trade.Trade, error)
	GetUserStats(ctx context.Context, userID string) (trade.Stats, error)
	ListWallets(ctx context.Context, userID string) ([]db.Wallet, error)
	ListTransactions(ctx context.Context, userID string, limit int) ([]db.Transaction, error)
}
