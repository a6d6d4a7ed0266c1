package engine

import (
	"context"
	"time"

	"options-core/internal/ledger"
	"options-core/internal/market"
	"options-core/internal/reconciliation"
	"options-core/internal/risk"
	"options-core/internal/signal"
	"options-core/internal/trade"
	"options-core/pkg/db"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// Impl implements Service by composing the core components.
type Impl struct {
	ledger    *ledger.Ledger
	catalog   *market.Catalog
	prices    *market.Store
	signals   *signal.Generator
	db        ReadOnlyDB
	scheduler *Scheduler
	risk      *risk.Manager
	reconcile *reconciliation.Service

	meta SystemStatus
}

// Config holds the configuration for creating an engine implementation.
type Config struct {
	Ledger    *ledger.Ledger
	Catalog   *market.Catalog
	Prices    *market.Store
	Signals   *signal.Generator
	DB        ReadOnlyDB
	Scheduler *Scheduler
	Risk      *risk.Manager           // optional
	Reconcile *reconciliation.Service // optional
	Meta      SystemStatus
}

// NewImpl creates a new engine implementation.
func NewImpl(cfg Config) *Impl {
	return &Impl{
		ledger:    cfg.Ledger,
		catalog:   cfg.Catalog,
		prices:    cfg.Prices,
		signals:   cfg.Signals,
		db:        cfg.DB,
		scheduler: cfg.Scheduler,
		risk:      cfg.Risk,
		reconcile: cfg.Reconcile,
		meta:      cfg.Meta,
	}
}

// --- Trading ---

func (e *Impl) PlaceTrade(ctx context.Context, req ledger.PlaceRequest) (trade.Trade, error) {
	return e.ledger.Place(ctx, req)
}

func (e *Impl) ActiveTrades(_ context.Context, userID string) ([]trade.Trade, error) {
	return e.ledger.ActiveFor(userID), nil
}

func (e *Impl) TradeHistory(ctx context.Context, userID string, limit int) ([]trade.Trade, error) {
	trades, err := e.db.ListTradesByUser(ctx, userID, clampLimit(limit))
	if err != nil {
		return nil, &trade.PersistenceError{Op: "trade history", Err: err}
	}
	if trades == nil {
		trades = []trade.Trade{}
	}
	return trades, nil
}

func (e *Impl) UserStats(ctx context.Context, userID string) (*StatsView, error) {
	s, err := e.db.GetUserStats(ctx, userID)
	if err != nil {
		return nil, &trade.PersistenceError{Op: "user stats", Err: err}
	}
	return &StatsView{
		UserID:        userID,
		TotalTrades:   s.TotalTrades,
		Wins:          s.Wins,
		Losses:        s.Losses,
		WinRate:       s.WinRate(),
		TotalInvested: s.TotalInvested,
		TotalEarned:   s.TotalEarned,
		NetProfit:     s.TotalEarned.Sub(s.TotalInvested),
		ActiveTrades:  len(e.ledger.ActiveFor(userID)),
	}, nil
}

// --- Wallets ---

func (e *Impl) Wallets(ctx context.Context, userID string) ([]db.Wallet, error) {
	wallets, err := e.db.ListWallets(ctx, userID)
	if err != nil {
		return nil, &trade.PersistenceError{Op: "list wallets", Err: err}
	}
	if wallets == nil {
		wallets = []db.Wallet{}
	}
	return wallets, nil
}

func (e *Impl) Transactions(ctx context.Context, userID string, limit int) ([]db.Transaction, error) {
	txs, err := e.db.ListTransactions(ctx, userID, clampLimit(limit))
	if err != nil {
		return nil, &trade.PersistenceError{Op: "list transactions", Err: err}
	}
	if txs == nil {
		txs = []db.Transaction{}
	}
	return txs, nil
}

// --- Market data ---

func (e *Impl) Instruments(context.Context) []market.Instrument {
	return e.catalog.All()
}

func (e *Impl) Quote(_ context.Context, symbol string) (market.PriceTick, error) {
	in, ok := e.catalog.BySymbol(symbol)
	if !ok {
		return market.PriceTick{}, &trade.ValidationError{Field: "symbol", Reason: "unknown instrument " + symbol}
	}
	t, ok := e.prices.Latest(in.Symbol)
	if !ok {
		return market.PriceTick{}, &trade.PriceUnavailableError{Symbol: in.Symbol}
	}
	return t, nil
}

func (e *Impl) PriceHistory(_ context.Context, symbol string, limit int) ([]market.PriceTick, error) {
	in, ok := e.catalog.BySymbol(symbol)
	if !ok {
		return nil, &trade.ValidationError{Field: "symbol", Reason: "unknown instrument " + symbol}
	}
	if limit <= 0 || limit > e.prices.Capacity() {
		limit = e.prices.Capacity()
	}
	hist := e.prices.History(in.Symbol, limit)
	if hist == nil {
		hist = []market.PriceTick{}
	}
	return hist, nil
}

func (e *Impl) Signals(context.Context) []signal.Signal {
	return e.signals.All()
}

func (e *Impl) Signal(_ context.Context, symbol string) (signal.Signal, bool) {
	in, ok := e.catalog.BySymbol(symbol)
	if !ok {
		return signal.Signal{}, false
	}
	return e.signals.Latest(in.Symbol)
}

// --- System ---

func (e *Impl) GetSystemStatus(context.Context) *SystemStatus {
	status := e.meta
	status.Instruments = e.catalog.Symbols()
	status.ActiveTrades = e.ledger.Len()
	if e.scheduler != nil {
		status.Tasks = e.scheduler.Names()
		status.Running = e.scheduler.Running()
	}
	if e.risk != nil {
		st := e.risk.Stats()
		status.Risk = &st
	}
	if e.reconcile != nil {
		status.Reconciliation = e.reconcile.Last()
	}
	status.ServerTime = time.Now().UTC()
	return &status
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		return maxHistoryLimit
	}
	return limit
}
