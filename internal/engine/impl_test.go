package engine

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"options-core/internal/ledger"
	"options-core/internal/market"
	"options-core/internal/reconciliation"
	"options-core/internal/risk"
	"options-core/internal/signal"
	"options-core/internal/trade"
	"options-core/pkg/db"
)

func newTestImpl(t *testing.T) (*Impl, *db.Database) {
	t.Helper()
	database, err := db.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	require.NoError(t, db.ApplyMigrations(database))

	catalog := market.NewCatalog(market.DefaultInstruments())
	prices := market.NewStore(50)
	sim := market.NewSimulator(catalog, prices, market.NewRandomWalk(9), time.Second)
	sim.SeedAll(40)

	guard := risk.NewManager(risk.DefaultConfig())
	l := ledger.New(ledger.Config{Store: database, Catalog: catalog, Prices: prices, Risk: guard, DemoInitialBalance: decimal.NewFromInt(1000)})
	gen := signal.NewGenerator(signal.Config{Catalog: catalog, Store: prices})
	require.NoError(t, gen.Cycle(context.Background()))

	return NewImpl(Config{
		Ledger:    l,
		Catalog:   catalog,
		Prices:    prices,
		Signals:   gen,
		DB:        database,
		Risk:      guard,
		Reconcile: reconciliation.NewService(database, l, time.Second),
		Meta:      SystemStatus{Version: "test"},
	}), database
}

func TestImplTradeFlow(t *testing.T) {
	e, _ := newTestImpl(t)
	ctx := context.Background()

	placed, err := e.PlaceTrade(ctx, ledger.PlaceRequest{
		UserID:          "u1",
		AssetID:         "btcusd",
		Direction:       trade.DirectionDown,
		Stake:           decimal.NewFromInt(100),
		DurationMinutes: 1,
		Mode:            trade.ModeDemo,
	})
	require.NoError(t, err)

	active, err := e.ActiveTrades(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, placed.ID, active[0].ID)

	history, err := e.TradeHistory(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, history, 1)

	stats, err := e.UserStats(ctx, "u1")
	require.NoError(t, err)
	assert.Zero(t, stats.TotalTrades)
	assert.Equal(t, 1, stats.ActiveTrades)

	wallets, err := e.Wallets(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, wallets, 1)
	assert.True(t, wallets[0].Balance.Equal(decimal.NewFromInt(900)))

	txs, err := e.Transactions(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.NotNil(t, txs)
	assert.Empty(t, txs)

	status := e.GetSystemStatus(ctx)
	assert.Equal(t, "test", status.Version)
	assert.Equal(t, 1, status.ActiveTrades)
	assert.Len(t, status.Instruments, 6)
	require.NotNil(t, status.Risk)
	assert.Equal(t, 1, status.Risk.TrackedUsers)
	assert.Nil(t, status.Reconciliation)
}

func TestImplMarketQueries(t *testing.T) {
	e, _ := newTestImpl(t)
	ctx := context.Background()

	q, err := e.Quote(ctx, "eurusd")
	require.NoError(t, err)
	assert.Equal(t, "EURUSD", q.Symbol)

	_, err = e.Quote(ctx, "NOPE")
	assert.True(t, trade.IsValidation(err))

	hist, err := e.PriceHistory(ctx, "EURUSD", 10)
	require.NoError(t, err)
	assert.Len(t, hist, 10)
	hist, err = e.PriceHistory(ctx, "EURUSD", 0)
	require.NoError(t, err)
	assert.Len(t, hist, 40)

	assert.Len(t, e.Signals(ctx), 6)
	s, ok := e.Signal(ctx, "btcusd")
	require.True(t, ok)
	assert.Equal(t, "BTCUSD", s.Symbol)
	_, ok = e.Signal(ctx, "NOPE")
	assert.False(t, ok)

	assert.Len(t, e.Instruments(ctx), 6)
}
