package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"options-core/internal/market"
	"options-core/internal/notify"
	"options-core/internal/risk"
	"options-core/internal/trade"
	"options-core/pkg/db"
)

var epoch = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

type userEvents struct {
	notify.Discard
	users []string
	types []string
}

func (u *userEvents) NotifyUser(userID string, ev notify.Event) {
	u.users = append(u.users, userID)
	u.types = append(u.types, ev.Type)
}

type fixture struct {
	db     *db.Database
	prices *market.Store
	sink   *userEvents
	ledger *Ledger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database, err := db.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })
	require.NoError(t, db.ApplyMigrations(database))

	prices := market.NewStore(market.DefaultCapacity)
	prices.Append(market.PriceTick{Symbol: "EURUSD", Price: 1.0850, Timestamp: epoch})

	sink := &userEvents{}
	l := New(Config{
		Store:              database,
		Catalog:            market.NewCatalog(market.DefaultInstruments()),
		Prices:             prices,
		Sink:               sink,
		DemoInitialBalance: decimal.NewFromInt(10000),
		Now:                func() time.Time { return epoch },
	})
	return &fixture{db: database, prices: prices, sink: sink, ledger: l}
}

func request(user string, stake int64) PlaceRequest {
	return PlaceRequest{
		UserID:          user,
		AssetID:         "eurusd",
		Direction:       trade.DirectionUp,
		Stake:           decimal.NewFromInt(stake),
		DurationMinutes: 5,
		Mode:            trade.ModeReal,
	}
}

func TestPlaceDebitsAndIndexes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.db.Deposit(ctx, "u1", trade.ModeReal, decimal.NewFromInt(100)))

	placed, err := f.ledger.Place(ctx, request("u1", 40))
	require.NoError(t, err)
	assert.Equal(t, trade.ResultPending, placed.Result)
	assert.Equal(t, "EURUSD", placed.AssetSymbol)
	assert.Equal(t, 1.0850, placed.EntryPrice)
	assert.Equal(t, epoch.Add(5*time.Minute), placed.EndTime)
	assert.True(t, placed.ReturnPercent.Equal(decimal.NewFromInt(80)))

	w, err := f.db.GetWallet(ctx, "u1", trade.ModeReal)
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(decimal.NewFromInt(60)), w.Balance.String())

	stored, err := f.db.GetTrade(ctx, placed.ID)
	require.NoError(t, err)
	assert.Equal(t, trade.ResultPending, stored.Result)

	active := f.ledger.ActiveFor("u1")
	require.Len(t, active, 1)
	assert.Equal(t, placed.ID, active[0].ID)
	assert.Empty(t, f.ledger.ActiveFor("someone-else"))

	assert.Equal(t, []string{"u1"}, f.sink.users)
	assert.Equal(t, []string{notify.TypeTradeUpdate}, f.sink.types)
}

func TestPlaceInsufficientBalanceLeavesNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.db.Deposit(ctx, "u1", trade.ModeReal, decimal.NewFromInt(10)))

	_, err := f.ledger.Place(ctx, request("u1", 40))
	require.Error(t, err)
	var verr *trade.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "stake", verr.Field)

	pending, err := f.db.ListPendingTrades(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Zero(t, f.ledger.Len())
	assert.Empty(t, f.sink.users)

	w, err := f.db.GetWallet(ctx, "u1", trade.ModeReal)
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(decimal.NewFromInt(10)))
}

func TestPlaceOpensDemoWalletLazily(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := request("u2", 250)
	req.Mode = trade.ModeDemo
	_, err := f.ledger.Place(ctx, req)
	require.NoError(t, err)
	_, err = f.ledger.Place(ctx, req)
	require.NoError(t, err)

	w, err := f.db.GetWallet(ctx, "u2", trade.ModeDemo)
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(decimal.NewFromInt(9500)), w.Balance.String())
	assert.Len(t, f.ledger.ActiveFor("u2"), 2)
}

func TestPlaceValidation(t *testing.T) {
	f := newFixture(t)
	cases := map[string]func(*PlaceRequest){
		"user_id":   func(r *PlaceRequest) { r.UserID = "" },
		"asset_id":  func(r *PlaceRequest) { r.AssetID = "dogeusd" },
		"direction": func(r *PlaceRequest) { r.Direction = "SIDEWAYS" },
		"mode":      func(r *PlaceRequest) { r.Mode = "PAPER" },
		"stake":     func(r *PlaceRequest) { r.Stake = decimal.Zero },
		"duration":  func(r *PlaceRequest) { r.DurationMinutes = 0 },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			req := request("u1", 10)
			mutate(&req)
			_, err := f.ledger.Place(context.Background(), req)
			var verr *trade.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, field, verr.Field)
		})
	}
	assert.Zero(t, f.ledger.Len())
}

func TestPlaceWithoutPrice(t *testing.T) {
	f := newFixture(t)
	req := request("u1", 10)
	req.AssetID = "btcusd"
	_, err := f.ledger.Place(context.Background(), req)
	require.True(t, trade.IsPriceUnavailable(err), "got %v", err)
}

type failingStore struct{ err error }

func (s failingStore) PlaceTrade(context.Context, trade.Trade) error { return s.err }
func (s failingStore) EnsureWallet(context.Context, string, trade.Mode, decimal.Decimal) error {
	return nil
}
func (s failingStore) ListPendingTrades(context.Context) ([]trade.Trade, error) { return nil, s.err }

func TestPlaceStoreFailure(t *testing.T) {
	prices := market.NewStore(10)
	prices.Append(market.PriceTick{Symbol: "EURUSD", Price: 1.08, Timestamp: epoch})
	boom := errors.New("disk full")
	l := New(Config{
		Store:   failingStore{err: boom},
		Catalog: market.NewCatalog(market.DefaultInstruments()),
		Prices:  prices,
	})

	_, err := l.Place(context.Background(), request("u1", 10))
	var perr *trade.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, boom)
	assert.Zero(t, l.Len())

	assert.Error(t, l.Load(context.Background()))
}

func TestLoadAndRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.db.Deposit(ctx, "u1", trade.ModeReal, decimal.NewFromInt(100)))
	a, err := f.ledger.Place(ctx, request("u1", 10))
	require.NoError(t, err)
	b, err := f.ledger.Place(ctx, request("u1", 10))
	require.NoError(t, err)

	restarted := New(Config{Store: f.db, Catalog: market.NewCatalog(market.DefaultInstruments()), Prices: f.prices})
	require.NoError(t, restarted.Load(ctx))
	assert.Equal(t, 2, restarted.Len())

	restarted.Remove(a.ID)
	_, ok := restarted.Get(a.ID)
	assert.False(t, ok)
	got, ok := restarted.Get(b.ID)
	require.True(t, ok)
	assert.Equal(t, b.UserID, got.UserID)

	stored, err := f.db.GetTrade(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, trade.ResultPending, stored.Result)
}

func TestPlaceRespectsRiskLimits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.db.Deposit(ctx, "u1", trade.ModeReal, decimal.NewFromInt(1000)))

	cfg := risk.DefaultConfig()
	cfg.MaxStake = decimal.NewFromInt(100)
	cfg.MaxOpenTrades = 1
	guard := risk.NewManagerWithClock(cfg, func() time.Time { return epoch })
	f.ledger.risk = guard

	_, err := f.ledger.Place(ctx, request("u1", 150))
	var verr *trade.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "stake above maximum 100", verr.Reason)

	_, err = f.ledger.Place(ctx, request("u1", 50))
	require.NoError(t, err)

	_, err = f.ledger.Place(ctx, request("u1", 50))
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "too many open trades", verr.Reason)
	assert.Equal(t, 1, f.ledger.Len())

	um, ok := guard.Metrics("u1")
	require.True(t, ok)
	assert.Equal(t, 1, um.DailyTrades)

	w, err := f.db.GetWallet(ctx, "u1", trade.ModeReal)
	require.NoError(t, err)
	assert.True(t, w.Balance.Equal(decimal.NewFromInt(950)))
}

func TestTrackIgnoresTerminalTrades(t *testing.T) {
	f := newFixture(t)
	pending := trade.Trade{ID: "p1", UserID: "u1", Result: trade.ResultPending}
	f.ledger.Track(pending)
	f.ledger.Track(trade.Trade{ID: "w1", UserID: "u1", Result: trade.ResultWin})

	all := f.ledger.All()
	require.Len(t, all, 1)
	assert.Equal(t, "p1", all[0].ID)
}

func BenchmarkPlace(b *testing.B) {
	database, err := db.New(":memory:")
	require.NoError(b, err)
	defer database.Close()
	require.NoError(b, db.ApplyMigrations(database))

	prices := market.NewStore(10)
	prices.Append(market.PriceTick{Symbol: "EURUSD", Price: 1.085, Timestamp: epoch})
	l := New(Config{
		Store:              database,
		Catalog:            market.NewCatalog(market.DefaultInstruments()),
		Prices:             prices,
		DemoInitialBalance: decimal.NewFromInt(1_000_000_000),
	})
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := request(fmt.Sprintf("user-%d", i%100), 1)
		req.Mode = trade.ModeDemo
		if _, err := l.Place(ctx, req); err != nil {
			b.Fatalf("Place: %v", err)
		}
	}
}

func TestPlaceFractionalStakesDebitExactly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.db.Deposit(ctx, "u1", trade.ModeReal, decimal.RequireFromString("0.3")))

	req := request("u1", 1)
	req.Stake = decimal.RequireFromString("0.1")
	for i, want := range []string{"0.2", "0.1", "0"} {
		placed, err := f.ledger.Place(ctx, req)
		require.NoError(t, err, "place %d", i)
		assert.True(t, placed.Stake.Equal(req.Stake))
		assert.True(t, placed.ReturnPercent.Equal(decimal.NewFromInt(80)))

		w, err := f.db.GetWallet(ctx, "u1", trade.ModeReal)
		require.NoError(t, err)
		assert.True(t, w.Balance.Equal(decimal.RequireFromString(want)), "after place %d: %s", i, w.Balance)
	}

	_, err := f.ledger.Place(ctx, req)
	var verr *trade.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "stake", verr.Field)
	assert.Equal(t, 3, f.ledger.Len())

	pending, err := f.db.ListPendingTrades(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 3)
	for _, p := range pending {
		assert.True(t, p.Stake.Equal(req.Stake), "stored stake %s", p.Stake)
	}
}

func TestPlaceRejectsSubUnitStake(t *testing.T) {
	f := newFixture(t)
	req := request("u1", 1)
	req.Stake = decimal.RequireFromString("0.123456789")

	_, err := f.ledger.Place(context.Background(), req)
	var verr *trade.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "stake", verr.Field)
	assert.Equal(t, "must have at most 8 decimal places", verr.Reason)
}
