package main

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"options-core/internal/ledger"
	"options-core/internal/logger"
	"options-core/internal/market"
	"options-core/internal/monitor"
	"options-core/internal/risk"
	"options-core/internal/settlement"
	"options-core/internal/trade"
	"options-core/pkg/db"
)

// settlement_demo runs placement and settlement against an in-memory store on
// a simulated clock. It never opens a listener or touches the real database.
//
// Usage:
//
//	go run ./scripts/settlement_demo
//
// It will:
//  1. Open a DEMO wallet and place an UP and a DOWN trade on BTCUSD.
//  2. Try a stake larger than the wallet to show the insufficient-balance path.
//  3. Advance one minute, sweep, and print the results and final balance.

func main() {
	logger.Setup("info", "console")
	ctx := context.Background()

	database, err := db.New(":memory:")
	if err != nil {
		log.Fatal().Err(err).Msg("open store")
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatal().Err(err).Msg("migrations")
	}

	now := time.Now().UTC().Truncate(time.Second)
	clock := func() time.Time { return now }

	catalog := market.NewCatalog(market.DefaultInstruments())
	prices := market.NewStore(market.DefaultCapacity)
	sim := market.NewSimulator(catalog, prices, market.NewRandomWalk(42), time.Second, market.WithClock(clock))
	sim.SeedAll(50)

	metrics := monitor.NewSystemMetrics()
	guard := risk.NewManagerWithClock(risk.DefaultConfig(), clock)
	book := ledger.New(ledger.Config{
		Store:              database,
		Catalog:            catalog,
		Prices:             prices,
		Metrics:            metrics,
		Risk:               guard,
		DemoInitialBalance: decimal.NewFromInt(1000),
		Now:                clock,
	})
	engine := settlement.New(settlement.Config{
		Store:   database,
		Quoter:  prices,
		Ledger:  book,
		Metrics: metrics,
		Risk:    guard,
		Now:     clock,
	})

	place := func(dir trade.Direction, stake int64) {
		t, err := book.Place(ctx, ledger.PlaceRequest{
			UserID:          "demo-user",
			AssetID:         "btcusd",
			Direction:       dir,
			Stake:           decimal.NewFromInt(stake),
			DurationMinutes: 1,
			Mode:            trade.ModeDemo,
		})
		if err != nil {
			log.Warn().Err(err).Str("direction", string(dir)).Int64("stake", stake).Msg("placement rejected")
			return
		}
		log.Info().Str("id", t.ID).Str("direction", string(dir)).Float64("entry", t.EntryPrice).Msg("placed")
	}

	log.Info().Msg("=== settlement demo starting ===")
	place(trade.DirectionUp, 100)
	place(trade.DirectionDown, 100)
	place(trade.DirectionUp, 5000)

	for i := 0; i < 60; i++ {
		now = now.Add(time.Second)
		sim.Tick()
	}

	report, err := engine.Sweep(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("sweep")
	}
	log.Info().Interface("report", report).Msg("sweep finished")

	history, err := database.ListTradesByUser(ctx, "demo-user", 10)
	if err != nil {
		log.Fatal().Err(err).Msg("history")
	}
	for _, t := range history {
		exit := 0.0
		if t.ExitPrice != nil {
			exit = *t.ExitPrice
		}
		log.Info().
			Str("direction", string(t.Direction)).
			Float64("entry", t.EntryPrice).
			Float64("exit", exit).
			Str("result", t.Result.String()).
			Str("payout", t.Payout.String()).
			Msg("trade")
	}

	w, err := database.GetWallet(ctx, "demo-user", trade.ModeDemo)
	if err != nil {
		log.Fatal().Err(err).Msg("wallet")
	}
	log.Info().Str("balance", w.Balance.String()).Msg("=== settlement demo finished ===")
}
