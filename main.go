package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"options-core/internal/api"
	"options-core/internal/engine"
	"options-core/internal/events"
	"options-core/internal/health"
	"options-core/internal/ledger"
	"options-core/internal/logger"
	"options-core/internal/market"
	"options-core/internal/monitor"
	"options-core/internal/notify"
	"options-core/internal/persistence"
	"options-core/internal/reconciliation"
	"options-core/internal/risk"
	"options-core/internal/settlement"
	tradesignal "options-core/internal/signal"
	"options-core/pkg/config"
	"options-core/pkg/db"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Setup("info", "console")
		log.Fatal().Err(err).Msg("load config")
	}
	logger.Setup(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatal().Err(err).Msg("apply migrations")
	}
	log.Info().Str("path", cfg.DBPath).Msg("database ready")

	// Market
	instruments, err := market.LoadInstruments(cfg.InstrumentsFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.InstrumentsFile).Msg("load instruments")
	}
	catalog := market.NewCatalog(instruments)
	prices := market.NewStore(cfg.HistoryCapacity)

	seed := cfg.RandomSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	var simOpts []market.SimulatorOption
	if cfg.TickArchive {
		writer := persistence.NewBatchWriter(database.DB, 200, 2*time.Second)
		defer writer.Close()
		simOpts = append(simOpts, market.WithRecorder(market.NewArchive(writer)))
	}
	sim := market.NewSimulator(catalog, prices, market.NewRandomWalk(seed), cfg.TickInterval, simOpts...)
	sim.SeedAll(cfg.SeedTicks)
	log.Info().Strs("symbols", catalog.Symbols()).Int("seed_ticks", cfg.SeedTicks).Msg("market simulator seeded")

	// Notifications
	bus := events.NewBus()
	sink := notify.Multi{notify.NewBusSink(bus)}
	redisOn := false
	if cfg.RedisAddr != "" {
		rs, err := notify.NewRedisSink(notify.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("redis fan-out disabled")
		} else {
			defer rs.Close()
			sink = append(sink, rs)
			redisOn = true
		}
	}

	metrics := monitor.NewSystemMetrics()
	guard := risk.NewManager(risk.Config{
		Enabled:        cfg.RiskEnabled,
		MinStake:       cfg.MinStake,
		MaxStake:       cfg.MaxStake,
		MaxOpenTrades:  cfg.MaxOpenTrades,
		MaxDailyTrades: cfg.MaxDailyTrades,
		MaxDailyLoss:   cfg.MaxDailyLoss,
	})

	// Core
	book := ledger.New(ledger.Config{
		Store:              database,
		Catalog:            catalog,
		Prices:             prices,
		Sink:               sink,
		Metrics:            metrics,
		Risk:               guard,
		DemoInitialBalance: cfg.DemoInitialBalance,
		StoreTimeout:       cfg.StoreTimeout,
	})
	if err := book.Load(ctx); err != nil {
		log.Fatal().Err(err).Msg("load pending trades")
	}

	signals := tradesignal.NewGenerator(tradesignal.Config{
		Catalog:   catalog,
		Store:     prices,
		Sink:      sink,
		Metrics:   metrics,
		Timeframe: cfg.SignalTimeframe,
		Window:    cfg.SignalWindow,
	})

	settler := settlement.New(settlement.Config{
		Store:        database,
		Quoter:       prices,
		Ledger:       book,
		Sink:         sink,
		Metrics:      metrics,
		Risk:         guard,
		StoreTimeout: cfg.StoreTimeout,
	})

	reconciler := reconciliation.NewService(database, book, cfg.StoreTimeout)

	scheduler := engine.NewScheduler(
		engine.Task{Name: "market", Interval: cfg.TickInterval, Run: engine.MarketTask(sim, sink, metrics)},
		engine.Task{Name: "settlement", Interval: cfg.SweepInterval, Run: settler.Cycle},
		engine.Task{Name: "signals", Interval: cfg.SignalInterval, Run: signals.Cycle},
		engine.Task{Name: "reconcile", Interval: cfg.ReconcileInterval, Run: reconciler.Cycle},
		engine.Task{Name: "risk-cleanup", Interval: 10 * time.Minute, Run: func(context.Context) error {
			if n := guard.CleanupIdle(24 * time.Hour); n > 0 {
				log.Debug().Int("users", n).Msg("dropped idle risk windows")
			}
			return nil
		}},
	)

	eng := engine.NewImpl(engine.Config{
		Ledger:    book,
		Catalog:   catalog,
		Prices:    prices,
		Signals:   signals,
		DB:        database,
		Scheduler: scheduler,
		Risk:      guard,
		Reconcile: reconciler,
		Meta: engine.SystemStatus{
			Version: getEnv("APP_VERSION", "v1.0-dev"),
			Redis:   redisOn,
		},
	})

	server := api.NewServer(api.ServerConfig{
		Engine:         eng,
		Bus:            bus,
		Metrics:        metrics,
		JWTSecret:      cfg.JWTSecret,
		RequestTimeout: cfg.RequestTimeout,
		RateLimit:      cfg.RateLimitRPS,
		RateBurst:      cfg.RateLimitBurst,
	})
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Background loops
	scheduler.Start(ctx)
	mon := &monitor.Monitor{Metrics: metrics, Sink: monitor.LogSink{}, Interval: time.Minute, Threshold: 50}
	go mon.Start(ctx)

	var hs *health.Server
	if cfg.HealthAddr != "" {
		hs = health.New(cfg.HealthAddr)
		if err := hs.Start(); err != nil {
			log.Fatal().Err(err).Msg("start health server")
		}
		hs.SetServing(true)
	}

	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("http server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	if hs != nil {
		hs.SetServing(false)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	scheduler.Wait()
	if hs != nil {
		hs.Stop()
	}
	log.Info().Int("pending_trades", book.Len()).Msg("shutdown complete")
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
