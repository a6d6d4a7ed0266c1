package signal

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"options-core/internal/indicators"
	"options-core/internal/market"
	"options-core/internal/monitor"
	"options-core/internal/notify"
	"options-core/pkg/cache"
)

// DefaultWindow is how many recent ticks feed each computation; enough for MACD's slow EMA.
const DefaultWindow = 100

// Generator recomputes a signal for every catalog symbol once per cycle and keeps
// the most recent one per symbol.
type Generator struct {
	catalog   *market.Catalog
	store     *market.Store
	latest    *cache.Sharded[Signal]
	sink      notify.Sink
	metrics   *monitor.SystemMetrics
	timeframe string
	window    int
	now       func() time.Time
}

// Config holds the generator's collaborators.
type Config struct {
	Catalog   *market.Catalog
	Store     *market.Store
	Sink      notify.Sink
	Metrics   *monitor.SystemMetrics
	Timeframe string
	Window    int
	Now       func() time.Time
}

func NewGenerator(cfg Config) *Generator {
	g := &Generator{
		catalog:   cfg.Catalog,
		store:     cfg.Store,
		latest:    cache.New[Signal](),
		sink:      cfg.Sink,
		metrics:   cfg.Metrics,
		timeframe: cfg.Timeframe,
		window:    cfg.Window,
		now:       cfg.Now,
	}
	if g.sink == nil {
		g.sink = notify.Discard{}
	}
	if g.timeframe == "" {
		g.timeframe = "1m"
	}
	if g.window <= 0 {
		g.window = DefaultWindow
	}
	if g.now == nil {
		g.now = time.Now
	}
	return g
}

// Cycle computes all symbols, caches the results and broadcasts them as one
// tradingSignals event. A failing symbol is logged and skipped.
func (g *Generator) Cycle(ctx context.Context) error {
	if g.metrics != nil {
		defer monitor.NewTimer(g.metrics.SignalLatency).Stop()
	}

	symbols := g.catalog.Symbols()
	out := make([]Signal, 0, len(symbols))
	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return err
		}
		s, err := g.compute(sym)
		if err != nil {
			log.Warn().Err(err).Str("symbol", sym).Msg("signal computation skipped")
			if g.metrics != nil {
				g.metrics.IncrementErrors()
			}
			continue
		}
		g.latest.Set(sym, s)
		out = append(out, s)
	}

	if len(out) > 0 {
		g.sink.Broadcast(notify.NewEvent(notify.TypeTradingSignals, out))
	}
	if g.metrics != nil {
		g.metrics.AddSignals(len(out))
	}
	log.Debug().Int("signals", len(out)).Msg("signal cycle complete")
	return nil
}

func (g *Generator) compute(symbol string) (s Signal, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic computing %s: %v", symbol, r)
		}
	}()

	if _, err := g.store.CurrentPrice(symbol); err != nil {
		return Signal{}, err
	}
	closes := indicators.Closes(g.store.History(symbol, g.window))
	return Evaluate(symbol, g.timeframe, closes, g.now()), nil
}

// Latest returns the most recent signal for symbol.
func (g *Generator) Latest(symbol string) (Signal, bool) {
	return g.latest.Get(symbol)
}

// All returns the most recent signal for every symbol, ordered by symbol.
func (g *Generator) All() []Signal {
	return g.latest.All()
}
