// Package settlement moves expired trades from PENDING to WIN or LOSS exactly once.
package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"options-core/internal/monitor"
	"options-core/internal/notify"
	"options-core/internal/risk"
	"options-core/internal/trade"
)

// ErrNotDue is returned by Settle for a trade whose end time has not been reached.
var ErrNotDue = errors.New("trade not yet due")

// Store is the durable side of settlement. SettleTrade must be conditional on
// the trade still being PENDING and return *trade.AlreadySettledError otherwise.
type Store interface {
	ListDueTrades(ctx context.Context, now time.Time) ([]trade.Trade, error)
	SettleTrade(ctx context.Context, s trade.Settlement) error
}

// Quoter supplies exit prices.
type Quoter interface {
	CurrentPrice(symbol string) (float64, error)
}

// Ledger is the in-memory index settled trades are evicted from.
type Ledger interface {
	Remove(id string)
	Len() int
}

// Report summarizes one sweep.
type Report struct {
	Due            int `json:"due"`
	Settled        int `json:"settled"`
	Wins           int `json:"wins"`
	Losses         int `json:"losses"`
	Skipped        int `json:"skipped"`
	AlreadySettled int `json:"already_settled"`
	Failed         int `json:"failed"`
}

// Config wires an Engine.
type Config struct {
	Store        Store
	Quoter       Quoter
	Ledger       Ledger
	Sink         notify.Sink
	Metrics      *monitor.SystemMetrics
	Risk         *risk.Manager // optional; receives each settled trade's net result
	StoreTimeout time.Duration
	Now          func() time.Time
}

// Engine settles due trades. Sweeps are expected to run one at a time; a
// concurrent sweep is still safe because the store write is conditional.
type Engine struct {
	store   Store
	quoter  Quoter
	ledger  Ledger
	sink    notify.Sink
	metrics *monitor.SystemMetrics
	risk    *risk.Manager
	timeout time.Duration
	now     func() time.Time
}

func New(cfg Config) *Engine {
	e := &Engine{
		store:   cfg.Store,
		quoter:  cfg.Quoter,
		ledger:  cfg.Ledger,
		sink:    cfg.Sink,
		metrics: cfg.Metrics,
		risk:    cfg.Risk,
		timeout: cfg.StoreTimeout,
		now:     cfg.Now,
	}
	if e.sink == nil {
		e.sink = notify.Discard{}
	}
	if e.metrics == nil {
		e.metrics = monitor.NewSystemMetrics()
	}
	if e.timeout <= 0 {
		e.timeout = 5 * time.Second
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

// Sweep settles every PENDING trade whose end time has passed. Each trade is
// handled independently; only a failed due-trade query aborts the sweep.
func (e *Engine) Sweep(ctx context.Context) (Report, error) {
	defer monitor.NewTimer(e.metrics.SweepLatency).Stop()

	var rep Report
	listCtx, cancel := context.WithTimeout(ctx, e.timeout)
	due, err := e.store.ListDueTrades(listCtx, e.now())
	cancel()
	if err != nil {
		e.metrics.IncrementErrors()
		return rep, &trade.PersistenceError{Op: "list due trades", Err: err}
	}
	rep.Due = len(due)

	for _, t := range due {
		if ctx.Err() != nil {
			break
		}
		settled, err := e.settleIsolated(ctx, t)
		switch {
		case err == nil:
			rep.Settled++
			if settled.Result == trade.ResultWin {
				rep.Wins++
			} else {
				rep.Losses++
			}
		case trade.IsAlreadySettled(err):
			rep.AlreadySettled++
		case trade.IsPriceUnavailable(err), errors.Is(err, ErrNotDue):
			rep.Skipped++
			e.metrics.IncrementSkipped()
		default:
			rep.Failed++
		}
	}

	if e.ledger != nil {
		e.metrics.SetActiveTrades(e.ledger.Len())
	}
	if rep.Due > 0 {
		log.Info().
			Int("due", rep.Due).
			Int("settled", rep.Settled).
			Int("skipped", rep.Skipped).
			Int("failed", rep.Failed).
			Msg("settlement sweep")
	}
	return rep, ctx.Err()
}

// Cycle is the scheduler entry point.
func (e *Engine) Cycle(ctx context.Context) error {
	_, err := e.Sweep(ctx)
	return err
}

func (e *Engine) settleIsolated(ctx context.Context, t trade.Trade) (out trade.Trade, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.metrics.IncrementErrors()
			log.Error().Str("trade_id", t.ID).Interface("panic", r).Msg("settlement panicked")
			err = fmt.Errorf("settle %s: panic: %v", t.ID, r)
		}
	}()
	return e.Settle(ctx, t)
}

// Settle decides and commits one trade. It returns the settled trade, or:
// ErrNotDue before the end time, *trade.PriceUnavailableError when no exit price
// exists, *trade.AlreadySettledError when another writer got there first, and
// *trade.PersistenceError for store failures. In the last two cases nothing was
// credited by this call.
func (e *Engine) Settle(ctx context.Context, t trade.Trade) (trade.Trade, error) {
	now := e.now()
	if !t.Due(now) {
		return t, ErrNotDue
	}
	if t.Result.Terminal() {
		e.evict(t.ID)
		return t, &trade.AlreadySettledError{TradeID: t.ID}
	}

	exit, err := e.quoter.CurrentPrice(t.AssetSymbol)
	if err != nil {
		log.Debug().Str("trade_id", t.ID).Str("symbol", t.AssetSymbol).Msg("no exit price; retry next sweep")
		if trade.IsPriceUnavailable(err) {
			return t, err
		}
		return t, &trade.PriceUnavailableError{Symbol: t.AssetSymbol}
	}

	result := trade.Outcome(t.Direction, t.EntryPrice, exit)
	payout := trade.Payout(result, t.Stake, t.ReturnPercent)
	settledAt := now.UTC()

	s := trade.Settlement{
		TradeID:   t.ID,
		UserID:    t.UserID,
		Mode:      t.Mode,
		Stake:     t.Stake,
		ExitPrice: exit,
		Result:    result,
		Payout:    payout,
		SettledAt: settledAt,
	}

	storeCtx, cancel := context.WithTimeout(ctx, e.timeout)
	timer := monitor.NewTimer(e.metrics.StoreLatency)
	err = e.store.SettleTrade(storeCtx, s)
	timer.Stop()
	cancel()

	if err != nil {
		if trade.IsAlreadySettled(err) {
			log.Info().Str("trade_id", t.ID).Msg("trade already settled; skipping")
			e.evict(t.ID)
			return t, err
		}
		e.metrics.IncrementErrors()
		log.Error().Err(err).Str("trade_id", t.ID).Msg("settlement write failed; trade stays pending")
		return t, &trade.PersistenceError{Op: "settle trade", Err: err}
	}

	t.ExitPrice = &exit
	t.Result = result
	t.Payout = payout
	t.SettledAt = &settledAt

	e.evict(t.ID)
	e.metrics.IncrementSettled(result == trade.ResultWin)
	if e.risk != nil {
		e.risk.RecordSettled(t.UserID, payout.Sub(t.Stake))
	}
	log.Info().
		Str("trade_id", t.ID).
		Str("user_id", t.UserID).
		Str("symbol", t.AssetSymbol).
		Str("result", result.String()).
		Float64("entry", t.EntryPrice).
		Float64("exit", exit).
		Str("payout", payout.String()).
		Msg("trade settled")

	e.sink.NotifyUser(t.UserID, notify.NewEvent(notify.TypeTradeResult, t))
	return t, nil
}

func (e *Engine) evict(id string) {
	if e.ledger != nil {
		e.ledger.Remove(id)
	}
}
