// Package ledger is the in-process index of pending trades, mirrored in the durable store.
package ledger

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"options-core/internal/market"
	"options-core/internal/monitor"
	"options-core/internal/notify"
	"options-core/internal/risk"
	"options-core/internal/trade"
)

// MaxDurationMinutes caps how far in the future a trade may expire.
const MaxDurationMinutes = 24 * 60

// DefaultStoreTimeout bounds a single durable-store call.
const DefaultStoreTimeout = 5 * time.Second

// Store is the durable side of the ledger.
type Store interface {
	PlaceTrade(ctx context.Context, t trade.Trade) error
	EnsureWallet(ctx context.Context, userID string, mode trade.Mode, initial decimal.Decimal) error
	ListPendingTrades(ctx context.Context) ([]trade.Trade, error)
}

// PriceSource resolves the entry price at placement.
type PriceSource interface {
	CurrentPrice(symbol string) (float64, error)
}

// PlaceRequest is a user's order for a new trade.
type PlaceRequest struct {
	UserID          string
	AssetID         string
	Direction       trade.Direction
	Stake           decimal.Decimal
	DurationMinutes int
	Mode            trade.Mode
}

// Config wires a Ledger.
type Config struct {
	Store              Store
	Catalog            *market.Catalog
	Prices             PriceSource
	Sink               notify.Sink
	Metrics            *monitor.SystemMetrics
	Risk               *risk.Manager // optional
	DemoInitialBalance decimal.Decimal
	StoreTimeout       time.Duration
	Now                func() time.Time
}

// Ledger tracks every PENDING trade by id. Reads never wait on store I/O.
type Ledger struct {
	mu     sync.RWMutex
	trades map[string]trade.Trade

	store       Store
	catalog     *market.Catalog
	prices      PriceSource
	sink        notify.Sink
	metrics     *monitor.SystemMetrics
	risk        *risk.Manager
	demoBalance decimal.Decimal
	timeout     time.Duration
	now         func() time.Time
}

func New(cfg Config) *Ledger {
	l := &Ledger{
		trades:      make(map[string]trade.Trade),
		store:       cfg.Store,
		catalog:     cfg.Catalog,
		prices:      cfg.Prices,
		sink:        cfg.Sink,
		metrics:     cfg.Metrics,
		risk:        cfg.Risk,
		demoBalance: cfg.DemoInitialBalance,
		timeout:     cfg.StoreTimeout,
		now:         cfg.Now,
	}
	if l.sink == nil {
		l.sink = notify.Discard{}
	}
	if l.timeout <= 0 {
		l.timeout = DefaultStoreTimeout
	}
	if l.now == nil {
		l.now = time.Now
	}
	return l
}

func (l *Ledger) validate(req PlaceRequest) (market.Instrument, error) {
	if req.UserID == "" {
		return market.Instrument{}, &trade.ValidationError{Field: "user_id", Reason: "is required"}
	}
	if req.AssetID == "" {
		return market.Instrument{}, &trade.ValidationError{Field: "asset_id", Reason: "is required"}
	}
	in, ok := l.catalog.ByID(req.AssetID)
	if !ok {
		return market.Instrument{}, &trade.ValidationError{Field: "asset_id", Reason: "unknown asset " + req.AssetID}
	}
	if !req.Direction.Valid() {
		return market.Instrument{}, &trade.ValidationError{Field: "direction", Reason: "must be UP or DOWN"}
	}
	if !req.Mode.Valid() {
		return market.Instrument{}, &trade.ValidationError{Field: "mode", Reason: "must be REAL or DEMO"}
	}
	if !req.Stake.IsPositive() {
		return market.Instrument{}, &trade.ValidationError{Field: "stake", Reason: "must be greater than zero"}
	}
	if !trade.ValidAmount(req.Stake) {
		return market.Instrument{}, &trade.ValidationError{Field: "stake", Reason: "must have at most 8 decimal places"}
	}
	if req.DurationMinutes <= 0 || req.DurationMinutes > MaxDurationMinutes {
		return market.Instrument{}, &trade.ValidationError{Field: "duration", Reason: "must be between 1 and 1440 minutes"}
	}
	return in, nil
}

// Place validates req, prices it, and persists it with the wallet debit in one
// store transaction. Only a committed trade enters the index.
func (l *Ledger) Place(ctx context.Context, req PlaceRequest) (trade.Trade, error) {
	in, err := l.validate(req)
	if err != nil {
		return trade.Trade{}, err
	}
	if l.risk != nil {
		if dec := l.risk.Check(req.UserID, req.Stake, l.openFor(req.UserID)); !dec.Allowed {
			return trade.Trade{}, &trade.ValidationError{Reason: dec.Reason}
		}
	}

	entry, err := l.prices.CurrentPrice(in.Symbol)
	if err != nil {
		if trade.IsPriceUnavailable(err) {
			return trade.Trade{}, err
		}
		return trade.Trade{}, &trade.PriceUnavailableError{Symbol: in.Symbol}
	}

	start := l.now().UTC()
	t := trade.Trade{
		ID:              uuid.NewString(),
		UserID:          req.UserID,
		AssetID:         in.ID,
		AssetSymbol:     in.Symbol,
		Direction:       req.Direction,
		Stake:           req.Stake,
		DurationMinutes: req.DurationMinutes,
		StartTime:       start,
		EndTime:         start.Add(time.Duration(req.DurationMinutes) * time.Minute),
		EntryPrice:      entry,
		Mode:            req.Mode,
		Result:          trade.ResultPending,
		Payout:          decimal.Zero,
		ReturnPercent:   in.ReturnPercent,
	}

	storeCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	if t.Mode == trade.ModeDemo {
		if err := l.store.EnsureWallet(storeCtx, t.UserID, trade.ModeDemo, l.demoBalance); err != nil {
			return trade.Trade{}, l.persistenceError("open demo wallet", err)
		}
	}

	if err := l.store.PlaceTrade(storeCtx, t); err != nil {
		if errors.Is(err, trade.ErrInsufficientBalance) {
			return trade.Trade{}, &trade.ValidationError{Field: "stake", Reason: "insufficient balance"}
		}
		return trade.Trade{}, l.persistenceError("place trade", err)
	}

	l.mu.Lock()
	l.trades[t.ID] = t
	l.mu.Unlock()

	if l.metrics != nil {
		l.metrics.IncrementPlaced()
	}
	if l.risk != nil {
		l.risk.RecordPlaced(t.UserID)
	}
	log.Info().
		Str("trade_id", t.ID).
		Str("user_id", t.UserID).
		Str("symbol", t.AssetSymbol).
		Str("direction", string(t.Direction)).
		Str("stake", t.Stake.String()).
		Str("mode", string(t.Mode)).
		Float64("entry", t.EntryPrice).
		Msg("trade placed")

	l.sink.NotifyUser(t.UserID, notify.NewEvent(notify.TypeTradeUpdate, t))
	return t, nil
}

func (l *Ledger) openFor(userID string) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, t := range l.trades {
		if t.UserID == userID {
			n++
		}
	}
	return n
}

func (l *Ledger) persistenceError(op string, err error) error {
	if l.metrics != nil {
		l.metrics.IncrementErrors()
	}
	log.Error().Err(err).Str("op", op).Msg("ledger store call failed")
	return &trade.PersistenceError{Op: op, Err: err}
}

// Load replaces the index with the store's PENDING trades.
func (l *Ledger) Load(ctx context.Context) error {
	storeCtx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	pending, err := l.store.ListPendingTrades(storeCtx)
	if err != nil {
		return &trade.PersistenceError{Op: "load pending trades", Err: err}
	}

	index := make(map[string]trade.Trade, len(pending))
	for _, t := range pending {
		index[t.ID] = t
	}
	l.mu.Lock()
	l.trades = index
	l.mu.Unlock()

	log.Info().Int("pending", len(index)).Msg("ledger loaded")
	return nil
}

// Remove evicts id from the index. The durable record is untouched.
func (l *Ledger) Remove(id string) {
	l.mu.Lock()
	delete(l.trades, id)
	l.mu.Unlock()
}

// Track indexes a PENDING trade committed outside Place. Other results are ignored.
func (l *Ledger) Track(t trade.Trade) {
	if t.Result != trade.ResultPending {
		return
	}
	l.mu.Lock()
	l.trades[t.ID] = t
	l.mu.Unlock()
}

// All returns every indexed trade in no particular order.
func (l *Ledger) All() []trade.Trade {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]trade.Trade, 0, len(l.trades))
	for _, t := range l.trades {
		out = append(out, t)
	}
	return out
}

// Get returns the pending trade with id.
func (l *Ledger) Get(id string) (trade.Trade, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	t, ok := l.trades[id]
	return t, ok
}

// ActiveFor returns userID's pending trades, soonest expiry first.
func (l *Ledger) ActiveFor(userID string) []trade.Trade {
	l.mu.RLock()
	out := make([]trade.Trade, 0)
	for _, t := range l.trades {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].EndTime.Equal(out[j].EndTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].EndTime.Before(out[j].EndTime)
	})
	return out
}

// Len is the number of pending trades.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.trades)
}
