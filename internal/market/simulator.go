package market

import (
	"time"

	"github.com/rs/zerolog/log"

	"options-core/internal/trade"
)

// Recorder receives every tick the simulator generates.
type Recorder interface {
	Record(PriceTick)
}

// Simulator drives a PriceSource for every catalog instrument on a fixed cadence.
type Simulator struct {
	catalog  *Catalog
	store    *Store
	source   PriceSource
	interval time.Duration
	recorder Recorder
	now      func() time.Time
}

// SimulatorOption customizes a Simulator.
type SimulatorOption func(*Simulator)

// WithClock replaces time.Now, for tests driving simulated time.
func WithClock(now func() time.Time) SimulatorOption {
	return func(s *Simulator) { s.now = now }
}

func WithRecorder(r Recorder) SimulatorOption {
	return func(s *Simulator) { s.recorder = r }
}

func NewSimulator(catalog *Catalog, store *Store, source PriceSource, interval time.Duration, opts ...SimulatorOption) *Simulator {
	if interval <= 0 {
		interval = time.Second
	}
	s := &Simulator{
		catalog:  catalog,
		store:    store,
		source:   source,
		interval: interval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Simulator) Store() *Store { return s.store }

// Tick appends one fresh observation per instrument.
func (s *Simulator) Tick() []PriceTick {
	now := s.now()
	instruments := s.catalog.All()
	out := make([]PriceTick, 0, len(instruments))
	for _, in := range instruments {
		t := s.source.Next(in, now)
		s.store.Append(t)
		if s.recorder != nil {
			s.recorder.Record(t)
		}
		out = append(out, t)
	}
	return out
}

// SeedHistory back-fills n ticks for symbol, spaced one interval apart and ending
// one interval before now, so indicators have warm-up data immediately.
func (s *Simulator) SeedHistory(symbol string, n int) error {
	in, ok := s.catalog.BySymbol(symbol)
	if !ok {
		return &trade.ValidationError{Field: "symbol", Reason: "unknown instrument " + symbol}
	}
	now := s.now()
	for i := n; i >= 1; i-- {
		s.store.Append(s.source.Next(in, now.Add(-time.Duration(i)*s.interval)))
	}
	log.Debug().Str("symbol", in.Symbol).Int("ticks", n).Msg("seeded price history")
	return nil
}

// SeedAll back-fills every catalog instrument.
func (s *Simulator) SeedAll(n int) {
	for _, sym := range s.catalog.Symbols() {
		_ = s.SeedHistory(sym, n)
	}
}

// CurrentPrice returns the latest price for symbol.
func (s *Simulator) CurrentPrice(symbol string) (float64, error) {
	return s.store.CurrentPrice(symbol)
}
