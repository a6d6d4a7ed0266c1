package market

import (
	"sync"
	"time"

	"options-core/internal/trade"
)

// DefaultCapacity is the per-symbol history bound.
const DefaultCapacity = 1000

// PriceTick is one timestamped observation.
type PriceTick struct {
	Symbol    string    `json:"symbol"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
	Volume    float64   `json:"volume"`
}

// Store keeps a bounded, chronological tick history per symbol.
// The simulator is the only writer; every other component reads snapshots.
type Store struct {
	mu       sync.RWMutex
	capacity int
	series   map[string]*ring
}

func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		series:   make(map[string]*ring),
	}
}

func (s *Store) Capacity() int { return s.capacity }

// Append adds a tick, evicting the oldest one once the symbol is at capacity.
func (s *Store) Append(t PriceTick) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.series[t.Symbol]
	if !ok {
		r = newRing(s.capacity)
		s.series[t.Symbol] = r
	}
	r.push(t)
}

// History returns up to limit of the newest ticks, oldest first. limit<=0 returns all.
func (s *Store) History(symbol string, limit int) []PriceTick {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.series[symbol]
	if !ok {
		return nil
	}
	return r.tail(limit)
}

func (s *Store) Len(symbol string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.series[symbol]; ok {
		return r.len()
	}
	return 0
}

// Latest returns the newest tick for symbol.
func (s *Store) Latest(symbol string) (PriceTick, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.series[symbol]
	if !ok {
		return PriceTick{}, false
	}
	return r.last()
}

// CurrentPrice returns the latest price or a PriceUnavailableError.
func (s *Store) CurrentPrice(symbol string) (float64, error) {
	t, ok := s.Latest(symbol)
	if !ok {
		return 0, &trade.PriceUnavailableError{Symbol: symbol}
	}
	return t.Price, nil
}

// Snapshot returns the latest tick of every symbol that has history.
func (s *Store) Snapshot() map[string]PriceTick {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]PriceTick, len(s.series))
	for sym, r := range s.series {
		if t, ok := r.last(); ok {
			out[sym] = t
		}
	}
	return out
}
