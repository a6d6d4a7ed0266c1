package market

import (
	"math/rand"
	"sync"
	"time"
)

// PriceSource produces the next observation for an instrument. The simulator only
// knows this interface, so a real feed can replace the random walk.
type PriceSource interface {
	Next(in Instrument, at time.Time) PriceTick
}

// RandomWalk perturbs the instrument's base price by a uniform δ in
// [-volatility, +volatility]. Prices stay anchored to the base and do not drift.
type RandomWalk struct {
	mu        sync.Mutex
	rng       *rand.Rand
	MaxVolume float64
}

func NewRandomWalk(seed int64) *RandomWalk {
	return &RandomWalk{
		rng:       rand.New(rand.NewSource(seed)),
		MaxVolume: 1_000_000,
	}
}

func (w *RandomWalk) Next(in Instrument, at time.Time) PriceTick {
	w.mu.Lock()
	defer w.mu.Unlock()

	vol := in.Volatility
	if vol <= 0 {
		vol = DefaultVolatility
	}
	delta := (w.rng.Float64()*2 - 1) * vol
	return PriceTick{
		Symbol:    in.Symbol,
		Price:     in.BasePrice * (1 + delta),
		Timestamp: at,
		Volume:    w.rng.Float64() * w.MaxVolume,
	}
}
