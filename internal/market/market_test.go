package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"options-core/internal/trade"
)

var epoch = time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)

func TestStoreBoundedHistory(t *testing.T) {
	s := NewStore(DefaultCapacity)
	const n = 1500
	for i := 0; i < n; i++ {
		s.Append(PriceTick{Symbol: "EURUSD", Price: float64(i), Timestamp: epoch.Add(time.Duration(i) * time.Second)})
	}

	hist := s.History("EURUSD", 0)
	require.Len(t, hist, DefaultCapacity)
	assert.Equal(t, DefaultCapacity, s.Len("EURUSD"))
	for i, tick := range hist {
		assert.Equal(t, float64(n-DefaultCapacity+i), tick.Price)
	}
	assert.True(t, hist[0].Timestamp.Before(hist[len(hist)-1].Timestamp))

	last := s.History("EURUSD", 3)
	require.Len(t, last, 3)
	assert.Equal(t, []float64{1497, 1498, 1499}, []float64{last[0].Price, last[1].Price, last[2].Price})
}

func TestStoreBelowCapacity(t *testing.T) {
	s := NewStore(4)
	s.Append(PriceTick{Symbol: "X", Price: 1})
	s.Append(PriceTick{Symbol: "X", Price: 2})
	assert.Len(t, s.History("X", 10), 2)
	assert.Nil(t, s.History("Y", 10))

	for i := 3; i <= 9; i++ {
		s.Append(PriceTick{Symbol: "X", Price: float64(i)})
	}
	got := s.History("X", 0)
	require.Len(t, got, 4)
	assert.Equal(t, 6.0, got[0].Price)
	assert.Equal(t, 9.0, got[3].Price)
}

func TestCurrentPriceUnavailable(t *testing.T) {
	s := NewStore(10)
	_, err := s.CurrentPrice("EURUSD")
	require.Error(t, err)
	assert.True(t, trade.IsPriceUnavailable(err))

	s.Append(PriceTick{Symbol: "EURUSD", Price: 1.09})
	p, err := s.CurrentPrice("EURUSD")
	require.NoError(t, err)
	assert.Equal(t, 1.09, p)
}

func TestRandomWalkStaysWithinBand(t *testing.T) {
	w := NewRandomWalk(7)
	in := Instrument{Symbol: "EURUSD", BasePrice: 1.0850, Volatility: 0.01}
	for i := 0; i < 1000; i++ {
		tick := w.Next(in, epoch)
		assert.InDelta(t, in.BasePrice, tick.Price, in.BasePrice*0.01+1e-12)
		assert.GreaterOrEqual(t, tick.Volume, 0.0)
		assert.Equal(t, epoch, tick.Timestamp)
	}
}

func TestSimulatorSeedAndTick(t *testing.T) {
	catalog := NewCatalog([]Instrument{{ID: "eurusd", Symbol: "EURUSD", BasePrice: 1.0850, Volatility: 0.005}})
	store := NewStore(DefaultCapacity)
	now := epoch
	sim := NewSimulator(catalog, store, NewRandomWalk(1), time.Second, WithClock(func() time.Time { return now }))

	require.NoError(t, sim.SeedHistory("EURUSD", 100))
	hist := store.History("EURUSD", 0)
	require.Len(t, hist, 100)
	assert.Equal(t, epoch.Add(-100*time.Second), hist[0].Timestamp)
	assert.Equal(t, epoch.Add(-time.Second), hist[99].Timestamp)

	ticks := sim.Tick()
	require.Len(t, ticks, 1)
	assert.Equal(t, 101, store.Len("EURUSD"))
	p, err := sim.CurrentPrice("EURUSD")
	require.NoError(t, err)
	assert.Equal(t, ticks[0].Price, p)

	err = sim.SeedHistory("NOPE", 5)
	assert.True(t, trade.IsValidation(err))
}

type recorderFunc func(PriceTick)

func (f recorderFunc) Record(t PriceTick) { f(t) }

func TestSimulatorRecorder(t *testing.T) {
	catalog := NewCatalog(DefaultInstruments())
	var got []PriceTick
	sim := NewSimulator(catalog, NewStore(10), NewRandomWalk(3), time.Second,
		WithRecorder(recorderFunc(func(t PriceTick) { got = append(got, t) })))
	sim.Tick()
	assert.Len(t, got, len(catalog.All()))
}

func TestParseInstruments(t *testing.T) {
	data := []byte(`
instruments:
  - symbol: eurusd
    base_price: 1.085
    return_percent: "80"
  - id: gold
    symbol: XAUUSD
    base_price: 2035
    return_percent: "75.5"
    volatility: 0.0075
`)
	list, err := ParseInstruments(data)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "eurusd", list[0].ID)
	assert.Equal(t, "EURUSD", list[0].Symbol)
	assert.Equal(t, DefaultVolatility, list[0].Volatility)
	assert.Equal(t, "75.5", list[1].ReturnPercent.String())

	c := NewCatalog(list)
	in, ok := c.ByID("gold")
	require.True(t, ok)
	assert.Equal(t, "XAUUSD", in.Symbol)
	_, ok = c.BySymbol("eurusd")
	assert.True(t, ok)

	_, err = ParseInstruments([]byte(`instruments: [{symbol: X, base_price: 0}]`))
	assert.Error(t, err)
	_, err = ParseInstruments([]byte(`instruments: []`))
	assert.Error(t, err)
}

func TestLoadInstrumentsMissingFileFallsBack(t *testing.T) {
	list, err := LoadInstruments(t.TempDir() + "/missing.yaml")
	require.NoError(t, err)
	assert.Equal(t, DefaultInstruments()[0].Symbol, list[0].Symbol)
}
