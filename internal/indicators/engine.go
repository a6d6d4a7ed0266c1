package indicators

import "options-core/internal/market"

// Default periods used by the signal generator.
const (
	RSIPeriod       = 14
	BollingerPeriod = 20
	SMAPeriod       = 20
	EMAPeriod       = 12
)

// Snapshot is the full indicator set for one price series.
type Snapshot struct {
	RSI       float64 `json:"rsi"`
	MACD      MACD    `json:"macd"`
	Bollinger Bands   `json:"bollinger"`
	SMA20     float64 `json:"sma20"`
	EMA12     float64 `json:"ema12"`
}

// Compute derives every indicator from a chronological price series.
func Compute(values []float64) Snapshot {
	return Snapshot{
		RSI:       RSI(values, RSIPeriod),
		MACD:      ComputeMACD(values),
		Bollinger: Bollinger(values, BollingerPeriod),
		SMA20:     SMA(values, SMAPeriod),
		EMA12:     EMA(values, EMAPeriod),
	}
}

// Closes extracts prices from ticks, preserving order.
func Closes(ticks []market.PriceTick) []float64 {
	out := make([]float64, len(ticks))
	for i, t := range ticks {
		out[i] = t.Price
	}
	return out
}
