package indicators

import "math"

// Bands are Bollinger bands around an SMA.
type Bands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// Bollinger computes bands two population standard deviations around SMA(period).
func Bollinger(values []float64, period int) Bands {
	if period <= 0 || len(values) < period {
		return Bands{}
	}
	middle := SMA(values, period)

	variance := 0.0
	for _, p := range values[len(values)-period:] {
		diff := p - middle
		variance += diff * diff
	}
	width := 2 * math.Sqrt(variance/float64(period))

	return Bands{
		Upper:  middle + width,
		Middle: middle,
		Lower:  middle - width,
	}
}
