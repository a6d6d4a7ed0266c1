package indicators

// SMA calculates the simple moving average for the last period values.
// It returns 0 when there is not enough data.
func SMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	sum := 0.0
	for i := len(values) - period; i < len(values); i++ {
		sum += values[i]
	}
	return sum / float64(period)
}

// EMA seeds with the SMA of the first period values and then walks the rest in order.
// It returns 0 when there is not enough data.
func EMA(values []float64, period int) float64 {
	if period <= 0 || len(values) < period {
		return 0
	}
	k := 2.0 / float64(period+1)
	ema := SMA(values[:period], period)
	for _, p := range values[period:] {
		ema = p*k + ema*(1-k)
	}
	return ema
}
