package indicators

// NeutralRSI is returned when there is not enough history to say anything.
const NeutralRSI = 50.0

// RSI computes a Relative Strength Index over the last period values (period-1 deltas),
// without Wilder smoothing.
func RSI(values []float64, period int) float64 {
	if period < 2 || len(values) < period {
		return NeutralRSI
	}

	window := values[len(values)-period:]
	gain := 0.0
	loss := 0.0
	for i := 1; i < len(window); i++ {
		change := window[i] - window[i-1]
		if change > 0 {
			gain += change
		} else {
			loss -= change
		}
	}

	if loss == 0 {
		if gain == 0 {
			return NeutralRSI
		}
		return 100
	}
	n := float64(period)
	rs := (gain / n) / (loss / n)
	return 100 - (100 / (1 + rs))
}
