package indicators

const (
	macdFast = 12
	macdSlow = 26
)

// MACD holds the line, signal and histogram values.
type MACD struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// ComputeMACD returns EMA12-EMA26. Signal and histogram are fixed fractions of the
// line (0.9 and 0.1), not a 9-period EMA.
func ComputeMACD(values []float64) MACD {
	if len(values) < macdSlow {
		return MACD{}
	}
	line := EMA(values, macdFast) - EMA(values, macdSlow)
	return MACD{
		MACD:      line,
		Signal:    line * 0.9,
		Histogram: line * 0.1,
	}
}
