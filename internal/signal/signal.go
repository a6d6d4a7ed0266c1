// Package signal turns indicator snapshots into advisory BUY/SELL/NEUTRAL calls.
// Nothing here is consulted by settlement.
package signal

import (
	"time"

	"options-core/internal/indicators"
)

// Action is the direction of a signal.
type Action string

const (
	ActionBuy     Action = "BUY"
	ActionSell    Action = "SELL"
	ActionNeutral Action = "NEUTRAL"
)

// Strength grades how many conditions lined up.
type Strength string

const (
	StrengthStrong   Strength = "STRONG"
	StrengthModerate Strength = "MODERATE"
)

const (
	rsiOversold   = 30.0
	rsiOverbought = 70.0

	confidenceStrong  = 85
	confidenceTrend   = 70
	confidenceNeutral = 50
	strongRecommendAt = 80
)

// Signal is the latest advisory output for one symbol.
type Signal struct {
	Symbol         string              `json:"symbol"`
	Signal         Action              `json:"signal"`
	Strength       Strength            `json:"strength"`
	Confidence     int                 `json:"confidence"`
	Timeframe      string              `json:"timeframe"`
	Price          float64             `json:"price"`
	Indicators     indicators.Snapshot `json:"indicators"`
	Timestamp      time.Time           `json:"timestamp"`
	Recommendation string              `json:"recommendation"`
}

// Decide applies the decision table; the first matching rule wins.
func Decide(price float64, s indicators.Snapshot) (Action, Strength, int) {
	switch {
	case s.RSI < rsiOversold && price < s.Bollinger.Lower:
		return ActionBuy, StrengthStrong, confidenceStrong
	case s.RSI > rsiOverbought && price > s.Bollinger.Upper:
		return ActionSell, StrengthStrong, confidenceStrong
	case s.EMA12 > s.SMA20 && s.MACD.Signal > 0:
		return ActionBuy, StrengthModerate, confidenceTrend
	case s.EMA12 < s.SMA20 && s.MACD.Signal < 0:
		return ActionSell, StrengthModerate, confidenceTrend
	default:
		return ActionNeutral, StrengthModerate, confidenceNeutral
	}
}

// Recommendation maps an action and confidence to display text.
func Recommendation(action Action, confidence int) string {
	switch action {
	case ActionBuy:
		if confidence > strongRecommendAt {
			return "Strong Buy"
		}
		return "Buy"
	case ActionSell:
		if confidence > strongRecommendAt {
			return "Strong Sell"
		}
		return "Sell"
	default:
		return "Hold"
	}
}

// Evaluate builds a complete Signal from a chronological price series.
func Evaluate(symbol, timeframe string, closes []float64, at time.Time) Signal {
	snap := indicators.Compute(closes)
	var price float64
	if n := len(closes); n > 0 {
		price = closes[n-1]
	}
	action, strength, confidence := Decide(price, snap)
	return Signal{
		Symbol:         symbol,
		Signal:         action,
		Strength:       strength,
		Confidence:     confidence,
		Timeframe:      timeframe,
		Price:          price,
		Indicators:     snap,
		Timestamp:      at.UTC(),
		Recommendation: Recommendation(action, confidence),
	}
}
