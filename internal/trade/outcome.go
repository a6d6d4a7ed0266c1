package trade

import "github.com/shopspring/decimal"

// MoneyPlaces is the number of decimal places money amounts carry.
const MoneyPlaces int32 = 8

var hundred = decimal.NewFromInt(100)

// Outcome decides a trade from its entry and exit prices. A tie always loses.
func Outcome(dir Direction, entry, exit float64) Result {
	switch dir {
	case DirectionUp:
		if exit > entry {
			return ResultWin
		}
	case DirectionDown:
		if exit < entry {
			return ResultWin
		}
	}
	return ResultLoss
}

// Payout returns stake*(1+returnPercent/100) for a win and zero otherwise,
// rounded to MoneyPlaces.
func Payout(result Result, stake, returnPercent decimal.Decimal) decimal.Decimal {
	if result != ResultWin {
		return decimal.Zero
	}
	return stake.Mul(decimal.NewFromInt(1).Add(returnPercent.Div(hundred))).Round(MoneyPlaces)
}

// ValidAmount reports whether d fits in MoneyPlaces decimal places.
func ValidAmount(d decimal.Decimal) bool {
	return d.Equal(d.Round(MoneyPlaces))
}
