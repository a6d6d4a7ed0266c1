package db

import (
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/shopspring/decimal"

	"options-core/internal/trade"
)

// Money columns hold integer units of 10^-moneyScale so SQL arithmetic stays exact.
const moneyScale = trade.MoneyPlaces

var (
	maxUnits = decimal.New(1, 18).Sub(decimal.New(1, 0))
	minUnits = maxUnits.Neg()
)

// units is a decimal bound as an INTEGER money column. Amounts finer than
// 10^-moneyScale are rounded half away from zero.
type units decimal.Decimal

// Value implements driver.Valuer.
func (u units) Value() (driver.Value, error) {
	v := decimal.Decimal(u).Shift(moneyScale).Round(0)
	if v.GreaterThan(maxUnits) || v.LessThan(minUnits) {
		return nil, fmt.Errorf("amount %s out of range", decimal.Decimal(u))
	}
	return v.IntPart(), nil
}

// money scans an INTEGER money column back into a decimal.
type money struct {
	dst *decimal.Decimal
}

// Scan implements sql.Scanner.
func (m money) Scan(src any) error {
	var n sql.NullInt64
	if err := n.Scan(src); err != nil {
		return fmt.Errorf("scan money: %w", err)
	}
	*m.dst = decimal.New(n.Int64, -moneyScale)
	return nil
}
