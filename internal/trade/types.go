package trade

import (
	"database/sql/driver"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Direction is the side a trader bets on.
type Direction string

const (
	DirectionUp   Direction = "UP"
	DirectionDown Direction = "DOWN"
)

// Valid reports whether d is one of the known directions.
func (d Direction) Valid() bool {
	return d == DirectionUp || d == DirectionDown
}

// Mode selects which wallet funds a trade.
type Mode string

const (
	ModeReal Mode = "REAL"
	ModeDemo Mode = "DEMO"
)

func (m Mode) Valid() bool {
	return m == ModeReal || m == ModeDemo
}

// Result is the settlement state of a trade. PENDING is the only non-terminal value.
type Result uint8

const (
	ResultPending Result = iota
	ResultWin
	ResultLoss
)

func (r Result) String() string {
	switch r {
	case ResultPending:
		return "PENDING"
	case ResultWin:
		return "WIN"
	case ResultLoss:
		return "LOSS"
	default:
		return fmt.Sprintf("Result(%d)", uint8(r))
	}
}

// Terminal reports whether no further transition is allowed.
func (r Result) Terminal() bool {
	return r == ResultWin || r == ResultLoss
}

// ParseResult maps the stored text form back to a Result.
func ParseResult(s string) (Result, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "PENDING":
		return ResultPending, nil
	case "WIN":
		return ResultWin, nil
	case "LOSS":
		return ResultLoss, nil
	default:
		return ResultPending, fmt.Errorf("unknown trade result %q", s)
	}
}

func (r Result) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

func (r *Result) UnmarshalText(b []byte) error {
	v, err := ParseResult(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Value stores the result as text so the durable record stays readable.
func (r Result) Value() (driver.Value, error) {
	return r.String(), nil
}

func (r *Result) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return r.UnmarshalText([]byte(v))
	case []byte:
		return r.UnmarshalText(v)
	default:
		return fmt.Errorf("cannot scan %T into trade.Result", src)
	}
}

// Trade is one binary-options position.
type Trade struct {
	ID              string          `json:"id"`
	UserID          string          `json:"user_id"`
	AssetID         string          `json:"asset_id"`
	AssetSymbol     string          `json:"asset_symbol"`
	Direction       Direction       `json:"direction"`
	Stake           decimal.Decimal `json:"stake"`
	DurationMinutes int             `json:"duration_minutes"`
	StartTime       time.Time       `json:"start_time"`
	EndTime         time.Time       `json:"end_time"`
	EntryPrice      float64         `json:"entry_price"`
	ExitPrice       *float64        `json:"exit_price,omitempty"`
	Mode            Mode            `json:"mode"`
	Result          Result          `json:"result"`
	Payout          decimal.Decimal `json:"payout"`
	ReturnPercent   decimal.Decimal `json:"return_percent"`
	SettledAt       *time.Time      `json:"settled_at,omitempty"`
}

// Due reports whether the trade has reached its expiry at now.
func (t Trade) Due(now time.Time) bool {
	return !now.Before(t.EndTime)
}

// Settlement is the terminal write applied to a pending trade.
type Settlement struct {
	TradeID   string
	UserID    string
	Mode      Mode
	Stake     decimal.Decimal
	ExitPrice float64
	Result    Result
	Payout    decimal.Decimal
	SettledAt time.Time
}

// Stats aggregates a user's settled trades.
type Stats struct {
	UserID        string          `json:"user_id"`
	TotalTrades   int64           `json:"total_trades"`
	Wins          int64           `json:"wins"`
	Losses        int64           `json:"losses"`
	TotalInvested decimal.Decimal `json:"total_invested"`
	TotalEarned   decimal.Decimal `json:"total_earned"`
}

// WinRate is wins over settled trades, in percent.
func (s Stats) WinRate() float64 {
	if s.TotalTrades == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.TotalTrades) * 100
}
