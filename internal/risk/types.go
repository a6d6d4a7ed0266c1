package risk

import (
	"time"

	"github.com/shopspring/decimal"
)

// Limit levels reported with every decision.
const (
	LevelNormal  = "NORMAL"
	LevelWarning = "WARNING"
	LevelLimit   = "LIMIT"
)

// Config bounds what a single user may stake. A zero limit disables that check.
type Config struct {
	Enabled bool `json:"enabled"`

	// Per trade
	MinStake decimal.Decimal `json:"min_stake"`
	MaxStake decimal.Decimal `json:"max_stake"`

	// Per user
	MaxOpenTrades  int             `json:"max_open_trades"`
	MaxDailyTrades int             `json:"max_daily_trades"`
	MaxDailyLoss   decimal.Decimal `json:"max_daily_loss"`

	// Usage ratio at which decisions start carrying LevelWarning.
	WarningThreshold float64 `json:"warning_threshold"`
}

// DefaultConfig returns the limits applied when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		MinStake:         decimal.NewFromInt(1),
		MaxStake:         decimal.NewFromInt(10000),
		MaxOpenTrades:    50,
		MaxDailyTrades:   500,
		MaxDailyLoss:     decimal.Zero,
		WarningThreshold: 0.8,
	}
}

// Decision is the outcome of a pre-trade check.
type Decision struct {
	Allowed    bool    `json:"allowed"`
	Reason     string  `json:"reason,omitempty"`
	LimitLevel string  `json:"limit_level"`
	UsageRatio float64 `json:"usage_ratio"` // highest of the daily usages, 0.0 - 1.0+
}

// UserMetrics is one user's activity for the current UTC day.
type UserMetrics struct {
	Day         string          `json:"day"`
	DailyTrades int             `json:"daily_trades"`
	DailyPnL    decimal.Decimal `json:"daily_pnl"`
	DailyLosses decimal.Decimal `json:"daily_losses"`
	Wins        int             `json:"wins"`
	Losses      int             `json:"losses"`
	LastSeen    time.Time       `json:"last_seen"`
}

// Stats are the manager's lifetime counters.
type Stats struct {
	ChecksTotal     uint64 `json:"checks_total"`
	RejectionsTotal uint64 `json:"rejections_total"`
	WarningsTotal   uint64 `json:"warnings_total"`
	TrackedUsers    int    `json:"tracked_users"`
}
