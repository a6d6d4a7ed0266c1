package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"options-core/internal/reconciliation"
	"options-core/internal/risk"
)

// StatsView is a user's settled-trade summary.
type StatsView struct {
	UserID        string          `json:"user_id"`
	TotalTrades   int64           `json:"total_trades"`
	Wins          int64           `json:"wins"`
	Losses        int64           `json:"losses"`
	WinRate       float64         `json:"win_rate"` // percent
	TotalInvested decimal.Decimal `json:"total_invested"`
	TotalEarned   decimal.Decimal `json:"total_earned"`
	NetProfit     decimal.Decimal `json:"net_profit"`
	ActiveTrades  int             `json:"active_trades"`
}

// SystemStatus represents the system runtime status.
type SystemStatus struct {
	Version      string    `json:"version"`
	Instruments  []string  `json:"instruments"`
	ActiveTrades int       `json:"active_trades"`
	Tasks        []string  `json:"tasks"`
	Running      bool      `json:"running"`
	Redis        bool      `json:"redis"`
	ServerTime   time.Time `json:"server_time"`

	Risk           *risk.Stats            `json:"risk,omitempty"`
	Reconciliation *reconciliation.Report `json:"reconciliation,omitempty"`
}
