// Package risk enforces per-user stake limits before a trade is placed.
package risk

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const dayLayout = "2006-01-02"

// Manager keeps one daily window per user. Windows roll over at UTC midnight.
type Manager struct {
	mu     sync.RWMutex
	config Config
	users  map[string]*UserMetrics
	now    func() time.Time

	checks     atomic.Uint64
	rejections atomic.Uint64
	warnings   atomic.Uint64
}

func NewManager(cfg Config) *Manager {
	return NewManagerWithClock(cfg, time.Now)
}

func NewManagerWithClock(cfg Config, now func() time.Time) *Manager {
	if cfg.WarningThreshold <= 0 {
		cfg.WarningThreshold = DefaultConfig().WarningThreshold
	}
	log.Info().
		Bool("enabled", cfg.Enabled).
		Str("min_stake", cfg.MinStake.String()).
		Str("max_stake", cfg.MaxStake.String()).
		Int("max_open_trades", cfg.MaxOpenTrades).
		Int("max_daily_trades", cfg.MaxDailyTrades).
		Str("max_daily_loss", cfg.MaxDailyLoss.String()).
		Msg("risk manager initialized")
	return &Manager{config: cfg, users: make(map[string]*UserMetrics), now: now}
}

func (m *Manager) GetConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

func (m *Manager) UpdateConfig(cfg Config) {
	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()
}

// userLocked returns the user's window for today, creating or rolling it over.
func (m *Manager) userLocked(userID string) *UserMetrics {
	now := m.now().UTC()
	day := now.Format(dayLayout)
	u, ok := m.users[userID]
	if !ok || u.Day != day {
		u = &UserMetrics{Day: day, DailyPnL: decimal.Zero, DailyLosses: decimal.Zero}
		m.users[userID] = u
	}
	u.LastSeen = now
	return u
}

// Check decides whether userID may open a trade of stake while already holding
// open pending trades. It does not record anything.
func (m *Manager) Check(userID string, stake decimal.Decimal, open int) Decision {
	m.checks.Add(1)

	m.mu.Lock()
	cfg := m.config
	u := *m.userLocked(userID)
	m.mu.Unlock()

	if !cfg.Enabled {
		return Decision{Allowed: true, LimitLevel: LevelNormal}
	}

	reject := func(reason string) Decision {
		m.rejections.Add(1)
		log.Debug().Str("user_id", userID).Str("stake", stake.String()).Str("reason", reason).Msg("trade rejected by risk")
		return Decision{Allowed: false, Reason: reason, LimitLevel: LevelLimit, UsageRatio: 1}
	}

	if cfg.MinStake.IsPositive() && stake.LessThan(cfg.MinStake) {
		return reject("stake below minimum " + cfg.MinStake.String())
	}
	if cfg.MaxStake.IsPositive() && stake.GreaterThan(cfg.MaxStake) {
		return reject("stake above maximum " + cfg.MaxStake.String())
	}
	if cfg.MaxOpenTrades > 0 && open >= cfg.MaxOpenTrades {
		return reject("too many open trades")
	}
	if cfg.MaxDailyTrades > 0 && u.DailyTrades >= cfg.MaxDailyTrades {
		return reject("daily trade limit reached")
	}
	if cfg.MaxDailyLoss.IsPositive() && u.DailyLosses.GreaterThanOrEqual(cfg.MaxDailyLoss) {
		return reject("daily loss limit reached")
	}

	usage := 0.0
	if cfg.MaxDailyTrades > 0 {
		usage = float64(u.DailyTrades+1) / float64(cfg.MaxDailyTrades)
	}
	if cfg.MaxDailyLoss.IsPositive() {
		lossUsage, _ := u.DailyLosses.Div(cfg.MaxDailyLoss).Float64()
		if lossUsage > usage {
			usage = lossUsage
		}
	}

	d := Decision{Allowed: true, LimitLevel: LevelNormal, UsageRatio: usage}
	if usage >= cfg.WarningThreshold {
		m.warnings.Add(1)
		d.LimitLevel = LevelWarning
	}
	return d
}

// RecordPlaced counts a committed trade against today's window.
func (m *Manager) RecordPlaced(userID string) {
	m.mu.Lock()
	m.userLocked(userID).DailyTrades++
	m.mu.Unlock()
}

// RecordSettled books a settled trade's net result (payout minus stake).
func (m *Manager) RecordSettled(userID string, net decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.userLocked(userID)
	u.DailyPnL = u.DailyPnL.Add(net)
	if net.IsNegative() {
		u.Losses++
		u.DailyLosses = u.DailyLosses.Add(net.Neg())
	} else {
		u.Wins++
	}
}

// Metrics returns userID's window, or false when the user has no activity today.
func (m *Manager) Metrics(userID string) (UserMetrics, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[userID]
	if !ok || u.Day != m.now().UTC().Format(dayLayout) {
		return UserMetrics{}, false
	}
	return *u, true
}

// CleanupIdle drops users not seen within ttl.
func (m *Manager) CleanupIdle(ttl time.Duration) int {
	cutoff := m.now().UTC().Add(-ttl)
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for id, u := range m.users {
		if u.LastSeen.Before(cutoff) {
			delete(m.users, id)
			removed++
		}
	}
	return removed
}

func (m *Manager) Stats() Stats {
	m.mu.RLock()
	n := len(m.users)
	m.mu.RUnlock()
	return Stats{
		ChecksTotal:     m.checks.Load(),
		RejectionsTotal: m.rejections.Load(),
		WarningsTotal:   m.warnings.Load(),
		TrackedUsers:    n,
	}
}
