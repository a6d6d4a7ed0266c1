// Package reconciliation keeps the in-memory ledger aligned with the durable store.
package reconciliation

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"options-core/internal/trade"
)

// Store lists the trades the durable store considers PENDING.
type Store interface {
	ListPendingTrades(ctx context.Context) ([]trade.Trade, error)
}

// Ledger is the index being reconciled.
type Ledger interface {
	All() []trade.Trade
	Track(t trade.Trade)
	Remove(id string)
}

// Report is the outcome of one pass.
type Report struct {
	Timestamp   time.Time `json:"timestamp"`
	Missing     []string  `json:"missing"` // pending in the store, absent from the ledger
	Stale       []string  `json:"stale"`   // in the ledger, no longer pending in the store
	HasDiffs    bool      `json:"has_diffs"`
	SyncedCount int       `json:"synced_count"`
}

// Service compares the ledger against the store and optionally repairs it.
type Service struct {
	store    Store
	ledger   Ledger
	timeout  time.Duration
	autoSync bool
	now      func() time.Time
	mu       sync.Mutex
	last     *Report
}

func NewService(store Store, ledger Ledger, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Service{store: store, ledger: ledger, timeout: timeout, autoSync: true, now: time.Now}
}

// SetAutoSync enables or disables repairing the ledger.
func (s *Service) SetAutoSync(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.autoSync = enabled
	log.Info().Bool("auto_sync", enabled).Msg("reconciliation auto-sync")
}

// Reconcile performs one pass. Only trades indexed before the store was read
// can be stale, and due trades are left to the settlement sweep.
func (s *Service) Reconcile(ctx context.Context) (*Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	started := s.now()
	// A trade indexed now was committed before the list below runs.
	before := s.ledger.All()

	storeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	pending, err := s.store.ListPendingTrades(storeCtx)
	cancel()
	if err != nil {
		return nil, &trade.PersistenceError{Op: "reconcile list pending", Err: err}
	}

	stored := make(map[string]trade.Trade, len(pending))
	for _, t := range pending {
		stored[t.ID] = t
	}
	report := &Report{Timestamp: started.UTC(), Missing: []string{}, Stale: []string{}}

	for _, t := range before {
		if _, ok := stored[t.ID]; ok {
			continue
		}
		report.Stale = append(report.Stale, t.ID)
		if s.autoSync {
			s.ledger.Remove(t.ID)
			report.SyncedCount++
		}
	}

	indexed := make(map[string]bool)
	for _, t := range s.ledger.All() {
		indexed[t.ID] = true
	}
	for id, t := range stored {
		if indexed[id] || t.Due(started) {
			continue
		}
		report.Missing = append(report.Missing, id)
		if s.autoSync {
			s.ledger.Track(t)
			report.SyncedCount++
		}
	}

	sort.Strings(report.Missing)
	sort.Strings(report.Stale)
	report.HasDiffs = len(report.Missing)+len(report.Stale) > 0
	s.last = report
	return report, nil
}

// Cycle is the scheduler entry point.
func (s *Service) Cycle(ctx context.Context) error {
	report, err := s.Reconcile(ctx)
	if err != nil {
		log.Error().Err(err).Msg("reconciliation failed")
		return err
	}
	if report.HasDiffs {
		log.Warn().
			Strs("missing", report.Missing).
			Strs("stale", report.Stale).
			Int("synced", report.SyncedCount).
			Msg("ledger differs from store")
	} else {
		log.Debug().Msg("reconciliation ok")
	}
	return nil
}

// Last returns the most recent report, or nil before the first pass.
func (s *Service) Last() *Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}
