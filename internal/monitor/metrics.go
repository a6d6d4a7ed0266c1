package monitor

import (
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// SystemMetrics tracks the core's counters and cycle latencies.
type SystemMetrics struct {
	SweepLatency  *LatencyHistogram
	SignalLatency *LatencyHistogram
	StoreLatency  *LatencyHistogram
	APILatency    *LatencyHistogram

	apiRequests       atomic.Uint64
	apiErrors         atomic.Uint64
	ticksProcessed    atomic.Uint64
	signalsGenerated  atomic.Uint64
	tradesPlaced      atomic.Uint64
	tradesSettled     atomic.Uint64
	wins              atomic.Uint64
	losses            atomic.Uint64
	settlementSkipped atomic.Uint64
	errorsCount       atomic.Uint64

	mu          sync.RWMutex
	activeTrade int
	startedAt   time.Time
}

// NewSystemMetrics creates a new metrics instance.
func NewSystemMetrics() *SystemMetrics {
	return &SystemMetrics{
		SweepLatency:  NewLatencyHistogram(1000),
		SignalLatency: NewLatencyHistogram(1000),
		StoreLatency:  NewLatencyHistogram(1000),
		APILatency:    NewLatencyHistogram(1000),
		startedAt:     time.Now(),
	}
}

// LatencyHistogram tracks latency samples with sliding window.
// Stats are computed lazily.
type LatencyHistogram struct {
	mu          sync.Mutex
	samples     []float64
	maxSize     int
	dirty       bool
	cachedStats LatencyStats
}

// NewLatencyHistogram creates a sliding window histogram.
func NewLatencyHistogram(size int) *LatencyHistogram {
	if size <= 0 {
		size = 1000
	}
	return &LatencyHistogram{
		samples: make([]float64, 0, size),
		maxSize: size,
		dirty:   true,
	}
}

// Record adds a latency sample in milliseconds.
func (h *LatencyHistogram) Record(latencyMs float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.samples) >= h.maxSize {
		h.samples = h.samples[1:]
	}
	h.samples = append(h.samples, latencyMs)
	h.dirty = true
}

// RecordDuration converts duration to ms and records.
func (h *LatencyHistogram) RecordDuration(d time.Duration) {
	h.Record(float64(d.Nanoseconds()) / 1e6)
}

// Stats returns min, max, avg, p50, p95, p99.
func (h *LatencyHistogram) Stats() LatencyStats {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.dirty && h.cachedStats.Count > 0 {
		return h.cachedStats
	}

	n := len(h.samples)
	if n == 0 {
		return LatencyStats{}
	}

	sorted := make([]float64, n)
	copy(sorted, h.samples)
	sort.Float64s(sorted)

	var sum float64
	min, max := sorted[0], sorted[n-1]
	for _, v := range sorted {
		sum += v
	}

	h.cachedStats = LatencyStats{
		Min:   min,
		Max:   max,
		Avg:   sum / float64(n),
		P50:   sorted[n/2],
		P95:   sorted[int(float64(n)*0.95)],
		P99:   sorted[int(float64(n)*0.99)],
		Count: n,
	}
	h.dirty = false

	return h.cachedStats
}

// LatencyStats holds computed latency statistics.
type LatencyStats struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
	P50   float64 `json:"p50"`
	P95   float64 `json:"p95"`
	P99   float64 `json:"p99"`
	Count int     `json:"count"`
}

func (m *SystemMetrics) IncrementAPI() { m.apiRequests.Add(1) }

func (m *SystemMetrics) IncrementAPIErrors() { m.apiErrors.Add(1) }

func (m *SystemMetrics) AddTicks(n int) { m.ticksProcessed.Add(uint64(n)) }

func (m *SystemMetrics) AddSignals(n int) { m.signalsGenerated.Add(uint64(n)) }

func (m *SystemMetrics) IncrementPlaced() { m.tradesPlaced.Add(1) }

// IncrementSettled counts a settled trade and its outcome.
func (m *SystemMetrics) IncrementSettled(win bool) {
	m.tradesSettled.Add(1)
	if win {
		m.wins.Add(1)
	} else {
		m.losses.Add(1)
	}
}

// IncrementSkipped counts a due trade left for the next sweep.
func (m *SystemMetrics) IncrementSkipped() { m.settlementSkipped.Add(1) }

func (m *SystemMetrics) IncrementErrors() { m.errorsCount.Add(1) }

// Errors returns the error counter.
func (m *SystemMetrics) Errors() uint64 { return m.errorsCount.Load() }

// SetActiveTrades records the ledger size after a sweep.
func (m *SystemMetrics) SetActiveTrades(n int) {
	m.mu.Lock()
	m.activeTrade = n
	m.mu.Unlock()
}

// MetricsSnapshot is a point-in-time view served at /api/metrics.
type MetricsSnapshot struct {
	SweepLatency      LatencyStats `json:"sweep_latency"`
	SignalLatency     LatencyStats `json:"signal_latency"`
	StoreLatency      LatencyStats `json:"store_latency"`
	APILatency        LatencyStats `json:"api_latency"`
	APIRequests       uint64       `json:"api_requests"`
	APIErrors         uint64       `json:"api_errors"`
	TicksProcessed    uint64       `json:"ticks_processed"`
	SignalsGenerated  uint64       `json:"signals_generated"`
	TradesPlaced      uint64       `json:"trades_placed"`
	TradesSettled     uint64       `json:"trades_settled"`
	Wins              uint64       `json:"wins"`
	Losses            uint64       `json:"losses"`
	SettlementSkipped uint64       `json:"settlement_skipped"`
	ErrorsCount       uint64       `json:"errors_count"`
	ActiveTrades      int          `json:"active_trades"`
	GoroutineCount    int          `json:"goroutine_count"`
	HeapAlloc         uint64       `json:"heap_alloc_bytes"`
	HeapSys           uint64       `json:"heap_sys_bytes"`
	Uptime            string       `json:"uptime"`
	Timestamp         time.Time    `json:"timestamp"`
}

// GetSnapshot returns a point-in-time metrics snapshot.
func (m *SystemMetrics) GetSnapshot() MetricsSnapshot {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	m.mu.RLock()
	active := m.activeTrade
	m.mu.RUnlock()

	return MetricsSnapshot{
		SweepLatency:      m.SweepLatency.Stats(),
		SignalLatency:     m.SignalLatency.Stats(),
		StoreLatency:      m.StoreLatency.Stats(),
		APILatency:        m.APILatency.Stats(),
		APIRequests:       m.apiRequests.Load(),
		APIErrors:         m.apiErrors.Load(),
		TicksProcessed:    m.ticksProcessed.Load(),
		SignalsGenerated:  m.signalsGenerated.Load(),
		TradesPlaced:      m.tradesPlaced.Load(),
		TradesSettled:     m.tradesSettled.Load(),
		Wins:              m.wins.Load(),
		Losses:            m.losses.Load(),
		SettlementSkipped: m.settlementSkipped.Load(),
		ErrorsCount:       m.errorsCount.Load(),
		ActiveTrades:      active,
		GoroutineCount:    runtime.NumGoroutine(),
		HeapAlloc:         memStats.HeapAlloc,
		HeapSys:           memStats.HeapSys,
		Uptime:            time.Since(m.startedAt).Truncate(time.Second).String(),
		Timestamp:         time.Now(),
	}
}

// Timer helps measure operation duration.
type Timer struct {
	start     time.Time
	histogram *LatencyHistogram
}

// NewTimer creates a timer that records to the given histogram.
func NewTimer(h *LatencyHistogram) *Timer {
	return &Timer{start: time.Now(), histogram: h}
}

// Stop records elapsed time to histogram.
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	if t.histogram != nil {
		t.histogram.RecordDuration(elapsed)
	}
	return elapsed
}
