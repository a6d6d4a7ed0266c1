package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// Monitor polls SystemMetrics and raises an alert when the error counter grows
// faster than Threshold per interval.
type Monitor struct {
	Metrics   *SystemMetrics
	Sink      AlertSink
	Interval  time.Duration
	Threshold uint64

	lastErrors uint64
}

// Start runs the watch loop until ctx is cancelled.
func (m *Monitor) Start(ctx context.Context) {
	if m.Metrics == nil || m.Sink == nil {
		log.Warn().Msg("monitor not fully configured; skipping")
		return
	}
	if m.Interval <= 0 {
		m.Interval = time.Minute
	}
	m.lastErrors = m.Metrics.Errors()
	go func() {
		ticker := time.NewTicker(m.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Check()
			}
		}
	}()
}

// Check compares the error counter with the previous observation and reports
// whether an alert fired.
func (m *Monitor) Check() bool {
	current := m.Metrics.Errors()
	delta := current - m.lastErrors
	m.lastErrors = current
	if delta <= m.Threshold {
		return false
	}
	msg := formatAlert(fmt.Sprintf("%d errors in the last %s", delta, m.Interval))
	if err := m.Sink.Send(msg); err != nil {
		log.Error().Err(err).Msg("alert delivery failed")
	}
	return true
}

func formatAlert(msg string) string {
	return "[" + time.Now().Format(time.RFC3339) + "] " + msg
}
