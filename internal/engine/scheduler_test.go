package engine

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchedulerRunsTasksIndependently(t *testing.T) {
	var fast, slow, panicky atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())

	s := NewScheduler(
		Task{Name: "fast", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
			fast.Add(1)
			return nil
		}},
		Task{Name: "slow", Interval: 5 * time.Millisecond, Run: func(ctx context.Context) error {
			slow.Add(1)
			<-ctx.Done()
			return ctx.Err()
		}},
		Task{Name: "panicky", Interval: 5 * time.Millisecond, Run: func(context.Context) error {
			panicky.Add(1)
			panic("boom")
		}},
	)
	s.Start(ctx)
	assert.True(t, s.Running())
	assert.Equal(t, []string{"fast", "slow", "panicky"}, s.Names())

	require.Eventually(t, func() bool {
		return fast.Load() >= 5 && panicky.Load() >= 3 && slow.Load() == 1
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), slow.Load())

	cancel()
	s.Wait()
	assert.Eventually(t, func() bool { return !s.Running() }, time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, s.Cycles("fast"), uint64(5))
	assert.Zero(t, s.Cycles("missing"))
}
