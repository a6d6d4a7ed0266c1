package engine

import (
	"context"

	"options-core/internal/market"
	"options-core/internal/monitor"
	"options-core/internal/notify"
)

// MarketTask advances the simulator one tick per interval and broadcasts the
// fresh prices as a priceUpdate event.
func MarketTask(sim *market.Simulator, sink notify.Sink, metrics *monitor.SystemMetrics) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		ticks := sim.Tick()
		if metrics != nil {
			metrics.AddTicks(len(ticks))
		}
		if sink != nil && len(ticks) > 0 {
			sink.Broadcast(notify.NewEvent(notify.TypePriceUpdate, ticks))
		}
		return nil
	}
}
