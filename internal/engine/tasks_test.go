package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"options-core/internal/events"
	"options-core/internal/market"
	"options-core/internal/monitor"
	"options-core/internal/notify"
)

func TestMarketTaskBroadcastsPrices(t *testing.T) {
	catalog := market.NewCatalog(market.DefaultInstruments())
	prices := market.NewStore(10)
	sim := market.NewSimulator(catalog, prices, market.NewRandomWalk(3), time.Second)

	bus := events.NewBus()
	ch, unsubscribe := bus.Subscribe(events.EventBroadcast, 4)
	defer unsubscribe()
	metrics := monitor.NewSystemMetrics()

	run := MarketTask(sim, notify.NewBusSink(bus), metrics)
	require.NoError(t, run(context.Background()))

	n := len(catalog.All())
	assert.Equal(t, uint64(n), metrics.GetSnapshot().TicksProcessed)
	assert.Equal(t, 1, prices.Len("EURUSD"))

	select {
	case msg := <-ch:
		ev, ok := msg.(notify.Event)
		require.True(t, ok)
		assert.Equal(t, notify.TypePriceUpdate, ev.Type)
		ticks, ok := ev.Payload.([]market.PriceTick)
		require.True(t, ok)
		assert.Len(t, ticks, n)
	case <-time.After(time.Second):
		t.Fatal("no priceUpdate broadcast")
	}
}

func TestMarketTaskStopsOnCancelledContext(t *testing.T) {
	catalog := market.NewCatalog(market.DefaultInstruments())
	prices := market.NewStore(10)
	sim := market.NewSimulator(catalog, prices, market.NewRandomWalk(3), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := MarketTask(sim, notify.Discard{}, nil)(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, prices.Len("EURUSD"))
}
