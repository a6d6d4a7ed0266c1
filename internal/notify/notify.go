// Package notify pushes trade and market events to connected clients.
// Delivery is best-effort: a sink never blocks the caller and never reports failure.
package notify

import (
	"time"

	"options-core/internal/events"
)

// Event types carried on the wire.
const (
	TypeTradeUpdate    = "tradeUpdate"
	TypeTradeResult    = "tradeResult"
	TypePriceUpdate    = "priceUpdate"
	TypeTradingSignals = "tradingSignals"
)

// Event is the envelope delivered to subscribers.
type Event struct {
	Type      string    `json:"type"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent stamps an envelope with the current time.
func NewEvent(typ string, payload any) Event {
	return Event{Type: typ, Payload: payload, Timestamp: time.Now().UTC()}
}

// Sink receives per-user and market-wide events.
type Sink interface {
	NotifyUser(userID string, ev Event)
	Broadcast(ev Event)
}

// BusSink publishes onto the in-process event bus feeding the websocket hub.
type BusSink struct {
	bus *events.Bus
}

// NewBusSink wraps bus.
func NewBusSink(bus *events.Bus) *BusSink {
	return &BusSink{bus: bus}
}

func (s *BusSink) NotifyUser(userID string, ev Event) {
	s.bus.Publish(events.UserChannel(userID), ev)
}

func (s *BusSink) Broadcast(ev Event) {
	s.bus.Publish(events.EventBroadcast, ev)
}

// Multi fans every event out to each sink in order.
type Multi []Sink

func (m Multi) NotifyUser(userID string, ev Event) {
	for _, s := range m {
		s.NotifyUser(userID, ev)
	}
}

func (m Multi) Broadcast(ev Event) {
	for _, s := range m {
		s.Broadcast(ev)
	}
}

// Discard drops everything.
type Discard struct{}

func (Discard) NotifyUser(string, Event) {}
func (Discard) Broadcast(Event)          {}
