package events

import "strings"

// Event names a pub/sub topic inside the core.
type Event string

// EventBroadcast carries market-wide updates (prices, signals) to every listener.
const EventBroadcast Event = "broadcast"

const userPrefix = "user_"

// UserChannel is the per-user topic, e.g. "user_42".
func UserChannel(userID string) Event {
	return Event(userPrefix + userID)
}

// IsUserChannel reports whether e addresses a single user.
func (e Event) IsUserChannel() bool {
	return strings.HasPrefix(string(e), userPrefix)
}
