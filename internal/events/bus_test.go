package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusDeliversPerTopic(t *testing.T) {
	b := NewBus()
	userCh, unsubUser := b.Subscribe(UserChannel("42"), 4)
	defer unsubUser()
	allCh, unsubAll := b.Subscribe(EventBroadcast, 4)
	defer unsubAll()

	b.Publish(UserChannel("42"), "hello")
	b.Publish(UserChannel("7"), "not for 42")
	b.Publish(EventBroadcast, "everyone")

	require.Len(t, userCh, 1)
	assert.Equal(t, "hello", <-userCh)
	require.Len(t, allCh, 1)
	assert.Equal(t, "everyone", <-allCh)
}

func TestBusDropsWhenFull(t *testing.T) {
	b := NewBus()
	ch, unsub := b.Subscribe(EventBroadcast, 1)
	b.Publish(EventBroadcast, 1)
	b.Publish(EventBroadcast, 2)
	assert.Equal(t, uint64(1), b.Dropped())
	assert.Equal(t, 1, <-ch)

	unsub()
	unsub()
	_, open := <-ch
	assert.False(t, open)
	assert.Zero(t, b.Subscribers(EventBroadcast))
}

func TestUserChannel(t *testing.T) {
	assert.Equal(t, Event("user_abc"), UserChannel("abc"))
	assert.True(t, UserChannel("abc").IsUserChannel())
	assert.False(t, EventBroadcast.IsUserChannel())
}
