package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFillsIDAndTimestamp(t *testing.T) {
	e := New(TypePassApplied, "applied", map[string]string{"service": "hutch-gitea"})

	assert.NotEmpty(t, e.ID)
	assert.False(t, e.Timestamp.IsZero())
	assert.Equal(t, TypePassApplied, e.Type)
	assert.Equal(t, "hutch-gitea", e.Metadata["service"])
}

func TestPublishReachesAllSubscribers(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	a := broker.Subscribe()
	b := broker.Subscribe()
	defer broker.Unsubscribe(a)
	defer broker.Unsubscribe(b)
	require.Equal(t, 2, broker.SubscriberCount())

	broker.Publish(New(TypePassStarted, "pass started", nil))

	for _, sub := range []Subscriber{a, b} {
		select {
		case e := <-sub:
			assert.Equal(t, TypePassStarted, e.Type)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}
}

func TestPublishAssignsIDWhenMissing(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	broker.Publish(&Event{Type: TypeServiceLive, Message: "restarted"})

	select {
	case e := <-sub:
		assert.NotEmpty(t, e.ID)
		assert.False(t, e.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive event")
	}
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	broker := NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	broker.Unsubscribe(sub)
	assert.Equal(t, 0, broker.SubscriberCount())

	_, open := <-sub
	assert.False(t, open)
}
