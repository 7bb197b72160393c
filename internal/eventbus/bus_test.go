package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishFansOut(t *testing.T) {
	b := New()
	a, unsubA := b.Subscribe(2)
	c, unsubC := b.Subscribe(2)
	defer unsubA()
	defer unsubC()

	b.Publish(Event{Type: StatusUpdated, Data: 1})

	for _, ch := range []<-chan Event{a, c} {
		select {
		case ev := <-ch:
			assert.Equal(t, StatusUpdated, ev.Type)
			assert.False(t, ev.Time.IsZero())
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestPublishDropsWhenFull(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish(Event{Type: StatusFailed})
	b.Publish(Event{Type: StatusFailed})

	require.Len(t, ch, 1)
	assert.Equal(t, uint64(1), b.Dropped())
}

func TestUnsubscribeClosesAndIsIdempotent(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(0)
	unsub()
	unsub()

	_, ok := <-ch
	assert.False(t, ok)
	b.Publish(Event{Type: AlertFired})
}

func TestSubscribeFiltersByPrefix(t *testing.T) {
	b := New()
	status, unsubStatus := b.Subscribe(4, "status.")
	all, unsubAll := b.Subscribe(4)
	defer unsubStatus()
	defer unsubAll()

	b.Publish(Event{Type: StatusUpdated})
	b.Publish(Event{Type: AlertFired})
	b.Publish(Event{Type: StatusFailed})

	require.Len(t, status, 2)
	assert.Equal(t, StatusUpdated, (<-status).Type)
	assert.Equal(t, StatusFailed, (<-status).Type)
	assert.Len(t, all, 3)
	assert.Zero(t, b.Dropped(), "filtered events are not drops")
}
