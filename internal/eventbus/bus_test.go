package eventbus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := New()
	id, ch := bus.Subscribe(4)
	defer bus.Unsubscribe(id)

	bus.PublishNew(EventTaskCreated, "t1", "u1", map[string]string{"assignee_id": "u2"})

	select {
	case event := <-ch:
		assert.Equal(t, EventTaskCreated, event.Type)
		assert.Equal(t, "t1", event.ResourceID)
		assert.Equal(t, "u1", event.ActorID)
		assert.Equal(t, "u2", event.Metadata["assignee_id"])
		assert.NotEmpty(t, event.ID)
		assert.False(t, event.CreatedAt.IsZero())
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBusMultipleSubscribers(t *testing.T) {
	bus := New()
	id1, ch1 := bus.Subscribe(4)
	defer bus.Unsubscribe(id1)
	id2, ch2 := bus.Subscribe(4)
	defer bus.Unsubscribe(id2)

	bus.PublishNew(EventTaskSubmitted, "t1", "u1", nil)

	for _, ch := range []<-chan *Event{ch1, ch2} {
		select {
		case event := <-ch:
			assert.Equal(t, EventTaskSubmitted, event.Type)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	}
}

func TestBusDropsWhenBufferFull(t *testing.T) {
	bus := New()
	id, ch := bus.Subscribe(1)
	defer bus.Unsubscribe(id)

	bus.PublishNew(EventTaskCreated, "t1", "u1", nil)
	// Buffer is full; this publish must not block.
	done := make(chan struct{})
	go func() {
		bus.PublishNew(EventTaskCreated, "t2", "u1", nil)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	event := <-ch
	require.Equal(t, "t1", event.ResourceID)
	select {
	case unexpected := <-ch:
		t.Fatalf("expected dropped event, got %v", unexpected.ResourceID)
	default:
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	bus := New()
	id, ch := bus.Subscribe(1)
	bus.Unsubscribe(id)

	_, ok := <-ch
	assert.False(t, ok)

	// Publishing after unsubscribe is a no-op.
	bus.PublishNew(EventTaskCreated, "t1", "u1", nil)
}
