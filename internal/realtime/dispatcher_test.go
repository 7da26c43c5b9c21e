package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"classbook/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesClassroomSubscribers(t *testing.T) {
	d := NewDispatcher()
	ctx := context.Background()

	stream, cleanup := d.Subscribe(ctx, 1)
	defer cleanup()
	other, otherCleanup := d.Subscribe(ctx, 2)
	defer otherCleanup()

	d.Publish(Message{ClassroomID: 1, EventType: events.EventReservationCreated})

	select {
	case msg := <-stream:
		assert.Equal(t, events.EventReservationCreated, msg.EventType)
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive message")
	}

	select {
	case <-other:
		t.Fatal("other classroom received the message")
	default:
	}
}

func TestCleanupUnsubscribes(t *testing.T) {
	d := NewDispatcher()

	_, cleanup := d.Subscribe(context.Background(), 1)
	assert.Equal(t, 1, d.SubscriberCount(1))

	cleanup()
	assert.Equal(t, 0, d.SubscriberCount(1))

	// Idempotent.
	cleanup()
	assert.Equal(t, 0, d.SubscriberCount(1))
}

func TestContextCancelUnsubscribes(t *testing.T) {
	d := NewDispatcher()
	ctx, cancel := context.WithCancel(context.Background())

	d.Subscribe(ctx, 1)
	cancel()

	assert.Eventually(t, func() bool {
		return d.SubscriberCount(1) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestSlowSubscriberDoesNotBlock(t *testing.T) {
	d := NewDispatcher()
	stream, cleanup := d.Subscribe(context.Background(), 1)
	defer cleanup()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			d.Publish(Message{ClassroomID: 1, EventType: "x"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
	assert.NotEmpty(t, stream)
}

func TestHandleEventBridgesBus(t *testing.T) {
	d := NewDispatcher()
	stream, cleanup := d.Subscribe(context.Background(), 7)
	defer cleanup()

	bus := events.NewEventBus()
	bus.Subscribe(events.EventReservationCancelled, d.HandleEvent)

	payload := events.ReservationEventPayload{ReservationID: 3, ClassroomID: 7, Date: "2030-06-11"}
	require.NoError(t, bus.PublishJSON(events.EventReservationCancelled, payload))

	select {
	case msg := <-stream:
		assert.Equal(t, events.EventReservationCancelled, msg.EventType)
		assert.Equal(t, int64(7), msg.ClassroomID)
		var got events.ReservationEventPayload
		require.NoError(t, json.Unmarshal(msg.Payload, &got))
		assert.Equal(t, int64(3), got.ReservationID)
	case <-time.After(time.Second):
		t.Fatal("bridged event never arrived")
	}
}

func TestHandleEventBadPayload(t *testing.T) {
	d := NewDispatcher()
	err := d.HandleEvent(&events.Event{Type: "x", Payload: []byte("{broken")})
	assert.Error(t, err)
}
