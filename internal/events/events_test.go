package events

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishJSON(t *testing.T) {
	bus := NewEventBus()

	var got ReservationEventPayload
	bus.Subscribe(EventReservationCreated, func(event *Event) error {
		return json.Unmarshal(event.Payload, &got)
	})

	payload := ReservationEventPayload{
		ReservationID: 7,
		UserID:        "alice",
		ClassroomID:   1,
		Date:          "2030-01-01",
		StartTime:     "14:00",
		EndTime:       "15:00",
	}
	require.NoError(t, bus.PublishJSON(EventReservationCreated, payload))
	assert.Equal(t, payload, got)
}

func TestPublishNoSubscribers(t *testing.T) {
	bus := NewEventBus()
	assert.NoError(t, bus.PublishJSON(EventWaitlistPromoted, ReservationEventPayload{ReservationID: 1}))
}

func TestHandlerErrorDoesNotStopOthers(t *testing.T) {
	bus := NewEventBus()

	calls := 0
	bus.Subscribe(EventReservationCancelled, func(event *Event) error {
		calls++
		return errors.New("boom")
	})
	bus.Subscribe(EventReservationCancelled, func(event *Event) error {
		calls++
		return nil
	})

	require.NoError(t, bus.PublishJSON(EventReservationCancelled, ReservationEventPayload{}))
	assert.Equal(t, 2, calls)
}

func TestNilBusPublish(t *testing.T) {
	var bus *EventBus
	assert.NoError(t, bus.PublishJSON(EventReservationCreated, ReservationEventPayload{}))
}
