package events

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBusPublishJSON(t *testing.T) {
	bus := NewEventBus()

	var got []*Event
	bus.Subscribe(EventPaymentConfirmed, func(e *Event) error {
		got = append(got, e)
		return nil
	})

	payload := BookingEventPayload{
		BookingID: "booking-1",
		Status:    "paid",
		Total:     110000,
		Source:    "webhook",
	}
	require.NoError(t, bus.PublishJSON(EventPaymentConfirmed, payload))

	require.Len(t, got, 1)
	assert.Equal(t, EventPaymentConfirmed, got[0].Type)
	assert.False(t, got[0].CreatedAt.IsZero())

	var decoded BookingEventPayload
	require.NoError(t, json.Unmarshal(got[0].Payload, &decoded))
	assert.Equal(t, "booking-1", decoded.BookingID)
	assert.Equal(t, int64(110000), decoded.Total)
	assert.Equal(t, "webhook", decoded.Source)
}

func TestEventBusTypeIsolation(t *testing.T) {
	bus := NewEventBus()

	confirmed := 0
	rejected := 0
	bus.Subscribe(EventPaymentConfirmed, func(e *Event) error { confirmed++; return nil })
	bus.Subscribe(EventPaymentRejected, func(e *Event) error { rejected++; return nil })

	require.NoError(t, bus.PublishJSON(EventPaymentConfirmed, map[string]string{"x": "y"}))
	require.NoError(t, bus.PublishJSON(EventPaymentConfirmed, map[string]string{"x": "y"}))
	require.NoError(t, bus.PublishJSON(EventPaymentRejected, map[string]string{"x": "y"}))

	assert.Equal(t, 2, confirmed)
	assert.Equal(t, 1, rejected)
}

func TestEventBusNilSafe(t *testing.T) {
	var bus *EventBus
	assert.NoError(t, bus.PublishJSON(EventHoldCreated, map[string]string{"x": "y"}))
}

func TestEventBusMultipleHandlers(t *testing.T) {
	bus := NewEventBus()

	calls := 0
	bus.Subscribe(EventHoldCreated, func(e *Event) error { calls++; return nil })
	bus.Subscribe(EventHoldCreated, func(e *Event) error { calls++; return nil })

	bus.Publish(&Event{Type: EventHoldCreated})
	assert.Equal(t, 2, calls)
}
