package events

import (
	"encoding/json"
	"sync"
	"time"
)

const (
	EventHoldCreated      = "hold_created"
	EventHoldsExpired     = "holds_expired"
	EventPaymentStarted   = "payment_started"
	EventPaymentConfirmed = "payment_confirmed"
	EventPaymentRejected  = "payment_rejected"
	EventPaymentDuplicate = "payment_already_processed"
	EventBookingCanceled  = "booking_canceled"
	EventSignatureInvalid = "webhook_signature_invalid"
)

// BookingEventPayload is the booking snapshot recorded on the audit
// trail. Price fields let reconciliation cross-check amounts (and towel
// counts) later without re-reading the row.
type BookingEventPayload struct {
	BookingID   string    `json:"booking_id"`
	UnitID      int64     `json:"unit_id"`
	UnitName    string    `json:"unit_name"`
	Status      string    `json:"status"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
	PartySize   int       `json:"party_size"`
	Towels      int       `json:"towels"`
	Total       int64     `json:"total"`
	FlowOrderID string    `json:"flow_order_id,omitempty"`
	Source      string    `json:"source,omitempty"` // webhook, return, sweep, api
}

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// EventHandler reacts to an event.
type EventHandler func(event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event *Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		_ = handler(event)
	}
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	b.Publish(&Event{Type: eventType, Payload: raw, CreatedAt: time.Now()})
	return nil
}
