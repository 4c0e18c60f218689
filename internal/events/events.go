package events

import (
	"encoding/json"
	"errors"
	"sync"
	"time"
)

const (
	EventAppointmentCreated       = "appointment_created"
	EventAppointmentStatusChanged = "appointment_status_changed"
	EventAppointmentDeleted       = "appointment_deleted"
	EventSessionOpened            = "session_opened"
	EventSessionClosed            = "session_closed"
)

// AppointmentEventPayload is the appointment snapshot carried by appointment events.
type AppointmentEventPayload struct {
	ChatID        int64  `json:"chat_id"`
	AppointmentID int64  `json:"appointment_id"`
	PetID         int64  `json:"pet_id,omitempty"`
	ServiceID     int64  `json:"service_id,omitempty"`
	ScheduledAt   string `json:"scheduled_at,omitempty"`
	Status        string `json:"status,omitempty"`
	PrevStatus    string `json:"prev_status,omitempty"`
}

// SessionEventPayload describes a login or logout.
type SessionEventPayload struct {
	ChatID   int64  `json:"chat_id"`
	Operator string `json:"operator,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the payload into v.
func (e *Event) Decode(v interface{}) error {
	return json.Unmarshal(e.Payload, v)
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

// Publish runs every subscriber of the event type synchronously, in
// subscription order, and joins their errors.
func (b *EventBus) Publish(event *Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var errs []error
	for _, handler := range handlers {
		if err := handler(event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}
	return b.Publish(&event)
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
