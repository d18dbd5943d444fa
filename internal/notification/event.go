package notification

import "time"

// EventType names a committed change in the scheduling core.
type EventType string

const (
	SlotCreated  EventType = "slot.created"
	SlotReplaced EventType = "slot.replaced"
	SlotUpdated  EventType = "slot.updated"
	SlotDeleted  EventType = "slot.deleted"

	BookingRequested EventType = "booking.requested"
	BookingConfirmed EventType = "booking.confirmed"
	BookingDeclined  EventType = "booking.declined"
	BookingCancelled EventType = "booking.cancelled"
	BookingStarted   EventType = "booking.started"
	BookingCompleted EventType = "booking.completed"
)

// Event is emitted after a mutation has been committed.
type Event struct {
	Type        EventType      `json:"type"`
	RecipientID int64          `json:"recipientId"`
	Payload     map[string]any `json:"payload"`
	OccurredAt  time.Time      `json:"occurredAt"`
}

// Publisher accepts committed change events. Implementations must not block
// the caller on delivery.
type Publisher interface {
	Publish(ev Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(ev Event)

// Publish implements Publisher.
func (f PublisherFunc) Publish(ev Event) { f(ev) }

// Discard drops every event.
var Discard Publisher = PublisherFunc(func(Event) {})
