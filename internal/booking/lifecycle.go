package booking

import (
	"fmt"
	"strings"

	"childcare-scheduling-backend/internal/model"
	"childcare-scheduling-backend/internal/notification"
)

// Event is a named lifecycle action on an existing booking.
type Event string

const (
	EventAccept   Event = "accept"
	EventDecline  Event = "decline"
	EventCancel   Event = "cancel"
	EventStart    Event = "start"
	EventComplete Event = "complete"

	// eventRequest only appears in the history, as the first entry.
	eventRequest Event = "request"
)

// transitions is the full lifecycle. Anything missing here is rejected.
var transitions = map[model.BookingStatus]map[Event]model.BookingStatus{
	model.StatusPending: {
		EventAccept:  model.StatusConfirmed,
		EventDecline: model.StatusCancelled,
	},
	model.StatusConfirmed: {
		EventCancel: model.StatusCancelled,
		EventStart:  model.StatusInProgress,
	},
	model.StatusInProgress: {
		EventComplete: model.StatusCompleted,
	},
}

// notifications maps each event to what the parent is told once it commits.
var notifications = map[Event]notification.EventType{
	EventAccept:   notification.BookingConfirmed,
	EventDecline:  notification.BookingDeclined,
	EventCancel:   notification.BookingCancelled,
	EventStart:    notification.BookingStarted,
	EventComplete: notification.BookingCompleted,
}

// Next returns the status ev leads to from the given status.
func Next(from model.BookingStatus, ev Event) (model.BookingStatus, bool) {
	to, ok := transitions[from][ev]
	return to, ok
}

// Allowed lists the events accepted in status, in a stable order.
func Allowed(status model.BookingStatus) []Event {
	out := make([]Event, 0, 2)
	for _, ev := range []Event{EventAccept, EventDecline, EventCancel, EventStart, EventComplete} {
		if _, ok := transitions[status][ev]; ok {
			out = append(out, ev)
		}
	}
	return out
}

// ParseEvent accepts an event name in any case.
func ParseEvent(raw string) (Event, error) {
	ev := Event(strings.ToLower(strings.TrimSpace(raw)))
	if _, ok := notifications[ev]; !ok {
		return "", fmt.Errorf("unknown event %q", raw)
	}
	return ev, nil
}
