package bookings

import "strings"

// Event drives a booking from one status to the next.
type Event string

const (
	EventCheckIn     Event = "check-in"
	EventComplete    Event = "complete"
	EventCheckOut    Event = "check-out"
	EventReview      Event = "review"
	EventCancel      Event = "cancel"
	EventAssignStaff Event = "assign-staff"
)

// transitions is the full state machine. Anything absent is illegal.
var transitions = map[Status]map[Event]Status{
	StatusPending: {
		EventCheckIn: StatusCheckedIn,
		EventCancel:  StatusCancelled,
	},
	StatusCheckedIn: {
		EventComplete: StatusCompleted,
	},
	StatusCompleted: {
		EventCheckOut: StatusCheckedOut,
	},
	StatusCheckedOut: {
		EventReview: StatusReviewed,
	},
}

var eventTargets = map[Event]Status{
	EventCheckIn:  StatusCheckedIn,
	EventComplete: StatusCompleted,
	EventCheckOut: StatusCheckedOut,
	EventReview:   StatusReviewed,
	EventCancel:   StatusCancelled,
}

// Next returns the status reached by applying ev in from, or a *TransitionError.
func Next(from Status, ev Event) (Status, error) {
	if to, ok := transitions[from][ev]; ok {
		return to, nil
	}
	return "", &TransitionError{From: from, Event: ev}
}

// EventForTarget maps a requested target status to the event that reaches it.
func EventForTarget(target Status) (Event, bool) {
	for ev, to := range eventTargets {
		if to == target {
			return ev, true
		}
	}
	return "", false
}

// ParseEvent accepts an event name or the target status it leads to.
func ParseEvent(raw string) (Event, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	ev := Event(raw)
	if _, ok := eventTargets[ev]; ok {
		return ev, true
	}
	if status, ok := ParseStatus(raw); ok {
		return EventForTarget(status)
	}
	return "", false
}

// CanAssignStaff is true only while the booking has not started.
func CanAssignStaff(s Status) bool {
	return s == StatusPending
}
