package bookings

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when no booking matches the identifier.
	ErrNotFound = errors.New("bookings: booking not found")

	// ErrServiceNotFound is returned when the catalog has no such service.
	ErrServiceNotFound = errors.New("bookings: service not found")

	// ErrDuplicateID signals a generated identifier collision; callers regenerate.
	ErrDuplicateID = errors.New("bookings: duplicate booking identifier")

	// ErrIDExhausted is returned after the bounded identifier retries run out.
	ErrIDExhausted = errors.New("bookings: could not generate a unique booking identifier")
)

// ValidationError names the offending input field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("bookings: %s %s", e.Field, e.Reason)
}

// ConflictError reports the active booking that blocks the requested slot.
type ConflictError struct {
	StaffID           string
	Existing          Slot
	ExistingBookingID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("bookings: staff %s is already booked from %s to %s on %s",
		e.StaffID, e.Existing.StartTime, e.Existing.EndTime, e.Existing.BookingDate)
}

// TransitionError is an attempted event that the current status does not allow.
type TransitionError struct {
	BookingID string
	From      Status
	Event     Event
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("bookings: cannot %s booking %s from status %q", e.Event, e.BookingID, e.From)
}

// Requested is the status the caller was aiming for, when the event has one.
func (e *TransitionError) Requested() Status {
	if to, ok := eventTargets[e.Event]; ok {
		return to
	}
	return ""
}

// PreconditionError is a legal transition whose guard is not satisfied yet.
type PreconditionError struct {
	BookingID string
	Event     Event
	Reason    string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("bookings: cannot %s booking %s: %s", e.Event, e.BookingID, e.Reason)
}

// IsDomainError reports whether err is a user-actionable rule violation rather than a server fault.
func IsDomainError(err error) bool {
	var (
		ve *ValidationError
		ce *ConflictError
		te *TransitionError
		pe *PreconditionError
	)
	return errors.As(err, &ve) || errors.As(err, &ce) || errors.As(err, &te) || errors.As(err, &pe) ||
		errors.Is(err, ErrNotFound) || errors.Is(err, ErrServiceNotFound)
}
