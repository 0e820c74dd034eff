package bookings

import "context"

// Repository is the persistence boundary for bookings. Every method that changes status
// is a conditional write so concurrent requests and webhook deliveries serialize on the row.
type Repository interface {
	// CreateIfSlotFree inserts b after checking its staff/date for overlaps while holding a
	// per staff-date lock. Returns *ConflictError or ErrDuplicateID.
	CreateIfSlotFree(ctx context.Context, b *Booking) error
	// IdentifierExists reports whether either half of id is already taken.
	IdentifierExists(ctx context.Context, id Identifier) (bool, error)

	GetByBookingID(ctx context.Context, bookingID string) (*Booking, error)
	GetByBookingIDs(ctx context.Context, bookingIDs []string) ([]*Booking, error)
	ListAll(ctx context.Context) ([]*Booking, error)
	ListByCustomer(ctx context.Context, username string) ([]*Booking, error)
	ListByStaff(ctx context.Context, staffID string) ([]*Booking, error)
	ListByPayment(ctx context.Context, paymentID string) ([]*Booking, error)
	// BookedSlots lists active slots for staffID ordered by date then start. Empty date means all dates.
	BookedSlots(ctx context.Context, staffID, date string) ([]Slot, error)

	// Transition moves a booking from -> to only if it is still in from.
	Transition(ctx context.Context, bookingID string, from, to Status, updatedBy string) (*Booking, error)
	// SaveReview records the review and moves checked-out -> reviewed atomically.
	SaveReview(ctx context.Context, bookingID string, review Review, updatedBy string) (*Booking, error)
	// AssignStaffIfSlotFree sets the staff of a pending booking after an overlap check.
	AssignStaffIfSlotFree(ctx context.Context, bookingID, staffID, updatedBy string) (*Booking, error)
	UpdateNotes(ctx context.Context, bookingID string, patch NotesPatch, updatedBy string) (*Booking, error)

	// AttachPayment sets paymentID on the listed bookings that are completed; returns the ids attached.
	AttachPayment(ctx context.Context, bookingIDs []string, paymentID string) ([]string, error)
	// CheckOutByPayment moves every completed booking carrying paymentID to checked-out.
	CheckOutByPayment(ctx context.Context, paymentID, updatedBy string) ([]string, error)

	Delete(ctx context.Context, bookingID string) (*Booking, error)
}

// NotesPatch updates free-text fields without touching status.
type NotesPatch struct {
	Notes       *string `json:"notes"`
	Description *string `json:"description"`
}

// Empty reports whether the patch changes nothing.
func (p NotesPatch) Empty() bool {
	return p.Notes == nil && p.Description == nil
}
