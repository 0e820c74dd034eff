package bookings

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryRepository keeps bookings in a map. A single mutex serializes every
// check-then-write, which covers the per staff-date requirement.
type InMemoryRepository struct {
	mu       sync.RWMutex
	bookings map[string]*Booking
	now      func() time.Time
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		bookings: make(map[string]*Booking),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *InMemoryRepository) CreateIfSlotFree(ctx context.Context, b *Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.identifierTaken(Identifier{BookingID: b.BookingID, BookingCode: b.BookingCode}) {
		return ErrDuplicateID
	}
	if slot, ok := b.Slot(); ok {
		if err := r.conflictLocked(slot, ""); err != nil {
			return err
		}
	}

	stored := b.clone()
	if stored.ID == uuid.Nil {
		stored.ID = uuid.New()
	}
	now := r.now()
	stored.CreatedAt = now
	stored.UpdatedAt = now
	r.bookings[stored.BookingID] = stored

	b.ID = stored.ID
	b.CreatedAt = now
	b.UpdatedAt = now
	return nil
}

func (r *InMemoryRepository) IdentifierExists(ctx context.Context, id Identifier) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.identifierTaken(id), nil
}

func (r *InMemoryRepository) identifierTaken(id Identifier) bool {
	if _, ok := r.bookings[id.BookingID]; ok {
		return true
	}
	for _, b := range r.bookings {
		if b.BookingCode == id.BookingCode {
			return true
		}
	}
	return false
}

// conflictLocked returns the first active booking overlapping slot, skipping exclude.
func (r *InMemoryRepository) conflictLocked(slot Slot, exclude string) error {
	var blocking *Booking
	for _, existing := range r.bookings {
		if existing.BookingID == exclude || !existing.Status.IsActive() {
			continue
		}
		if existing.StaffID != slot.StaffID || existing.BookingDate != slot.BookingDate {
			continue
		}
		if !(Slot{StartTime: existing.StartTime, EndTime: existing.EndTime}).Overlaps(slot.StartTime, slot.EndTime) {
			continue
		}
		if blocking == nil || existing.StartTime < blocking.StartTime {
			blocking = existing
		}
	}
	if blocking == nil {
		return nil
	}
	existing, _ := blocking.Slot()
	return &ConflictError{StaffID: slot.StaffID, Existing: existing, ExistingBookingID: blocking.BookingID}
}

func (r *InMemoryRepository) GetByBookingID(ctx context.Context, bookingID string) (*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bookings[bookingID]
	if !ok {
		return nil, ErrNotFound
	}
	return b.clone(), nil
}

func (r *InMemoryRepository) GetByBookingIDs(ctx context.Context, bookingIDs []string) ([]*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Booking
	for _, id := range bookingIDs {
		if b, ok := r.bookings[id]; ok {
			out = append(out, b.clone())
		}
	}
	return out, nil
}

func (r *InMemoryRepository) ListAll(ctx context.Context) ([]*Booking, error) {
	return r.filter(func(*Booking) bool { return true }), nil
}

func (r *InMemoryRepository) ListByCustomer(ctx context.Context, username string) ([]*Booking, error) {
	return r.filter(func(b *Booking) bool { return b.Username == username }), nil
}

func (r *InMemoryRepository) ListByStaff(ctx context.Context, staffID string) ([]*Booking, error) {
	return r.filter(func(b *Booking) bool { return b.StaffID == staffID }), nil
}

func (r *InMemoryRepository) ListByPayment(ctx context.Context, paymentID string) ([]*Booking, error) {
	return r.filter(func(b *Booking) bool { return paymentID != "" && b.PaymentID == paymentID }), nil
}

func (r *InMemoryRepository) filter(keep func(*Booking) bool) []*Booking {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Booking
	for _, b := range r.bookings {
		if keep(b) {
			out = append(out, b.clone())
		}
	}
	sortBookings(out)
	return out
}

func (r *InMemoryRepository) BookedSlots(ctx context.Context, staffID, date string) ([]Slot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var slots []Slot
	for _, b := range r.bookings {
		if b.StaffID != staffID || !b.Status.IsActive() {
			continue
		}
		if date != "" && b.BookingDate != date {
			continue
		}
		slot, _ := b.Slot()
		slots = append(slots, slot)
	}
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].BookingDate != slots[j].BookingDate {
			return slots[i].BookingDate < slots[j].BookingDate
		}
		return slots[i].StartTime < slots[j].StartTime
	})
	return slots, nil
}

func (r *InMemoryRepository) Transition(ctx context.Context, bookingID string, from, to Status, updatedBy string) (*Booking, error) {
	return r.mutate(bookingID, func(b *Booking) error {
		if b.Status != from {
			return &TransitionError{BookingID: bookingID, From: b.Status, Event: eventBetween(from, to)}
		}
		b.Status = to
		b.UpdatedBy = updatedBy
		return nil
	})
}

func (r *InMemoryRepository) SaveReview(ctx context.Context, bookingID string, review Review, updatedBy string) (*Booking, error) {
	return r.mutate(bookingID, func(b *Booking) error {
		if b.Status != StatusCheckedOut {
			return &TransitionError{BookingID: bookingID, From: b.Status, Event: EventReview}
		}
		rv := review
		b.Review = &rv
		b.Status = StatusReviewed
		b.UpdatedBy = updatedBy
		return nil
	})
}

func (r *InMemoryRepository) AssignStaffIfSlotFree(ctx context.Context, bookingID, staffID, updatedBy string) (*Booking, error) {
	return r.mutate(bookingID, func(b *Booking) error {
		if !CanAssignStaff(b.Status) {
			return &TransitionError{BookingID: bookingID, From: b.Status, Event: EventAssignStaff}
		}
		slot := Slot{StaffID: staffID, BookingDate: b.BookingDate, StartTime: b.StartTime, EndTime: b.EndTime}
		if err := r.conflictLocked(slot, bookingID); err != nil {
			return err
		}
		b.StaffID = staffID
		b.UpdatedBy = updatedBy
		return nil
	})
}

func (r *InMemoryRepository) UpdateNotes(ctx context.Context, bookingID string, patch NotesPatch, updatedBy string) (*Booking, error) {
	return r.mutate(bookingID, func(b *Booking) error {
		if patch.Notes != nil {
			b.Notes = *patch.Notes
		}
		if patch.Description != nil {
			b.Description = *patch.Description
		}
		b.UpdatedBy = updatedBy
		return nil
	})
}

// mutate applies fn to the stored booking under the write lock. fn errors leave it untouched.
func (r *InMemoryRepository) mutate(bookingID string, fn func(*Booking) error) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.bookings[bookingID]
	if !ok {
		return nil, ErrNotFound
	}
	working := stored.clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	working.UpdatedAt = r.now()
	r.bookings[bookingID] = working
	return working.clone(), nil
}

func (r *InMemoryRepository) AttachPayment(ctx context.Context, bookingIDs []string, paymentID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var attached []string
	now := r.now()
	for _, id := range bookingIDs {
		b, ok := r.bookings[id]
		if !ok || b.Status != StatusCompleted {
			continue
		}
		b.PaymentID = paymentID
		b.UpdatedAt = now
		attached = append(attached, id)
	}
	return attached, nil
}

func (r *InMemoryRepository) CheckOutByPayment(ctx context.Context, paymentID, updatedBy string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	var updated []string
	now := r.now()
	for id, b := range r.bookings {
		if paymentID == "" || b.PaymentID != paymentID || b.Status != StatusCompleted {
			continue
		}
		b.Status = StatusCheckedOut
		b.UpdatedBy = updatedBy
		b.UpdatedAt = now
		updated = append(updated, id)
	}
	sort.Strings(updated)
	return updated, nil
}

func (r *InMemoryRepository) Delete(ctx context.Context, bookingID string) (*Booking, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bookings[bookingID]
	if !ok {
		return nil, ErrNotFound
	}
	delete(r.bookings, bookingID)
	return b, nil
}

func sortBookings(list []*Booking) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].BookingDate != list[j].BookingDate {
			return list[i].BookingDate < list[j].BookingDate
		}
		if list[i].StartTime != list[j].StartTime {
			return list[i].StartTime < list[j].StartTime
		}
		return list[i].BookingID < list[j].BookingID
	})
}

// eventBetween recovers the event for a from->to pair, used when reporting a lost race.
func eventBetween(from, to Status) Event {
	for ev, target := range transitions[from] {
		if target == to {
			return ev
		}
	}
	if ev, ok := EventForTarget(to); ok {
		return ev
	}
	return Event(to)
}

var _ Repository = (*InMemoryRepository)(nil)
