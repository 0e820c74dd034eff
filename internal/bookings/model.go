package bookings

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a booking.
type Status string

const (
	StatusPending    Status = "pending"
	StatusCheckedIn  Status = "checked-in"
	StatusCompleted  Status = "completed"
	StatusCheckedOut Status = "checked-out"
	StatusReviewed   Status = "reviewed"
	StatusCancelled  Status = "cancel"
)

// ActiveStatuses are the states that hold a slot. Cancelled bookings never conflict.
var ActiveStatuses = []Status{
	StatusPending,
	StatusCheckedIn,
	StatusCompleted,
	StatusCheckedOut,
	StatusReviewed,
}

// IsActive reports whether the booking still occupies its slot.
func (s Status) IsActive() bool {
	for _, active := range ActiveStatuses {
		if s == active {
			return true
		}
	}
	return false
}

// ParseStatus accepts the wire name of a status.
func ParseStatus(raw string) (Status, bool) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if s == StatusCancelled || s.IsActive() {
		return s, true
	}
	return "", false
}

func activeStatusStrings() []string {
	out := make([]string, len(ActiveStatuses))
	for i, s := range ActiveStatuses {
		out[i] = string(s)
	}
	return out
}

// Booking is a reserved service appointment.
type Booking struct {
	ID              uuid.UUID `json:"id"`
	BookingID       string    `json:"bookingId"`
	BookingCode     string    `json:"bookingCode"`
	Username        string    `json:"username"`
	CustomerName    string    `json:"customerName"`
	CustomerEmail   string    `json:"customerEmail,omitempty"`
	CustomerPhone   string    `json:"customerPhone"`
	Notes           string    `json:"notes,omitempty"`
	Description     string    `json:"description,omitempty"`
	ServiceID       string    `json:"serviceId"`
	ServiceName     string    `json:"serviceName"`
	ServiceType     string    `json:"serviceType,omitempty"`
	BookingDate     string    `json:"bookingDate"`
	StartTime       ClockTime `json:"startTime"`
	EndTime         ClockTime `json:"endTime"`
	DurationMinutes int       `json:"duration"`
	StaffID         string    `json:"staffId,omitempty"`
	OriginalPrice   int64     `json:"originalPrice"`
	DiscountedPrice *int64    `json:"discountedPrice,omitempty"`
	TotalPrice      int64     `json:"totalPrice"`
	Currency        string    `json:"currency"`
	Status          Status    `json:"status"`
	PaymentID       string    `json:"paymentId,omitempty"`
	Review          *Review   `json:"review,omitempty"`
	UpdatedBy       string    `json:"updatedBy,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Slot returns the reserved interval, or false when no staff is assigned yet.
func (b *Booking) Slot() (Slot, bool) {
	if b == nil || b.StaffID == "" {
		return Slot{}, false
	}
	return Slot{
		StaffID:     b.StaffID,
		BookingDate: b.BookingDate,
		StartTime:   b.StartTime,
		EndTime:     b.EndTime,
	}, true
}

func (b *Booking) clone() *Booking {
	if b == nil {
		return nil
	}
	cp := *b
	if b.DiscountedPrice != nil {
		v := *b.DiscountedPrice
		cp.DiscountedPrice = &v
	}
	if b.Review != nil {
		r := *b.Review
		cp.Review = &r
	}
	return &cp
}

// Review is the customer's rating of a checked-out booking.
type Review struct {
	Rating  int    `json:"rating"`
	Content string `json:"content"`
}

// Validate enforces a 1..5 rating with written content.
func (r Review) Validate() error {
	if r.Rating < 1 || r.Rating > 5 {
		return &ValidationError{Field: "rating", Reason: "must be between 1 and 5"}
	}
	if strings.TrimSpace(r.Content) == "" {
		return &ValidationError{Field: "content", Reason: "is required"}
	}
	return nil
}

// CreateRequest is the customer input for a new booking.
type CreateRequest struct {
	Username      string `json:"username"`
	CustomerName  string `json:"customerName"`
	CustomerEmail string `json:"customerEmail"`
	CustomerPhone string `json:"customerPhone"`
	Notes         string `json:"notes"`
	ServiceID     string `json:"serviceId"`
	StartTime     string `json:"startTime"`
	StaffID       string `json:"staffId"`
	BookingDate   string `json:"bookingDate"`
	Description   string `json:"description"`
}

// Validate checks required fields and formats before anything is persisted.
func (r *CreateRequest) Validate() error {
	required := []struct {
		field string
		value string
	}{
		{"username", r.Username},
		{"serviceId", r.ServiceID},
		{"startTime", r.StartTime},
		{"customerName", r.CustomerName},
		{"customerPhone", r.CustomerPhone},
		{"bookingDate", r.BookingDate},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return &ValidationError{Field: f.field, Reason: "is required"}
		}
	}
	if _, err := ParseDate(r.BookingDate); err != nil {
		return &ValidationError{Field: "bookingDate", Reason: "must be YYYY-MM-DD"}
	}
	start, err := ParseClock(r.StartTime)
	if err != nil || start >= EndOfDay {
		return &ValidationError{Field: "startTime", Reason: "must be HH:MM"}
	}
	if r.CustomerEmail != "" && !strings.Contains(r.CustomerEmail, "@") {
		return &ValidationError{Field: "customerEmail", Reason: "is not an email address"}
	}
	return nil
}

func (r *CreateRequest) normalize() {
	r.Username = strings.TrimSpace(r.Username)
	r.CustomerName = strings.TrimSpace(r.CustomerName)
	r.CustomerEmail = strings.TrimSpace(r.CustomerEmail)
	r.CustomerPhone = strings.TrimSpace(r.CustomerPhone)
	r.ServiceID = strings.TrimSpace(r.ServiceID)
	r.StaffID = strings.TrimSpace(r.StaffID)
	r.BookingDate = strings.TrimSpace(r.BookingDate)
	r.StartTime = strings.TrimSpace(r.StartTime)
}
