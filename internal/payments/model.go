package payments

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status is the state of one checkout attempt.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// ParseStatus accepts the wire name of a payment status.
func ParseStatus(raw string) (Status, bool) {
	switch s := Status(strings.ToLower(strings.TrimSpace(raw))); s {
	case StatusPending, StatusSuccess, StatusFailed, StatusCancelled:
		return s, true
	}
	return "", false
}

// IsFinal reports whether the payment can no longer change.
func (s Status) IsFinal() bool {
	return s != StatusPending
}

// Payment is one checkout attempt covering one or more completed bookings.
type Payment struct {
	ID          uuid.UUID `json:"id"`
	OrderCode   int64     `json:"orderCode"`
	PaymentID   string    `json:"paymentId"`
	OrderName   string    `json:"orderName"`
	Amount      int64     `json:"amount"`
	Currency    string    `json:"currency"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	ReturnURL   string    `json:"returnUrl"`
	CancelURL   string    `json:"cancelUrl"`
	CheckoutURL string    `json:"checkoutUrl"`
	QRCode      string    `json:"qrCode,omitempty"`
	Provider    string    `json:"provider"`
	BookingIDs  []string  `json:"bookingIds"`
	UpdatedBy   string    `json:"updatedBy,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// PaymentIDFor derives the human-readable reference stored on bookings.
func PaymentIDFor(orderCode int64) string {
	return fmt.Sprintf("PAY%d", orderCode)
}

func (p *Payment) clone() *Payment {
	if p == nil {
		return nil
	}
	cp := *p
	cp.BookingIDs = append([]string(nil), p.BookingIDs...)
	return &cp
}

var (
	// ErrNotFound is returned when no payment matches the order code.
	ErrNotFound = errors.New("payments: payment not found")

	// ErrMalformedWebhook rejects gateway payloads that are not a recognizable success notice.
	ErrMalformedWebhook = errors.New("payments: malformed webhook")

	// ErrInvalidSignature is returned when the webhook signature does not match the checksum key.
	ErrInvalidSignature = errors.New("payments: invalid webhook signature")

	// ErrGateway wraps failures talking to the payment gateway.
	ErrGateway = errors.New("payments: gateway error")

	// ErrNoEligibleBookings is returned when none of the requested bookings are completed.
	ErrNoEligibleBookings = errors.New("payments: no completed bookings to pay for")

	// ErrInvalidStatus is returned for unknown or non-pending target statuses.
	ErrInvalidStatus = errors.New("payments: invalid payment status")

	// ErrDuplicateOrder signals an order code collision.
	ErrDuplicateOrder = errors.New("payments: duplicate order code")
)

// ValidationError names the offending checkout field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("payments: %s %s", e.Field, e.Reason)
}
