package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/spa-booking/internal/bookings"
	"github.com/wolfman30/spa-booking/pkg/logging"
)

const unassignedStaff = "To be assigned"

// Service sends booking confirmations to customers.
type Service struct {
	email      EmailSender
	renderer   Renderer
	spaName    string
	historyURL string
	logger     *logging.Logger
}

// NewService creates a notification service around an email sender.
func NewService(email EmailSender, logger *logging.Logger) *Service {
	if email == nil {
		panic("notify: email sender required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		email:   email,
		spaName: defaultFromName,
		logger:  logger,
	}
}

func (s *Service) WithSpaName(name string) *Service {
	if name = strings.TrimSpace(name); name != "" {
		s.spaName = name
	}
	return s
}

// WithHistoryURL sets the link customers follow to see their bookings.
func (s *Service) WithHistoryURL(url string) *Service {
	s.historyURL = strings.TrimSpace(url)
	return s
}

type confirmationData struct {
	CustomerName string
	BookingID    string
	BookingCode  string
	ServiceName  string
	ServiceType  string
	BookingDate  string
	StartTime    string
	EndTime      string
	Staff        string
	Total        string
	HistoryURL   string
	SpaName      string
}

// BookingCreated emails the customer a confirmation for a newly stored booking.
func (s *Service) BookingCreated(ctx context.Context, b *bookings.Booking) error {
	if b == nil || strings.TrimSpace(b.CustomerEmail) == "" {
		return nil
	}
	msg, err := s.confirmation(b)
	if err != nil {
		return err
	}
	if err := s.email.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: booking confirmation: %w", err)
	}
	s.logger.FromContext(ctx).Info("booking confirmation sent", "booking_id", b.BookingID)
	return nil
}

func (s *Service) confirmation(b *bookings.Booking) (EmailMessage, error) {
	staff := b.StaffID
	if staff == "" {
		staff = unassignedStaff
	}
	data := confirmationData{
		CustomerName: b.CustomerName,
		BookingID:    b.BookingID,
		BookingCode:  b.BookingCode,
		ServiceName:  b.ServiceName,
		ServiceType:  b.ServiceType,
		BookingDate:  b.BookingDate,
		StartTime:    b.StartTime.String(),
		EndTime:      b.EndTime.String(),
		Staff:        staff,
		Total:        formatAmount(b.TotalPrice, b.Currency),
		HistoryURL:   s.historyURL,
		SpaName:      s.spaName,
	}

	subject, err := s.renderer.RenderText("confirmation_subject", confirmationSubject, data)
	if err != nil {
		return EmailMessage{}, err
	}
	body, err := s.renderer.RenderText("confirmation_text", confirmationText, data)
	if err != nil {
		return EmailMessage{}, err
	}
	html, err := s.renderer.RenderHTML("confirmation_html", confirmationHTML, data)
	if err != nil {
		return EmailMessage{}, err
	}
	return EmailMessage{
		To:      strings.TrimSpace(b.CustomerEmail),
		ToName:  b.CustomerName,
		Subject: subject,
		Body:    body,
		HTML:    html,
	}, nil
}

var _ bookings.Notifier = (*Service)(nil)
