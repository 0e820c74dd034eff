package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/wolfman30/spa-booking/internal/bookings"
)

type recordingSender struct {
	sent []EmailMessage
	err  error
}

func (r *recordingSender) Send(ctx context.Context, msg EmailMessage) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func confirmedBooking() *bookings.Booking {
	return &bookings.Booking{
		BookingID:     "BID-100001",
		BookingCode:   "BCODE-100001",
		CustomerName:  "Linh <Tran>",
		CustomerEmail: " linh@example.com ",
		ServiceName:   "Hot Stone Massage",
		ServiceType:   "massage",
		BookingDate:   "2024-06-01",
		StartTime:     bookings.MustParseClock("09:30"),
		EndTime:       bookings.MustParseClock("10:30"),
		TotalPrice:    1250000,
		Currency:      "VND",
	}
}

func TestBookingCreatedSendsConfirmation(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(sender, nil).WithHistoryURL("https://spa.example.com/booking-history")

	if err := svc.BookingCreated(context.Background(), confirmedBooking()); err != nil {
		t.Fatalf("BookingCreated: %v", err)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.To != "linh@example.com" {
		t.Errorf("recipient not trimmed: %q", msg.To)
	}
	if msg.Subject != "Your booking BID-100001 is confirmed" {
		t.Errorf("unexpected subject %q", msg.Subject)
	}
	for _, want := range []string{"BCODE-100001", "Hot Stone Massage (massage)", "Start: 09:30", "End: 10:30", "Therapist: To be assigned", "Total: 1.250.000 VNĐ", "booking-history"} {
		if !strings.Contains(msg.Body, want) {
			t.Errorf("text body missing %q:\n%s", want, msg.Body)
		}
	}
	if !strings.Contains(msg.HTML, "Linh &lt;Tran&gt;") {
		t.Errorf("customer name not escaped in html: %s", msg.HTML)
	}
}

func TestBookingCreatedSkipsWithoutEmail(t *testing.T) {
	sender := &recordingSender{}
	svc := NewService(sender, nil)
	b := confirmedBooking()
	b.CustomerEmail = "  "

	if err := svc.BookingCreated(context.Background(), b); err != nil {
		t.Fatalf("BookingCreated: %v", err)
	}
	if err := svc.BookingCreated(context.Background(), nil); err != nil {
		t.Fatalf("BookingCreated(nil): %v", err)
	}
	if len(sender.sent) != 0 {
		t.Fatalf("expected no email, got %d", len(sender.sent))
	}
}

func TestBookingCreatedWrapsSendFailure(t *testing.T) {
	boom := errors.New("smtp down")
	svc := NewService(&recordingSender{err: boom}, nil)

	err := svc.BookingCreated(context.Background(), confirmedBooking())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped send error, got %v", err)
	}
}

func TestBookingCreatedNamesAssignedStaff(t *testing.T) {
	sender := &recordingSender{}
	b := confirmedBooking()
	b.StaffID = "alice"
	b.ServiceType = ""

	if err := NewService(sender, nil).WithSpaName("Lotus Spa").BookingCreated(context.Background(), b); err != nil {
		t.Fatalf("BookingCreated: %v", err)
	}
	body := sender.sent[0].Body
	if !strings.Contains(body, "Therapist: alice") || !strings.Contains(body, "Thank you for choosing Lotus Spa.") {
		t.Fatalf("unexpected body:\n%s", body)
	}
	if strings.Contains(body, "View your bookings") {
		t.Fatalf("history link rendered without a url:\n%s", body)
	}
	if strings.Contains(body, "()") {
		t.Fatalf("empty service type rendered:\n%s", body)
	}
}

func TestFormatAmount(t *testing.T) {
	cases := []struct {
		amount   int64
		currency string
		want     string
	}{
		{0, "VND", "0 VNĐ"},
		{999, "", "999 VNĐ"},
		{1000, "vnd", "1.000 VNĐ"},
		{1250000, "VND", "1.250.000 VNĐ"},
		{-45000, "VND", "-45.000 VNĐ"},
		{120, "usd", "120 USD"},
	}
	for _, tc := range cases {
		if got := formatAmount(tc.amount, tc.currency); got != tc.want {
			t.Errorf("formatAmount(%d, %q) = %q, want %q", tc.amount, tc.currency, got, tc.want)
		}
	}
}

func TestRendererRejectsMissingKeys(t *testing.T) {
	var r Renderer
	if _, err := r.RenderText("t", "{{.Missing}}", map[string]string{}); err == nil {
		t.Fatal("expected missing key error")
	}
	if _, err := r.RenderHTML("h", "", nil); err == nil {
		t.Fatal("expected empty template error")
	}
}
