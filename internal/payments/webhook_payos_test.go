package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/wolfman30/spa-booking/internal/bookings"
)

func signedBody(t *testing.T, key string, payload WebhookPayload) []byte {
	t.Helper()
	if key != "" {
		sig, err := SignWebhookData(key, payload.Data)
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		payload.Signature = sig
	}
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return body
}

func postWebhook(h *PayOSWebhookHandler, body []byte) (*httptest.ResponseRecorder, envelope) {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/payos", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	h.Handle(rr, req)
	var env envelope
	_ = json.Unmarshal(rr.Body.Bytes(), &env)
	return rr, env
}

func TestPayOSWebhookHandler_SettlesAndAcknowledgesRedelivery(t *testing.T) {
	f := newFixture(t)
	f.seedBooking(t, "BID-000001", bookings.StatusCompleted, "PAY123")
	f.seedBooking(t, "BID-000002", bookings.StatusCompleted, "PAY123")
	f.seedPayment(t, 123)

	h := NewPayOSWebhookHandler(f.reconciler, "checksum", nil)
	body := signedBody(t, "checksum", successPayload(123))

	rr, env := postWebhook(h, body)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	data := env.Data.(map[string]any)
	if env.Error != 0 || data["updatedBookingCount"].(float64) != 2 {
		t.Fatalf("unexpected ack %s", rr.Body.String())
	}
	b, _ := f.bookings.GetByBookingID(context.Background(), "BID-000001")
	if b.Status != bookings.StatusCheckedOut || b.UpdatedBy != "gateway:payment-gateway" {
		t.Fatalf("booking not settled by gateway: %+v", b)
	}

	rr, env = postWebhook(h, body)
	if rr.Code != http.StatusOK {
		t.Fatalf("redelivery must be acknowledged, got %d", rr.Code)
	}
	data = env.Data.(map[string]any)
	if data["updatedBookingCount"].(float64) != 0 || data["alreadyProcessed"] != true {
		t.Fatalf("unexpected redelivery ack %s", rr.Body.String())
	}
}

func TestPayOSWebhookHandler_RejectsBadSignature(t *testing.T) {
	f := newFixture(t)
	f.seedBooking(t, "BID-000001", bookings.StatusCompleted, "PAY123")
	f.seedPayment(t, 123)

	h := NewPayOSWebhookHandler(f.reconciler, "checksum", nil)
	body := signedBody(t, "other-key", successPayload(123))

	rr, _ := postWebhook(h, body)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if got := f.status(t, "BID-000001"); got != bookings.StatusCompleted {
		t.Fatalf("booking changed to %s", got)
	}
}

func TestPayOSWebhookHandler_ErrorStatuses(t *testing.T) {
	f := newFixture(t)
	h := NewPayOSWebhookHandler(f.reconciler, "", nil)

	cases := []struct {
		name string
		body []byte
		want int
	}{
		{"not json", []byte("{"), http.StatusBadRequest},
		{"malformed", signedBody(t, "", WebhookPayload{Code: "01", Desc: "success", Data: json.RawMessage(`{"orderCode":1}`)}), http.StatusBadRequest},
		{"unknown order", signedBody(t, "", successPayload(987654)), http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr, env := postWebhook(h, tc.body)
			if rr.Code != tc.want {
				t.Fatalf("expected %d, got %d: %s", tc.want, rr.Code, rr.Body.String())
			}
			if env.Error == 0 {
				t.Fatalf("expected error flag in envelope: %s", rr.Body.String())
			}
		})
	}
}

func TestPayOSWebhookHandler_Ping(t *testing.T) {
	h := NewPayOSWebhookHandler(newFixture(t).reconciler, "", nil)
	rr := httptest.NewRecorder()
	h.Ping(rr, httptest.NewRequest(http.MethodGet, "/webhooks/payos", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}
