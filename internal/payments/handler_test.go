package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/spa-booking/internal/bookings"
	"github.com/wolfman30/spa-booking/internal/identity"
)

func newPaymentsRouter(t *testing.T, actor identity.Actor) (http.Handler, *fixture, *stubGateway) {
	t.Helper()
	svc, f, gw := newCheckoutService(t)
	h := NewHandler(svc, nil)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(identity.WithActor(req.Context(), actor)))
		})
	})
	r.Route("/payments", func(r chi.Router) {
		h.Routes(r)
		r.Get("/", h.List)
		r.Put("/{orderCode}/status", h.UpdateStatus)
	})
	r.Get("/pay/{code}", NewRedirectHandler(f.payments, nil).Handle)
	r.Mount("/payments/fake", NewFakePaymentsHandler(f.payments, f.reconciler, nil).Routes())
	return r, f, gw
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, path, &buf))
	var env envelope
	_ = json.Unmarshal(rr.Body.Bytes(), &env)
	return rr, env
}

func TestHandler_CreateLink(t *testing.T) {
	h, f, _ := newPaymentsRouter(t, customer)
	f.seedBooking(t, "BID-000001", bookings.StatusCompleted, "")

	rr, env := doJSON(t, h, http.MethodPost, "/payments/create-link", validCheckout("BID-000001"))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	data := env.Data.(map[string]any)
	if env.Error != 0 || data["paymentId"] != "PAY123456" || data["checkoutUrl"] != "https://pay.example/123456" {
		t.Fatalf("unexpected body %s", rr.Body.String())
	}
}

func TestHandler_CreateLinkErrors(t *testing.T) {
	h, f, gw := newPaymentsRouter(t, customer)
	f.seedBooking(t, "BID-000001", bookings.StatusPending, "")

	req := validCheckout("BID-000001")
	req.Amount = -1
	rr, env := doJSON(t, h, http.MethodPost, "/payments/create-link", req)
	if rr.Code != http.StatusBadRequest || env.Field != "amount" {
		t.Fatalf("expected 400 on amount, got %d %s", rr.Code, rr.Body.String())
	}

	rr, _ = doJSON(t, h, http.MethodPost, "/payments/create-link", validCheckout("BID-000001"))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for no eligible bookings, got %d", rr.Code)
	}

	f.seedBooking(t, "BID-000002", bookings.StatusCompleted, "")
	gw.err = ErrGateway
	rr, _ = doJSON(t, h, http.MethodPost, "/payments/create-link", validCheckout("BID-000002"))
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rr.Code)
	}
}

func TestHandler_GetAndList(t *testing.T) {
	h, f, _ := newPaymentsRouter(t, admin)
	f.seedPayment(t, 123)

	rr, env := doJSON(t, h, http.MethodGet, "/payments/123", nil)
	if rr.Code != http.StatusOK || env.Data.(map[string]any)["paymentId"] != "PAY123" {
		t.Fatalf("unexpected get %d %s", rr.Code, rr.Body.String())
	}
	if rr, _ := doJSON(t, h, http.MethodGet, "/payments/999", nil); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if rr, _ := doJSON(t, h, http.MethodGet, "/payments/abc", nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}

	rr, env = doJSON(t, h, http.MethodGet, "/payments/?page=1&limit=10", nil)
	if rr.Code != http.StatusOK || env.Data.(map[string]any)["total"].(float64) != 1 {
		t.Fatalf("unexpected list %d %s", rr.Code, rr.Body.String())
	}
}

func TestHandler_UpdateStatus(t *testing.T) {
	h, f, _ := newPaymentsRouter(t, admin)
	f.seedBooking(t, "BID-000001", bookings.StatusCompleted, "PAY123")
	f.seedPayment(t, 123)

	rr, _ := doJSON(t, h, http.MethodPut, "/payments/123/status", map[string]string{"status": "refunded"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", rr.Code)
	}

	rr, env := doJSON(t, h, http.MethodPut, "/payments/123/status", map[string]string{"status": "success"})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	rec := env.Data.(map[string]any)["reconciliation"].(map[string]any)
	if rec["updatedBookingCount"].(float64) != 1 {
		t.Fatalf("expected one booking reconciled, got %s", rr.Body.String())
	}

	rr, _ = doJSON(t, h, http.MethodPut, "/payments/123/status", map[string]string{"status": "cancelled"})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 closing a settled payment, got %d", rr.Code)
	}
}

func TestHandler_Sync(t *testing.T) {
	h, f, gw := newPaymentsRouter(t, admin)
	f.seedPayment(t, 123)
	gw.status = StatusCancelled

	rr, env := doJSON(t, h, http.MethodPost, "/payments/123/sync", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := env.Data.(map[string]any)["payment"].(map[string]any)["status"]; got != "cancelled" {
		t.Fatalf("expected cancelled, got %v", got)
	}
}

func TestRedirectHandler(t *testing.T) {
	h, f, _ := newPaymentsRouter(t, customer)
	f.seedPayment(t, 123)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/pay/PAY123", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without checkout url, got %d", rr.Code)
	}

	withURL := &Payment{OrderCode: 456, PaymentID: "PAY456", Status: StatusPending, CheckoutURL: "https://pay.example/456"}
	if err := f.payments.Create(context.Background(), withURL); err != nil {
		t.Fatalf("create: %v", err)
	}
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/pay/PAY456", nil))
	if rr.Code != http.StatusFound || rr.Header().Get("Location") != "https://pay.example/456" {
		t.Fatalf("expected redirect, got %d %s", rr.Code, rr.Header().Get("Location"))
	}

	_, _, _ = f.payments.UpdateStatusIfPending(context.Background(), 456, StatusSuccess, "test")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/pay/456", nil))
	if rr.Code != http.StatusGone {
		t.Fatalf("expected 410 for settled payment, got %d", rr.Code)
	}
}

func TestFakePaymentsHandler_CompleteSettlesBookings(t *testing.T) {
	h, f, _ := newPaymentsRouter(t, customer)
	f.seedBooking(t, "BID-000001", bookings.StatusCompleted, "PAY123")
	f.seedPayment(t, 123)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/payments/fake/123", nil))
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Complete Payment") {
		t.Fatalf("unexpected checkout page %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/payments/fake/123/complete", nil))
	if rr.Code != http.StatusSeeOther || rr.Header().Get("Location") != "/payments/fake/123/success" {
		t.Fatalf("expected redirect to success page, got %d %q", rr.Code, rr.Header().Get("Location"))
	}
	if got := f.status(t, "BID-000001"); got != bookings.StatusCheckedOut {
		t.Fatalf("expected checked-out, got %s", got)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/payments/fake/123", nil))
	if strings.Contains(rr.Body.String(), "Complete Payment") {
		t.Fatal("settled payment should not offer completion")
	}
}
