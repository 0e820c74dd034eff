package payments

import (
	"context"
	"fmt"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/spa-booking/internal/identity"
	"github.com/wolfman30/spa-booking/pkg/logging"
)

type paymentLookup interface {
	GetByOrderCode(ctx context.Context, orderCode int64) (*Payment, error)
}

// FakePaymentsHandler exposes a tiny demo page to "pay" an order without PayOS. Completing
// it runs the same reconciliation as a gateway webhook.
// Only mount this handler when ALLOW_FAKE_PAYMENTS=true.
type FakePaymentsHandler struct {
	payments   paymentLookup
	reconciler *Reconciler
	logger     *logging.Logger
}

func NewFakePaymentsHandler(payments paymentLookup, reconciler *Reconciler, logger *logging.Logger) *FakePaymentsHandler {
	if payments == nil || reconciler == nil {
		panic("payments: fake handler requires payments and reconciler")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FakePaymentsHandler{payments: payments, reconciler: reconciler, logger: logger}
}

func (h *FakePaymentsHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/{orderCode}", h.HandleCheckout)
	r.Post("/{orderCode}/complete", h.HandleComplete)
	r.Get("/{orderCode}/success", h.HandleSuccess)
	return r
}

var fakeCheckoutPage = template.Must(template.New("checkout").Parse(`<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Demo Spa Checkout</title>
    <style>
      body{font-family:system-ui,-apple-system,Segoe UI,Roboto,Ubuntu,Cantarell,Noto Sans,sans-serif;max-width:680px;margin:40px auto;padding:0 16px;}
      .card{border:1px solid #e5e7eb;border-radius:12px;padding:18px;}
      .btn{display:inline-block;background:#111827;color:#fff;padding:12px 16px;border-radius:10px;text-decoration:none;border:0;cursor:pointer;}
      .muted{color:#6b7280;font-size:14px;}
      code{background:#f3f4f6;padding:2px 6px;border-radius:6px;}
    </style>
  </head>
  <body>
    <h1>Demo Spa Checkout</h1>
    <div class="card">
      <p><strong>{{.Description}}</strong></p>
      <p><strong>Amount:</strong> {{.Amount}} {{.Currency}}</p>
      <p class="muted">This is a demo-only payment page (no real payment is processed).</p>
      {{if eq .Status "pending"}}
      <form method="POST" action="{{.CompletePath}}">
        <button class="btn" type="submit">Complete Payment</button>
      </form>
      {{else}}
      <p>This payment is already <strong>{{.Status}}</strong>.</p>
      {{end}}
      <p class="muted">Payment ID: <code>{{.PaymentID}}</code></p>
    </div>
  </body>
</html>`))

var fakeSuccessPage = template.Must(template.New("success").Parse(`<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Payment Completed</title>
    <style>
      body{font-family:system-ui,-apple-system,Segoe UI,Roboto,Ubuntu,Cantarell,Noto Sans,sans-serif;max-width:680px;margin:40px auto;padding:0 16px;}
      .card{border:1px solid #e5e7eb;border-radius:12px;padding:18px;}
      .muted{color:#6b7280;font-size:14px;}
      code{background:#f3f4f6;padding:2px 6px;border-radius:6px;}
    </style>
  </head>
  <body>
    <h1>Payment Completed</h1>
    <div class="card">
      <p>Your demo payment is marked as paid and your bookings are checked out.</p>
      {{if .ReturnURL}}<p><a href="{{.ReturnURL}}">Back to the spa</a></p>{{end}}
      <p class="muted">Payment ID: <code>{{.PaymentID}}</code></p>
    </div>
  </body>
</html>`))

func (h *FakePaymentsHandler) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	orderCode, ok := parseOrderCodeParam(w, r)
	if !ok {
		return
	}
	p, err := h.payments.GetByOrderCode(r.Context(), orderCode)
	if err != nil {
		http.Error(w, "payment not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = fakeCheckoutPage.Execute(w, map[string]any{
		"Description":  p.Description,
		"Amount":       p.Amount,
		"Currency":     p.Currency,
		"Status":       string(p.Status),
		"PaymentID":    p.PaymentID,
		"CompletePath": fmt.Sprintf("%d/complete", orderCode),
	})
}

func (h *FakePaymentsHandler) HandleComplete(w http.ResponseWriter, r *http.Request) {
	orderCode, ok := parseOrderCodeParam(w, r)
	if !ok {
		return
	}
	actor := identity.Actor{Subject: "fake-checkout", Role: identity.RoleGateway}
	if _, err := h.reconciler.ReconcileOrder(r.Context(), actor, orderCode); err != nil {
		h.logger.Error("fake payment completion failed", "error", err, "order_code", orderCode)
		http.Error(w, "failed to complete payment", http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, "success", http.StatusSeeOther)
}

func (h *FakePaymentsHandler) HandleSuccess(w http.ResponseWriter, r *http.Request) {
	orderCode, ok := parseOrderCodeParam(w, r)
	if !ok {
		return
	}
	p, err := h.payments.GetByOrderCode(r.Context(), orderCode)
	if err != nil {
		http.Error(w, "payment not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_ = fakeSuccessPage.Execute(w, map[string]any{
		"PaymentID": p.PaymentID,
		"ReturnURL": p.ReturnURL,
	})
}
