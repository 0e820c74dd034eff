package payments

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/spa-booking/pkg/logging"
)

// RedirectHandler serves short payment URLs that redirect to the gateway checkout page.
type RedirectHandler struct {
	payments paymentLookup
	logger   *logging.Logger
}

// NewRedirectHandler creates a handler for /pay/{code} short URLs.
func NewRedirectHandler(payments paymentLookup, logger *logging.Logger) *RedirectHandler {
	if payments == nil {
		panic("payments: payment lookup required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RedirectHandler{payments: payments, logger: logger}
}

// Handle looks up a pending payment by order code or PAY reference and redirects to its
// checkout URL. Settled or closed payments are gone.
func (h *RedirectHandler) Handle(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimPrefix(strings.TrimSpace(chi.URLParam(r, "code")), "PAY")
	orderCode, err := strconv.ParseInt(code, 10, 64)
	if err != nil || orderCode <= 0 {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	p, err := h.payments.GetByOrderCode(r.Context(), orderCode)
	if err != nil || p.CheckoutURL == "" {
		h.logger.Warn("payment redirect: not found", "code", code, "error", err)
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	if p.Status != StatusPending {
		http.Error(w, "payment is "+string(p.Status), http.StatusGone)
		return
	}

	http.Redirect(w, r, p.CheckoutURL, http.StatusFound)
}
