package payments

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/spa-booking/internal/bookings"
	"github.com/wolfman30/spa-booking/internal/identity"
	"github.com/wolfman30/spa-booking/pkg/logging"
)

// envelope is the response shape of every payment endpoint.
type envelope struct {
	Error   int    `json:"error"`
	Message string `json:"message"`
	Data    any    `json:"data"`
	Field   string `json:"field,omitempty"`
}

// Handler exposes checkout and payment queries.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if service == nil {
		panic("payments: service required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// Routes mounts the customer-facing payment endpoints. Admin routes are mounted by the router.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/create-link", h.CreateLink)
	r.Get("/{orderCode}", h.Get)
	r.Post("/{orderCode}/sync", h.Sync)
}

type checkoutResponse struct {
	CheckoutURL string   `json:"checkoutUrl"`
	QRCode      string   `json:"qrCode,omitempty"`
	OrderCode   int64    `json:"orderCode"`
	PaymentID   string   `json:"paymentId"`
	Amount      int64    `json:"amount"`
	BookingIDs  []string `json:"bookingIds"`
}

func (h *Handler) CreateLink(w http.ResponseWriter, r *http.Request) {
	var req CheckoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeEnvelope(w, http.StatusBadRequest, envelope{Error: -1, Message: "invalid payload"})
		return
	}
	p, err := h.service.InitiateCheckout(r.Context(), identity.ActorFromContext(r.Context()), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeEnvelope(w, http.StatusOK, envelope{
		Message: "Payment link created",
		Data: checkoutResponse{
			CheckoutURL: p.CheckoutURL,
			QRCode:      p.QRCode,
			OrderCode:   p.OrderCode,
			PaymentID:   p.PaymentID,
			Amount:      p.Amount,
			BookingIDs:  p.BookingIDs,
		},
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	orderCode, ok := parseOrderCodeParam(w, r)
	if !ok {
		return
	}
	p, err := h.service.Get(r.Context(), orderCode)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeEnvelope(w, http.StatusOK, envelope{Message: "ok", Data: p})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	result, err := h.service.List(r.Context(), page, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeEnvelope(w, http.StatusOK, envelope{Message: "ok", Data: result})
}

type statusUpdateResponse struct {
	Payment        *Payment              `json:"payment"`
	Reconciliation *ReconciliationResult `json:"reconciliation,omitempty"`
}

// UpdateStatus is the admin override of a payment's status.
func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	orderCode, ok := parseOrderCodeParam(w, r)
	if !ok {
		return
	}
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeEnvelope(w, http.StatusBadRequest, envelope{Error: -1, Message: "invalid payload"})
		return
	}
	status, valid := ParseStatus(req.Status)
	if !valid {
		writeEnvelope(w, http.StatusBadRequest, envelope{Error: -1, Message: "status must be one of pending, success, failed, cancelled", Field: "status"})
		return
	}
	p, res, err := h.service.UpdateStatus(r.Context(), identity.ActorFromContext(r.Context()), orderCode, status)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeEnvelope(w, http.StatusOK, envelope{Message: "Payment status updated", Data: statusUpdateResponse{Payment: p, Reconciliation: res}})
}

// Sync polls the gateway for the order and applies a final status it reports.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	orderCode, ok := parseOrderCodeParam(w, r)
	if !ok {
		return
	}
	p, res, err := h.service.SyncStatus(r.Context(), identity.ActorFromContext(r.Context()), orderCode)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeEnvelope(w, http.StatusOK, envelope{Message: "ok", Data: statusUpdateResponse{Payment: p, Reconciliation: res}})
}

func parseOrderCodeParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, "orderCode"))
	code, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || code <= 0 {
		writeEnvelope(w, http.StatusBadRequest, envelope{Error: -1, Message: "orderCode must be numeric", Field: "orderCode"})
		return 0, false
	}
	return code, true
}

// writeError maps payment errors onto the envelope. Booking errors fall through to the
// booking mapping.
func writeError(w http.ResponseWriter, logger *logging.Logger, err error) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		writeEnvelope(w, http.StatusBadRequest, envelope{Error: -1, Message: err.Error(), Field: ve.Field})
	case errors.Is(err, ErrMalformedWebhook), errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrNoEligibleBookings):
		writeEnvelope(w, http.StatusBadRequest, envelope{Error: -1, Message: err.Error()})
	case errors.Is(err, ErrInvalidSignature):
		writeEnvelope(w, http.StatusUnauthorized, envelope{Error: -1, Message: err.Error()})
	case errors.Is(err, ErrVelocityExceeded):
		writeEnvelope(w, http.StatusTooManyRequests, envelope{Error: -1, Message: err.Error()})
	case errors.Is(err, ErrNotFound):
		writeEnvelope(w, http.StatusNotFound, envelope{Error: -1, Message: err.Error()})
	case errors.Is(err, ErrGateway):
		if logger == nil {
			logger = logging.Default()
		}
		logger.Error("payment gateway failed", "error", err)
		writeEnvelope(w, http.StatusBadGateway, envelope{Error: -1, Message: "payment gateway unavailable"})
	default:
		bookings.WriteError(w, logger, err)
	}
}

func writeEnvelope(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
