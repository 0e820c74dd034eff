package payments

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/wolfman30/spa-booking/internal/identity"
	"github.com/wolfman30/spa-booking/pkg/logging"
)

const maxWebhookBody = 1 << 20

// PayOSWebhookHandler receives PayOS payment notifications.
type PayOSWebhookHandler struct {
	reconciler  *Reconciler
	checksumKey string
	logger      *logging.Logger
}

// NewPayOSWebhookHandler creates the webhook endpoint. An empty checksumKey skips
// signature verification.
func NewPayOSWebhookHandler(reconciler *Reconciler, checksumKey string, logger *logging.Logger) *PayOSWebhookHandler {
	if reconciler == nil {
		panic("payments: reconciler required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &PayOSWebhookHandler{reconciler: reconciler, checksumKey: checksumKey, logger: logger}
}

type webhookAck struct {
	OrderCode           int64    `json:"orderCode"`
	PaymentID           string   `json:"paymentId"`
	UpdatedBookingCount int      `json:"updatedBookingCount"`
	AlreadyProcessed    bool     `json:"alreadyProcessed"`
	UnsettledBookings   []string `json:"unsettledBookings"`
}

// Handle verifies and applies one notification. Redelivered notices are acknowledged with
// a zero update count; storage failures return 500 so the gateway retries.
func (h *PayOSWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeEnvelope(w, http.StatusBadRequest, envelope{Error: -1, Message: "invalid body"})
		return
	}
	var payload WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		h.logger.Warn("failed to decode payos webhook", "error", err)
		writeEnvelope(w, http.StatusBadRequest, envelope{Error: -1, Message: "invalid payload"})
		return
	}
	if err := VerifyWebhookSignature(h.checksumKey, payload.Data, payload.Signature); err != nil {
		h.logger.Warn("payos webhook signature mismatch", "code", payload.Code)
		writeEnvelope(w, http.StatusUnauthorized, envelope{Error: -1, Message: "invalid signature"})
		return
	}

	ctx := identity.WithActor(r.Context(), identity.Gateway)
	res, err := h.reconciler.Reconcile(ctx, identity.Gateway, payload)
	switch {
	case errors.Is(err, ErrMalformedWebhook):
		writeEnvelope(w, http.StatusBadRequest, envelope{Error: -1, Message: err.Error()})
		return
	case errors.Is(err, ErrNotFound):
		writeEnvelope(w, http.StatusNotFound, envelope{Error: -1, Message: "payment not found"})
		return
	case err != nil:
		writeEnvelope(w, http.StatusInternalServerError, envelope{Error: -1, Message: "reconciliation failed"})
		return
	}

	message := "Payment processed"
	if res.AlreadyProcessed {
		message = "Payment already processed"
	}
	writeEnvelope(w, http.StatusOK, envelope{
		Message: message,
		Data: webhookAck{
			OrderCode:           res.OrderCode,
			PaymentID:           res.PaymentID,
			UpdatedBookingCount: res.UpdatedCount,
			AlreadyProcessed:    res.AlreadyProcessed,
			UnsettledBookings:   res.Unsettled,
		},
	})
}

// Ping answers the gateway's URL verification probe.
func (h *PayOSWebhookHandler) Ping(w http.ResponseWriter, r *http.Request) {
	writeEnvelope(w, http.StatusOK, envelope{Message: "ok"})
}
