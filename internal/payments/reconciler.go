package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/spa-booking/internal/identity"
	"github.com/wolfman30/spa-booking/internal/observability/metrics"
	"github.com/wolfman30/spa-booking/pkg/logging"
)

var paymentsTracer = otel.Tracer("spa.internal.payments")

// WebhookPayload is the PayOS notification envelope.
type WebhookPayload struct {
	Code      string          `json:"code"`
	Desc      string          `json:"desc"`
	Success   *bool           `json:"success,omitempty"`
	Data      json.RawMessage `json:"data"`
	Signature string          `json:"signature"`
}

// webhookData holds the fields of data we act on. orderCode stays raw so both
// numbers and numeric strings are accepted.
type webhookData struct {
	OrderCode json.RawMessage `json:"orderCode"`
}

// ParseOrderCode validates the payload as a success notice and extracts the order code.
func (p WebhookPayload) ParseOrderCode() (int64, error) {
	if p.Code != payosSuccessCode {
		return 0, fmt.Errorf("%w: code %q", ErrMalformedWebhook, p.Code)
	}
	if p.Desc != "success" {
		return 0, fmt.Errorf("%w: desc %q", ErrMalformedWebhook, p.Desc)
	}
	if p.Success == nil || !*p.Success {
		return 0, fmt.Errorf("%w: success flag missing or false", ErrMalformedWebhook)
	}
	if len(p.Data) == 0 || string(p.Data) == "null" {
		return 0, fmt.Errorf("%w: missing data", ErrMalformedWebhook)
	}
	var data webhookData
	if err := json.Unmarshal(p.Data, &data); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformedWebhook, err)
	}
	raw := strings.Trim(strings.TrimSpace(string(data.OrderCode)), `"`)
	code, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || code <= 0 {
		return 0, fmt.Errorf("%w: orderCode %q is not numeric", ErrMalformedWebhook, raw)
	}
	return code, nil
}

// ReconciliationResult reports what one success notification changed.
type ReconciliationResult struct {
	OrderCode int64  `json:"orderCode"`
	PaymentID string `json:"paymentId"`
	Status    Status `json:"status"`
	// UpdatedCount is the number of bookings moved to checked-out by this call.
	UpdatedCount     int      `json:"updatedBookingCount"`
	CheckedOut       []string `json:"checkedOut"`
	AlreadyProcessed bool     `json:"alreadyProcessed"`
	Unsettled        []string `json:"unsettledBookings"`
}

// Reconciler applies payment success to the payment record and its bookings. Every path
// that marks a payment paid goes through it, so redelivery is a no-op.
type Reconciler struct {
	store   SettlementStore
	metrics *metrics.PaymentMetrics
	logger  *logging.Logger
}

func NewReconciler(store SettlementStore, logger *logging.Logger) *Reconciler {
	if store == nil {
		panic("payments: settlement store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Reconciler{store: store, logger: logger}
}

func (r *Reconciler) WithMetrics(m *metrics.PaymentMetrics) *Reconciler {
	r.metrics = m
	return r
}

// Reconcile handles a gateway notification. Malformed payloads change nothing.
func (r *Reconciler) Reconcile(ctx context.Context, actor identity.Actor, payload WebhookPayload) (*ReconciliationResult, error) {
	started := time.Now()
	orderCode, err := payload.ParseOrderCode()
	if err != nil {
		r.metrics.ObserveWebhook("malformed", time.Since(started).Seconds())
		r.logger.FromContext(ctx).Warn("payos webhook rejected", "error", err, "code", payload.Code)
		return nil, err
	}
	res, err := r.ReconcileOrder(ctx, actor, orderCode)
	r.metrics.ObserveWebhook(webhookOutcome(res, err), time.Since(started).Seconds())
	return res, err
}

// ReconcileOrder marks orderCode paid and checks out its completed bookings.
func (r *Reconciler) ReconcileOrder(ctx context.Context, actor identity.Actor, orderCode int64) (*ReconciliationResult, error) {
	ctx, span := paymentsTracer.Start(ctx, "payments.reconcile")
	defer span.End()
	span.SetAttributes(attribute.Int64("spa.order_code", orderCode))

	log := r.logger.FromContext(ctx)
	settled, err := r.store.Settle(ctx, orderCode, actor.String())
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			span.RecordError(err)
			log.Error("payment settlement failed", "order_code", orderCode, "error", err)
		}
		return nil, err
	}

	p := settled.Payment
	res := &ReconciliationResult{
		OrderCode:  orderCode,
		PaymentID:  p.PaymentID,
		Status:     p.Status,
		CheckedOut: []string{},
		Unsettled:  []string{},
	}
	if !settled.Applied {
		res.AlreadyProcessed = true
		if p.Status == StatusSuccess {
			log.Info("payment already settled", "order_code", orderCode, "payment_id", p.PaymentID)
		} else {
			log.Warn("success notice for closed payment ignored",
				"order_code", orderCode, "payment_id", p.PaymentID, "status", p.Status)
		}
		return res, nil
	}

	res.CheckedOut = settled.CheckedOut
	res.UpdatedCount = len(settled.CheckedOut)
	res.Unsettled = settled.Unsettled
	span.SetAttributes(attribute.Int("spa.bookings_checked_out", res.UpdatedCount))
	r.metrics.ObserveReconciled(res.UpdatedCount, len(res.Unsettled))
	if len(res.Unsettled) > 0 {
		log.Warn("payment settled with bookings not ready for check-out",
			"order_code", orderCode, "payment_id", p.PaymentID, "booking_ids", res.Unsettled)
	}
	log.Info("payment settled",
		"order_code", orderCode, "payment_id", p.PaymentID,
		"updated_booking_count", res.UpdatedCount, "actor", actor.String())
	return res, nil
}

func webhookOutcome(res *ReconciliationResult, err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case err != nil:
		return "error"
	case res.AlreadyProcessed:
		return "duplicate"
	default:
		return "settled"
	}
}
