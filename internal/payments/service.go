package payments

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/spa-booking/internal/bookings"
	"github.com/wolfman30/spa-booking/internal/identity"
	"github.com/wolfman30/spa-booking/internal/observability/metrics"
	"github.com/wolfman30/spa-booking/pkg/logging"
)

const (
	defaultDescriptionLimit = 25
	defaultPageSize         = 20
	maxPageSize             = 100
	maxOrderCodeAttempts    = 5
)

// BookingLinker is the booking side of checkout, satisfied by *bookings.Service.
type BookingLinker interface {
	EligibleForCheckout(ctx context.Context, bookingIDs []string) ([]*bookings.Booking, error)
	AttachPayment(ctx context.Context, bookingIDs []string, paymentID string) ([]string, error)
}

// CheckoutRequest opens a payment link for a set of completed bookings.
type CheckoutRequest struct {
	Amount      int64    `json:"amount"`
	OrderName   string   `json:"orderName"`
	Description string   `json:"description"`
	ReturnURL   string   `json:"returnUrl"`
	CancelURL   string   `json:"cancelUrl"`
	BookingIDs  []string `json:"bookingIds"`
}

func (r *CheckoutRequest) normalize() {
	r.OrderName = strings.TrimSpace(r.OrderName)
	r.Description = strings.TrimSpace(r.Description)
	r.ReturnURL = strings.TrimSpace(r.ReturnURL)
	r.CancelURL = strings.TrimSpace(r.CancelURL)
	ids := make([]string, 0, len(r.BookingIDs))
	seen := make(map[string]struct{}, len(r.BookingIDs))
	for _, id := range r.BookingIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	r.BookingIDs = ids
}

// Validate reports the first missing or malformed field.
func (r CheckoutRequest) Validate() error {
	switch {
	case r.Amount <= 0:
		return &ValidationError{Field: "amount", Reason: "must be positive"}
	case r.Description == "":
		return &ValidationError{Field: "description", Reason: "is required"}
	case !isAbsoluteURL(r.ReturnURL):
		return &ValidationError{Field: "returnUrl", Reason: "must be an absolute URL"}
	case !isAbsoluteURL(r.CancelURL):
		return &ValidationError{Field: "cancelUrl", Reason: "must be an absolute URL"}
	case len(r.BookingIDs) == 0:
		return &ValidationError{Field: "bookingIds", Reason: "must list at least one booking"}
	}
	return nil
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}

// Service opens checkouts and answers payment queries. Settlement is delegated to the
// Reconciler.
type Service struct {
	repo             Repository
	gateway          CheckoutGateway
	linker           BookingLinker
	reconciler       *Reconciler
	velocity         *VelocityChecker
	metrics          *metrics.PaymentMetrics
	logger           *logging.Logger
	provider         string
	currency         string
	descriptionLimit int
	orderCodes       func() (int64, error)
}

func NewService(repo Repository, gateway CheckoutGateway, linker BookingLinker, reconciler *Reconciler, logger *logging.Logger) *Service {
	if repo == nil {
		panic("payments: repository required")
	}
	if gateway == nil {
		panic("payments: checkout gateway required")
	}
	if linker == nil {
		panic("payments: booking linker required")
	}
	if reconciler == nil {
		panic("payments: reconciler required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:             repo,
		gateway:          gateway,
		linker:           linker,
		reconciler:       reconciler,
		logger:           logger,
		provider:         "payos",
		currency:         "VND",
		descriptionLimit: defaultDescriptionLimit,
		orderCodes:       randomOrderCode,
	}
}

func (s *Service) WithMetrics(m *metrics.PaymentMetrics) *Service {
	s.metrics = m
	return s
}

// WithVelocity limits checkout attempts per customer. A nil checker disables the limit.
func (s *Service) WithVelocity(v *VelocityChecker) *Service {
	s.velocity = v
	return s
}

// WithProvider names the gateway stored on new payments.
func (s *Service) WithProvider(name string) *Service {
	if name = strings.TrimSpace(name); name != "" {
		s.provider = name
	}
	return s
}

func (s *Service) WithCurrency(currency string) *Service {
	if currency = strings.TrimSpace(currency); currency != "" {
		s.currency = strings.ToUpper(currency)
	}
	return s
}

// WithDescriptionLimit caps the description forwarded to the gateway. PayOS rejects
// descriptions longer than 25 characters.
func (s *Service) WithDescriptionLimit(n int) *Service {
	if n > 0 {
		s.descriptionLimit = n
	}
	return s
}

func (s *Service) withOrderCodes(fn func() (int64, error)) *Service {
	s.orderCodes = fn
	return s
}

// InitiateCheckout opens a gateway payment link and links the completed bookings among
// req.BookingIDs to the new payment.
func (s *Service) InitiateCheckout(ctx context.Context, actor identity.Actor, req CheckoutRequest) (*Payment, error) {
	ctx, span := paymentsTracer.Start(ctx, "payments.checkout")
	defer span.End()
	log := s.logger.FromContext(ctx)

	req.normalize()
	if err := req.Validate(); err != nil {
		s.metrics.ObserveCheckout("invalid")
		return nil, err
	}
	// Anonymous callers share one subject, so they cannot be told apart for per-customer limits.
	if actor.Subject != "" && actor.Role != identity.RoleAnonymous && !actor.IsStaff() {
		vr, err := s.velocity.CheckCheckoutVelocity(ctx, actor.Subject)
		if err != nil {
			return nil, err
		}
		if !vr.Allowed {
			s.metrics.ObserveCheckout("velocity_exceeded")
			return nil, fmt.Errorf("%w: %s", ErrVelocityExceeded, vr.Message)
		}
	}

	eligible, err := s.linker.EligibleForCheckout(ctx, req.BookingIDs)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(eligible) == 0 {
		s.metrics.ObserveCheckout("no_eligible_bookings")
		return nil, ErrNoEligibleBookings
	}

	orderCode, err := s.freeOrderCode(ctx)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int64("spa.order_code", orderCode))

	description := truncateRunes(req.Description, s.descriptionLimit)
	params := CheckoutParams{
		OrderCode:   orderCode,
		Amount:      req.Amount,
		Description: description,
		ReturnURL:   req.ReturnURL,
		CancelURL:   req.CancelURL,
		BuyerName:   eligible[0].CustomerName,
		Items:       checkoutItems(eligible),
	}
	link, err := s.gateway.CreatePaymentLink(ctx, params)
	if err != nil {
		s.metrics.ObserveCheckout("gateway_error")
		span.RecordError(err)
		log.Error("payment link creation failed", "order_code", orderCode, "error", err)
		return nil, err
	}

	eligibleIDs := make([]string, len(eligible))
	for i, b := range eligible {
		eligibleIDs[i] = b.BookingID
	}
	orderName := req.OrderName
	if orderName == "" {
		orderName = description
	}
	p := &Payment{
		OrderCode:   orderCode,
		PaymentID:   PaymentIDFor(orderCode),
		OrderName:   orderName,
		Amount:      req.Amount,
		Currency:    s.currency,
		Description: description,
		Status:      StatusPending,
		ReturnURL:   req.ReturnURL,
		CancelURL:   req.CancelURL,
		CheckoutURL: link.CheckoutURL,
		QRCode:      link.QRCode,
		Provider:    s.provider,
		BookingIDs:  eligibleIDs,
		UpdatedBy:   actor.String(),
	}
	if err := s.repo.Create(ctx, p); err != nil {
		span.RecordError(err)
		return nil, err
	}
	attached, err := s.linker.AttachPayment(ctx, eligibleIDs, p.PaymentID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("payments: link bookings to %s: %w", p.PaymentID, err)
	}
	if len(attached) != len(eligibleIDs) {
		log.Warn("some bookings left completed state before linking",
			"payment_id", p.PaymentID, "eligible", eligibleIDs, "attached", attached)
	}

	s.metrics.ObserveCheckout("created")
	log.Info("checkout created",
		"order_code", orderCode, "payment_id", p.PaymentID, "amount", p.Amount,
		"booking_ids", attached, "actor", actor.String())
	return p, nil
}

// freeOrderCode draws random order codes until one is unused.
func (s *Service) freeOrderCode(ctx context.Context) (int64, error) {
	for attempt := 0; attempt < maxOrderCodeAttempts; attempt++ {
		code, err := s.orderCodes()
		if err != nil {
			return 0, fmt.Errorf("payments: order code: %w", err)
		}
		_, err = s.repo.GetByOrderCode(ctx, code)
		if errors.Is(err, ErrNotFound) {
			return code, nil
		}
		if err != nil {
			return 0, err
		}
	}
	return 0, ErrDuplicateOrder
}

func checkoutItems(list []*bookings.Booking) []CheckoutItem {
	items := make([]CheckoutItem, 0, len(list))
	for _, b := range list {
		items = append(items, CheckoutItem{Name: b.ServiceName, Quantity: 1, Price: b.TotalPrice})
	}
	return items
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if limit <= 0 || len(r) <= limit {
		return s
	}
	return string(r[:limit])
}

func (s *Service) Get(ctx context.Context, orderCode int64) (*Payment, error) {
	return s.repo.GetByOrderCode(ctx, orderCode)
}

// Page is one page of the payment listing.
type Page struct {
	Payments   []*Payment `json:"payments"`
	Page       int        `json:"page"`
	Limit      int        `json:"limit"`
	Total      int        `json:"total"`
	TotalPages int        `json:"totalPages"`
}

// List returns payments newest first. Out-of-range page and limit values are clamped.
func (s *Service) List(ctx context.Context, page, limit int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	list, total, err := s.repo.List(ctx, page, limit)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*Payment{}
	}
	return &Page{
		Payments:   list,
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: (total + limit - 1) / limit,
	}, nil
}

// UpdateStatus is the manual status override. Success reconciles bookings exactly like a
// webhook; failed and cancelled only close a pending payment.
func (s *Service) UpdateStatus(ctx context.Context, actor identity.Actor, orderCode int64, status Status) (*Payment, *ReconciliationResult, error) {
	switch status {
	case StatusSuccess:
		res, err := s.reconciler.ReconcileOrder(ctx, actor, orderCode)
		if err != nil {
			return nil, nil, err
		}
		p, err := s.repo.GetByOrderCode(ctx, orderCode)
		if err != nil {
			return nil, nil, err
		}
		return p, res, nil
	case StatusFailed, StatusCancelled:
		p, changed, err := s.repo.UpdateStatusIfPending(ctx, orderCode, status, actor.String())
		if err != nil {
			return nil, nil, err
		}
		if !changed && p.Status != status {
			return nil, nil, fmt.Errorf("%w: payment %d is already %s", ErrInvalidStatus, orderCode, p.Status)
		}
		s.logger.FromContext(ctx).Info("payment closed",
			"order_code", orderCode, "status", status, "changed", changed, "actor", actor.String())
		return p, nil, nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
}

// SyncStatus asks the gateway for the order's state and applies it. A paid order is
// reconciled; an order the gateway closed is closed locally.
func (s *Service) SyncStatus(ctx context.Context, actor identity.Actor, orderCode int64) (*Payment, *ReconciliationResult, error) {
	current, err := s.repo.GetByOrderCode(ctx, orderCode)
	if err != nil {
		return nil, nil, err
	}
	if current.Status.IsFinal() {
		return current, nil, nil
	}
	checker, ok := s.gateway.(StatusChecker)
	if !ok {
		return current, nil, nil
	}
	remote, err := checker.PaymentStatus(ctx, orderCode)
	if err != nil {
		return nil, nil, err
	}
	if remote == StatusPending {
		return current, nil, nil
	}
	s.logger.FromContext(ctx).Info("gateway status differs",
		"order_code", orderCode, "local", current.Status, "remote", remote)
	return s.UpdateStatus(ctx, actor, orderCode, remote)
}

// PaymentSucceeded reports whether paymentID is a settled payment. It gates manual
// booking check-out.
func (s *Service) PaymentSucceeded(ctx context.Context, paymentID string) (bool, error) {
	p, err := s.repo.GetByPaymentID(ctx, paymentID)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return p.Status == StatusSuccess, nil
}

// Reconciler exposes the settlement path for the webhook and demo handlers.
func (s *Service) Reconciler() *Reconciler {
	return s.reconciler
}

var _ bookings.PaymentVerifier = (*Service)(nil)
