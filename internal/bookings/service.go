package bookings

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/spa-booking/internal/identity"
	"github.com/wolfman30/spa-booking/internal/observability/metrics"
	"github.com/wolfman30/spa-booking/pkg/logging"
)

var bookingsTracer = otel.Tracer("spa.internal.bookings")

const (
	defaultCurrency      = "VND"
	defaultNotifyTimeout = 10 * time.Second
)

// Notifier is told about new bookings. Delivery is best-effort.
type Notifier interface {
	BookingCreated(ctx context.Context, b *Booking) error
}

// PaymentVerifier confirms that a payment reference has settled, gating manual check-out.
type PaymentVerifier interface {
	PaymentSucceeded(ctx context.Context, paymentID string) (bool, error)
}

// TransitionOptions tune a lifecycle transition.
type TransitionOptions struct {
	// Override lets staff check out without a confirmed payment.
	Override bool
}

// Service owns booking creation and every status change.
type Service struct {
	repo          Repository
	catalog       Catalog
	ids           *IDGenerator
	notifier      Notifier
	verifier      PaymentVerifier
	cache         *SlotCache
	metrics       *metrics.BookingMetrics
	logger        *logging.Logger
	currency      string
	notifyTimeout time.Duration
	notifications sync.WaitGroup
}

// NewService constructs a bookings service.
func NewService(repo Repository, catalog Catalog, logger *logging.Logger) *Service {
	if repo == nil {
		panic("bookings: repository required")
	}
	if catalog == nil {
		panic("bookings: catalog required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		repo:          repo,
		catalog:       catalog,
		ids:           NewIDGenerator(defaultIDAttempts),
		logger:        logger,
		currency:      defaultCurrency,
		notifyTimeout: defaultNotifyTimeout,
	}
}

func (s *Service) WithNotifier(n Notifier) *Service {
	s.notifier = n
	return s
}

func (s *Service) WithPaymentVerifier(v PaymentVerifier) *Service {
	s.verifier = v
	return s
}

func (s *Service) WithSlotCache(c *SlotCache) *Service {
	s.cache = c
	return s
}

func (s *Service) WithMetrics(m *metrics.BookingMetrics) *Service {
	s.metrics = m
	return s
}

func (s *Service) WithIDGenerator(g *IDGenerator) *Service {
	if g != nil {
		s.ids = g
	}
	return s
}

func (s *Service) WithCurrency(currency string) *Service {
	if c := strings.ToUpper(strings.TrimSpace(currency)); c != "" {
		s.currency = c
	}
	return s
}

func (s *Service) WithNotifyTimeout(d time.Duration) *Service {
	if d > 0 {
		s.notifyTimeout = d
	}
	return s
}

// Wait blocks until in-flight notifications finish.
func (s *Service) Wait() {
	s.notifications.Wait()
}

// Create validates the request, prices it from the catalog and stores it as pending.
func (s *Service) Create(ctx context.Context, actor identity.Actor, req CreateRequest) (*Booking, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.create")
	defer span.End()

	req.normalize()
	if actor.Role == identity.RoleCustomer && actor.Subject != "" {
		req.Username = actor.Subject
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	span.SetAttributes(
		attribute.String("spa.service_id", req.ServiceID),
		attribute.String("spa.staff_id", req.StaffID),
		attribute.String("spa.booking_date", req.BookingDate),
	)

	offering, err := s.catalog.Lookup(ctx, req.ServiceID)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	start := MustParseClock(req.StartTime)
	end, err := start.Add(offering.DurationMinutes)
	if err != nil {
		return nil, &ValidationError{Field: "startTime", Reason: "service would run past midnight"}
	}

	b := &Booking{
		Username:        req.Username,
		CustomerName:    req.CustomerName,
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		Notes:           req.Notes,
		Description:     req.Description,
		ServiceID:       offering.ServiceID,
		ServiceName:     offering.Name,
		ServiceType:     offering.Category,
		BookingDate:     req.BookingDate,
		StartTime:       start,
		EndTime:         end,
		DurationMinutes: offering.DurationMinutes,
		StaffID:         req.StaffID,
		OriginalPrice:   offering.Price,
		DiscountedPrice: offering.DiscountedPrice,
		TotalPrice:      offering.FinalPrice(),
		Currency:        s.currency,
		Status:          StatusPending,
		UpdatedBy:       actor.String(),
	}

	_, err = s.ids.Generate(ctx, func(ctx context.Context, id Identifier) error {
		taken, err := s.repo.IdentifierExists(ctx, id)
		if err != nil {
			return err
		}
		if taken {
			return ErrDuplicateID
		}
		b.BookingID = id.BookingID
		b.BookingCode = id.BookingCode
		return s.repo.CreateIfSlotFree(ctx, b)
	})
	if err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			s.metrics.ObserveConflict()
			s.logger.Info("booking rejected: slot taken",
				"staff_id", req.StaffID, "date", req.BookingDate, "blocking_booking_id", conflict.ExistingBookingID)
		}
		recordError(span, err)
		return nil, err
	}

	span.SetAttributes(attribute.String("spa.booking_id", b.BookingID))
	s.cache.Invalidate(ctx, b.StaffID, b.BookingDate)
	s.metrics.ObserveCreated(b.StaffID != "")
	s.logger.FromContext(ctx).Info("booking created",
		"booking_id", b.BookingID, "staff_id", b.StaffID, "date", b.BookingDate,
		"start", b.StartTime.String(), "end", b.EndTime.String(), "actor", actor.String())

	s.dispatchCreated(ctx, b.clone())
	return b, nil
}

// dispatchCreated runs the notifier detached from the request so a slow or failing
// mail provider never affects the stored booking.
func (s *Service) dispatchCreated(ctx context.Context, b *Booking) {
	if s.notifier == nil || b.CustomerEmail == "" {
		return
	}
	notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	s.notifications.Add(1)
	go func() {
		defer s.notifications.Done()
		defer cancel()
		if err := s.notifier.BookingCreated(notifyCtx, b); err != nil {
			s.metrics.ObserveNotifyFailure("booking_created")
			s.logger.Warn("booking confirmation not sent", "booking_id", b.BookingID, "error", err)
		}
	}()
}

func (s *Service) Get(ctx context.Context, bookingID string) (*Booking, error) {
	return s.repo.GetByBookingID(ctx, strings.TrimSpace(bookingID))
}

func (s *Service) List(ctx context.Context) ([]*Booking, error) {
	return s.repo.ListAll(ctx)
}

func (s *Service) ListByCustomer(ctx context.Context, username string) ([]*Booking, error) {
	if strings.TrimSpace(username) == "" {
		return nil, &ValidationError{Field: "username", Reason: "is required"}
	}
	return s.repo.ListByCustomer(ctx, strings.TrimSpace(username))
}

func (s *Service) ListByStaff(ctx context.Context, staffID string) ([]*Booking, error) {
	if strings.TrimSpace(staffID) == "" {
		return nil, &ValidationError{Field: "staff", Reason: "is required"}
	}
	return s.repo.ListByStaff(ctx, strings.TrimSpace(staffID))
}

// BookedSlots lists the occupied intervals for a staff member, optionally on one date.
func (s *Service) BookedSlots(ctx context.Context, staffID, date string) ([]Slot, error) {
	staffID = strings.TrimSpace(staffID)
	date = strings.TrimSpace(date)
	if staffID == "" {
		return nil, &ValidationError{Field: "staff", Reason: "is required"}
	}
	if date != "" {
		if _, err := ParseDate(date); err != nil {
			return nil, &ValidationError{Field: "date", Reason: "must be YYYY-MM-DD"}
		}
	}
	gen, cached := s.cache.Generation(ctx, staffID)
	if cached {
		if slots, ok := s.cache.Get(ctx, staffID, date, gen); ok {
			return slots, nil
		}
	}
	slots, err := s.repo.BookedSlots(ctx, staffID, date)
	if err != nil {
		return nil, err
	}
	if cached {
		s.cache.Set(ctx, staffID, date, gen, slots)
	}
	return slots, nil
}

// HasConflict reports whether the interval overlaps an active booking for staffID on date.
func (s *Service) HasConflict(ctx context.Context, staffID, date string, start, end ClockTime) (bool, error) {
	staffID = strings.TrimSpace(staffID)
	if staffID == "" {
		return false, &ValidationError{Field: "staff", Reason: "is required"}
	}
	slots, err := s.repo.BookedSlots(ctx, staffID, strings.TrimSpace(date))
	if err != nil {
		return false, err
	}
	for _, slot := range slots {
		if slot.Overlaps(start, end) {
			return true, nil
		}
	}
	return false, nil
}

// Transition applies ev to the booking. The write is conditional on the status read here,
// so a concurrent change surfaces as a *TransitionError instead of being overwritten.
func (s *Service) Transition(ctx context.Context, actor identity.Actor, bookingID string, ev Event, opts TransitionOptions) (*Booking, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.transition")
	defer span.End()
	span.SetAttributes(
		attribute.String("spa.booking_id", bookingID),
		attribute.String("spa.event", string(ev)),
	)

	current, err := s.repo.GetByBookingID(ctx, bookingID)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	to, err := Next(current.Status, ev)
	if err != nil {
		var te *TransitionError
		if errors.As(err, &te) {
			te.BookingID = bookingID
		}
		recordError(span, err)
		return nil, err
	}
	if err := s.checkGuard(ctx, actor, current, ev, opts); err != nil {
		recordError(span, err)
		return nil, err
	}

	updated, err := s.repo.Transition(ctx, bookingID, current.Status, to, actor.String())
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	if to == StatusCancelled {
		s.cache.Invalidate(ctx, updated.StaffID, updated.BookingDate)
	}
	s.metrics.ObserveTransition(string(current.Status), string(to))
	s.logger.FromContext(ctx).Info("booking transitioned",
		"booking_id", bookingID, "from", current.Status, "to", to, "actor", actor.String(), "override", opts.Override)
	return updated, nil
}

func (s *Service) checkGuard(ctx context.Context, actor identity.Actor, b *Booking, ev Event, opts TransitionOptions) error {
	switch ev {
	case EventCheckIn:
		if b.StaffID == "" {
			return &PreconditionError{BookingID: b.BookingID, Event: ev, Reason: "no staff assigned"}
		}
	case EventReview:
		return &PreconditionError{BookingID: b.BookingID, Event: ev, Reason: "a rating is required, submit a review instead"}
	case EventCheckOut:
		if opts.Override {
			if !actor.IsStaff() {
				return &PreconditionError{BookingID: b.BookingID, Event: ev, Reason: "override requires a staff account"}
			}
			return nil
		}
		if b.PaymentID == "" || s.verifier == nil {
			return &PreconditionError{BookingID: b.BookingID, Event: ev, Reason: "payment not confirmed"}
		}
		ok, err := s.verifier.PaymentSucceeded(ctx, b.PaymentID)
		if err != nil {
			return err
		}
		if !ok {
			return &PreconditionError{BookingID: b.BookingID, Event: ev, Reason: "payment not confirmed"}
		}
	}
	return nil
}

// AssignStaff sets or changes the therapist of a pending booking.
func (s *Service) AssignStaff(ctx context.Context, actor identity.Actor, bookingID, staffID string) (*Booking, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.assign_staff")
	defer span.End()

	staffID = strings.TrimSpace(staffID)
	if staffID == "" {
		return nil, &ValidationError{Field: "staffId", Reason: "is required"}
	}
	span.SetAttributes(attribute.String("spa.booking_id", bookingID), attribute.String("spa.staff_id", staffID))

	before, err := s.repo.GetByBookingID(ctx, bookingID)
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	updated, err := s.repo.AssignStaffIfSlotFree(ctx, bookingID, staffID, actor.String())
	if err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			s.metrics.ObserveConflict()
		}
		recordError(span, err)
		return nil, err
	}
	s.cache.Invalidate(ctx, before.StaffID, before.BookingDate)
	s.cache.Invalidate(ctx, staffID, updated.BookingDate)
	s.logger.FromContext(ctx).Info("booking staff assigned",
		"booking_id", bookingID, "previous_staff_id", before.StaffID, "staff_id", staffID, "actor", actor.String())
	return updated, nil
}

// AssignAndTransition assigns staffID and then applies ev. The event and its guard are checked
// against the booking as it would look after the assignment, so a request that cannot complete
// leaves the booking untouched.
func (s *Service) AssignAndTransition(ctx context.Context, actor identity.Actor, bookingID, staffID string, ev Event, opts TransitionOptions) (*Booking, error) {
	staffID = strings.TrimSpace(staffID)
	if staffID == "" {
		return nil, &ValidationError{Field: "staffId", Reason: "is required"}
	}
	current, err := s.repo.GetByBookingID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !CanAssignStaff(current.Status) {
		return nil, &TransitionError{BookingID: bookingID, From: current.Status, Event: EventAssignStaff}
	}
	if _, err := Next(current.Status, ev); err != nil {
		var te *TransitionError
		if errors.As(err, &te) {
			te.BookingID = bookingID
		}
		return nil, err
	}
	planned := *current
	planned.StaffID = staffID
	if err := s.checkGuard(ctx, actor, &planned, ev, opts); err != nil {
		return nil, err
	}

	if _, err := s.AssignStaff(ctx, actor, bookingID, staffID); err != nil {
		return nil, err
	}
	return s.Transition(ctx, actor, bookingID, ev, opts)
}

// UpdateNotes edits free-text fields at any status.
func (s *Service) UpdateNotes(ctx context.Context, actor identity.Actor, bookingID string, patch NotesPatch) (*Booking, error) {
	if patch.Empty() {
		return nil, &ValidationError{Field: "notes", Reason: "nothing to update"}
	}
	return s.repo.UpdateNotes(ctx, bookingID, patch, actor.String())
}

// Review records the customer's rating and moves the booking to reviewed. A second review fails
// because the booking is no longer checked-out.
func (s *Service) Review(ctx context.Context, actor identity.Actor, bookingID string, review Review) (*Booking, error) {
	ctx, span := bookingsTracer.Start(ctx, "bookings.review")
	defer span.End()

	review.Content = strings.TrimSpace(review.Content)
	if err := review.Validate(); err != nil {
		return nil, err
	}
	updated, err := s.repo.SaveReview(ctx, bookingID, review, actor.String())
	if err != nil {
		recordError(span, err)
		return nil, err
	}
	s.metrics.ObserveTransition(string(StatusCheckedOut), string(StatusReviewed))
	s.logger.FromContext(ctx).Info("booking reviewed", "booking_id", bookingID, "rating", review.Rating)
	return updated, nil
}

// Delete removes a booking regardless of status.
func (s *Service) Delete(ctx context.Context, actor identity.Actor, bookingID string) error {
	removed, err := s.repo.Delete(ctx, bookingID)
	if err != nil {
		return err
	}
	s.cache.Invalidate(ctx, removed.StaffID, removed.BookingDate)
	s.logger.FromContext(ctx).Warn("booking deleted",
		"booking_id", bookingID, "status", removed.Status, "actor", actor.String())
	return nil
}

// EligibleForCheckout returns the listed bookings that are completed.
func (s *Service) EligibleForCheckout(ctx context.Context, bookingIDs []string) ([]*Booking, error) {
	found, err := s.repo.GetByBookingIDs(ctx, bookingIDs)
	if err != nil {
		return nil, err
	}
	var eligible []*Booking
	for _, b := range found {
		if b.Status == StatusCompleted {
			eligible = append(eligible, b)
		}
	}
	return eligible, nil
}

// AttachPayment links the completed bookings among bookingIDs to paymentID.
func (s *Service) AttachPayment(ctx context.Context, bookingIDs []string, paymentID string) ([]string, error) {
	return s.repo.AttachPayment(ctx, bookingIDs, paymentID)
}

func (s *Service) ListByPayment(ctx context.Context, paymentID string) ([]*Booking, error) {
	return s.repo.ListByPayment(ctx, paymentID)
}

func recordError(span trace.Span, err error) {
	if IsDomainError(err) {
		return
	}
	span.RecordError(err)
}
