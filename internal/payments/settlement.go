package payments

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wolfman30/spa-booking/internal/bookings"
)

// Settlement is the outcome of marking one payment as paid.
type Settlement struct {
	Payment *Payment
	// Applied is false when the payment was already final before this call.
	Applied    bool
	CheckedOut []string
	// Unsettled lists linked bookings that were not completed, so could not be checked out.
	Unsettled []string
}

// SettlementStore marks a payment successful and checks out its completed bookings as
// one unit: either both land or neither does.
type SettlementStore interface {
	Settle(ctx context.Context, orderCode int64, updatedBy string) (*Settlement, error)
}

// bookingSettler is the slice of the booking store a settlement touches.
type bookingSettler interface {
	CheckOutByPayment(ctx context.Context, paymentID, updatedBy string) ([]string, error)
	ListByPayment(ctx context.Context, paymentID string) ([]*bookings.Booking, error)
}

// InMemorySettlement pairs the in-memory stores. A failed booking update reverts the
// payment to pending so the next delivery can retry.
type InMemorySettlement struct {
	mu       sync.Mutex
	payments *InMemoryRepository
	bookings bookingSettler
}

func NewInMemorySettlement(payments *InMemoryRepository, bookingStore bookingSettler) *InMemorySettlement {
	if payments == nil || bookingStore == nil {
		panic("payments: settlement stores required")
	}
	return &InMemorySettlement{payments: payments, bookings: bookingStore}
}

func (s *InMemorySettlement) Settle(ctx context.Context, orderCode int64, updatedBy string) (*Settlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, changed, err := s.payments.UpdateStatusIfPending(ctx, orderCode, StatusSuccess, updatedBy)
	if err != nil {
		return nil, err
	}
	if !changed {
		return &Settlement{Payment: p}, nil
	}
	checkedOut, err := s.bookings.CheckOutByPayment(ctx, p.PaymentID, updatedBy)
	if err != nil {
		s.payments.revertToPending(orderCode)
		return nil, fmt.Errorf("payments: settle %d: %w", orderCode, err)
	}
	linked, err := s.bookings.ListByPayment(ctx, p.PaymentID)
	if err != nil {
		return nil, fmt.Errorf("payments: settle %d: list bookings: %w", orderCode, err)
	}
	return &Settlement{
		Payment:    p,
		Applied:    true,
		CheckedOut: nonNilIDs(checkedOut),
		Unsettled:  unsettled(linked),
	}, nil
}

// PostgresSettlement runs the payment update and the booking check-out in one transaction.
type PostgresSettlement struct {
	pool PgxPool
}

func NewPostgresSettlement(pool *pgxpool.Pool) *PostgresSettlement {
	if pool == nil {
		panic("payments: pgx pool required")
	}
	return &PostgresSettlement{pool: pool}
}

func newPostgresSettlementWithPool(pool PgxPool) *PostgresSettlement {
	if pool == nil {
		panic("payments: pool required")
	}
	return &PostgresSettlement{pool: pool}
}

func (s *PostgresSettlement) Settle(ctx context.Context, orderCode int64, updatedBy string) (*Settlement, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("payments: begin settlement: %w", err)
	}
	out, err := settleTx(ctx, tx, orderCode, updatedBy)
	if err != nil {
		_ = tx.Rollback(ctx)
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("payments: commit settlement: %w", err)
	}
	return out, nil
}

func settleTx(ctx context.Context, tx pgx.Tx, orderCode int64, updatedBy string) (*Settlement, error) {
	p, changed, err := updateStatusIfPending(ctx, tx, orderCode, StatusSuccess, updatedBy)
	if err != nil {
		return nil, err
	}
	if !changed {
		return &Settlement{Payment: p}, nil
	}
	checkedOut, err := bookings.CheckOutByPaymentTx(ctx, tx, p.PaymentID, updatedBy)
	if err != nil {
		return nil, err
	}
	linked, err := bookings.ListByPaymentTx(ctx, tx, p.PaymentID)
	if err != nil {
		return nil, err
	}
	return &Settlement{
		Payment:    p,
		Applied:    true,
		CheckedOut: nonNilIDs(checkedOut),
		Unsettled:  unsettled(linked),
	}, nil
}

// unsettled returns linked bookings that have not reached check-out and are not cancelled.
func unsettled(linked []*bookings.Booking) []string {
	out := []string{}
	for _, b := range linked {
		switch b.Status {
		case bookings.StatusCheckedOut, bookings.StatusReviewed, bookings.StatusCancelled:
			continue
		}
		out = append(out, b.BookingID)
	}
	sort.Strings(out)
	return out
}

func nonNilIDs(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

var (
	_ SettlementStore = (*InMemorySettlement)(nil)
	_ SettlementStore = (*PostgresSettlement)(nil)
)
