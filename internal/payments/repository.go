package payments

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists payments. Status changes go through UpdateStatusIfPending so a
// payment leaves pending exactly once.
type Repository interface {
	Create(ctx context.Context, p *Payment) error
	GetByOrderCode(ctx context.Context, orderCode int64) (*Payment, error)
	GetByPaymentID(ctx context.Context, paymentID string) (*Payment, error)
	List(ctx context.Context, page, limit int) ([]*Payment, int, error)
	// UpdateStatusIfPending moves a pending payment to status. changed is false when the
	// payment was already final; the current row is returned either way.
	UpdateStatusIfPending(ctx context.Context, orderCode int64, status Status, updatedBy string) (p *Payment, changed bool, err error)
}

// InMemoryRepository keeps payments in a map, for local runs and tests.
type InMemoryRepository struct {
	mu       sync.Mutex
	payments map[int64]*Payment
	now      func() time.Time
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		payments: make(map[int64]*Payment),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *InMemoryRepository) Create(ctx context.Context, p *Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.payments[p.OrderCode]; ok {
		return ErrDuplicateOrder
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	now := r.now()
	p.CreatedAt = now
	p.UpdatedAt = now
	r.payments[p.OrderCode] = p.clone()
	return nil
}

func (r *InMemoryRepository) GetByOrderCode(ctx context.Context, orderCode int64) (*Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[orderCode]
	if !ok {
		return nil, ErrNotFound
	}
	return p.clone(), nil
}

func (r *InMemoryRepository) GetByPaymentID(ctx context.Context, paymentID string) (*Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.PaymentID == paymentID {
			return p.clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (r *InMemoryRepository) List(ctx context.Context, page, limit int) ([]*Payment, int, error) {
	r.mu.Lock()
	all := make([]*Payment, 0, len(r.payments))
	for _, p := range r.payments {
		all = append(all, p.clone())
	}
	r.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].OrderCode > all[j].OrderCode
	})
	offset := (page - 1) * limit
	if offset >= len(all) {
		return []*Payment{}, len(all), nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], len(all), nil
}

func (r *InMemoryRepository) UpdateStatusIfPending(ctx context.Context, orderCode int64, status Status, updatedBy string) (*Payment, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.payments[orderCode]
	if !ok {
		return nil, false, ErrNotFound
	}
	if p.Status != StatusPending {
		return p.clone(), false, nil
	}
	p.Status = status
	p.UpdatedBy = updatedBy
	p.UpdatedAt = r.now()
	return p.clone(), true, nil
}

// revertToPending undoes a settlement whose booking update failed.
func (r *InMemoryRepository) revertToPending(orderCode int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.payments[orderCode]; ok {
		p.Status = StatusPending
	}
}

// Querier is satisfied by *pgxpool.Pool and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgxPool is the subset of *pgxpool.Pool the payment stores need.
type PgxPool interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresRepository stores payments in the payments table.
type PostgresRepository struct {
	pool PgxPool
}

// NewPostgresRepository creates a repository backed by pgx pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("payments: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

func newPostgresRepositoryWithPool(pool PgxPool) *PostgresRepository {
	if pool == nil {
		panic("payments: pool required")
	}
	return &PostgresRepository{pool: pool}
}

const paymentColumns = `id, order_code, payment_id, order_name, amount, currency, description, status,
	return_url, cancel_url, checkout_url, qr_code, provider, booking_ids, updated_by, created_at, updated_at`

func (r *PostgresRepository) Create(ctx context.Context, p *Payment) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	query := `
		INSERT INTO payments (
			id, order_code, payment_id, order_name, amount, currency, description, status,
			return_url, cancel_url, checkout_url, qr_code, provider, booking_ids, updated_by
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING created_at, updated_at
	`
	err := r.pool.QueryRow(ctx, query,
		p.ID, p.OrderCode, p.PaymentID, p.OrderName, p.Amount, p.Currency, p.Description, string(p.Status),
		p.ReturnURL, p.CancelURL, p.CheckoutURL, p.QRCode, p.Provider, p.BookingIDs, p.UpdatedBy,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateOrder
		}
		return fmt.Errorf("payments: insert: %w", err)
	}
	return nil
}

func (r *PostgresRepository) GetByOrderCode(ctx context.Context, orderCode int64) (*Payment, error) {
	return getPayment(ctx, r.pool, `WHERE order_code = $1`, orderCode)
}

func (r *PostgresRepository) GetByPaymentID(ctx context.Context, paymentID string) (*Payment, error) {
	return getPayment(ctx, r.pool, `WHERE payment_id = $1`, paymentID)
}

func getPayment(ctx context.Context, q Querier, where string, arg any) (*Payment, error) {
	p, err := scanPayment(q.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments `+where, arg))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("payments: get: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) List(ctx context.Context, page, limit int) ([]*Payment, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM payments`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("payments: count: %w", err)
	}
	rows, err := r.pool.Query(ctx,
		`SELECT `+paymentColumns+` FROM payments ORDER BY created_at DESC, order_code DESC LIMIT $1 OFFSET $2`,
		limit, (page-1)*limit)
	if err != nil {
		return nil, 0, fmt.Errorf("payments: list: %w", err)
	}
	defer rows.Close()

	out := []*Payment{}
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("payments: list scan: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("payments: list rows: %w", err)
	}
	return out, total, nil
}

func (r *PostgresRepository) UpdateStatusIfPending(ctx context.Context, orderCode int64, status Status, updatedBy string) (*Payment, bool, error) {
	return updateStatusIfPending(ctx, r.pool, orderCode, status, updatedBy)
}

// updateStatusIfPending is the single conditional write that makes webhook redelivery safe.
func updateStatusIfPending(ctx context.Context, q Querier, orderCode int64, status Status, updatedBy string) (*Payment, bool, error) {
	query := `
		UPDATE payments SET status = $2, updated_by = $3, updated_at = now()
		WHERE order_code = $1 AND status = 'pending'
		RETURNING ` + paymentColumns
	p, err := scanPayment(q.QueryRow(ctx, query, orderCode, string(status), updatedBy))
	if err == nil {
		return p, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("payments: update status: %w", err)
	}
	current, err := getPayment(ctx, q, `WHERE order_code = $1`, orderCode)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

func scanPayment(row pgx.Row) (*Payment, error) {
	var (
		p      Payment
		status string
		qr     *string
	)
	err := row.Scan(
		&p.ID, &p.OrderCode, &p.PaymentID, &p.OrderName, &p.Amount, &p.Currency, &p.Description, &status,
		&p.ReturnURL, &p.CancelURL, &p.CheckoutURL, &qr, &p.Provider, &p.BookingIDs, &p.UpdatedBy,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Status = Status(status)
	if qr != nil {
		p.QRCode = *qr
	}
	return &p, nil
}

var (
	_ Repository = (*InMemoryRepository)(nil)
	_ Repository = (*PostgresRepository)(nil)
)
