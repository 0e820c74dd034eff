package bookings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Querier is satisfied by *pgxpool.Pool and pgx.Tx so statements can join a caller's transaction.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgxPool is the subset of *pgxpool.Pool the repository needs.
type PgxPool interface {
	Querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresRepository stores bookings in the bookings table.
type PostgresRepository struct {
	pool PgxPool
}

// NewPostgresRepository creates a repository backed by a pgx pool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("bookings: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

func newPostgresRepositoryWithPool(pool PgxPool) *PostgresRepository {
	if pool == nil {
		panic("bookings: pool required")
	}
	return &PostgresRepository{pool: pool}
}

const bookingColumns = `id, booking_id, booking_code, username, customer_name, customer_email, customer_phone,
	notes, description, service_id, service_name, service_type, booking_date, start_minute, end_minute,
	duration_minutes, staff_id, original_price, discounted_price, total_price, currency, status,
	payment_id, review_rating, review_content, updated_by, created_at, updated_at`

const uniqueViolation = "23505"

func (r *PostgresRepository) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("bookings: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("bookings: commit: %w", err)
	}
	return nil
}

// lockSlot serializes writers for one staff member on one date until the transaction ends.
func lockSlot(ctx context.Context, q Querier, staffID, date string) error {
	if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, staffID+"|"+date); err != nil {
		return fmt.Errorf("bookings: lock slot: %w", err)
	}
	return nil
}

func findConflict(ctx context.Context, q Querier, slot Slot, exclude string) error {
	day, err := ParseDate(slot.BookingDate)
	if err != nil {
		return err
	}
	query := `
		SELECT booking_id, start_minute, end_minute
		FROM bookings
		WHERE staff_id = $1 AND booking_date = $2 AND status = ANY($3)
			AND start_minute < $4 AND end_minute > $5 AND booking_id <> $6
		ORDER BY start_minute
		LIMIT 1
	`
	var (
		bookingID  string
		start, end int
	)
	err = q.QueryRow(ctx, query, slot.StaffID, day, activeStatusStrings(), int(slot.EndTime), int(slot.StartTime), exclude).
		Scan(&bookingID, &start, &end)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("bookings: conflict query: %w", err)
	}
	return &ConflictError{
		StaffID:           slot.StaffID,
		ExistingBookingID: bookingID,
		Existing: Slot{
			StaffID:     slot.StaffID,
			BookingDate: slot.BookingDate,
			StartTime:   ClockTime(start),
			EndTime:     ClockTime(end),
		},
	}
}

func (r *PostgresRepository) CreateIfSlotFree(ctx context.Context, b *Booking) error {
	day, err := ParseDate(b.BookingDate)
	if err != nil {
		return err
	}
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return r.withTx(ctx, func(tx pgx.Tx) error {
		if slot, ok := b.Slot(); ok {
			if err := lockSlot(ctx, tx, slot.StaffID, slot.BookingDate); err != nil {
				return err
			}
			if err := findConflict(ctx, tx, slot, ""); err != nil {
				return err
			}
		}
		query := `
			INSERT INTO bookings (
				id, booking_id, booking_code, username, customer_name, customer_email, customer_phone,
				notes, description, service_id, service_name, service_type, booking_date, start_minute,
				end_minute, duration_minutes, staff_id, original_price, discounted_price, total_price,
				currency, status, updated_by
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,NULLIF($17,''),$18,$19,$20,$21,$22,$23)
			RETURNING created_at, updated_at
		`
		err := tx.QueryRow(ctx, query,
			b.ID, b.BookingID, b.BookingCode, b.Username, b.CustomerName, b.CustomerEmail, b.CustomerPhone,
			b.Notes, b.Description, b.ServiceID, b.ServiceName, b.ServiceType, day, int(b.StartTime),
			int(b.EndTime), b.DurationMinutes, b.StaffID, b.OriginalPrice, b.DiscountedPrice, b.TotalPrice,
			b.Currency, string(b.Status), b.UpdatedBy,
		).Scan(&b.CreatedAt, &b.UpdatedAt)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
				return ErrDuplicateID
			}
			return fmt.Errorf("bookings: insert: %w", err)
		}
		return nil
	})
}

func (r *PostgresRepository) IdentifierExists(ctx context.Context, id Identifier) (bool, error) {
	var exists int
	err := r.pool.QueryRow(ctx, `SELECT 1 FROM bookings WHERE booking_id = $1 OR booking_code = $2 LIMIT 1`,
		id.BookingID, id.BookingCode).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("bookings: identifier exists: %w", err)
	}
	return true, nil
}

func (r *PostgresRepository) GetByBookingID(ctx context.Context, bookingID string) (*Booking, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE booking_id = $1`, bookingID)
	b, err := scanBooking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("bookings: get: %w", err)
	}
	return b, nil
}

func (r *PostgresRepository) GetByBookingIDs(ctx context.Context, bookingIDs []string) ([]*Booking, error) {
	return r.list(ctx, "get by ids", `WHERE booking_id = ANY($1)`, bookingIDs)
}

func (r *PostgresRepository) ListAll(ctx context.Context) ([]*Booking, error) {
	return r.list(ctx, "list all", "")
}

func (r *PostgresRepository) ListByCustomer(ctx context.Context, username string) ([]*Booking, error) {
	return r.list(ctx, "list by customer", `WHERE username = $1`, username)
}

func (r *PostgresRepository) ListByStaff(ctx context.Context, staffID string) ([]*Booking, error) {
	return r.list(ctx, "list by staff", `WHERE staff_id = $1`, staffID)
}

func (r *PostgresRepository) ListByPayment(ctx context.Context, paymentID string) ([]*Booking, error) {
	return listBookings(ctx, r.pool, "list by payment", `WHERE payment_id = $1`, paymentID)
}

func (r *PostgresRepository) list(ctx context.Context, op, where string, args ...any) ([]*Booking, error) {
	return listBookings(ctx, r.pool, op, where, args...)
}

func listBookings(ctx context.Context, q Querier, op, where string, args ...any) ([]*Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings ` + where + ` ORDER BY booking_date, start_minute, booking_id`
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("bookings: %s: %w", op, err)
	}
	defer rows.Close()

	var out []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("bookings: %s scan: %w", op, err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bookings: %s rows: %w", op, err)
	}
	return out, nil
}

func (r *PostgresRepository) BookedSlots(ctx context.Context, staffID, date string) ([]Slot, error) {
	query := `
		SELECT booking_date, start_minute, end_minute
		FROM bookings
		WHERE staff_id = $1 AND status = ANY($2)`
	args := []any{staffID, activeStatusStrings()}
	if date != "" {
		day, err := ParseDate(date)
		if err != nil {
			return nil, &ValidationError{Field: "date", Reason: "must be YYYY-MM-DD"}
		}
		query += ` AND booking_date = $3`
		args = append(args, day)
	}
	query += ` ORDER BY booking_date, start_minute`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("bookings: booked slots: %w", err)
	}
	defer rows.Close()

	var slots []Slot
	for rows.Next() {
		var (
			day        time.Time
			start, end int
		)
		if err := rows.Scan(&day, &start, &end); err != nil {
			return nil, fmt.Errorf("bookings: booked slots scan: %w", err)
		}
		slots = append(slots, Slot{
			StaffID:     staffID,
			BookingDate: formatDate(day),
			StartTime:   ClockTime(start),
			EndTime:     ClockTime(end),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bookings: booked slots rows: %w", err)
	}
	return slots, nil
}

func (r *PostgresRepository) Transition(ctx context.Context, bookingID string, from, to Status, updatedBy string) (*Booking, error) {
	query := `
		UPDATE bookings SET status = $3, updated_by = $4, updated_at = now()
		WHERE booking_id = $1 AND status = $2
		RETURNING ` + bookingColumns
	b, err := scanBooking(r.pool.QueryRow(ctx, query, bookingID, string(from), string(to), updatedBy))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.explainMiss(ctx, bookingID, eventBetween(from, to))
	}
	if err != nil {
		return nil, fmt.Errorf("bookings: transition: %w", err)
	}
	return b, nil
}

func (r *PostgresRepository) SaveReview(ctx context.Context, bookingID string, review Review, updatedBy string) (*Booking, error) {
	query := `
		UPDATE bookings
		SET status = $2, review_rating = $3, review_content = $4, updated_by = $5, updated_at = now()
		WHERE booking_id = $1 AND status = $6
		RETURNING ` + bookingColumns
	b, err := scanBooking(r.pool.QueryRow(ctx, query, bookingID, string(StatusReviewed), review.Rating, review.Content,
		updatedBy, string(StatusCheckedOut)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.explainMiss(ctx, bookingID, EventReview)
	}
	if err != nil {
		return nil, fmt.Errorf("bookings: save review: %w", err)
	}
	return b, nil
}

// explainMiss turns a conditional update that touched nothing into ErrNotFound or a *TransitionError.
func (r *PostgresRepository) explainMiss(ctx context.Context, bookingID string, ev Event) error {
	var status string
	err := r.pool.QueryRow(ctx, `SELECT status FROM bookings WHERE booking_id = $1`, bookingID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("bookings: load status: %w", err)
	}
	return &TransitionError{BookingID: bookingID, From: Status(status), Event: ev}
}

func (r *PostgresRepository) AssignStaffIfSlotFree(ctx context.Context, bookingID, staffID, updatedBy string) (*Booking, error) {
	var updated *Booking
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		current, err := scanBooking(tx.QueryRow(ctx,
			`SELECT `+bookingColumns+` FROM bookings WHERE booking_id = $1 FOR UPDATE`, bookingID))
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("bookings: load for assign: %w", err)
		}
		if !CanAssignStaff(current.Status) {
			return &TransitionError{BookingID: bookingID, From: current.Status, Event: EventAssignStaff}
		}
		slot := Slot{StaffID: staffID, BookingDate: current.BookingDate, StartTime: current.StartTime, EndTime: current.EndTime}
		if err := lockSlot(ctx, tx, staffID, current.BookingDate); err != nil {
			return err
		}
		if err := findConflict(ctx, tx, slot, bookingID); err != nil {
			return err
		}
		updated, err = scanBooking(tx.QueryRow(ctx, `
			UPDATE bookings SET staff_id = $2, updated_by = $3, updated_at = now()
			WHERE booking_id = $1
			RETURNING `+bookingColumns, bookingID, staffID, updatedBy))
		if err != nil {
			return fmt.Errorf("bookings: assign staff: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *PostgresRepository) UpdateNotes(ctx context.Context, bookingID string, patch NotesPatch, updatedBy string) (*Booking, error) {
	query := `
		UPDATE bookings
		SET notes = COALESCE($2, notes), description = COALESCE($3, description), updated_by = $4, updated_at = now()
		WHERE booking_id = $1
		RETURNING ` + bookingColumns
	b, err := scanBooking(r.pool.QueryRow(ctx, query, bookingID, patch.Notes, patch.Description, updatedBy))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("bookings: update notes: %w", err)
	}
	return b, nil
}

func (r *PostgresRepository) AttachPayment(ctx context.Context, bookingIDs []string, paymentID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE bookings SET payment_id = $2, updated_at = now()
		WHERE booking_id = ANY($1) AND status = $3
		RETURNING booking_id`, bookingIDs, paymentID, string(StatusCompleted))
	if err != nil {
		return nil, fmt.Errorf("bookings: attach payment: %w", err)
	}
	return collectIDs(rows, "attach payment")
}

func (r *PostgresRepository) CheckOutByPayment(ctx context.Context, paymentID, updatedBy string) ([]string, error) {
	return CheckOutByPaymentTx(ctx, r.pool, paymentID, updatedBy)
}

// CheckOutByPaymentTx runs the bulk check-out on q, typically a transaction that also
// records the payment as settled.
func CheckOutByPaymentTx(ctx context.Context, q Querier, paymentID, updatedBy string) ([]string, error) {
	if strings.TrimSpace(paymentID) == "" {
		return nil, nil
	}
	rows, err := q.Query(ctx, `
		UPDATE bookings SET status = $2, updated_by = $3, updated_at = now()
		WHERE payment_id = $1 AND status = $4
		RETURNING booking_id`, paymentID, string(StatusCheckedOut), updatedBy, string(StatusCompleted))
	if err != nil {
		return nil, fmt.Errorf("bookings: check out by payment: %w", err)
	}
	return collectIDs(rows, "check out by payment")
}

// ListByPaymentTx reads the bookings attached to paymentID through q.
func ListByPaymentTx(ctx context.Context, q Querier, paymentID string) ([]*Booking, error) {
	return listBookings(ctx, q, "list by payment", `WHERE payment_id = $1`, paymentID)
}

func collectIDs(rows pgx.Rows, op string) ([]string, error) {
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("bookings: %s scan: %w", op, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bookings: %s rows: %w", op, err)
	}
	return ids, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, bookingID string) (*Booking, error) {
	b, err := scanBooking(r.pool.QueryRow(ctx, `DELETE FROM bookings WHERE booking_id = $1 RETURNING `+bookingColumns, bookingID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("bookings: delete: %w", err)
	}
	return b, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var (
		b            Booking
		day          time.Time
		start, end   int
		staffID      *string
		paymentID    *string
		status       string
		rating       *int
		reviewText   *string
		customerMail *string
	)
	err := row.Scan(
		&b.ID, &b.BookingID, &b.BookingCode, &b.Username, &b.CustomerName, &customerMail, &b.CustomerPhone,
		&b.Notes, &b.Description, &b.ServiceID, &b.ServiceName, &b.ServiceType, &day, &start, &end,
		&b.DurationMinutes, &staffID, &b.OriginalPrice, &b.DiscountedPrice, &b.TotalPrice, &b.Currency, &status,
		&paymentID, &rating, &reviewText, &b.UpdatedBy, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	b.BookingDate = formatDate(day)
	b.StartTime = ClockTime(start)
	b.EndTime = ClockTime(end)
	b.Status = Status(status)
	if customerMail != nil {
		b.CustomerEmail = *customerMail
	}
	if staffID != nil {
		b.StaffID = *staffID
	}
	if paymentID != nil {
		b.PaymentID = *paymentID
	}
	if rating != nil {
		b.Review = &Review{Rating: *rating}
		if reviewText != nil {
			b.Review.Content = *reviewText
		}
	}
	return &b, nil
}

var _ Repository = (*PostgresRepository)(nil)
