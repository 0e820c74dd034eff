package reports

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/wolfman30/spa-booking/internal/bookings"
)

const (
	dateLayout    = "2006-01-02"
	defaultWindow = 30 * 24 * time.Hour
	maxWindow     = 366 * 24 * time.Hour
)

// StatusTotals aggregates bookings sharing a lifecycle status.
type StatusTotals struct {
	Status  string `json:"status"`
	Count   int    `json:"count"`
	Revenue int64  `json:"revenue"`
}

// StaffTotals aggregates the active bookings of one therapist. An empty StaffID collects unassigned bookings.
type StaffTotals struct {
	StaffID  string   `json:"staffId"`
	Count    int      `json:"count"`
	Revenue  int64    `json:"revenue"`
	Statuses []string `json:"statuses"`
}

// BookingSummary is the admin report for a booking-date range.
type BookingSummary struct {
	From           string         `json:"from"`
	To             string         `json:"to"`
	TotalBookings  int            `json:"totalBookings"`
	BookedRevenue  int64          `json:"bookedRevenue"`
	SettledRevenue int64          `json:"settledRevenue"`
	ByStatus       []StatusTotals `json:"byStatus"`
	ByStaff        []StaffTotals  `json:"byStaff"`
}

// Store runs reporting queries against the bookings table.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func NewStore(db *sql.DB) *Store {
	if db == nil {
		panic("reports: db required")
	}
	return &Store{db: db, now: time.Now}
}

// Range resolves optional from/to query values. Missing bounds default to the last 30 days.
func (s *Store) Range(from, to string) (string, string, error) {
	end := s.now().UTC()
	if to != "" {
		parsed, err := time.Parse(dateLayout, to)
		if err != nil {
			return "", "", &bookings.ValidationError{Field: "to", Reason: "must be YYYY-MM-DD"}
		}
		end = parsed
	}
	start := end.Add(-defaultWindow)
	if from != "" {
		parsed, err := time.Parse(dateLayout, from)
		if err != nil {
			return "", "", &bookings.ValidationError{Field: "from", Reason: "must be YYYY-MM-DD"}
		}
		start = parsed
	}
	if start.After(end) {
		return "", "", &bookings.ValidationError{Field: "from", Reason: "must not be after to"}
	}
	if end.Sub(start) > maxWindow {
		return "", "", &bookings.ValidationError{Field: "from", Reason: "range must not exceed one year"}
	}
	return start.Format(dateLayout), end.Format(dateLayout), nil
}

// BookingSummary returns counts and revenue grouped by status and by staff.
// Revenue totals skip cancelled bookings; settled revenue counts only checked-out and reviewed ones.
func (s *Store) BookingSummary(ctx context.Context, from, to string) (*BookingSummary, error) {
	from, to, err := s.Range(from, to)
	if err != nil {
		return nil, err
	}
	summary := &BookingSummary{From: from, To: to, ByStatus: []StatusTotals{}, ByStaff: []StaffTotals{}}

	rows, err := s.db.QueryContext(ctx, `
		SELECT status, count(*), COALESCE(sum(total_price), 0)
		FROM bookings
		WHERE booking_date BETWEEN $1 AND $2
		GROUP BY status
		ORDER BY status`, from, to)
	if err != nil {
		return nil, fmt.Errorf("reports: by status: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var row StatusTotals
		if err := rows.Scan(&row.Status, &row.Count, &row.Revenue); err != nil {
			return nil, fmt.Errorf("reports: scan status: %w", err)
		}
		summary.ByStatus = append(summary.ByStatus, row)
		summary.TotalBookings += row.Count
		switch bookings.Status(row.Status) {
		case bookings.StatusCancelled:
			continue
		case bookings.StatusCheckedOut, bookings.StatusReviewed:
			summary.SettledRevenue += row.Revenue
		}
		summary.BookedRevenue += row.Revenue
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reports: by status: %w", err)
	}

	active := make([]string, len(bookings.ActiveStatuses))
	for i, st := range bookings.ActiveStatuses {
		active[i] = string(st)
	}
	staffRows, err := s.db.QueryContext(ctx, `
		SELECT COALESCE(staff_id, ''), count(*), COALESCE(sum(total_price), 0),
		       array_agg(DISTINCT status ORDER BY status)
		FROM bookings
		WHERE booking_date BETWEEN $1 AND $2 AND status = ANY($3)
		GROUP BY staff_id
		ORDER BY count(*) DESC, COALESCE(staff_id, '')`, from, to, pq.Array(active))
	if err != nil {
		return nil, fmt.Errorf("reports: by staff: %w", err)
	}
	defer staffRows.Close()
	for staffRows.Next() {
		var row StaffTotals
		if err := staffRows.Scan(&row.StaffID, &row.Count, &row.Revenue, pq.Array(&row.Statuses)); err != nil {
			return nil, fmt.Errorf("reports: scan staff: %w", err)
		}
		if row.Statuses == nil {
			row.Statuses = []string{}
		}
		summary.ByStaff = append(summary.ByStaff, row)
	}
	if err := staffRows.Err(); err != nil {
		return nil, fmt.Errorf("reports: by staff: %w", err)
	}
	return summary, nil
}
