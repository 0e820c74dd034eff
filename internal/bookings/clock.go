package bookings

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// EndOfDay is 24:00, the latest representable end time.
const EndOfDay ClockTime = 24 * 60

// ClockTime is a same-day wall-clock time stored as minutes after midnight.
type ClockTime int

// ParseClock parses "HH:MM" (00:00 through 24:00).
func ParseClock(raw string) (ClockTime, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok || len(mm) != 2 || hh == "" || len(hh) > 2 {
		return 0, fmt.Errorf("bookings: invalid clock time %q", raw)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("bookings: invalid clock hour %q", raw)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("bookings: invalid clock minute %q", raw)
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("bookings: clock time out of range %q", raw)
	}
	return ClockTime(h*60 + m), nil
}

// MustParseClock panics on malformed input. Intended for tests and constants.
func MustParseClock(raw string) ClockTime {
	c, err := ParseClock(raw)
	if err != nil {
		panic(err)
	}
	return c
}

// Add returns c shifted by minutes. Results past midnight are rejected since slots are same-day.
func (c ClockTime) Add(minutes int) (ClockTime, error) {
	if minutes <= 0 {
		return 0, fmt.Errorf("bookings: duration must be positive, got %d", minutes)
	}
	end := int(c) + minutes
	if end > int(EndOfDay) {
		return 0, fmt.Errorf("bookings: %s plus %d minutes crosses midnight", c, minutes)
	}
	return ClockTime(end), nil
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ClockTime) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseClock(raw)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseDate validates a calendar date in YYYY-MM-DD form.
func ParseDate(raw string) (time.Time, error) {
	d, err := time.Parse(dateLayout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("bookings: invalid date %q: %w", raw, err)
	}
	return d, nil
}

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

// Slot is a reserved [start,end) interval for one staff member on one date.
type Slot struct {
	StaffID     string    `json:"staffId,omitempty"`
	BookingDate string    `json:"bookingDate"`
	StartTime   ClockTime `json:"startTime"`
	EndTime     ClockTime `json:"endTime"`
}

// Overlaps is the half-open interval test; touching endpoints do not overlap.
func (s Slot) Overlaps(start, end ClockTime) bool {
	return s.StartTime < end && s.EndTime > start
}

func (s Slot) String() string {
	return s.StartTime.String() + "-" + s.EndTime.String()
}
