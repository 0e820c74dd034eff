package bookings

import "testing"

func TestParseClock(t *testing.T) {
	cases := map[string]ClockTime{
		"00:00": 0,
		"09:40": 9*60 + 40,
		"9:05":  9*60 + 5,
		"23:59": 23*60 + 59,
		"24:00": EndOfDay,
	}
	for raw, want := range cases {
		got, err := ParseClock(raw)
		if err != nil {
			t.Fatalf("ParseClock(%q) error: %v", raw, err)
		}
		if got != want {
			t.Fatalf("ParseClock(%q) = %d, want %d", raw, got, want)
		}
	}
	for _, bad := range []string{"", "9", "09:60", "24:01", "25:00", "ab:cd", "09:5", "-1:00"} {
		if _, err := ParseClock(bad); err == nil {
			t.Fatalf("ParseClock(%q) expected error", bad)
		}
	}
}

func TestClockAddCrossesHour(t *testing.T) {
	end, err := MustParseClock("09:40").Add(30)
	if err != nil {
		t.Fatalf("Add returned error: %v", err)
	}
	if end.String() != "10:10" {
		t.Fatalf("expected 10:10, got %s", end)
	}
}

func TestClockAddRejectsPastMidnight(t *testing.T) {
	if _, err := MustParseClock("23:30").Add(45); err == nil {
		t.Fatalf("expected error for slot crossing midnight")
	}
	if end, err := MustParseClock("23:30").Add(30); err != nil || end != EndOfDay {
		t.Fatalf("expected 24:00 end, got %s err=%v", end, err)
	}
	if _, err := MustParseClock("10:00").Add(0); err == nil {
		t.Fatalf("expected error for zero duration")
	}
}

func TestSlotOverlaps(t *testing.T) {
	existing := Slot{StartTime: MustParseClock("09:00"), EndTime: MustParseClock("10:00")}
	cases := []struct {
		start, end string
		want       bool
	}{
		{"09:30", "10:30", true},
		{"08:30", "09:30", true},
		{"09:15", "09:45", true},
		{"08:00", "11:00", true},
		{"10:00", "11:00", false},
		{"08:00", "09:00", false},
		{"11:00", "12:00", false},
	}
	for _, tc := range cases {
		if got := existing.Overlaps(MustParseClock(tc.start), MustParseClock(tc.end)); got != tc.want {
			t.Fatalf("overlap %s-%s = %v, want %v", tc.start, tc.end, got, tc.want)
		}
	}
}

func TestClockJSON(t *testing.T) {
	c := MustParseClock("07:05")
	data, err := c.MarshalJSON()
	if err != nil || string(data) != `"07:05"` {
		t.Fatalf("unexpected json %s err=%v", data, err)
	}
	var back ClockTime
	if err := back.UnmarshalJSON([]byte(`"18:30"`)); err != nil || back.String() != "18:30" {
		t.Fatalf("unmarshal got %s err=%v", back, err)
	}
}
