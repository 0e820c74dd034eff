package bookings

import (
	"context"
	"errors"
	"regexp"
	"testing"
)

func sequence(values ...string) func() (string, error) {
	i := 0
	return func() (string, error) {
		v := values[i%len(values)]
		i++
		return v, nil
	}
}

func TestIDGeneratorFormat(t *testing.T) {
	gen := NewIDGenerator(0)
	id, err := gen.Generate(context.Background(), func(context.Context, Identifier) error { return nil })
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if !regexp.MustCompile(`^BID-[1-9]\d{5}$`).MatchString(id.BookingID) {
		t.Fatalf("unexpected booking id %q", id.BookingID)
	}
	if id.BookingCode != "BCODE-"+id.BookingID[4:] {
		t.Fatalf("code %q does not pair with %q", id.BookingCode, id.BookingID)
	}
}

func TestIDGeneratorRetriesDuplicates(t *testing.T) {
	gen := NewIDGenerator(5).WithDigits(sequence("111111", "111111", "222222"))
	var tried []string
	id, err := gen.Generate(context.Background(), func(_ context.Context, id Identifier) error {
		tried = append(tried, id.BookingID)
		if id.BookingID == "BID-111111" {
			return ErrDuplicateID
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if id.BookingID != "BID-222222" || len(tried) != 3 {
		t.Fatalf("expected third attempt to win, got %s after %v", id.BookingID, tried)
	}
}

func TestIDGeneratorExhausts(t *testing.T) {
	gen := NewIDGenerator(3).WithDigits(sequence("123456"))
	attempts := 0
	_, err := gen.Generate(context.Background(), func(context.Context, Identifier) error {
		attempts++
		return ErrDuplicateID
	})
	if !errors.Is(err, ErrIDExhausted) {
		t.Fatalf("expected ErrIDExhausted, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestIDGeneratorStopsOnOtherErrors(t *testing.T) {
	boom := errors.New("db down")
	attempts := 0
	_, err := NewIDGenerator(5).Generate(context.Background(), func(context.Context, Identifier) error {
		attempts++
		return boom
	})
	if !errors.Is(err, boom) || attempts != 1 {
		t.Fatalf("expected immediate failure, got %v after %d attempts", err, attempts)
	}
}
