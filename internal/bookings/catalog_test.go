package bookings

import (
	"context"
	"errors"
	"testing"
)

func TestParseStaticCatalog(t *testing.T) {
	cat, err := ParseStaticCatalog(`[
		{"serviceId":"facial-30","name":"Express Facial","durationMinutes":30,"price":300000,"discountedPrice":250000},
		{"serviceId":"massage-60","name":"Hot Stone","category":"massage","durationMinutes":60,"price":500000}
	]`)
	if err != nil {
		t.Fatalf("ParseStaticCatalog returned error: %v", err)
	}
	facial, err := cat.Lookup(context.Background(), "facial-30")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if facial.FinalPrice() != 250000 {
		t.Fatalf("expected discounted price, got %d", facial.FinalPrice())
	}
	massage, _ := cat.Lookup(context.Background(), "massage-60")
	if massage.FinalPrice() != 500000 {
		t.Fatalf("expected list price, got %d", massage.FinalPrice())
	}
	if _, err := cat.Lookup(context.Background(), "nope"); !errors.Is(err, ErrServiceNotFound) {
		t.Fatalf("expected ErrServiceNotFound, got %v", err)
	}
}

func TestStaticCatalogRejectsBadEntries(t *testing.T) {
	if _, err := ParseStaticCatalog(`[{"serviceId":"x","name":"X","durationMinutes":0}]`); err == nil {
		t.Fatalf("expected error for zero duration")
	}
	if _, err := ParseStaticCatalog(`not json`); err == nil {
		t.Fatalf("expected parse error")
	}
	cat, err := ParseStaticCatalog("")
	if err != nil {
		t.Fatalf("empty catalog: %v", err)
	}
	if _, err := cat.Lookup(context.Background(), "x"); !errors.Is(err, ErrServiceNotFound) {
		t.Fatalf("expected not found from empty catalog")
	}
}
