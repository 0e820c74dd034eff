package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("BOOKING_CURRENCY", "")
	t.Setenv("EMAIL_PROVIDER", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.UsesPostgres() {
		t.Fatalf("expected in-memory stores without DATABASE_URL")
	}
	if cfg.BookingCurrency != "VND" {
		t.Fatalf("expected VND currency, got %s", cfg.BookingCurrency)
	}
	if cfg.BookingIDMaxAttempts != 5 {
		t.Fatalf("expected 5 id attempts, got %d", cfg.BookingIDMaxAttempts)
	}
	if cfg.CheckoutDescriptionLimit != 25 {
		t.Fatalf("expected description limit 25, got %d", cfg.CheckoutDescriptionLimit)
	}
	if cfg.EmailProvider != "stub" {
		t.Fatalf("expected stub email provider, got %s", cfg.EmailProvider)
	}
	if cfg.SlotCacheTTL != 5*time.Minute {
		t.Fatalf("expected default slot cache ttl, got %s", cfg.SlotCacheTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("DATABASE_URL", "postgres://user@host/db")
	t.Setenv("BOOKING_CURRENCY", "usd")
	t.Setenv("BOOKING_ID_MAX_ATTEMPTS", "9")
	t.Setenv("SLOT_CACHE_TTL", "45s")
	t.Setenv("EMAIL_PROVIDER", " SES ")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://spa.example, ,https://admin.spa.example")
	t.Setenv("WEBHOOK_RATE_LIMIT", "2.5")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if !cfg.UsesPostgres() {
		t.Fatalf("expected postgres when DATABASE_URL set")
	}
	if cfg.BookingCurrency != "USD" {
		t.Fatalf("expected upper-cased currency, got %s", cfg.BookingCurrency)
	}
	if cfg.BookingIDMaxAttempts != 9 {
		t.Fatalf("expected id attempts override, got %d", cfg.BookingIDMaxAttempts)
	}
	if cfg.SlotCacheTTL != 45*time.Second {
		t.Fatalf("expected ttl override, got %s", cfg.SlotCacheTTL)
	}
	if cfg.EmailProvider != "ses" {
		t.Fatalf("expected normalized provider, got %q", cfg.EmailProvider)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://admin.spa.example" {
		t.Fatalf("unexpected cors origins %v", cfg.CORSAllowedOrigins)
	}
	if cfg.WebhookRateLimit != 2.5 {
		t.Fatalf("expected rate override, got %v", cfg.WebhookRateLimit)
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("BOOKING_ID_MAX_ATTEMPTS", "many")
	t.Setenv("NOTIFY_TIMEOUT", "soon")
	t.Setenv("CHECKOUT_VELOCITY_WINDOW", "")
	t.Setenv("CHECKOUT_VELOCITY_MAX", "lots")
	cfg := Load()
	if cfg.BookingIDMaxAttempts != 5 {
		t.Fatalf("expected fallback attempts, got %d", cfg.BookingIDMaxAttempts)
	}
	if cfg.NotifyTimeout != 10*time.Second {
		t.Fatalf("expected fallback timeout, got %s", cfg.NotifyTimeout)
	}
	if cfg.CheckoutVelocityMax != 10 || cfg.CheckoutVelocityWindow != time.Hour {
		t.Fatalf("expected velocity defaults, got %d per %s", cfg.CheckoutVelocityMax, cfg.CheckoutVelocityWindow)
	}
}
