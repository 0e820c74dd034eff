package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/spa-booking/internal/bookings"
	httpmiddleware "github.com/wolfman30/spa-booking/internal/http/middleware"
	"github.com/wolfman30/spa-booking/internal/payments"
	"github.com/wolfman30/spa-booking/internal/reports"
	"github.com/wolfman30/spa-booking/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger          *logging.Logger
	BookingsHandler *bookings.Handler
	PaymentsHandler *payments.Handler
	PayOSWebhook    *payments.PayOSWebhookHandler
	PaymentRedirect *payments.RedirectHandler
	FakePayments    *payments.FakePaymentsHandler
	ReportsHandler  *reports.Handler
	MetricsHandler  http.Handler
	HealthChecks    map[string]HealthCheck

	AuthSecret         string
	AdminAuthSecret    string
	CORSAllowedOrigins []string

	// Webhook rate limiting (requests per second and burst per client IP).
	WebhookRateLimiter *httpmiddleware.RateLimiter
	RequestTimeout     time.Duration
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	if cfg.BookingsHandler == nil || cfg.PaymentsHandler == nil {
		panic("router: bookings and payments handlers required")
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	// Public endpoints (gateway callbacks, health, metrics)
	r.Group(func(public chi.Router) {
		public.Get("/health", healthHandler(cfg.HealthChecks))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
		if cfg.PayOSWebhook != nil {
			public.Route("/webhooks/payos", func(r chi.Router) {
				if cfg.WebhookRateLimiter != nil {
					r.Use(cfg.WebhookRateLimiter.Middleware)
				}
				r.Post("/", cfg.PayOSWebhook.Handle)
				r.Get("/", cfg.PayOSWebhook.Ping)
			})
		}
		if cfg.PaymentRedirect != nil {
			public.Get("/pay/{code}", cfg.PaymentRedirect.Handle)
		}
	})

	admin := httpmiddleware.AdminJWT(cfg.AdminAuthSecret)
	authenticate := httpmiddleware.Authenticate(cfg.AuthSecret, cfg.Logger)

	r.Route("/bookings", func(r chi.Router) {
		r.With(admin).Get("/", cfg.BookingsHandler.List)
		r.With(admin).Delete("/{bookingID}", cfg.BookingsHandler.Delete)
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			cfg.BookingsHandler.Routes(r)
		})
	})

	r.Route("/payments", func(r chi.Router) {
		r.With(admin).Get("/", cfg.PaymentsHandler.List)
		r.With(admin).Put("/{orderCode}/status", cfg.PaymentsHandler.UpdateStatus)
		if cfg.FakePayments != nil {
			r.Mount("/fake", cfg.FakePayments.Routes())
		}
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			cfg.PaymentsHandler.Routes(r)
		})
	})

	if cfg.ReportsHandler != nil {
		r.Route("/admin", func(r chi.Router) {
			r.Use(admin)
			r.Get("/reports/bookings", cfg.ReportsHandler.Bookings)
		})
	}

	return r
}
