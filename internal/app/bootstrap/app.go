package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/spa-booking/internal/api/router"
	"github.com/wolfman30/spa-booking/internal/bookings"
	appconfig "github.com/wolfman30/spa-booking/internal/config"
	httpmiddleware "github.com/wolfman30/spa-booking/internal/http/middleware"
	"github.com/wolfman30/spa-booking/internal/notify"
	"github.com/wolfman30/spa-booking/internal/observability/metrics"
	"github.com/wolfman30/spa-booking/internal/payments"
	"github.com/wolfman30/spa-booking/internal/reports"
	"github.com/wolfman30/spa-booking/pkg/logging"
)

// Deps are the externally constructed clients the API process hands to Build.
type Deps struct {
	Logger   *logging.Logger
	Registry *prometheus.Registry
	// SES is only consulted when EMAIL_PROVIDER=ses.
	SES notify.SESAPI
	// Pool and Redis override the connections Build would otherwise open.
	Pool  *pgxpool.Pool
	Redis *redis.Client
}

// App is the assembled API: its HTTP handler plus the resources to release on shutdown.
type App struct {
	Handler  http.Handler
	Bookings *bookings.Service
	Payments *payments.Service

	pool      *pgxpool.Pool
	ownsPool  bool
	reportsDB *sql.DB
	redis     *redis.Client
	ownsRedis bool
	limiter   *httpmiddleware.RateLimiter
	logger    *logging.Logger
}

// Build wires stores, services and handlers from configuration.
// Without DATABASE_URL every store is in memory.
func Build(ctx context.Context, cfg *appconfig.Config, deps Deps) (*App, error) {
	if cfg == nil {
		return nil, errors.New("bootstrap: missing config")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	reg := deps.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	app := &App{logger: logger, pool: deps.Pool, redis: deps.Redis}

	if app.pool == nil {
		pool, err := BuildPostgresPool(ctx, cfg)
		if err != nil {
			return nil, err
		}
		app.pool, app.ownsPool = pool, pool != nil
	}
	if app.redis == nil {
		app.redis = BuildRedisClient(ctx, cfg, logger, true)
		app.ownsRedis = app.redis != nil
	}

	bookingMetrics := metrics.NewBookingMetrics(reg)
	paymentMetrics := metrics.NewPaymentMetrics(reg)

	var (
		bookingRepo bookings.Repository
		catalog     bookings.Catalog
		paymentRepo payments.Repository
		settlement  payments.SettlementStore
	)
	if app.pool != nil {
		bookingRepo = bookings.NewPostgresRepository(app.pool)
		catalog = bookings.NewPostgresCatalog(app.pool)
		paymentRepo = payments.NewPostgresRepository(app.pool)
		settlement = payments.NewPostgresSettlement(app.pool)
		logger.Info("using postgres stores")
	} else {
		static, err := bookings.ParseStaticCatalog(cfg.ServiceCatalogJSON)
		if err != nil {
			app.Close()
			return nil, err
		}
		memBookings := bookings.NewInMemoryRepository()
		memPayments := payments.NewInMemoryRepository()
		bookingRepo, catalog, paymentRepo = memBookings, static, memPayments
		settlement = payments.NewInMemorySettlement(memPayments, memBookings)
		logger.Warn("DATABASE_URL not set; using in-memory stores")
	}

	sender, provider, reason := BuildEmailSender(cfg, logger, deps.SES)
	if reason != "" {
		logger.Warn("booking confirmation emails are logged only", "provider", provider, "reason", reason)
	}
	notifier := notify.NewService(sender, logger).WithHistoryURL(historyURL(cfg.PublicBaseURL))

	bookingSvc := bookings.NewService(bookingRepo, catalog, logger).
		WithNotifier(notifier).
		WithSlotCache(bookings.NewSlotCache(app.redis, cfg.SlotCacheTTL, logger)).
		WithMetrics(bookingMetrics).
		WithIDGenerator(bookings.NewIDGenerator(cfg.BookingIDMaxAttempts)).
		WithCurrency(cfg.BookingCurrency).
		WithNotifyTimeout(cfg.NotifyTimeout)
	app.Bookings = bookingSvc

	gateway, gatewayName, err := BuildCheckoutGateway(cfg, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	reconciler := payments.NewReconciler(settlement, logger).WithMetrics(paymentMetrics)
	velocity := payments.NewVelocityChecker(app.redis, payments.VelocityConfig{
		MaxCheckoutsPerCustomer: cfg.CheckoutVelocityMax,
		CheckoutWindow:          cfg.CheckoutVelocityWindow,
		Enabled:                 app.redis != nil,
	}, logger)
	paymentSvc := payments.NewService(paymentRepo, gateway, bookingSvc, reconciler, logger).
		WithMetrics(paymentMetrics).
		WithVelocity(velocity).
		WithProvider(gatewayName).
		WithCurrency(cfg.BookingCurrency).
		WithDescriptionLimit(cfg.CheckoutDescriptionLimit)
	bookingSvc.WithPaymentVerifier(paymentSvc)
	app.Payments = paymentSvc

	routerCfg := &router.Config{
		Logger:             logger,
		BookingsHandler:    bookings.NewHandler(bookingSvc, logger),
		PaymentsHandler:    payments.NewHandler(paymentSvc, logger),
		PayOSWebhook:       payments.NewPayOSWebhookHandler(reconciler, cfg.PayOSChecksumKey, logger),
		PaymentRedirect:    payments.NewRedirectHandler(paymentRepo, logger),
		MetricsHandler:     promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		HealthChecks:       app.healthChecks(),
		AuthSecret:         cfg.AuthJWTSecret,
		AdminAuthSecret:    cfg.AdminJWTSecret,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	}
	if cfg.AllowFakePayments {
		routerCfg.FakePayments = payments.NewFakePaymentsHandler(paymentRepo, reconciler, logger)
	}
	if cfg.WebhookRateLimit > 0 {
		app.limiter = httpmiddleware.NewRateLimiter(cfg.WebhookRateLimit, cfg.WebhookRateBurst)
		routerCfg.WebhookRateLimiter = app.limiter
	}
	if app.pool != nil {
		db, err := OpenReportsDB(cfg)
		if err != nil {
			app.Close()
			return nil, err
		}
		app.reportsDB = db
		routerCfg.ReportsHandler = reports.NewHandler(reports.NewStore(db), logger)
	}

	app.Handler = router.New(routerCfg)
	return app, nil
}

func (a *App) healthChecks() map[string]router.HealthCheck {
	checks := map[string]router.HealthCheck{}
	if a.pool != nil {
		pool := a.pool
		checks["postgres"] = func(ctx context.Context) error { return pool.Ping(ctx) }
	}
	if a.redis != nil {
		client := a.redis
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}
	return checks
}

// Close waits for in-flight notifications and releases connections Build opened.
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Bookings != nil {
		a.Bookings.Wait()
	}
	if a.limiter != nil {
		a.limiter.Stop()
	}
	if a.reportsDB != nil {
		if err := a.reportsDB.Close(); err != nil {
			a.logger.Warn("close reports db", "error", err)
		}
	}
	if a.ownsRedis && a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("close redis", "error", err)
		}
	}
	if a.ownsPool && a.pool != nil {
		a.pool.Close()
	}
}

func historyURL(publicBaseURL string) string {
	base := strings.TrimRight(strings.TrimSpace(publicBaseURL), "/")
	if base == "" {
		return ""
	}
	return fmt.Sprintf("%s/bookings/me", base)
}
