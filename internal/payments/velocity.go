package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/spa-booking/pkg/logging"
)

// ErrVelocityExceeded is returned when a customer opens too many checkouts in one window.
var ErrVelocityExceeded = errors.New("payments: too many checkout attempts")

// VelocityChecker limits how often one customer can open payment links.
type VelocityChecker struct {
	redis  *redis.Client
	logger *logging.Logger
	config VelocityConfig
}

// VelocityConfig contains velocity check configuration.
type VelocityConfig struct {
	// Max checkout links per customer per window
	MaxCheckoutsPerCustomer int
	CheckoutWindow          time.Duration
	Enabled                 bool
}

// DefaultVelocityConfig returns default velocity limits.
func DefaultVelocityConfig() VelocityConfig {
	return VelocityConfig{
		MaxCheckoutsPerCustomer: 10,
		CheckoutWindow:          time.Hour,
		Enabled:                 true,
	}
}

// VelocityResult contains the result of a velocity check.
type VelocityResult struct {
	Allowed      bool
	CurrentCount int
	MaxAllowed   int
	WindowExpiry time.Time
	Message      string
}

// NewVelocityChecker returns nil when redisClient is nil; a nil checker allows everything.
func NewVelocityChecker(redisClient *redis.Client, config VelocityConfig, logger *logging.Logger) *VelocityChecker {
	if redisClient == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if config.CheckoutWindow <= 0 {
		config.CheckoutWindow = DefaultVelocityConfig().CheckoutWindow
	}
	return &VelocityChecker{
		redis:  redisClient,
		logger: logger,
		config: config,
	}
}

func checkoutVelocityKey(customer string) string {
	return fmt.Sprintf("velocity:checkout:%s", customer)
}

// CheckCheckoutVelocity counts one checkout attempt for customer.
func (v *VelocityChecker) CheckCheckoutVelocity(ctx context.Context, customer string) (*VelocityResult, error) {
	if v == nil || !v.config.Enabled || v.config.MaxCheckoutsPerCustomer <= 0 || customer == "" {
		return &VelocityResult{Allowed: true}, nil
	}
	ctx, span := paymentsTracer.Start(ctx, "velocity.check_checkout")
	defer span.End()

	key := checkoutVelocityKey(customer)
	count, expiry, err := v.incrementAndGet(ctx, key, v.config.CheckoutWindow)
	if err != nil {
		v.logger.Error("velocity check failed", "error", err, "key", key)
		// Fail open - allow the checkout if Redis is down
		return &VelocityResult{Allowed: true, Message: "velocity check unavailable"}, nil
	}

	result := &VelocityResult{
		Allowed:      count <= v.config.MaxCheckoutsPerCustomer,
		CurrentCount: count,
		MaxAllowed:   v.config.MaxCheckoutsPerCustomer,
		WindowExpiry: expiry,
	}
	if !result.Allowed {
		result.Message = fmt.Sprintf("exceeded %d checkout attempts in %s", v.config.MaxCheckoutsPerCustomer, v.config.CheckoutWindow)
		v.logger.Warn("checkout velocity exceeded",
			"customer", customer,
			"count", count,
			"max", v.config.MaxCheckoutsPerCustomer,
		)
		span.SetAttributes(attribute.Bool("velocity.exceeded", true))
	}
	return result, nil
}

// incrementAndGet increments a counter and returns the new value with expiry time.
func (v *VelocityChecker) incrementAndGet(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	count, err := v.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, time.Time{}, err
	}
	// Set expiry only on first increment
	if count == 1 {
		v.redis.Expire(ctx, key, window)
	}
	ttl, err := v.redis.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		ttl = window
	}
	return int(count), time.Now().Add(ttl), nil
}

// ResetCheckoutVelocity clears the counter for customer (admin use).
func (v *VelocityChecker) ResetCheckoutVelocity(ctx context.Context, customer string) error {
	if v == nil {
		return nil
	}
	return v.redis.Del(ctx, checkoutVelocityKey(customer)).Err()
}

// GetCheckoutStats returns current checkout velocity stats for customer without counting.
func (v *VelocityChecker) GetCheckoutStats(ctx context.Context, customer string) (*VelocityResult, error) {
	if v == nil {
		return &VelocityResult{Allowed: true}, nil
	}
	key := checkoutVelocityKey(customer)
	count, err := v.redis.Get(ctx, key).Int()
	if errors.Is(err, redis.Nil) {
		return &VelocityResult{Allowed: true, MaxAllowed: v.config.MaxCheckoutsPerCustomer}, nil
	}
	if err != nil {
		return nil, err
	}
	ttl, _ := v.redis.TTL(ctx, key).Result()
	return &VelocityResult{
		Allowed:      count < v.config.MaxCheckoutsPerCustomer,
		CurrentCount: count,
		MaxAllowed:   v.config.MaxCheckoutsPerCustomer,
		WindowExpiry: time.Now().Add(ttl),
	}, nil
}
