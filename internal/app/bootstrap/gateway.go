package bootstrap

import (
	"errors"
	"strings"

	appconfig "github.com/wolfman30/spa-booking/internal/config"
	"github.com/wolfman30/spa-booking/internal/payments"
	"github.com/wolfman30/spa-booking/pkg/logging"
)

// ErrGatewayNotConfigured is returned in production when no PayOS credentials are set.
var ErrGatewayNotConfigured = errors.New("bootstrap: PayOS credentials are required in production")

// BuildCheckoutGateway picks the checkout gateway and the provider name stored on payments.
//
// ALLOW_FAKE_PAYMENTS wins outright. Otherwise PayOS is used when its credentials are set;
// without them non-production environments fall back to a dry-run PayOS client.
func BuildCheckoutGateway(cfg *appconfig.Config, logger *logging.Logger) (payments.CheckoutGateway, string, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		return nil, "", errors.New("bootstrap: missing config")
	}
	if cfg.AllowFakePayments {
		logger.Warn("fake payments enabled; checkout links settle without PayOS")
		return payments.NewFakeCheckoutService(cfg.PublicBaseURL, logger), "fake", nil
	}

	hasCredentials := strings.TrimSpace(cfg.PayOSClientID) != "" && strings.TrimSpace(cfg.PayOSAPIKey) != "" &&
		strings.TrimSpace(cfg.PayOSChecksumKey) != ""
	if !hasCredentials {
		if isProduction(cfg.Env) {
			return nil, "", ErrGatewayNotConfigured
		}
		logger.Warn("PayOS credentials missing; using dry-run gateway", "env", cfg.Env)
		return payments.NewPayOSCheckoutService("", "", "", logger).WithDryRun(true), "payos", nil
	}

	gateway := payments.NewPayOSCheckoutService(cfg.PayOSClientID, cfg.PayOSAPIKey, cfg.PayOSChecksumKey, logger).
		WithBaseURL(cfg.PayOSBaseURL).
		WithDryRun(cfg.PayOSDryRun)
	return gateway, "payos", nil
}

func isProduction(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod":
		return true
	default:
		return false
	}
}
