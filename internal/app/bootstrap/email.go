package bootstrap

import (
	"strings"

	appconfig "github.com/wolfman30/spa-booking/internal/config"
	"github.com/wolfman30/spa-booking/internal/notify"
	"github.com/wolfman30/spa-booking/pkg/logging"
)

// BuildEmailSender selects the confirmation email provider from EMAIL_PROVIDER.
// It returns the sender, the provider name in use and, when it fell back to the
// stub, the reason why.
func BuildEmailSender(cfg *appconfig.Config, logger *logging.Logger, ses notify.SESAPI) (notify.EmailSender, string, string) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		return notify.NewStubEmailSender(logger), "stub", "missing config"
	}

	var reason string
	switch strings.ToLower(strings.TrimSpace(cfg.EmailProvider)) {
	case "ses":
		if sender := notify.NewSESSender(ses, notify.SESConfig{FromEmail: cfg.SESFromEmail}, logger); sender != nil {
			return sender, "ses", ""
		}
		reason = "ses client not configured"
	case "sendgrid":
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sender != nil {
			return sender, "sendgrid", ""
		}
		reason = "SENDGRID_API_KEY not set"
	case "", "stub":
		reason = "email disabled"
	default:
		reason = "unknown EMAIL_PROVIDER " + cfg.EmailProvider
	}
	return notify.NewStubEmailSender(logger), "stub", reason
}
