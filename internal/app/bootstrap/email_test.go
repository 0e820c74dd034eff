package bootstrap

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"

	appconfig "github.com/wolfman30/spa-booking/internal/config"
	"github.com/wolfman30/spa-booking/internal/notify"
)

type nopSES struct{}

func (nopSES) SendEmail(ctx context.Context, in *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	return &sesv2.SendEmailOutput{}, nil
}

func TestBuildEmailSender(t *testing.T) {
	tests := []struct {
		name       string
		cfg        *appconfig.Config
		ses        notify.SESAPI
		wantName   string
		wantReason bool
	}{
		{name: "nil config", cfg: nil, wantName: "stub", wantReason: true},
		{name: "disabled", cfg: &appconfig.Config{}, wantName: "stub", wantReason: true},
		{name: "sendgrid", cfg: &appconfig.Config{EmailProvider: "sendgrid", SendGridAPIKey: "SG.key", SendGridFromEmail: "hi@spa.example"}, wantName: "sendgrid"},
		{name: "sendgrid without key", cfg: &appconfig.Config{EmailProvider: "SendGrid"}, wantName: "stub", wantReason: true},
		{name: "ses", cfg: &appconfig.Config{EmailProvider: "ses", SESFromEmail: "hi@spa.example"}, ses: nopSES{}, wantName: "ses"},
		{name: "ses without client", cfg: &appconfig.Config{EmailProvider: "ses"}, wantName: "stub", wantReason: true},
		{name: "unknown", cfg: &appconfig.Config{EmailProvider: "pigeon"}, wantName: "stub", wantReason: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender, name, reason := BuildEmailSender(tt.cfg, nil, tt.ses)
			if sender == nil {
				t.Fatalf("expected a sender")
			}
			if name != tt.wantName {
				t.Fatalf("expected provider %q, got %q", tt.wantName, name)
			}
			if (reason != "") != tt.wantReason {
				t.Fatalf("unexpected reason %q", reason)
			}
		})
	}
}

func TestBuildEmailSenderTypes(t *testing.T) {
	sender, _, _ := BuildEmailSender(&appconfig.Config{EmailProvider: "ses"}, nil, nopSES{})
	if _, ok := sender.(*notify.SESSender); !ok {
		t.Fatalf("expected SES sender, got %T", sender)
	}
	sender, _, _ = BuildEmailSender(&appconfig.Config{}, nil, nil)
	if _, ok := sender.(*notify.StubEmailSender); !ok {
		t.Fatalf("expected stub sender, got %T", sender)
	}
}
