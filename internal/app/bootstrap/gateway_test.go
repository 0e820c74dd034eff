package bootstrap

import (
	"context"
	"errors"
	"strings"
	"testing"

	appconfig "github.com/wolfman30/spa-booking/internal/config"
	"github.com/wolfman30/spa-booking/internal/payments"
	"github.com/wolfman30/spa-booking/pkg/logging"
)

func TestBuildCheckoutGatewayFake(t *testing.T) {
	gw, name, err := BuildCheckoutGateway(&appconfig.Config{AllowFakePayments: true, PublicBaseURL: "https://spa.example"}, logging.New("error"))
	if err != nil {
		t.Fatalf("BuildCheckoutGateway: %v", err)
	}
	if name != "fake" {
		t.Fatalf("expected fake provider, got %q", name)
	}
	link, err := gw.CreatePaymentLink(context.Background(), payments.CheckoutParams{OrderCode: 123456, Amount: 1000})
	if err != nil || link.CheckoutURL != "https://spa.example/payments/fake/123456" {
		t.Fatalf("unexpected fake link %+v %v", link, err)
	}
}

func TestBuildCheckoutGatewayDryRunOutsideProduction(t *testing.T) {
	gw, name, err := BuildCheckoutGateway(&appconfig.Config{Env: "development"}, logging.New("error"))
	if err != nil || name != "payos" {
		t.Fatalf("expected dry-run payos, got %q %v", name, err)
	}
	link, err := gw.CreatePaymentLink(context.Background(), payments.CheckoutParams{OrderCode: 654321, Amount: 1000})
	if err != nil || !strings.Contains(link.CheckoutURL, "dry-run/654321") {
		t.Fatalf("expected dry-run link, got %+v %v", link, err)
	}
}

func TestBuildCheckoutGatewayRequiresCredentialsInProduction(t *testing.T) {
	_, _, err := BuildCheckoutGateway(&appconfig.Config{Env: "production"}, logging.New("error"))
	if !errors.Is(err, ErrGatewayNotConfigured) {
		t.Fatalf("expected ErrGatewayNotConfigured, got %v", err)
	}
	if _, _, err := BuildCheckoutGateway(nil, nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
}

func TestBuildCheckoutGatewayPayOS(t *testing.T) {
	cfg := &appconfig.Config{
		Env:              "production",
		PayOSClientID:    "client",
		PayOSAPIKey:      "key",
		PayOSChecksumKey: "checksum",
		PayOSBaseURL:     "https://payos.test",
	}
	gw, name, err := BuildCheckoutGateway(cfg, logging.New("error"))
	if err != nil || name != "payos" {
		t.Fatalf("expected payos gateway, got %q %v", name, err)
	}
	if _, ok := gw.(*payments.PayOSCheckoutService); !ok {
		t.Fatalf("expected PayOS client, got %T", gw)
	}
	if _, ok := gw.(payments.StatusChecker); !ok {
		t.Fatalf("PayOS gateway should support status sync")
	}
}
