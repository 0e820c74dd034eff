package payments

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/wolfman30/spa-booking/pkg/logging"
)

// FakeCheckoutService is a dev/demo gateway that links to an internal page where the
// payment can be "completed" without PayOS credentials.
//
// Only enable it behind ALLOW_FAKE_PAYMENTS; never in production.
type FakeCheckoutService struct {
	publicBaseURL string
	logger        *logging.Logger
}

func NewFakeCheckoutService(publicBaseURL string, logger *logging.Logger) *FakeCheckoutService {
	if logger == nil {
		logger = logging.Default()
	}
	return &FakeCheckoutService{
		publicBaseURL: strings.TrimRight(strings.TrimSpace(publicBaseURL), "/"),
		logger:        logger,
	}
}

func (s *FakeCheckoutService) CreatePaymentLink(ctx context.Context, params CheckoutParams) (*CheckoutResponse, error) {
	if params.OrderCode <= 0 {
		return nil, fmt.Errorf("payments: fake checkout requires an order code")
	}
	if s.publicBaseURL == "" {
		return nil, fmt.Errorf("payments: fake checkout requires PUBLIC_BASE_URL")
	}
	if !isValidBaseURL(s.publicBaseURL) {
		return nil, fmt.Errorf("payments: fake checkout PUBLIC_BASE_URL must be an absolute http(s) URL")
	}

	s.logger.Debug("fake checkout link issued", "order_code", params.OrderCode, "amount", params.Amount)
	return &CheckoutResponse{
		CheckoutURL: fmt.Sprintf("%s/payments/fake/%d", s.publicBaseURL, params.OrderCode),
		OrderCode:   params.OrderCode,
		ProviderID:  fmt.Sprintf("fake:%d", params.OrderCode),
	}, nil
}

// PaymentStatus reports pending; fake payments settle only through the demo page.
func (s *FakeCheckoutService) PaymentStatus(ctx context.Context, orderCode int64) (Status, error) {
	return StatusPending, nil
}

func isValidBaseURL(value string) bool {
	parsed, err := url.Parse(value)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return false
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
		return true
	default:
		return false
	}
}
