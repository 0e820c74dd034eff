package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/spa-booking/pkg/logging"
)

var payosTracer = otel.Tracer("spa.internal.payments.payos")

const payosSuccessCode = "00"

// PayOSCheckoutService creates PayOS payment links for completed bookings.
type PayOSCheckoutService struct {
	clientID    string
	apiKey      string
	checksumKey string
	baseURL     string
	httpClient  *http.Client
	logger      *logging.Logger
	dryRun      bool
}

// NewPayOSCheckoutService creates a PayOS client.
func NewPayOSCheckoutService(clientID, apiKey, checksumKey string, logger *logging.Logger) *PayOSCheckoutService {
	if logger == nil {
		logger = logging.Default()
	}
	return &PayOSCheckoutService{
		clientID:    clientID,
		apiKey:      apiKey,
		checksumKey: checksumKey,
		baseURL:     "https://api-merchant.payos.vn",
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		logger:      logger,
	}
}

// WithBaseURL overrides the PayOS API base URL (for testing).
func (s *PayOSCheckoutService) WithBaseURL(baseURL string) *PayOSCheckoutService {
	if baseURL != "" {
		s.baseURL = strings.TrimRight(baseURL, "/")
	}
	return s
}

// WithDryRun returns fake links without calling PayOS.
func (s *PayOSCheckoutService) WithDryRun(enabled bool) *PayOSCheckoutService {
	s.dryRun = enabled
	return s
}

// WithHTTPClient replaces the default 10s-timeout client.
func (s *PayOSCheckoutService) WithHTTPClient(client *http.Client) *PayOSCheckoutService {
	if client != nil {
		s.httpClient = client
	}
	return s
}

type payosCreateRequest struct {
	OrderCode   int64          `json:"orderCode"`
	Amount      int64          `json:"amount"`
	Description string         `json:"description"`
	BuyerName   string         `json:"buyerName,omitempty"`
	Items       []CheckoutItem `json:"items,omitempty"`
	CancelURL   string         `json:"cancelUrl"`
	ReturnURL   string         `json:"returnUrl"`
	Signature   string         `json:"signature"`
}

type payosEnvelope struct {
	Code string          `json:"code"`
	Desc string          `json:"desc"`
	Data json.RawMessage `json:"data"`
}

type payosPaymentLink struct {
	OrderCode     int64  `json:"orderCode"`
	Amount        int64  `json:"amount"`
	Status        string `json:"status"`
	CheckoutURL   string `json:"checkoutUrl"`
	QRCode        string `json:"qrCode"`
	PaymentLinkID string `json:"paymentLinkId"`
	ID            string `json:"id"`
}

// CreatePaymentLink implements CheckoutGateway for PayOS.
func (s *PayOSCheckoutService) CreatePaymentLink(ctx context.Context, params CheckoutParams) (*CheckoutResponse, error) {
	ctx, span := payosTracer.Start(ctx, "payos.create_payment_link")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("spa.order_code", params.OrderCode),
		attribute.Int64("spa.amount", params.Amount),
	)

	if s.dryRun {
		s.logger.Info("payos dry run: skipping payment link creation",
			"order_code", params.OrderCode, "amount", params.Amount)
		return &CheckoutResponse{
			CheckoutURL: fmt.Sprintf("https://pay.payos.vn/dry-run/%d", params.OrderCode),
			OrderCode:   params.OrderCode,
			ProviderID:  fmt.Sprintf("dryrun_%d", params.OrderCode),
		}, nil
	}

	body, err := json.Marshal(payosCreateRequest{
		OrderCode:   params.OrderCode,
		Amount:      params.Amount,
		Description: params.Description,
		BuyerName:   params.BuyerName,
		Items:       params.Items,
		CancelURL:   params.CancelURL,
		ReturnURL:   params.ReturnURL,
		Signature:   checkoutSignature(s.checksumKey, params),
	})
	if err != nil {
		return nil, fmt.Errorf("payments: payos encode: %w", err)
	}

	var link payosPaymentLink
	if err := s.do(ctx, http.MethodPost, "/v2/payment-requests", bytes.NewReader(body), &link); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if link.CheckoutURL == "" {
		return nil, fmt.Errorf("%w: payos response missing checkout url", ErrGateway)
	}
	orderCode := link.OrderCode
	if orderCode == 0 {
		orderCode = params.OrderCode
	}
	return &CheckoutResponse{
		CheckoutURL: link.CheckoutURL,
		QRCode:      link.QRCode,
		OrderCode:   orderCode,
		ProviderID:  link.PaymentLinkID,
	}, nil
}

// PaymentStatus implements StatusChecker by reading the payment link information.
func (s *PayOSCheckoutService) PaymentStatus(ctx context.Context, orderCode int64) (Status, error) {
	ctx, span := payosTracer.Start(ctx, "payos.payment_status")
	defer span.End()

	if s.dryRun {
		return StatusPending, nil
	}
	var link payosPaymentLink
	if err := s.do(ctx, http.MethodGet, fmt.Sprintf("/v2/payment-requests/%d", orderCode), nil, &link); err != nil {
		span.RecordError(err)
		return "", err
	}
	return mapPayOSStatus(link.Status), nil
}

func mapPayOSStatus(raw string) Status {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "PAID":
		return StatusSuccess
	case "CANCELLED", "EXPIRED":
		return StatusCancelled
	case "FAILED":
		return StatusFailed
	default:
		return StatusPending
	}
}

func (s *PayOSCheckoutService) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("payments: payos request: %w", err)
	}
	req.Header.Set("x-client-id", s.clientID)
	req.Header.Set("x-api-key", s.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: payos http: %v", ErrGateway, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: payos api status %d: %s", ErrGateway, resp.StatusCode, string(raw))
	}
	var env payosEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("%w: payos decode: %v", ErrGateway, err)
	}
	if env.Code != payosSuccessCode {
		return fmt.Errorf("%w: payos code %s: %s", ErrGateway, env.Code, env.Desc)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: payos data: %v", ErrGateway, err)
	}
	return nil
}
