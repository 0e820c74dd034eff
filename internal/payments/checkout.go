package payments

import "context"

// CheckoutParams is what the gateway needs to open a payment link.
type CheckoutParams struct {
	OrderCode   int64
	Amount      int64
	Description string
	ReturnURL   string
	CancelURL   string
	BuyerName   string
	Items       []CheckoutItem
}

// CheckoutItem is a line shown on the gateway's checkout page.
type CheckoutItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price"`
}

// CheckoutResponse is the gateway's answer to a checkout request.
type CheckoutResponse struct {
	CheckoutURL string
	QRCode      string
	OrderCode   int64
	ProviderID  string
}

// CheckoutGateway creates hosted payment links.
type CheckoutGateway interface {
	CreatePaymentLink(ctx context.Context, params CheckoutParams) (*CheckoutResponse, error)
}

// StatusChecker asks the gateway for the current state of an order. Implemented by gateways
// that support polling.
type StatusChecker interface {
	PaymentStatus(ctx context.Context, orderCode int64) (Status, error)
}
