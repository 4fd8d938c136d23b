package payment

import "time"

// Payment statuses
const (
	StatusPending = "pending"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

type (
	// Payment is one checkout attempt against an order. An order may carry
	// several attempts but settles at most once.
	Payment struct {
		ID         string    `json:"id"`
		OrderID    string    `json:"order_id"`
		VendorID   string    `json:"vendor_id"`
		CustomerID string    `json:"customer_id"`
		Reference  string    `json:"reference"` // gateway charge reference
		Amount     int64     `json:"amount"`    // kobo
		Commission int64     `json:"commission"`
		VendorNet  int64     `json:"vendor_net"`
		Status     string    `json:"status"`
		Channel    string    `json:"channel,omitempty"`
		GatewayRef string    `json:"-"`
		PaidAt     time.Time `json:"paid_at"`
		CreatedAt  time.Time `json:"created_at"` // UTC
		UpdatedAt  time.Time `json:"updated_at"` // UTC
	}

	// CheckoutIntent is what the customer app needs to hand off to the gateway.
	CheckoutIntent struct {
		Reference        string `json:"reference"`
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
	}
)

type QueryFilter struct {
	OrderID  string `query:"-"`
	VendorID string `query:"-"`
	Status   string `query:"status"`
}
