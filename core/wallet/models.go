package wallet

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Ledger entry kinds
const (
	KindCredit = "credit"
	KindDebit  = "debit"
)

// Withdrawal statuses
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusSuccess    = "success"
	StatusFailed     = "failed"
	StatusReversed   = "reversed"
)

type (
	// Entry is one line of a vendor's append-only wallet ledger. The balance
	// is always the sum of entries, never stored on its own.
	Entry struct {
		ID        string    `json:"id"`
		VendorID  string    `json:"vendor_id"`
		Kind      string    `json:"kind"`
		Amount    int64     `json:"amount"` // kobo, always positive
		Reference string    `json:"reference"`
		OrderID   string    `json:"order_id,omitempty"`
		Note      string    `json:"note,omitempty"`
		CreatedAt time.Time `json:"created_at"` // UTC
	}

	Withdrawal struct {
		ID            string    `json:"id"`
		VendorID      string    `json:"vendor_id"`
		Amount        int64     `json:"amount"` // kobo
		Status        string    `json:"status"`
		Reference     string    `json:"reference"`
		RecipientCode string    `json:"-"`
		TransferCode  string    `json:"-"`
		FailureReason string    `json:"failure_reason,omitempty"`
		CreatedAt     time.Time `json:"created_at"` // UTC
		UpdatedAt     time.Time `json:"updated_at"` // UTC
	}

	// Balance is a vendor's wallet summary.
	Balance struct {
		VendorID  string `json:"vendor_id"`
		Available int64  `json:"available"` // kobo
	}
)

// NewWithdrawal is a vendor's payout request.
type NewWithdrawal struct {
	Amount int64 `json:"amount" validate:"required,gt=0"` // kobo
}

func (nw NewWithdrawal) Validate(validate *validator.Validate) error {
	return validate.Struct(nw)
}
