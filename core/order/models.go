package order

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/chakula/core"
)

// Status is an order's position in the kitchen pipeline.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// transitions is the authoritative status machine. Cancellation is only
// possible before the kitchen starts preparing.
var transitions = map[Status][]Status{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusPreparing, StatusCancelled},
	StatusPreparing: {StatusReady},
	StatusReady:     {StatusDelivered},
}

// CanTransition reports whether `to` is a legal next status.
func (s Status) CanTransition(to Status) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusPreparing, StatusReady, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Payment statuses
const (
	PayUnpaid   = "unpaid"
	PayPaid     = "paid"
	PayRefunded = "refunded"
)

type (
	// Line snapshots a menu item at order time; later menu edits do not
	// change what the customer agreed to pay.
	Line struct {
		MenuItemID string `json:"menu_item_id"`
		Name       string `json:"name"`
		UnitPrice  int64  `json:"unit_price"` // kobo
		Quantity   int    `json:"quantity"`
		LineTotal  int64  `json:"line_total"` // kobo
	}

	Order struct {
		ID            string    `json:"id"`
		Ref           string    `json:"ref"` // human reference, doubles as the charge reference prefix
		CustomerID    string    `json:"customer_id"`
		VendorID      string    `json:"vendor_id"`
		Lines         []Line    `json:"lines"`
		Subtotal      int64     `json:"subtotal"`     // kobo
		DeliveryFee   int64     `json:"delivery_fee"` // kobo
		Total         int64     `json:"total"`        // kobo
		Status        Status    `json:"status"`
		PaymentStatus string    `json:"payment_status"`
		Address       string    `json:"address"`
		Phone         string    `json:"phone"`
		Note          string    `json:"note"`
		CreatedAt     time.Time `json:"created_at"` // UTC
		UpdatedAt     time.Time `json:"updated_at"` // UTC
	}
)

func (o *Order) IsPaid() bool { return o.PaymentStatus == PayPaid }

// NewOrder is a customer's cart at checkout.
type NewOrder struct {
	VendorID string         `json:"vendor_id" validate:"required"`
	Items    []NewOrderItem `json:"items" validate:"required,min=1,dive"`
	Address  string         `json:"address" validate:"required"`
	Phone    string         `json:"phone" validate:"required,min=7"`
	Note     string         `json:"note"`
}

type NewOrderItem struct {
	MenuItemID string `json:"menu_item_id" validate:"required"`
	Quantity   int    `json:"quantity" validate:"required,min=1,max=50"`
}

func (no *NewOrder) Validate(validate *validator.Validate) error {
	no.Address = core.CleanString(no.Address)
	no.Phone = core.CleanString(no.Phone)
	no.Note = core.CleanString(no.Note)
	return validate.Struct(no)
}

// AdvanceOrder asks for a status transition.
type AdvanceOrder struct {
	Status Status `json:"status" validate:"required,orderstatus"`
}

func (ao *AdvanceOrder) Validate(validate *validator.Validate) error {
	ao.Status = Status(core.CleanString(string(ao.Status), true /* lower */))
	return validate.Struct(ao)
}

type QueryFilter struct {
	CustomerID    string    `query:"-"`
	VendorID      string    `query:"-"`
	Status        Status    `query:"status"`
	PaymentStatus string    `query:"payment_status"`
	CreatedFrom   time.Time `query:"created_from"`
	CreatedTo     time.Time `query:"created_to"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.CustomerID == "" && qf.VendorID == "" && qf.Status == "" &&
		qf.PaymentStatus == "" && qf.CreatedFrom.IsZero() && qf.CreatedTo.IsZero()
}
