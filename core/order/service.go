package order

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/chakula/core"
	"github.com/trezcool/chakula/core/vendor"
)

var (
	// errors
	ErrNotFound           = errors.New("order not found")
	ErrVendorNotAccepting = errors.New("this vendor is not accepting orders")
	ErrItemUnavailable    = errors.New("a menu item in the cart is unavailable")
	ErrInvalidTransition  = errors.New("invalid order status transition")
)

type (
	Repository interface {
		CreateOrder(ctx context.Context, ord Order) (Order, error)
		GetOrderByID(ctx context.Context, id string) (Order, error)
		GetOrderByRef(ctx context.Context, ref string) (Order, error)
		// QueryOrders applies AND on available QueryFilter fields.
		QueryOrders(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Order, error)
		// UpdateOrderStatus persists status and/or payment status; empty values are skipped.
		UpdateOrderStatus(ctx context.Context, id string, status Status, paymentStatus string) (Order, error)
	}

	// Catalog is the slice of the vendor domain that order placement needs.
	Catalog interface {
		GetByID(ctx context.Context, id string) (vendor.Vendor, error)
		MenuItem(ctx context.Context, id string) (vendor.MenuItem, error)
	}

	Service interface {
		Place(ctx context.Context, customerID string, no NewOrder) (Order, error)
		GetByID(ctx context.Context, id string) (Order, error)
		GetByRef(ctx context.Context, ref string) (Order, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Order, error)
		// Advance moves the order to `to`, enforcing the status machine.
		Advance(ctx context.Context, id string, to Status) (Order, error)
		MarkPaid(ctx context.Context, id string) (Order, error)
		MarkRefunded(ctx context.Context, id string) (Order, error)
	}

	service struct {
		repo    Repository
		catalog Catalog
		conf    *core.Config
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, catalog Catalog, conf *core.Config) Service {
	return &service{
		repo:    repo,
		catalog: catalog,
		conf:    conf,
	}
}

func (svc *service) Place(ctx context.Context, customerID string, no NewOrder) (Order, error) {
	vnd, err := svc.catalog.GetByID(ctx, no.VendorID)
	if err != nil {
		return Order{}, err
	}
	if !vnd.IsApproved() {
		return Order{}, core.NewValidationError(ErrVendorNotAccepting)
	}

	// snapshot the cart; totals are always computed server-side
	lines := make([]Line, 0, len(no.Items))
	var subtotal int64
	for _, it := range no.Items {
		item, err := svc.catalog.MenuItem(ctx, it.MenuItemID)
		if err != nil {
			if errors.Cause(err) == vendor.ErrMenuItemNotFound {
				return Order{}, core.NewValidationError(
					err, core.FieldError{Field: "items", Error: err.Error()})
			}
			return Order{}, err
		}
		if item.VendorID != vnd.ID || !item.Available() {
			return Order{}, core.NewValidationError(
				ErrItemUnavailable, core.FieldError{Field: "items", Error: ErrItemUnavailable.Error()})
		}
		lineTotal := item.Price * int64(it.Quantity)
		lines = append(lines, Line{
			MenuItemID: item.ID,
			Name:       item.Name,
			UnitPrice:  item.Price,
			Quantity:   it.Quantity,
			LineTotal:  lineTotal,
		})
		subtotal += lineTotal
	}

	now := time.Now().UTC()
	ord := Order{
		Ref:           core.RandomRef("CHK-", 5),
		CustomerID:    customerID,
		VendorID:      vnd.ID,
		Lines:         lines,
		Subtotal:      subtotal,
		DeliveryFee:   svc.conf.Market.DeliveryFee,
		Total:         subtotal + svc.conf.Market.DeliveryFee,
		Status:        StatusPending,
		PaymentStatus: PayUnpaid,
		Address:       no.Address,
		Phone:         no.Phone,
		Note:          no.Note,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return svc.repo.CreateOrder(ctx, ord)
}

func (svc *service) GetByID(ctx context.Context, id string) (Order, error) {
	return svc.repo.GetOrderByID(ctx, id)
}

func (svc *service) GetByRef(ctx context.Context, ref string) (Order, error) {
	return svc.repo.GetOrderByRef(ctx, core.CleanString(ref))
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Order, error) {
	return svc.repo.QueryOrders(ctx, filter, ordering)
}

func (svc *service) Advance(ctx context.Context, id string, to Status) (Order, error) {
	ord, err := svc.repo.GetOrderByID(ctx, id)
	if err != nil {
		return Order{}, err
	}
	if !ord.Status.CanTransition(to) {
		return Order{}, core.NewValidationError(
			ErrInvalidTransition,
			core.FieldError{Field: "status", Error: string(ord.Status) + " cannot become " + string(to)},
		)
	}
	return svc.repo.UpdateOrderStatus(ctx, id, to, "")
}

// MarkPaid flags the order paid and auto-confirms it if still pending.
func (svc *service) MarkPaid(ctx context.Context, id string) (Order, error) {
	ord, err := svc.repo.GetOrderByID(ctx, id)
	if err != nil {
		return Order{}, err
	}
	status := ord.Status
	if status == StatusPending {
		status = StatusConfirmed
	}
	return svc.repo.UpdateOrderStatus(ctx, id, status, PayPaid)
}

func (svc *service) MarkRefunded(ctx context.Context, id string) (Order, error) {
	return svc.repo.UpdateOrderStatus(ctx, id, "", PayRefunded)
}
