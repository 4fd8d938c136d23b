package payment

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/chakula/core"
	"github.com/trezcool/chakula/core/order"
	"github.com/trezcool/chakula/core/user"
	"github.com/trezcool/chakula/core/vendor"
	"github.com/trezcool/chakula/core/wallet"
)

var (
	// errors
	ErrNotFound     = errors.New("payment not found")
	ErrOrderPaid    = errors.New("order has already been paid")
	ErrOrderClosed  = errors.New("order can no longer be paid")
	ErrNotSettled   = errors.New("payment was not successful")
	ErrNotYourOrder = errors.New("order does not belong to this customer")
)

type (
	Repository interface {
		CreatePayment(ctx context.Context, pmt Payment) (Payment, error)
		GetPaymentByReference(ctx context.Context, reference string) (Payment, error)
		QueryPayments(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Payment, error)
		UpdatePayment(ctx context.Context, pmt Payment) (Payment, error)
	}

	Service interface {
		// Checkout initializes a gateway transaction for an unpaid order.
		Checkout(ctx context.Context, orderID string, customer user.User) (CheckoutIntent, error)
		// Verify confirms a charge with the gateway and settles it into the
		// vendor wallet. Safe to call repeatedly for the same reference.
		Verify(ctx context.Context, reference string) (Payment, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Payment, error)
		// CancelOrder cancels an order; a paid order also gets its vendor
		// credit clawed back as a refund debit.
		CancelOrder(ctx context.Context, orderID string) (order.Order, error)
	}

	service struct {
		repo      Repository
		orderSvc  order.Service
		walletSvc wallet.Service
		vendorSvc vendor.Service
		gateway   core.PaymentGateway
		mailSvc   core.EmailService
		conf      *core.Config
		logger    core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(
	repo Repository,
	orderSvc order.Service,
	walletSvc wallet.Service,
	vendorSvc vendor.Service,
	gateway core.PaymentGateway,
	mailSvc core.EmailService,
	conf *core.Config,
	logger core.Logger,
) Service {
	return &service{
		repo:      repo,
		orderSvc:  orderSvc,
		walletSvc: walletSvc,
		vendorSvc: vendorSvc,
		gateway:   gateway,
		mailSvc:   mailSvc,
		conf:      conf,
		logger:    logger,
	}
}

func (svc *service) Checkout(ctx context.Context, orderID string, customer user.User) (CheckoutIntent, error) {
	ord, err := svc.orderSvc.GetByID(ctx, orderID)
	if err != nil {
		return CheckoutIntent{}, err
	}
	if ord.CustomerID != customer.ID {
		return CheckoutIntent{}, ErrNotYourOrder
	}
	if ord.IsPaid() {
		return CheckoutIntent{}, core.NewValidationError(ErrOrderPaid)
	}
	if ord.Status.IsTerminal() {
		return CheckoutIntent{}, core.NewValidationError(ErrOrderClosed)
	}

	// each attempt gets its own gateway reference; the order ref stays readable
	reference := fmt.Sprintf("%s-%s", ord.Ref, core.RandomRef("", 2))
	callbackURL := svc.conf.FrontendBaseURL + "/orders/" + ord.ID + "/payment"

	txn, err := svc.gateway.InitializeTransaction(ctx, customer.Email, ord.Total, reference, callbackURL)
	if err != nil {
		return CheckoutIntent{}, errors.Wrap(err, "initializing transaction")
	}

	now := time.Now().UTC()
	_, err = svc.repo.CreatePayment(ctx, Payment{
		OrderID:    ord.ID,
		VendorID:   ord.VendorID,
		CustomerID: ord.CustomerID,
		Reference:  txn.Reference,
		Amount:     ord.Total,
		Status:     StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	if err != nil {
		return CheckoutIntent{}, err
	}

	return CheckoutIntent{
		Reference:        txn.Reference,
		AuthorizationURL: txn.AuthorizationURL,
		AccessCode:       txn.AccessCode,
	}, nil
}

func (svc *service) Verify(ctx context.Context, reference string) (Payment, error) {
	pmt, err := svc.repo.GetPaymentByReference(ctx, reference)
	if err != nil {
		return Payment{}, err
	}
	if pmt.Status == StatusSuccess {
		return pmt, nil // already settled
	}

	charge, err := svc.gateway.VerifyTransaction(ctx, reference)
	if err != nil {
		return Payment{}, errors.Wrap(err, "verifying transaction")
	}
	if charge.Status != core.GatewayStatusSuccess {
		pmt.Status = StatusFailed
		pmt.UpdatedAt = time.Now().UTC()
		if _, uErr := svc.repo.UpdatePayment(ctx, pmt); uErr != nil {
			return Payment{}, uErr
		}
		return Payment{}, core.NewValidationError(ErrNotSettled)
	}
	if charge.Amount != pmt.Amount {
		pmt.Status = StatusFailed
		pmt.UpdatedAt = time.Now().UTC()
		if _, uErr := svc.repo.UpdatePayment(ctx, pmt); uErr != nil {
			return Payment{}, uErr
		}
		return Payment{}, core.NewValidationError(core.ErrGatewayAmountMismatch)
	}

	return svc.settle(ctx, pmt, charge)
}

// settle books the commission split and credits the vendor wallet. The wallet
// entry's unique reference makes concurrent verify/webhook settlement settle
// exactly once.
func (svc *service) settle(ctx context.Context, pmt Payment, charge core.GatewayCharge) (Payment, error) {
	vnd, err := svc.vendorSvc.GetByID(ctx, pmt.VendorID)
	if err != nil {
		return Payment{}, err
	}
	rate := vendor.CommissionRate(vnd, svc.conf)
	commission, net := splitAmount(pmt.Amount, rate)

	_, err = svc.walletSvc.Credit(ctx, pmt.VendorID, net, pmt.Reference, pmt.OrderID, "order settlement")
	if err != nil && errors.Cause(err) != wallet.ErrDuplicateReference {
		return Payment{}, errors.Wrap(err, "crediting vendor wallet")
	}

	pmt.Status = StatusSuccess
	pmt.Commission = commission
	pmt.VendorNet = net
	pmt.Channel = charge.Channel
	pmt.GatewayRef = charge.GatewayRef
	pmt.PaidAt = charge.PaidAt
	pmt.UpdatedAt = time.Now().UTC()
	pmt, err = svc.repo.UpdatePayment(ctx, pmt)
	if err != nil {
		return Payment{}, err
	}

	ord, err := svc.orderSvc.MarkPaid(ctx, pmt.OrderID)
	if err != nil {
		return Payment{}, errors.Wrap(err, "marking order paid")
	}

	svc.sendReceipt(ord, pmt, charge.CustomerEmail)
	return pmt, nil
}

func (svc *service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Payment, error) {
	return svc.repo.QueryPayments(ctx, filter, ordering)
}

func (svc *service) CancelOrder(ctx context.Context, orderID string) (order.Order, error) {
	ord, err := svc.orderSvc.GetByID(ctx, orderID)
	if err != nil {
		return order.Order{}, err
	}
	if !ord.Status.CanTransition(order.StatusCancelled) {
		return order.Order{}, core.NewValidationError(
			order.ErrInvalidTransition,
			core.FieldError{Field: "status", Error: string(ord.Status) + " cannot become " + string(order.StatusCancelled)},
		)
	}

	if ord.IsPaid() {
		// claw the settlement back before the order goes terminal; a failed
		// debit here leaves the order cancellable so cancellation can be
		// retried. The wallet may go negative when the vendor has already
		// withdrawn, hence ClawBack rather than Debit.
		pmts, err := svc.repo.QueryPayments(ctx, &QueryFilter{OrderID: orderID, Status: StatusSuccess}, nil)
		if err != nil {
			return order.Order{}, err
		}
		for _, pmt := range pmts {
			_, err = svc.walletSvc.ClawBack(ctx, pmt.VendorID, pmt.VendorNet, pmt.Reference+":refund", orderID, "order refund")
			if err != nil && errors.Cause(err) != wallet.ErrDuplicateReference {
				return order.Order{}, errors.Wrap(err, "debiting refund")
			}
		}
	}

	ord, err = svc.orderSvc.Advance(ctx, orderID, order.StatusCancelled)
	if err != nil {
		return order.Order{}, err
	}
	if !ord.IsPaid() {
		return ord, nil
	}
	return svc.orderSvc.MarkRefunded(ctx, orderID)
}

type receiptData struct {
	Order   order.Order
	Payment Payment
}

func (svc *service) sendReceipt(ord order.Order, pmt Payment, customerEmail string) {
	if customerEmail == "" {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Address: customerEmail}},
		Subject:      fmt.Sprintf("Receipt for order %s", ord.Ref),
		TemplateName: "order-receipt",
		TemplateData: receiptData{Order: ord, Payment: pmt},
	})
}
