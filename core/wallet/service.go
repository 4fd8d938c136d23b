package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/chakula/core"
	"github.com/trezcool/chakula/core/vendor"
)

var (
	// errors
	ErrWithdrawalNotFound  = errors.New("withdrawal not found")
	ErrDuplicateReference  = errors.New("a ledger entry with this reference already exists")
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	ErrBelowMinWithdrawal  = errors.New("amount is below the minimum withdrawal")
)

type (
	Repository interface {
		// CreateEntry returns ErrDuplicateReference if the reference was already recorded.
		CreateEntry(ctx context.Context, entry Entry) (Entry, error)
		QueryEntries(ctx context.Context, vendorID string, ordering []core.DBOrdering) ([]Entry, error)
		// WalletBalance returns sum(credits) - sum(debits) for the vendor.
		WalletBalance(ctx context.Context, vendorID string) (int64, error)

		CreateWithdrawal(ctx context.Context, wd Withdrawal) (Withdrawal, error)
		GetWithdrawalByReference(ctx context.Context, reference string) (Withdrawal, error)
		QueryWithdrawals(ctx context.Context, vendorID string, ordering []core.DBOrdering) ([]Withdrawal, error)
		UpdateWithdrawal(ctx context.Context, wd Withdrawal) (Withdrawal, error)
	}

	// Vendors is the slice of the vendor domain the wallet needs: settlement
	// account lookup and recipient-code caching.
	Vendors interface {
		GetByID(ctx context.Context, id string) (vendor.Vendor, error)
		SetRecipientCode(ctx context.Context, id, recipientCode string) (vendor.Vendor, error)
	}

	Service interface {
		Balance(ctx context.Context, vendorID string) (Balance, error)
		Entries(ctx context.Context, vendorID string, ordering []core.DBOrdering) ([]Entry, error)
		// Credit appends a credit entry; idempotent per reference.
		Credit(ctx context.Context, vendorID string, amount int64, reference, orderID, note string) (Entry, error)
		// Debit appends a debit entry after checking the balance; idempotent per reference.
		Debit(ctx context.Context, vendorID string, amount int64, reference, orderID, note string) (Entry, error)
		// ClawBack appends a debit entry without the balance check; idempotent
		// per reference. Order refunds must book even when the vendor has
		// already withdrawn the funds, so the balance may go negative.
		ClawBack(ctx context.Context, vendorID string, amount int64, reference, orderID, note string) (Entry, error)
		RequestWithdrawal(ctx context.Context, vendorID string, nw NewWithdrawal) (Withdrawal, error)
		Withdrawals(ctx context.Context, vendorID string, ordering []core.DBOrdering) ([]Withdrawal, error)
		// HandleTransferUpdate finalizes a withdrawal from a gateway transfer event.
		HandleTransferUpdate(ctx context.Context, reference, status, reason string) error
	}

	service struct {
		repo    Repository
		vendors Vendors
		gateway core.PaymentGateway
		conf    *core.Config
		logger  core.Logger
	}
)

var _ Service = (*service)(nil)

func NewService(repo Repository, vendors Vendors, gateway core.PaymentGateway, conf *core.Config, logger core.Logger) Service {
	return &service{
		repo:    repo,
		vendors: vendors,
		gateway: gateway,
		conf:    conf,
		logger:  logger,
	}
}

func (svc *service) Balance(ctx context.Context, vendorID string) (Balance, error) {
	available, err := svc.repo.WalletBalance(ctx, vendorID)
	if err != nil {
		return Balance{}, err
	}
	return Balance{VendorID: vendorID, Available: available}, nil
}

func (svc *service) Entries(ctx context.Context, vendorID string, ordering []core.DBOrdering) ([]Entry, error) {
	return svc.repo.QueryEntries(ctx, vendorID, ordering)
}

func (svc *service) Credit(ctx context.Context, vendorID string, amount int64, reference, orderID, note string) (Entry, error) {
	return svc.repo.CreateEntry(ctx, Entry{
		VendorID:  vendorID,
		Kind:      KindCredit,
		Amount:    amount,
		Reference: reference,
		OrderID:   orderID,
		Note:      note,
		CreatedAt: time.Now().UTC(),
	})
}

func (svc *service) Debit(ctx context.Context, vendorID string, amount int64, reference, orderID, note string) (Entry, error) {
	available, err := svc.repo.WalletBalance(ctx, vendorID)
	if err != nil {
		return Entry{}, err
	}
	if available < amount {
		return Entry{}, core.NewValidationError(
			ErrInsufficientBalance, core.FieldError{Field: "amount", Error: ErrInsufficientBalance.Error()})
	}
	return svc.ClawBack(ctx, vendorID, amount, reference, orderID, note)
}

func (svc *service) ClawBack(ctx context.Context, vendorID string, amount int64, reference, orderID, note string) (Entry, error) {
	return svc.repo.CreateEntry(ctx, Entry{
		VendorID:  vendorID,
		Kind:      KindDebit,
		Amount:    amount,
		Reference: reference,
		OrderID:   orderID,
		Note:      note,
		CreatedAt: time.Now().UTC(),
	})
}

// RequestWithdrawal debits the wallet first, then initiates the gateway
// transfer; a gateway failure credits the amount straight back.
func (svc *service) RequestWithdrawal(ctx context.Context, vendorID string, nw NewWithdrawal) (Withdrawal, error) {
	if nw.Amount < svc.conf.Market.MinWithdrawal {
		return Withdrawal{}, core.NewValidationError(
			ErrBelowMinWithdrawal, core.FieldError{Field: "amount", Error: ErrBelowMinWithdrawal.Error()})
	}

	vnd, err := svc.vendors.GetByID(ctx, vendorID)
	if err != nil {
		return Withdrawal{}, err
	}
	if vnd.BankAccount.AccountNumber == "" {
		return Withdrawal{}, core.NewValidationError(vendor.ErrNoBankAccount)
	}

	recipientCode := vnd.BankAccount.RecipientCode
	if recipientCode == "" {
		recipient, err := svc.gateway.CreateTransferRecipient(
			ctx, vnd.BankAccount.AccountName, vnd.BankAccount.AccountNumber, vnd.BankAccount.BankCode)
		if err != nil {
			return Withdrawal{}, errors.Wrap(err, "creating transfer recipient")
		}
		recipientCode = recipient.RecipientCode
		if _, err = svc.vendors.SetRecipientCode(ctx, vnd.ID, recipientCode); err != nil {
			return Withdrawal{}, errors.Wrap(err, "caching recipient code")
		}
	}

	now := time.Now().UTC()
	wd := Withdrawal{
		VendorID:      vendorID,
		Amount:        nw.Amount,
		Status:        StatusPending,
		Reference:     core.RandomRef("WDR-", 6),
		RecipientCode: recipientCode,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if _, err = svc.Debit(ctx, vendorID, nw.Amount, wd.Reference, "", "withdrawal"); err != nil {
		return Withdrawal{}, err
	}
	wd, err = svc.repo.CreateWithdrawal(ctx, wd)
	if err != nil {
		return Withdrawal{}, err
	}

	transfer, err := svc.gateway.InitiateTransfer(
		ctx, recipientCode, nw.Amount, wd.Reference, fmt.Sprintf("%s payout", svc.conf.AppName))
	if err != nil {
		// give the money back and record the failure
		if rErr := svc.reverse(ctx, wd, err.Error()); rErr != nil {
			svc.logger.Error(fmt.Sprintf("reversing failed withdrawal %s: %v", wd.Reference, rErr), rErr)
		}
		return Withdrawal{}, errors.Wrap(err, "initiating transfer")
	}

	wd.Status = StatusProcessing
	wd.TransferCode = transfer.TransferCode
	wd.UpdatedAt = time.Now().UTC()
	return svc.repo.UpdateWithdrawal(ctx, wd)
}

func (svc *service) Withdrawals(ctx context.Context, vendorID string, ordering []core.DBOrdering) ([]Withdrawal, error) {
	return svc.repo.QueryWithdrawals(ctx, vendorID, ordering)
}

func (svc *service) HandleTransferUpdate(ctx context.Context, reference, status, reason string) error {
	wd, err := svc.repo.GetWithdrawalByReference(ctx, reference)
	if err != nil {
		return err
	}

	switch status {
	case core.GatewayStatusSuccess:
		if wd.Status == StatusSuccess {
			return nil // already finalized
		}
		wd.Status = StatusSuccess
		wd.UpdatedAt = time.Now().UTC()
		_, err = svc.repo.UpdateWithdrawal(ctx, wd)
		return err

	case core.GatewayStatusFailed, core.GatewayStatusReversed:
		return svc.reverse(ctx, wd, reason)

	default:
		return nil // unknown statuses are ignored
	}
}

// reverse credits the withdrawal amount back and marks the withdrawal
// failed/reversed. The reversal entry reference makes it idempotent.
func (svc *service) reverse(ctx context.Context, wd Withdrawal, reason string) error {
	_, err := svc.Credit(ctx, wd.VendorID, wd.Amount, wd.Reference+":reversal", "", "withdrawal reversal")
	if err != nil && errors.Cause(err) != ErrDuplicateReference {
		return err
	}

	status := StatusFailed
	if wd.Status == StatusProcessing {
		status = StatusReversed
	}
	wd.Status = status
	wd.FailureReason = reason
	wd.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateWithdrawal(ctx, wd)
	return err
}
