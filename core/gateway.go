package core

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// Gateway charge/transfer statuses as reported by the payment processor.
const (
	GatewayStatusSuccess  = "success"
	GatewayStatusFailed   = "failed"
	GatewayStatusReversed = "reversed"
)

type (
	// GatewayTransaction is a freshly initialized checkout the customer
	// must be redirected to.
	GatewayTransaction struct {
		Reference        string
		AccessCode       string
		AuthorizationURL string
	}

	// GatewayCharge is the processor's view of a (possibly settled) transaction.
	GatewayCharge struct {
		Reference     string
		Status        string
		Amount        int64 // kobo
		Currency      string
		Channel       string
		GatewayRef    string
		CustomerEmail string
		PaidAt        time.Time
	}

	Bank struct {
		Name string
		Code string
	}

	ResolvedAccount struct {
		AccountNumber string
		AccountName   string
	}

	TransferRecipient struct {
		RecipientCode string
	}

	GatewayTransfer struct {
		TransferCode string
		Reference    string
		Status       string
	}

	// PaymentGateway abstracts the payment processor (Paystack in production):
	// collection on one side, payouts on the other.
	PaymentGateway interface {
		InitializeTransaction(ctx context.Context, email string, amount int64, reference, callbackURL string) (GatewayTransaction, error)
		VerifyTransaction(ctx context.Context, reference string) (GatewayCharge, error)

		ListBanks(ctx context.Context) ([]Bank, error)
		ResolveAccount(ctx context.Context, accountNumber, bankCode string) (ResolvedAccount, error)
		CreateTransferRecipient(ctx context.Context, name, accountNumber, bankCode string) (TransferRecipient, error)
		InitiateTransfer(ctx context.Context, recipientCode string, amount int64, reference, reason string) (GatewayTransfer, error)

		// VerifyWebhookSignature reports whether a raw webhook payload was
		// signed by the processor.
		VerifyWebhookSignature(payload []byte, signature string) bool
	}
)

// ErrGatewayAmountMismatch is returned when the processor settles an amount
// different from what the order expected.
var ErrGatewayAmountMismatch = errors.New("gateway amount does not match order total")
