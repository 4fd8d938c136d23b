package testutil

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"log"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/trezcool/chakula/core"
	"github.com/trezcool/chakula/core/order"
	"github.com/trezcool/chakula/core/user"
	"github.com/trezcool/chakula/core/vendor"
	"github.com/trezcool/chakula/core/wallet"
)

// NewConfig returns an app config suitable for tests: no recovery middleware,
// no request logging, and templates/assets resolved from the project root.
func NewConfig() *core.Config {
	conf := core.NewConfig()
	conf.Debug = false
	conf.TestMode = true
	conf.WorkDir = projectRoot()
	return conf
}

// projectRoot walks up from the test's working directory to the module root.
// go-test changes the working directory to the test package being run.
func projectRoot() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatalf("testutil.projectRoot: %v", err)
	}
	dir := wd
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return wd
		}
		dir = parent
	}
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Roles:     roles,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	usr.SetActive(isActive)
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateVendor(
	t *testing.T,
	repo vendor.Repository,
	ownerID, name, city, status string,
	createdAt ...time.Time,
) vendor.Vendor {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	vnd := vendor.Vendor{
		OwnerID:   ownerID,
		Name:      name,
		Slug:      core.Slugify(name),
		City:      core.CleanString(city, true /* lower */),
		Phone:     "0810000000",
		Address:   "1 Test Street",
		Status:    status,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	vnd, err := repo.CreateVendor(context.Background(), vnd)
	if err != nil {
		t.Fatalf("CreateVendor() failed: %v", err)
	}
	return vnd
}

func CreateMenuItem(
	t *testing.T,
	repo vendor.Repository,
	vendorID, name string,
	price int64,
	available bool,
) vendor.MenuItem {
	now := time.Now().UTC()
	item := vendor.MenuItem{
		VendorID:  vendorID,
		Name:      name,
		Price:     price,
		Category:  "mains",
		CreatedAt: now,
		UpdatedAt: now,
	}
	item.SetAvailable(available)
	item, err := repo.CreateMenuItem(context.Background(), item)
	if err != nil {
		t.Fatalf("CreateMenuItem() failed: %v", err)
	}
	return item
}

func CreateOrder(
	t *testing.T,
	repo order.Repository,
	customerID, vendorID string,
	lines []order.Line,
	status order.Status,
	paymentStatus string,
) order.Order {
	var subtotal int64
	for _, ln := range lines {
		subtotal += ln.LineTotal
	}
	now := time.Now().UTC()
	ord := order.Order{
		Ref:           core.RandomRef("CHK-", 5),
		CustomerID:    customerID,
		VendorID:      vendorID,
		Lines:         lines,
		Subtotal:      subtotal,
		DeliveryFee:   50000,
		Total:         subtotal + 50000,
		Status:        status,
		PaymentStatus: paymentStatus,
		Address:       "1 Test Street",
		Phone:         "0810000000",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	ord, err := repo.CreateOrder(context.Background(), ord)
	if err != nil {
		t.Fatalf("CreateOrder() failed: %v", err)
	}
	return ord
}

func CreditWallet(
	t *testing.T,
	repo wallet.Repository,
	vendorID string,
	amount int64,
	reference string,
) wallet.Entry {
	entry, err := repo.CreateEntry(context.Background(), wallet.Entry{
		VendorID:  vendorID,
		Kind:      wallet.KindCredit,
		Amount:    amount,
		Reference: reference,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("CreditWallet() failed: %v", err)
	}
	return entry
}

// FakeGatewaySecret signs fake webhook payloads; see FakeGateway.VerifyWebhookSignature.
var FakeGatewaySecret = []byte("sk_test_fake")

// FakeGateway is a test double for core.PaymentGateway. Zero value behaves as
// an always-successful gateway; set the corresponding Func field to override
// a call.
type FakeGateway struct {
	InitializeTransactionFunc   func(ctx context.Context, email string, amount int64, reference, callbackURL string) (core.GatewayTransaction, error)
	VerifyTransactionFunc       func(ctx context.Context, reference string) (core.GatewayCharge, error)
	ListBanksFunc               func(ctx context.Context) ([]core.Bank, error)
	ResolveAccountFunc          func(ctx context.Context, accountNumber, bankCode string) (core.ResolvedAccount, error)
	CreateTransferRecipientFunc func(ctx context.Context, name, accountNumber, bankCode string) (core.TransferRecipient, error)
	InitiateTransferFunc        func(ctx context.Context, recipientCode string, amount int64, reference, reason string) (core.GatewayTransfer, error)
}

var _ core.PaymentGateway = (*FakeGateway)(nil)

func (g *FakeGateway) InitializeTransaction(ctx context.Context, email string, amount int64, reference, callbackURL string) (core.GatewayTransaction, error) {
	if g.InitializeTransactionFunc != nil {
		return g.InitializeTransactionFunc(ctx, email, amount, reference, callbackURL)
	}
	return core.GatewayTransaction{
		Reference:        reference,
		AccessCode:       "ACC_" + reference,
		AuthorizationURL: "https://checkout.gateway.test/" + reference,
	}, nil
}

func (g *FakeGateway) VerifyTransaction(ctx context.Context, reference string) (core.GatewayCharge, error) {
	if g.VerifyTransactionFunc != nil {
		return g.VerifyTransactionFunc(ctx, reference)
	}
	return core.GatewayCharge{
		Reference:  reference,
		Status:     core.GatewayStatusSuccess,
		Channel:    "card",
		GatewayRef: "1234567",
		PaidAt:     time.Now().UTC(),
	}, nil
}

func (g *FakeGateway) ListBanks(ctx context.Context) ([]core.Bank, error) {
	if g.ListBanksFunc != nil {
		return g.ListBanksFunc(ctx)
	}
	return []core.Bank{{Name: "Test Bank", Code: "001"}}, nil
}

func (g *FakeGateway) ResolveAccount(ctx context.Context, accountNumber, bankCode string) (core.ResolvedAccount, error) {
	if g.ResolveAccountFunc != nil {
		return g.ResolveAccountFunc(ctx, accountNumber, bankCode)
	}
	return core.ResolvedAccount{AccountNumber: accountNumber, AccountName: "TEST ACCOUNT"}, nil
}

func (g *FakeGateway) CreateTransferRecipient(ctx context.Context, name, accountNumber, bankCode string) (core.TransferRecipient, error) {
	if g.CreateTransferRecipientFunc != nil {
		return g.CreateTransferRecipientFunc(ctx, name, accountNumber, bankCode)
	}
	return core.TransferRecipient{RecipientCode: "RCP_test"}, nil
}

func (g *FakeGateway) InitiateTransfer(ctx context.Context, recipientCode string, amount int64, reference, reason string) (core.GatewayTransfer, error) {
	if g.InitiateTransferFunc != nil {
		return g.InitiateTransferFunc(ctx, recipientCode, amount, reference, reason)
	}
	return core.GatewayTransfer{TransferCode: "TRF_test", Reference: reference, Status: "pending"}, nil
}

func (g *FakeGateway) VerifyWebhookSignature(payload []byte, signature string) bool {
	return signature == SignWebhookPayload(payload)
}

// SignWebhookPayload signs a webhook payload the way the processor would.
func SignWebhookPayload(payload []byte) string {
	mac := hmac.New(sha512.New, FakeGatewaySecret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
