package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/pkg/errors"

	"github.com/trezcool/chakula/core"
	"github.com/trezcool/chakula/core/user"
	"github.com/trezcool/chakula/core/vendor"
	"github.com/trezcool/chakula/core/wallet"
	testutil "github.com/trezcool/chakula/tests"
)

// setBankAccount wires a settlement account straight into the repo.
func setBankAccount(t *testing.T, vnd vendor.Vendor) vendor.Vendor {
	t.Helper()
	vnd.BankAccount = vendor.BankAccount{
		BankCode:      "058",
		AccountNumber: "0123456789",
		AccountName:   "TEST ACCOUNT",
	}
	vnd, err := vendorRepo.UpdateVendor(context.Background(), vnd)
	if err != nil {
		t.Fatalf("UpdateVendor() failed, %v", err)
	}
	return vnd
}

func Test_walletApi_balanceAndEntries(t *testing.T) {
	resetDB(t)

	customer := testutil.CreateUser(t, usrRepo, "Hero", "heroic", "hero@test.ng", "", []string{user.RoleCustomer}, true)
	owner := testutil.CreateUser(t, usrRepo, "Mama Nia", "mamania", "nia@test.ng", "", []string{user.RoleVendorOwner}, true)
	vnd := testutil.CreateVendor(t, vendorRepo, owner.ID, "Mama Nia Kitchen", "Lagos", vendor.StatusApproved)

	entry1 := testutil.CreditWallet(t, walletRepo, vnd.ID, 300000, "CHK-AAAAA-01")
	entry2 := testutil.CreditWallet(t, walletRepo, vnd.ID, 200000, "CHK-BBBBB-01")

	tests := []httpTest{
		{name: "Auth required", path: "/v1/vendor/wallet", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "vendor staff required", path: "/v1/vendor/wallet", token: getToken(t, customer),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "balance is the ledger sum", path: "/v1/vendor/wallet", token: getToken(t, owner),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, wallet.Balance{VendorID: vnd.ID, Available: 500000}),
		},
		{
			name: "entries listing", path: "/v1/vendor/wallet/entries", token: getToken(t, owner),
			wantCode: http.StatusOK, wantData: marchallList(t, entry1, entry2),
		},
		{
			name: "no withdrawals yet", path: "/v1/vendor/wallet/withdrawals", token: getToken(t, owner),
			wantCode: http.StatusOK, wantData: marchallList(t),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_walletApi_requestWithdrawal(t *testing.T) {
	resetDB(t)

	owner := testutil.CreateUser(t, usrRepo, "Mama Nia", "mamania", "nia@test.ng", "", []string{user.RoleVendorOwner}, true)
	staff := testutil.CreateUser(t, usrRepo, "Cook", "cook01", "cook@test.ng", "", []string{user.RoleVendor}, true)
	bare := testutil.CreateUser(t, usrRepo, "Chef Obi", "chefobi", "obi@test.ng", "", []string{user.RoleVendorOwner}, true)

	vnd := testutil.CreateVendor(t, vendorRepo, owner.ID, "Mama Nia Kitchen", "Lagos", vendor.StatusApproved)
	vnd = setBankAccount(t, vnd)
	bareVnd := testutil.CreateVendor(t, vendorRepo, bare.ID, "Obi Grills", "Abuja", vendor.StatusApproved)

	testutil.CreditWallet(t, walletRepo, vnd.ID, 500000, "CHK-AAAAA-01")
	testutil.CreditWallet(t, walletRepo, bareVnd.ID, 500000, "CHK-BBBBB-01")

	ownerToken := getToken(t, owner)

	tests := []httpTest{
		{
			name: "owner role required", token: getToken(t, staff),
			body:     marchallObj(t, wallet.NewWithdrawal{Amount: 200000}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "amount is required", token: ownerToken, body: marchallObj(t, struct{}{}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"amount": "this field is required"}),
		},
		{
			name: "below the minimum", token: ownerToken,
			body:     marchallObj(t, wallet.NewWithdrawal{Amount: 50000}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"amount": "amount is below the minimum withdrawal"}),
		},
		{
			name: "no settlement account", token: getToken(t, bare),
			body:     marchallObj(t, wallet.NewWithdrawal{Amount: 200000}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "vendor has no settlement bank account"}),
		},
		{
			name: "insufficient balance", token: ownerToken,
			body:     marchallObj(t, wallet.NewWithdrawal{Amount: 600000}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"amount": "insufficient wallet balance"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/vendor/wallet/withdrawals"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("withdrawal debits the wallet", func(t *testing.T) {
		body := marchallObj(t, wallet.NewWithdrawal{Amount: 200000})
		req, rec := newAuthRequest(http.MethodPost, "/v1/vendor/wallet/withdrawals", ownerToken, body)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var wd wallet.Withdrawal
		if err := json.Unmarshal(rec.Body.Bytes(), &wd); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if wd.Status != wallet.StatusProcessing {
			t.Errorf("failed! status = %s; want %s", wd.Status, wallet.StatusProcessing)
		}
		if !strings.HasPrefix(wd.Reference, "WDR-") {
			t.Errorf("failed! reference = %s", wd.Reference)
		}

		balance, err := walletRepo.WalletBalance(context.Background(), vnd.ID)
		if err != nil {
			t.Fatalf("WalletBalance() failed, %v", err)
		}
		if balance != 300000 {
			t.Errorf("failed! balance = %d; want 300000", balance)
		}

		// the recipient code is cached on the vendor for the next payout
		refreshed, err := vendorRepo.GetVendorByID(context.Background(), vnd.ID)
		if err != nil {
			t.Fatalf("GetVendorByID() failed, %v", err)
		}
		if refreshed.BankAccount.RecipientCode != "RCP_test" {
			t.Errorf("failed! recipient code = %q", refreshed.BankAccount.RecipientCode)
		}
	})

	t.Run("gateway failure reverses the debit", func(t *testing.T) {
		gateway.InitiateTransferFunc = func(ctx context.Context, recipientCode string, amount int64, reference, reason string) (core.GatewayTransfer, error) {
			return core.GatewayTransfer{}, errors.New("processor down")
		}
		defer func() { gateway.InitiateTransferFunc = nil }()

		body := marchallObj(t, wallet.NewWithdrawal{Amount: 150000})
		req, rec := newAuthRequest(http.MethodPost, "/v1/vendor/wallet/withdrawals", ownerToken, body)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("failed! code = %v; body %s", rec.Code, rec.Body.String())
		}

		// the money came straight back
		balance, err := walletRepo.WalletBalance(context.Background(), vnd.ID)
		if err != nil {
			t.Fatalf("WalletBalance() failed, %v", err)
		}
		if balance != 300000 {
			t.Errorf("failed! balance = %d; want 300000", balance)
		}

		wds, err := walletRepo.QueryWithdrawals(context.Background(), vnd.ID, nil)
		if err != nil {
			t.Fatalf("QueryWithdrawals() failed, %v", err)
		}
		var failed *wallet.Withdrawal
		for i := range wds {
			if wds[i].Status == wallet.StatusFailed {
				failed = &wds[i]
			}
		}
		if failed == nil {
			t.Fatalf("failed! no failed withdrawal in %+v", wds)
		}
		if failed.FailureReason == "" {
			t.Error("failed! failure reason not recorded")
		}

		entries, err := walletRepo.QueryEntries(context.Background(), vnd.ID, nil)
		if err != nil {
			t.Fatalf("QueryEntries() failed, %v", err)
		}
		var reversed bool
		for _, entry := range entries {
			if entry.Reference == failed.Reference+":reversal" && entry.Kind == wallet.KindCredit {
				reversed = true
			}
		}
		if !reversed {
			t.Errorf("failed! no reversal credit in %+v", entries)
		}
	})
}

func Test_walletApi_banks(t *testing.T) {
	resetDB(t)

	customer := testutil.CreateUser(t, usrRepo, "Hero", "heroic", "hero@test.ng", "", []string{user.RoleCustomer}, true)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "bank list", token: getToken(t, customer),
			wantCode: http.StatusOK, wantData: marchallList(t, core.Bank{Name: "Test Bank", Code: "001"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		tt.path = "/v1/banks"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
