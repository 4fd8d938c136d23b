package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/trezcool/chakula/core/order"
	"github.com/trezcool/chakula/core/payment"
	"github.com/trezcool/chakula/core/user"
	"github.com/trezcool/chakula/core/vendor"
	testutil "github.com/trezcool/chakula/tests"
)

func Test_orderApi_place(t *testing.T) {
	resetDB(t)

	customer := testutil.CreateUser(t, usrRepo, "Hero", "heroic", "hero@test.ng", "", []string{user.RoleCustomer}, true)
	owner := testutil.CreateUser(t, usrRepo, "Mama Nia", "mamania", "nia@test.ng", "", []string{user.RoleVendorOwner}, true)
	pendingOwner := testutil.CreateUser(t, usrRepo, "Shady", "shady", "shady@test.ng", "", []string{user.RoleVendorOwner}, true)

	vnd := testutil.CreateVendor(t, vendorRepo, owner.ID, "Mama Nia Kitchen", "Lagos", vendor.StatusApproved)
	pendingVnd := testutil.CreateVendor(t, vendorRepo, pendingOwner.ID, "Shady Shack", "Lagos", vendor.StatusPending)

	jollof := testutil.CreateMenuItem(t, vendorRepo, vnd.ID, "Jollof Rice", 150000, true)
	eightySix := testutil.CreateMenuItem(t, vendorRepo, vnd.ID, "Eighty-Six", 100000, false)
	shadyItem := testutil.CreateMenuItem(t, vendorRepo, pendingVnd.ID, "Mystery Meat", 50000, true)

	token := getToken(t, customer)
	reqMsg := "this field is required"

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "required fields", token: token, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"vendor_id": reqMsg, "items": reqMsg, "address": reqMsg, "phone": reqMsg}),
		},
		{
			name: "quantity capped", token: token, wantCode: http.StatusBadRequest,
			body: marchallObj(t, order.NewOrder{
				VendorID: vnd.ID,
				Items:    []order.NewOrderItem{{MenuItemID: jollof.ID, Quantity: 51}},
				Address:  "1 Test Street", Phone: "0810000000",
			}),
			wantData: marchallObj(t, map[string]string{"quantity": "quantity must be 50 or less"}),
		},
		{
			name: "vendor not approved", token: token, wantCode: http.StatusBadRequest,
			body: marchallObj(t, order.NewOrder{
				VendorID: pendingVnd.ID,
				Items:    []order.NewOrderItem{{MenuItemID: shadyItem.ID, Quantity: 1}},
				Address:  "1 Test Street", Phone: "0810000000",
			}),
			wantData: marchallObj(t, httpErr{Error: "this vendor is not accepting orders"}),
		},
		{
			name: "unavailable item", token: token, wantCode: http.StatusBadRequest,
			body: marchallObj(t, order.NewOrder{
				VendorID: vnd.ID,
				Items:    []order.NewOrderItem{{MenuItemID: eightySix.ID, Quantity: 1}},
				Address:  "1 Test Street", Phone: "0810000000",
			}),
			wantData: marchallObj(t, map[string]string{"items": "a menu item in the cart is unavailable"}),
		},
		{
			// an item belonging to another vendor cannot sneak into the cart
			name: "foreign item", token: token, wantCode: http.StatusBadRequest,
			body: marchallObj(t, order.NewOrder{
				VendorID: vnd.ID,
				Items:    []order.NewOrderItem{{MenuItemID: shadyItem.ID, Quantity: 1}},
				Address:  "1 Test Street", Phone: "0810000000",
			}),
			wantData: marchallObj(t, map[string]string{"items": "a menu item in the cart is unavailable"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/orders"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("totals are computed server-side", func(t *testing.T) {
		body := marchallObj(t, order.NewOrder{
			VendorID: vnd.ID,
			Items:    []order.NewOrderItem{{MenuItemID: jollof.ID, Quantity: 2}},
			Address:  "1 Test Street", Phone: "0810000000", Note: "extra pepper",
		})
		req, rec := newAuthRequest(http.MethodPost, "/v1/orders", token, body)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusCreated)
		}
		var ord order.Order
		if err := json.Unmarshal(rec.Body.Bytes(), &ord); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if ord.Subtotal != 300000 || ord.DeliveryFee != 50000 || ord.Total != 350000 {
			t.Errorf("failed! subtotal = %d, delivery = %d, total = %d", ord.Subtotal, ord.DeliveryFee, ord.Total)
		}
		if ord.Status != order.StatusPending || ord.PaymentStatus != order.PayUnpaid {
			t.Errorf("failed! status = %s, payment = %s", ord.Status, ord.PaymentStatus)
		}
		if ord.CustomerID != customer.ID {
			t.Errorf("failed! customer = %s; want %s", ord.CustomerID, customer.ID)
		}
		if !strings.HasPrefix(ord.Ref, "CHK-") {
			t.Errorf("failed! ref = %s", ord.Ref)
		}
		if len(ord.Lines) != 1 || ord.Lines[0].UnitPrice != jollof.Price || ord.Lines[0].LineTotal != 300000 {
			t.Errorf("failed! lines = %+v", ord.Lines)
		}
	})
}

func Test_orderApi_query(t *testing.T) {
	resetDB(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin1", "admin@test.ng", "", []string{user.RoleAdmin}, true)
	hero := testutil.CreateUser(t, usrRepo, "Hero", "heroic", "hero@test.ng", "", []string{user.RoleCustomer}, true)
	rival := testutil.CreateUser(t, usrRepo, "Rival", "rival", "rival@test.ng", "", []string{user.RoleCustomer}, true)
	owner := testutil.CreateUser(t, usrRepo, "Mama Nia", "mamania", "nia@test.ng", "", []string{user.RoleVendorOwner}, true)
	owner2 := testutil.CreateUser(t, usrRepo, "Chef Obi", "chefobi", "obi@test.ng", "", []string{user.RoleVendorOwner}, true)

	vndA := testutil.CreateVendor(t, vendorRepo, owner.ID, "Mama Nia Kitchen", "Lagos", vendor.StatusApproved)
	vndB := testutil.CreateVendor(t, vendorRepo, owner2.ID, "Obi Grills", "Abuja", vendor.StatusApproved)

	lines := []order.Line{{MenuItemID: "itm1", Name: "Jollof Rice", UnitPrice: 150000, Quantity: 1, LineTotal: 150000}}
	heroOrdA := testutil.CreateOrder(t, orderRepo, hero.ID, vndA.ID, lines, order.StatusPending, order.PayUnpaid)
	rivalOrdA := testutil.CreateOrder(t, orderRepo, rival.ID, vndA.ID, lines, order.StatusConfirmed, order.PayPaid)
	heroOrdB := testutil.CreateOrder(t, orderRepo, hero.ID, vndB.ID, lines, order.StatusDelivered, order.PayPaid)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "customer sees own orders only", token: getToken(t, hero),
			wantCode: http.StatusOK, wantData: marchallList(t, heroOrdA, heroOrdB),
		},
		{
			name: "vendor sees own vendor's orders", token: getToken(t, owner),
			wantCode: http.StatusOK, wantData: marchallList(t, heroOrdA, rivalOrdA),
		},
		{
			name: "admin sees everything", token: getToken(t, admin),
			wantCode: http.StatusOK, wantData: marchallList(t, heroOrdA, rivalOrdA, heroOrdB),
		},
		{
			name: "admin filters by vendor", path: "/v1/orders?vendor_id=" + vndB.ID, token: getToken(t, admin),
			wantCode: http.StatusOK, wantData: marchallList(t, heroOrdB),
		},
		{
			name: "filter by status", path: "/v1/orders?status=delivered", token: getToken(t, hero),
			wantCode: http.StatusOK, wantData: marchallList(t, heroOrdB),
		},
		{
			name: "filter by payment status", path: "/v1/orders?payment_status=unpaid", token: getToken(t, hero),
			wantCode: http.StatusOK, wantData: marchallList(t, heroOrdA),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		if tt.path == "" {
			tt.path = "/v1/orders"
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_orderApi_retrieve(t *testing.T) {
	resetDB(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin1", "admin@test.ng", "", []string{user.RoleAdmin}, true)
	hero := testutil.CreateUser(t, usrRepo, "Hero", "heroic", "hero@test.ng", "", []string{user.RoleCustomer}, true)
	rival := testutil.CreateUser(t, usrRepo, "Rival", "rival", "rival@test.ng", "", []string{user.RoleCustomer}, true)
	owner := testutil.CreateUser(t, usrRepo, "Mama Nia", "mamania", "nia@test.ng", "", []string{user.RoleVendorOwner}, true)
	otherOwner := testutil.CreateUser(t, usrRepo, "Chef Obi", "chefobi", "obi@test.ng", "", []string{user.RoleVendorOwner}, true)

	vnd := testutil.CreateVendor(t, vendorRepo, owner.ID, "Mama Nia Kitchen", "Lagos", vendor.StatusApproved)
	testutil.CreateVendor(t, vendorRepo, otherOwner.ID, "Obi Grills", "Abuja", vendor.StatusApproved)

	lines := []order.Line{{MenuItemID: "itm1", Name: "Jollof Rice", UnitPrice: 150000, Quantity: 1, LineTotal: 150000}}
	ord := testutil.CreateOrder(t, orderRepo, hero.ID, vnd.ID, lines, order.StatusPending, order.PayUnpaid)

	notFound := marchallObj(t, httpErr{Error: "not found"})
	tests := []httpTest{
		{name: "customer retrieves own order", token: getToken(t, hero), wantCode: http.StatusOK, wantData: marchallObj(t, ord)},
		{name: "vendor retrieves its order", token: getToken(t, owner), wantCode: http.StatusOK, wantData: marchallObj(t, ord)},
		{name: "admin retrieves any order", token: getToken(t, admin), wantCode: http.StatusOK, wantData: marchallObj(t, ord)},
		{name: "stranger cannot see it", token: getToken(t, rival), wantCode: http.StatusNotFound, wantData: notFound},
		{name: "other vendor cannot see it", token: getToken(t, otherOwner), wantCode: http.StatusNotFound, wantData: notFound},
		{
			name: "unknown order", token: getToken(t, hero), path: "/v1/orders/nope",
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "order not found"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		if tt.path == "" {
			tt.path = "/v1/orders/" + ord.ID
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_orderApi_cancel(t *testing.T) {
	resetDB(t)

	hero := testutil.CreateUser(t, usrRepo, "Hero", "heroic", "hero@test.ng", "", []string{user.RoleCustomer}, true)
	owner := testutil.CreateUser(t, usrRepo, "Mama Nia", "mamania", "nia@test.ng", "", []string{user.RoleVendorOwner}, true)
	vnd := testutil.CreateVendor(t, vendorRepo, owner.ID, "Mama Nia Kitchen", "Lagos", vendor.StatusApproved)

	lines := []order.Line{{MenuItemID: "itm1", Name: "Jollof Rice", UnitPrice: 150000, Quantity: 2, LineTotal: 300000}}
	token := getToken(t, hero)

	t.Run("pending unpaid order", func(t *testing.T) {
		ord := testutil.CreateOrder(t, orderRepo, hero.ID, vnd.ID, lines, order.StatusPending, order.PayUnpaid)
		req, rec := newAuthRequest(http.MethodPost, "/v1/orders/"+ord.ID+"/cancel", token)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusOK)
		}
		var got order.Order
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if got.Status != order.StatusCancelled || got.PaymentStatus != order.PayUnpaid {
			t.Errorf("failed! status = %s, payment = %s", got.Status, got.PaymentStatus)
		}
	})

	t.Run("too late once preparing", func(t *testing.T) {
		ord := testutil.CreateOrder(t, orderRepo, hero.ID, vnd.ID, lines, order.StatusPreparing, order.PayPaid)
		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"status": "preparing cannot become cancelled"}),
		}
		req, rec := newAuthRequest(http.MethodPost, "/v1/orders/"+ord.ID+"/cancel", token)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("paid order claws back the settlement", func(t *testing.T) {
		ord := testutil.CreateOrder(t, orderRepo, hero.ID, vnd.ID, lines, order.StatusConfirmed, order.PayPaid)

		// the settled payment and its matching wallet credit
		now := time.Now().UTC()
		pmt, err := pmtRepo.CreatePayment(context.Background(), payment.Payment{
			OrderID: ord.ID, VendorID: vnd.ID, CustomerID: hero.ID,
			Reference: ord.Ref + "-XY", Amount: ord.Total,
			Commission: 35000, VendorNet: 315000,
			Status: payment.StatusSuccess, PaidAt: now, CreatedAt: now, UpdatedAt: now,
		})
		if err != nil {
			t.Fatalf("CreatePayment() failed, %v", err)
		}
		testutil.CreditWallet(t, walletRepo, vnd.ID, pmt.VendorNet, pmt.Reference)

		req, rec := newAuthRequest(http.MethodPost, "/v1/orders/"+ord.ID+"/cancel", token)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var got order.Order
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if got.Status != order.StatusCancelled || got.PaymentStatus != order.PayRefunded {
			t.Errorf("failed! status = %s, payment = %s", got.Status, got.PaymentStatus)
		}

		balance, err := walletRepo.WalletBalance(context.Background(), vnd.ID)
		if err != nil {
			t.Fatalf("WalletBalance() failed, %v", err)
		}
		if balance != 0 {
			t.Errorf("failed! balance = %d; want 0", balance)
		}

		entries, err := walletRepo.QueryEntries(context.Background(), vnd.ID, nil)
		if err != nil {
			t.Fatalf("QueryEntries() failed, %v", err)
		}
		var refunded bool
		for _, entry := range entries {
			if entry.Reference == pmt.Reference+":refund" && entry.Kind == "debit" && entry.Amount == pmt.VendorNet {
				refunded = true
			}
		}
		if !refunded {
			t.Errorf("failed! no refund debit in %+v", entries)
		}
	})

	t.Run("claws back even after the vendor withdrew", func(t *testing.T) {
		chef := testutil.CreateUser(t, usrRepo, "Chef Ada", "chefada", "ada@test.ng", "", []string{user.RoleVendorOwner}, true)
		adaVnd := testutil.CreateVendor(t, vendorRepo, chef.ID, "Ada Bites", "Enugu", vendor.StatusApproved)
		ord := testutil.CreateOrder(t, orderRepo, hero.ID, adaVnd.ID, lines, order.StatusConfirmed, order.PayPaid)

		now := time.Now().UTC()
		pmt, err := pmtRepo.CreatePayment(context.Background(), payment.Payment{
			OrderID: ord.ID, VendorID: adaVnd.ID, CustomerID: hero.ID,
			Reference: ord.Ref + "-ZZ", Amount: ord.Total,
			Commission: 35000, VendorNet: 315000,
			Status: payment.StatusSuccess, PaidAt: now, CreatedAt: now, UpdatedAt: now,
		})
		if err != nil {
			t.Fatalf("CreatePayment() failed, %v", err)
		}
		testutil.CreditWallet(t, walletRepo, adaVnd.ID, pmt.VendorNet, pmt.Reference)

		// the vendor empties the wallet before the customer cancels
		if _, err = walletSvc.Debit(context.Background(), adaVnd.ID, pmt.VendorNet, "WDR-GONE", "", "withdrawal"); err != nil {
			t.Fatalf("Debit() failed, %v", err)
		}

		req, rec := newAuthRequest(http.MethodPost, "/v1/orders/"+ord.ID+"/cancel", token)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var got order.Order
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if got.Status != order.StatusCancelled || got.PaymentStatus != order.PayRefunded {
			t.Errorf("failed! status = %s, payment = %s", got.Status, got.PaymentStatus)
		}

		// the refund books anyway and the ledger goes negative
		balance, err := walletRepo.WalletBalance(context.Background(), adaVnd.ID)
		if err != nil {
			t.Fatalf("WalletBalance() failed, %v", err)
		}
		if balance != -pmt.VendorNet {
			t.Errorf("failed! balance = %d; want %d", balance, -pmt.VendorNet)
		}

		entries, err := walletRepo.QueryEntries(context.Background(), adaVnd.ID, nil)
		if err != nil {
			t.Fatalf("QueryEntries() failed, %v", err)
		}
		var refunded bool
		for _, entry := range entries {
			if entry.Reference == pmt.Reference+":refund" && entry.Kind == "debit" && entry.Amount == pmt.VendorNet {
				refunded = true
			}
		}
		if !refunded {
			t.Errorf("failed! no refund debit in %+v", entries)
		}
	})
}

func Test_orderApi_vendorAdvance(t *testing.T) {
	resetDB(t)

	hero := testutil.CreateUser(t, usrRepo, "Hero", "heroic", "hero@test.ng", "", []string{user.RoleCustomer}, true)
	owner := testutil.CreateUser(t, usrRepo, "Mama Nia", "mamania", "nia@test.ng", "", []string{user.RoleVendorOwner}, true)
	otherOwner := testutil.CreateUser(t, usrRepo, "Chef Obi", "chefobi", "obi@test.ng", "", []string{user.RoleVendorOwner}, true)
	vnd := testutil.CreateVendor(t, vendorRepo, owner.ID, "Mama Nia Kitchen", "Lagos", vendor.StatusApproved)
	testutil.CreateVendor(t, vendorRepo, otherOwner.ID, "Obi Grills", "Abuja", vendor.StatusApproved)

	lines := []order.Line{{MenuItemID: "itm1", Name: "Jollof Rice", UnitPrice: 150000, Quantity: 1, LineTotal: 150000}}
	ord := testutil.CreateOrder(t, orderRepo, hero.ID, vnd.ID, lines, order.StatusPending, order.PayPaid)

	ownerToken := getToken(t, owner)

	tests := []httpTest{
		{
			name: "vendor staff required", token: getToken(t, hero),
			body:     marchallObj(t, order.AdvanceOrder{Status: order.StatusConfirmed}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "unknown status", token: ownerToken,
			body:     marchallObj(t, order.AdvanceOrder{Status: "vanished"}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"status": "invalid order status"}),
		},
		{
			// refunds only happen through the cancel endpoint
			name: "cancel not allowed here", token: ownerToken,
			body:     marchallObj(t, order.AdvanceOrder{Status: order.StatusCancelled}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "illegal transition", token: ownerToken,
			body:     marchallObj(t, order.AdvanceOrder{Status: order.StatusReady}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"status": "pending cannot become ready"}),
		},
		{
			name: "another vendor's order", token: getToken(t, otherOwner),
			body:     marchallObj(t, order.AdvanceOrder{Status: order.StatusConfirmed}),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPut
		tt.path = "/v1/vendor/orders/" + ord.ID + "/status"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("walk the pipeline", func(t *testing.T) {
		for _, next := range []order.Status{order.StatusConfirmed, order.StatusPreparing, order.StatusReady, order.StatusDelivered} {
			body := marchallObj(t, order.AdvanceOrder{Status: next})
			req, rec := newAuthRequest(http.MethodPut, "/v1/vendor/orders/"+ord.ID+"/status", ownerToken, body)
			app.ServeHTTP(rec, req)

			if rec.Code != http.StatusOK {
				t.Fatalf("failed! code = %v advancing to %s; body %s", rec.Code, next, rec.Body.String())
			}
			var got order.Order
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatalf("json.Unmarshal() failed! err %v", err)
			}
			if got.Status != next {
				t.Fatalf("failed! status = %s; want %s", got.Status, next)
			}
		}
	})

	t.Run("vendor dashboard listing", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/vendor/orders?status=delivered", ownerToken)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusOK)
		}
		var orders []order.Order
		if err := json.Unmarshal(rec.Body.Bytes(), &orders); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if len(orders) != 1 || orders[0].ID != ord.ID {
			t.Errorf("failed! orders = %+v", orders)
		}
	})

	t.Run("admin checks any vendor's board", func(t *testing.T) {
		admin := testutil.CreateUser(t, usrRepo, "Admin", "admin1", "admin@test.ng", "", []string{user.RoleAdmin}, true)
		req, rec := newAuthRequest(http.MethodGet, "/v1/vendor/orders?vendor_id="+vnd.ID+"&status=delivered", getToken(t, admin))
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var orders []order.Order
		if err := json.Unmarshal(rec.Body.Bytes(), &orders); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if len(orders) != 1 || orders[0].ID != ord.ID {
			t.Errorf("failed! orders = %+v", orders)
		}
	})
}

func Test_orderApi_checkout(t *testing.T) {
	resetDB(t)

	hero := testutil.CreateUser(t, usrRepo, "Hero", "heroic", "hero@test.ng", "", []string{user.RoleCustomer}, true)
	rival := testutil.CreateUser(t, usrRepo, "Rival", "rival", "rival@test.ng", "", []string{user.RoleCustomer}, true)
	owner := testutil.CreateUser(t, usrRepo, "Mama Nia", "mamania", "nia@test.ng", "", []string{user.RoleVendorOwner}, true)
	vnd := testutil.CreateVendor(t, vendorRepo, owner.ID, "Mama Nia Kitchen", "Lagos", vendor.StatusApproved)

	lines := []order.Line{{MenuItemID: "itm1", Name: "Jollof Rice", UnitPrice: 150000, Quantity: 2, LineTotal: 300000}}
	ord := testutil.CreateOrder(t, orderRepo, hero.ID, vnd.ID, lines, order.StatusPending, order.PayUnpaid)
	paidOrd := testutil.CreateOrder(t, orderRepo, hero.ID, vnd.ID, lines, order.StatusConfirmed, order.PayPaid)
	cancelledOrd := testutil.CreateOrder(t, orderRepo, hero.ID, vnd.ID, lines, order.StatusCancelled, order.PayUnpaid)

	token := getToken(t, hero)

	tests := []httpTest{
		{
			name: "not your order", path: "/v1/orders/" + ord.ID + "/checkout", token: getToken(t, rival),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "already paid", path: "/v1/orders/" + paidOrd.ID + "/checkout", token: token,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "order has already been paid"}),
		},
		{
			name: "cancelled order", path: "/v1/orders/" + cancelledOrd.ID + "/checkout", token: token,
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "order can no longer be paid"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("checkout initializes a charge", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/orders/"+ord.ID+"/checkout", token)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v; body %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var intent payment.CheckoutIntent
		if err := json.Unmarshal(rec.Body.Bytes(), &intent); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if !strings.HasPrefix(intent.Reference, ord.Ref+"-") {
			t.Errorf("failed! reference = %s; want %s-* ", intent.Reference, ord.Ref)
		}
		if intent.AuthorizationURL == "" || intent.AccessCode == "" {
			t.Errorf("failed! intent = %+v", intent)
		}

		pmt, err := pmtRepo.GetPaymentByReference(context.Background(), intent.Reference)
		if err != nil {
			t.Fatalf("GetPaymentByReference() failed, %v", err)
		}
		if pmt.Amount != ord.Total || pmt.Status != payment.StatusPending {
			t.Errorf("failed! payment = %+v", pmt)
		}
	})
}

func Test_orderApi_verifyPayment(t *testing.T) {
	resetDB(t)

	hero := testutil.CreateUser(t, usrRepo, "Hero", "heroic", "hero@test.ng", "", []string{user.RoleCustomer}, true)
	owner := testutil.CreateUser(t, usrRepo, "Mama Nia", "mamania", "nia@test.ng", "", []string{user.RoleVendorOwner}, true)
	vnd := testutil.CreateVendor(t, vendorRepo, owner.ID, "Mama Nia Kitchen", "Lagos", vendor.StatusApproved)

	lines := []order.Line{{MenuItemID: "itm1", Name: "Jollof Rice", UnitPrice: 150000, Quantity: 2, LineTotal: 300000}}
	token := getToken(t, hero)

	checkout := func(t *testing.T, ord order.Order) payment.CheckoutIntent {
		t.Helper()
		req, rec := newAuthRequest(http.MethodPost, "/v1/orders/"+ord.ID+"/checkout", token)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("checkout failed! code = %v; body %s", rec.Code, rec.Body.String())
		}
		var intent payment.CheckoutIntent
		if err := json.Unmarshal(rec.Body.Bytes(), &intent); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		return intent
	}

	t.Run("reference is required", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"reference": "this field is required"}),
		}
		req, rec := newAuthRequest(http.MethodPost, "/v1/payments/verify", token, marchallObj(t, struct{}{}))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("unknown reference", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "payment not found"})}
		body := marchallObj(t, echoVerifyReq{Reference: "NOPE-1"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/payments/verify", token, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("successful charge settles once", func(t *testing.T) {
		ord := testutil.CreateOrder(t, orderRepo, hero.ID, vnd.ID, lines, order.StatusPending, order.PayUnpaid)
		intent := checkout(t, ord)

		gateway.VerifyTransactionFunc = successfulCharge(ord.Total)
		defer func() { gateway.VerifyTransactionFunc = nil }()

		verify := func() payment.Payment {
			body := marchallObj(t, echoVerifyReq{Reference: intent.Reference})
			req, rec := newAuthRequest(http.MethodPost, "/v1/payments/verify", token, body)
			app.ServeHTTP(rec, req)
			if rec.Code != http.StatusOK {
				t.Fatalf("verify failed! code = %v; body %s", rec.Code, rec.Body.String())
			}
			var pmt payment.Payment
			if err := json.Unmarshal(rec.Body.Bytes(), &pmt); err != nil {
				t.Fatalf("json.Unmarshal() failed! err %v", err)
			}
			return pmt
		}

		pmt := verify()
		if pmt.Status != payment.StatusSuccess {
			t.Fatalf("failed! status = %s", pmt.Status)
		}
		if pmt.Commission != 35000 || pmt.VendorNet != 315000 {
			t.Errorf("failed! commission = %d, net = %d", pmt.Commission, pmt.VendorNet)
		}

		got, err := orderRepo.GetOrderByID(context.Background(), ord.ID)
		if err != nil {
			t.Fatalf("GetOrderByID() failed, %v", err)
		}
		if got.PaymentStatus != order.PayPaid || got.Status != order.StatusConfirmed {
			t.Errorf("failed! order status = %s, payment = %s", got.Status, got.PaymentStatus)
		}

		balance, err := walletRepo.WalletBalance(context.Background(), vnd.ID)
		if err != nil {
			t.Fatalf("WalletBalance() failed, %v", err)
		}
		if balance != pmt.VendorNet {
			t.Errorf("failed! balance = %d; want %d", balance, pmt.VendorNet)
		}

		// retrying is harmless
		verify()
		balance, _ = walletRepo.WalletBalance(context.Background(), vnd.ID)
		if balance != pmt.VendorNet {
			t.Errorf("failed! balance after retry = %d; want %d", balance, pmt.VendorNet)
		}
	})

	t.Run("failed charge", func(t *testing.T) {
		ord := testutil.CreateOrder(t, orderRepo, hero.ID, vnd.ID, lines, order.StatusPending, order.PayUnpaid)
		intent := checkout(t, ord)

		gateway.VerifyTransactionFunc = failedCharge()
		defer func() { gateway.VerifyTransactionFunc = nil }()

		tt := httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "payment was not successful"})}
		body := marchallObj(t, echoVerifyReq{Reference: intent.Reference})
		req, rec := newAuthRequest(http.MethodPost, "/v1/payments/verify", token, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)

		pmt, err := pmtRepo.GetPaymentByReference(context.Background(), intent.Reference)
		if err != nil {
			t.Fatalf("GetPaymentByReference() failed, %v", err)
		}
		if pmt.Status != payment.StatusFailed {
			t.Errorf("failed! status = %s", pmt.Status)
		}
	})

	t.Run("amount mismatch", func(t *testing.T) {
		ord := testutil.CreateOrder(t, orderRepo, hero.ID, vnd.ID, lines, order.StatusPending, order.PayUnpaid)
		intent := checkout(t, ord)

		// the fake gateway's default charge amount (0) never matches an order total
		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "gateway amount does not match order total"}),
		}
		body := marchallObj(t, echoVerifyReq{Reference: intent.Reference})
		req, rec := newAuthRequest(http.MethodPost, "/v1/payments/verify", token, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})
}

func Test_orderApi_adminQueryPayments(t *testing.T) {
	resetDB(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin1", "admin@test.ng", "", []string{user.RoleAdmin}, true)
	hero := testutil.CreateUser(t, usrRepo, "Hero", "heroic", "hero@test.ng", "", []string{user.RoleCustomer}, true)

	now := time.Now().UTC()
	newPmt := func(orderID, vendorID, ref, status string) payment.Payment {
		pmt, err := pmtRepo.CreatePayment(context.Background(), payment.Payment{
			OrderID: orderID, VendorID: vendorID, CustomerID: hero.ID,
			Reference: ref, Amount: 100000, Status: status, CreatedAt: now, UpdatedAt: now,
		})
		if err != nil {
			t.Fatalf("CreatePayment() failed, %v", err)
		}
		return pmt
	}
	pmt1 := newPmt("ord1", "vnd1", "CHK-A-01", payment.StatusSuccess)
	pmt2 := newPmt("ord2", "vnd1", "CHK-B-01", payment.StatusFailed)
	pmt3 := newPmt("ord3", "vnd2", "CHK-C-01", payment.StatusSuccess)

	tests := []httpTest{
		{
			name: "admin required", token: getToken(t, hero),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{name: "all payments", token: getToken(t, admin), wantCode: http.StatusOK, wantData: marchallList(t, pmt1, pmt2, pmt3)},
		{
			name: "filter by order", path: "/v1/payments?order_id=ord2", token: getToken(t, admin),
			wantCode: http.StatusOK, wantData: marchallList(t, pmt2),
		},
		{
			name: "filter by vendor and status", path: "/v1/payments?vendor_id=vnd1&status=success", token: getToken(t, admin),
			wantCode: http.StatusOK, wantData: marchallList(t, pmt1),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		if tt.path == "" {
			tt.path = "/v1/payments"
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

type echoVerifyReq struct {
	Reference string `json:"reference"`
}
