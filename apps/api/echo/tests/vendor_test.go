package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"testing"

	"github.com/trezcool/chakula/core/user"
	"github.com/trezcool/chakula/core/vendor"
	testutil "github.com/trezcool/chakula/tests"
)

func Test_vendorApi_browse(t *testing.T) {
	resetDB(t)

	owner1 := testutil.CreateUser(t, usrRepo, "Mama Nia", "mamania", "nia@test.ng", "", []string{user.RoleVendorOwner}, true)
	owner2 := testutil.CreateUser(t, usrRepo, "Chef Obi", "chefobi", "obi@test.ng", "", []string{user.RoleVendorOwner}, true)
	owner3 := testutil.CreateUser(t, usrRepo, "Suspended", "suspend", "sus@test.ng", "", []string{user.RoleVendorOwner}, true)

	approved1 := testutil.CreateVendor(t, vendorRepo, owner1.ID, "Mama Nia Kitchen", "Lagos", vendor.StatusApproved)
	approved2 := testutil.CreateVendor(t, vendorRepo, owner2.ID, "Obi Grills", "Abuja", vendor.StatusApproved)
	testutil.CreateVendor(t, vendorRepo, owner3.ID, "Shady Shack", "Lagos", vendor.StatusPending)

	tests := []httpTest{
		{name: "only approved listed", path: "/v1/vendors", wantData: marchallList(t, approved1, approved2)},
		{name: "filter by city", path: "/v1/vendors?city=Lagos", wantData: marchallList(t, approved1)},
		{name: "filter by search", path: "/v1/vendors?search=grill", wantData: marchallList(t, approved2)},
		{
			// status filter cannot leak unapproved vendors
			name: "status filter is forced", path: "/v1/vendors?status=pending", wantData: marchallList(t, approved1, approved2),
		},
		{
			// ordering fields never reach the repository raw
			name: "hostile ordering ignored", path: "/v1/vendors?ordering=" + url.QueryEscape("name;DROP TABLE vendors--"),
			wantData: marchallList(t, approved1, approved2),
		},
		{name: "retrieve by slug", path: "/v1/vendors/" + approved1.Slug, wantData: marchallObj(t, approved1)},
		{
			name: "pending vendor hidden", path: "/v1/vendors/shady-shack",
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "unknown slug", path: "/v1/vendors/nope",
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "vendor not found"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_vendorApi_publicMenu(t *testing.T) {
	resetDB(t)

	owner := testutil.CreateUser(t, usrRepo, "Mama Nia", "mamania", "nia@test.ng", "", []string{user.RoleVendorOwner}, true)
	vnd := testutil.CreateVendor(t, vendorRepo, owner.ID, "Mama Nia Kitchen", "Lagos", vendor.StatusApproved)

	jollof := testutil.CreateMenuItem(t, vendorRepo, vnd.ID, "Jollof Rice", 150000, true)
	testutil.CreateMenuItem(t, vendorRepo, vnd.ID, "Eighty-Six", 100000, false)

	tt := httpTest{
		name: "available items only", method: http.MethodGet, path: "/v1/vendors/" + vnd.Slug + "/menu",
		wantCode: http.StatusOK, wantData: marchallList(t, jollof),
	}
	t.Run(tt.name, func(t *testing.T) {
		req, rec := newRequest(tt.method, tt.path)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})
}

func Test_vendorApi_apply(t *testing.T) {
	resetDB(t)

	applicant := testutil.CreateUser(t, usrRepo, "Hero", "heroic", "hero@test.ng", "", []string{user.RoleCustomer}, true)
	existing := testutil.CreateUser(t, usrRepo, "Mama Nia", "mamania", "nia@test.ng", "", []string{user.RoleVendorOwner}, true)
	testutil.CreateVendor(t, vendorRepo, existing.ID, "Mama Nia Kitchen", "Lagos", vendor.StatusApproved)

	reqMsg := "this field is required"
	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "required fields", token: getToken(t, applicant), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"name": reqMsg, "address": reqMsg, "city": reqMsg, "phone": reqMsg}),
		},
		{
			name: "invalid opening hours", token: getToken(t, applicant), wantCode: http.StatusBadRequest,
			body: marchallObj(t, vendor.NewVendor{
				Name: "Suya Spot", Address: "2 Broad St", City: "Lagos", Phone: "0810000000", OpensAt: "25:00",
			}),
			wantData: marchallObj(t, map[string]string{"opens_at": "must be a HH:MM time"}),
		},
		{
			name: "one vendor per owner", token: getToken(t, existing), wantCode: http.StatusBadRequest,
			body: marchallObj(t, vendor.NewVendor{
				Name: "Second Kitchen", Address: "2 Broad St", City: "Lagos", Phone: "0810000000",
			}),
			wantData: marchallObj(t, httpErr{Error: "this user already owns a vendor"}),
		},
		{
			name: "application accepted", token: getToken(t, applicant), wantCode: http.StatusCreated,
			body: marchallObj(t, vendor.NewVendor{
				Name: "Suya Spot", Address: "2 Broad St", City: "Lagos", Phone: "0810000000",
				OpensAt: "08:00", ClosesAt: "21:30",
			}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/vendors/apply"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusCreated {
				if rec.Code != tt.wantCode {
					t.Fatalf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var vnd vendor.Vendor
				if err := json.Unmarshal(rec.Body.Bytes(), &vnd); err != nil {
					t.Errorf("json.Unmarshal() failed! err %v", err)
				}
				if vnd.Status != vendor.StatusPending {
					t.Errorf("failed! status = %s; want %s", vnd.Status, vendor.StatusPending)
				}
				if vnd.Slug != "suya-spot" {
					t.Errorf("failed! slug = %s; want suya-spot", vnd.Slug)
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_vendorApi_dashboard(t *testing.T) {
	resetDB(t)

	owner := testutil.CreateUser(t, usrRepo, "Mama Nia", "mamania", "nia@test.ng", "", []string{user.RoleVendorOwner}, true)
	staff := testutil.CreateUser(t, usrRepo, "Cook", "cook01", "cook@test.ng", "", []string{user.RoleVendor}, true)
	customer := testutil.CreateUser(t, usrRepo, "Hero", "heroic", "hero@test.ng", "", []string{user.RoleCustomer}, true)
	vnd := testutil.CreateVendor(t, vendorRepo, owner.ID, "Mama Nia Kitchen", "Lagos", vendor.StatusApproved)

	ownerToken := getToken(t, owner)

	tests := []httpTest{
		{
			name: "vendor staff required", method: http.MethodGet, path: "/v1/vendor", token: getToken(t, customer),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "owner retrieves own vendor", method: http.MethodGet, path: "/v1/vendor", token: ownerToken,
			wantCode: http.StatusOK, wantData: marchallObj(t, vnd),
		},
		{
			name: "staff update forbidden", method: http.MethodPut, path: "/v1/vendor", token: getToken(t, staff),
			body:     marchallObj(t, vendor.UpdateVendor{Description: "new"}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "invalid account number", method: http.MethodPut, path: "/v1/vendor/bank-account", token: ownerToken,
			body:     marchallObj(t, vendor.SetBankAccount{BankCode: "058", AccountNumber: "123"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"account_number": "a valid 10-digit account number is required"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("owner updates vendor", func(t *testing.T) {
		body := marchallObj(t, vendor.UpdateVendor{Description: "Home-style Nigerian food"})
		req, rec := newAuthRequest(http.MethodPut, "/v1/vendor", ownerToken, body)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusOK)
		}
		var updated vendor.Vendor
		if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if updated.Description != "Home-style Nigerian food" {
			t.Errorf("failed! description = %q", updated.Description)
		}
		if updated.Name != vnd.Name || updated.Slug != vnd.Slug {
			t.Errorf("failed! name/slug changed: %q %q", updated.Name, updated.Slug)
		}
	})

	t.Run("owner sets bank account", func(t *testing.T) {
		body := marchallObj(t, vendor.SetBankAccount{BankCode: "058", AccountNumber: "0123456789"})
		req, rec := newAuthRequest(http.MethodPut, "/v1/vendor/bank-account", ownerToken, body)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusOK)
		}
		var updated vendor.Vendor
		if err := json.Unmarshal(rec.Body.Bytes(), &updated); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if updated.BankAccount.AccountName != "TEST ACCOUNT" {
			t.Errorf("failed! account name = %q", updated.BankAccount.AccountName)
		}
	})
}

func Test_vendorApi_menuManagement(t *testing.T) {
	resetDB(t)

	owner := testutil.CreateUser(t, usrRepo, "Mama Nia", "mamania", "nia@test.ng", "", []string{user.RoleVendorOwner}, true)
	other := testutil.CreateUser(t, usrRepo, "Chef Obi", "chefobi", "obi@test.ng", "", []string{user.RoleVendorOwner}, true)
	vnd := testutil.CreateVendor(t, vendorRepo, owner.ID, "Mama Nia Kitchen", "Lagos", vendor.StatusApproved)
	otherVnd := testutil.CreateVendor(t, vendorRepo, other.ID, "Obi Grills", "Abuja", vendor.StatusApproved)

	jollof := testutil.CreateMenuItem(t, vendorRepo, vnd.ID, "Jollof Rice", 150000, true)
	eightySix := testutil.CreateMenuItem(t, vendorRepo, vnd.ID, "Eighty-Six", 100000, false)
	foreign := testutil.CreateMenuItem(t, vendorRepo, otherVnd.ID, "Suya", 80000, true)

	ownerToken := getToken(t, owner)

	t.Run("dashboard menu lists all items", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusOK, wantData: marchallList(t, jollof, eightySix)}
		req, rec := newAuthRequest(http.MethodGet, "/v1/vendor/menu", ownerToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("add item", func(t *testing.T) {
		body := marchallObj(t, vendor.NewMenuItem{Name: "Egusi Soup", Price: 120000, Category: "soups"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/vendor/menu", ownerToken, body)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusCreated {
			t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusCreated)
		}
		var item vendor.MenuItem
		if err := json.Unmarshal(rec.Body.Bytes(), &item); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if !item.Available() {
			t.Error("failed! new item should default to available")
		}
	})

	t.Run("add item requires price", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"price": "price must be greater than 0"}),
		}
		body := marchallObj(t, vendor.NewMenuItem{Name: "Freebie"})
		req, rec := newAuthRequest(http.MethodPost, "/v1/vendor/menu", ownerToken, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("update item", func(t *testing.T) {
		avail := true
		body := marchallObj(t, vendor.UpdateMenuItem{Price: 110000, IsAvailable: &avail})
		req, rec := newAuthRequest(http.MethodPut, "/v1/vendor/menu/"+eightySix.ID, ownerToken, body)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusOK)
		}
		var item vendor.MenuItem
		if err := json.Unmarshal(rec.Body.Bytes(), &item); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if item.Price != 110000 || !item.Available() {
			t.Errorf("failed! price = %d, available = %v", item.Price, item.Available())
		}
		if item.Name != eightySix.Name {
			t.Errorf("failed! name changed: %q", item.Name)
		}
	})

	t.Run("cannot touch another vendor's item", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"})}
		body := marchallObj(t, vendor.UpdateMenuItem{Price: 1})
		req, rec := newAuthRequest(http.MethodPut, "/v1/vendor/menu/"+foreign.ID, ownerToken, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("remove item", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/vendor/menu/"+jollof.ID, ownerToken)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusNoContent)
		}
		if _, err := vendorRepo.GetMenuItemByID(context.Background(), jollof.ID); err != vendor.ErrMenuItemNotFound {
			t.Error("failed! item not deleted")
		}
	})
}

func Test_vendorApi_adminConsole(t *testing.T) {
	resetDB(t)

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin1", "admin@test.ng", "", []string{user.RoleAdmin}, true)
	owner := testutil.CreateUser(t, usrRepo, "Mama Nia", "mamania", "nia@test.ng", "", []string{user.RoleCustomer}, true)
	pending := testutil.CreateVendor(t, vendorRepo, owner.ID, "Mama Nia Kitchen", "Lagos", vendor.StatusPending)

	adminToken := getToken(t, admin)

	t.Run("admin lists all statuses", func(t *testing.T) {
		tt := httpTest{wantCode: http.StatusOK, wantData: marchallList(t, pending)}
		req, rec := newAuthRequest(http.MethodGet, "/v1/admin/vendors", adminToken)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("invalid status rejected", func(t *testing.T) {
		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"status": "status must be one of [pending approved suspended]"}),
		}
		body := marchallObj(t, map[string]string{"status": "lol"})
		req, rec := newAuthRequest(http.MethodPut, "/v1/admin/vendors/"+pending.ID+"/status", adminToken, body)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, tt, rec)
	})

	t.Run("approval grants owner role", func(t *testing.T) {
		body := marchallObj(t, map[string]string{"status": "approved"})
		req, rec := newAuthRequest(http.MethodPut, "/v1/admin/vendors/"+pending.ID+"/status", adminToken, body)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusOK)
		}
		var vnd vendor.Vendor
		if err := json.Unmarshal(rec.Body.Bytes(), &vnd); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if vnd.Status != vendor.StatusApproved {
			t.Errorf("failed! status = %s", vnd.Status)
		}

		refreshed, err := usrRepo.GetUserByID(context.Background(), owner.ID)
		if err != nil {
			t.Fatalf("GetUserByID() failed, %v", err)
		}
		var granted bool
		for _, role := range refreshed.Roles {
			if role == user.RoleVendorOwner {
				granted = true
			}
		}
		if !granted {
			t.Errorf("failed! owner roles = %v; want %s granted", refreshed.Roles, user.RoleVendorOwner)
		}
	})

	t.Run("commission override", func(t *testing.T) {
		rate := 0.15
		body := marchallObj(t, map[string]float64{"commission_rate": rate})
		req, rec := newAuthRequest(http.MethodPut, "/v1/admin/vendors/"+pending.ID+"/commission", adminToken, body)
		app.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; wantCode %v", rec.Code, http.StatusOK)
		}
		var vnd vendor.Vendor
		if err := json.Unmarshal(rec.Body.Bytes(), &vnd); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		if vnd.CommissionRate == nil || *vnd.CommissionRate != rate {
			t.Errorf("failed! commission rate = %v; want %v", vnd.CommissionRate, rate)
		}
	})
}
