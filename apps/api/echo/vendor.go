package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/chakula/core"
	"github.com/trezcool/chakula/core/user"
	"github.com/trezcool/chakula/core/vendor"
)

type vendorApi struct {
	svc      vendor.Service
	userSvc  user.Service
	validate *validator.Validate
}

func registerVendorAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc vendor.Service,
	userSvc user.Service,
	validate *validator.Validate,
) {
	api := vendorApi{
		svc:      svc,
		userSvc:  userSvc,
		validate: validate,
	}

	// public storefront endpoints
	vg := g.Group("/vendors")
	vg.GET("", api.browse)
	vg.GET("/:slug", api.retrieve)
	vg.GET("/:slug/menu", api.menu)

	// any authed user may apply to become a vendor
	vg.POST("/apply", api.apply, jwt)

	// vendor dashboard endpoints; the vendor is resolved from the
	// authenticated owner
	dg := g.Group("/vendor", jwt, vendorStaffMiddleware())
	dg.GET("", api.dashboardRetrieve)
	dg.PUT("", api.dashboardUpdate, vendorStaffMiddleware(user.RoleVendorOwner))
	dg.PUT("/bank-account", api.setBankAccount, vendorStaffMiddleware(user.RoleVendorOwner))
	dg.GET("/menu", api.dashboardMenu)
	dg.POST("/menu", api.addMenuItem)
	dg.PUT("/menu/:id", api.updateMenuItem)
	dg.DELETE("/menu/:id", api.removeMenuItem)

	// admin console endpoints
	ag := g.Group("/admin/vendors", jwt, adminMiddleware())
	ag.GET("", api.adminQuery)
	ag.PUT("/:id/status", api.setStatus)
	ag.PUT("/:id/commission", api.setCommission)
}

// Handlers

// browse lists approved vendors only, whatever the caller filters on.
func (api *vendorApi) browse(ctx echo.Context) error {
	filter := new(vendor.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []vendor.Vendor{})
	}
	filter.Clean()
	filter.Status = vendor.StatusApproved
	ordering := new(Ordering)
	ordering.Bind(ctx)

	vendors, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying vendors")
	}
	if vendors == nil {
		vendors = []vendor.Vendor{}
	}
	return ctx.JSON(http.StatusOK, vendors)
}

func (api *vendorApi) retrieve(ctx echo.Context) error {
	vnd, err := api.svc.GetBySlug(ctx.Request().Context(), ctx.Param("slug"))
	if err != nil {
		return errors.Wrap(err, "finding vendor by slug")
	}
	if !vnd.IsApproved() {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, vnd)
}

// menu lists a vendor's available items; unavailable items are dashboard-only.
func (api *vendorApi) menu(ctx echo.Context) error {
	vnd, err := api.svc.GetBySlug(ctx.Request().Context(), ctx.Param("slug"))
	if err != nil {
		return errors.Wrap(err, "finding vendor by slug")
	}
	if !vnd.IsApproved() {
		return errHttpNotFound
	}

	filter := new(vendor.MenuFilter)
	_ = ctx.Bind(filter)
	filter.AvailableOnly = true

	items, err := api.svc.Menu(ctx.Request().Context(), vnd.ID, filter)
	if err != nil {
		return errors.Wrap(err, "querying menu")
	}
	if items == nil {
		items = []vendor.MenuItem{}
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *vendorApi) apply(ctx echo.Context) error {
	var data vendor.NewVendor
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewVendor")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	vnd, err := api.svc.Apply(ctx.Request().Context(), ctxUsr.ID, data)
	if err != nil {
		return errors.Wrap(err, "applying as vendor")
	}
	return ctx.JSON(http.StatusCreated, vnd)
}

// contextVendor resolves the vendor a dashboard request operates on: the
// caller's own vendor, or any vendor via the `vendor_id` query param for admins.
func (api *vendorApi) contextVendor(ctx echo.Context) (vendor.Vendor, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return vendor.Vendor{}, errors.Wrap(err, "getting context claims")
	}
	if claims.IsAdmin {
		if id := ctx.QueryParam("vendor_id"); id != "" {
			return api.svc.GetByID(ctx.Request().Context(), id)
		}
	}
	return api.svc.GetByOwner(ctx.Request().Context(), claims.Subject)
}

func (api *vendorApi) dashboardRetrieve(ctx echo.Context) error {
	vnd, err := api.contextVendor(ctx)
	if err != nil {
		return errors.Wrap(err, "resolving context vendor")
	}
	return ctx.JSON(http.StatusOK, vnd)
}

func (api *vendorApi) dashboardUpdate(ctx echo.Context) error {
	vnd, err := api.contextVendor(ctx)
	if err != nil {
		return errors.Wrap(err, "resolving context vendor")
	}

	var data vendor.UpdateVendor
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateVendor")
	}
	if err := data.Validate(api.validate, vnd); err != nil {
		return err
	}

	vnd, err = api.svc.Update(ctx.Request().Context(), vnd.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating vendor")
	}
	return ctx.JSON(http.StatusOK, vnd)
}

func (api *vendorApi) setBankAccount(ctx echo.Context) error {
	vnd, err := api.contextVendor(ctx)
	if err != nil {
		return errors.Wrap(err, "resolving context vendor")
	}

	var data vendor.SetBankAccount
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetBankAccount")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	vnd, err = api.svc.SetBankAccount(ctx.Request().Context(), vnd.ID, data)
	if err != nil {
		return errors.Wrap(err, "setting bank account")
	}
	return ctx.JSON(http.StatusOK, vnd)
}

// dashboardMenu lists all items, available or not.
func (api *vendorApi) dashboardMenu(ctx echo.Context) error {
	vnd, err := api.contextVendor(ctx)
	if err != nil {
		return errors.Wrap(err, "resolving context vendor")
	}

	filter := new(vendor.MenuFilter)
	_ = ctx.Bind(filter)

	items, err := api.svc.Menu(ctx.Request().Context(), vnd.ID, filter)
	if err != nil {
		return errors.Wrap(err, "querying menu")
	}
	if items == nil {
		items = []vendor.MenuItem{}
	}
	return ctx.JSON(http.StatusOK, items)
}

func (api *vendorApi) addMenuItem(ctx echo.Context) error {
	vnd, err := api.contextVendor(ctx)
	if err != nil {
		return errors.Wrap(err, "resolving context vendor")
	}

	var data vendor.NewMenuItem
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMenuItem")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	item, err := api.svc.AddMenuItem(ctx.Request().Context(), vnd.ID, data)
	if err != nil {
		return errors.Wrap(err, "adding menu item")
	}
	return ctx.JSON(http.StatusCreated, item)
}

// contextMenuItem fetches the item and checks it belongs to the caller's vendor.
func (api *vendorApi) contextMenuItem(ctx echo.Context) (vendor.MenuItem, error) {
	vnd, err := api.contextVendor(ctx)
	if err != nil {
		return vendor.MenuItem{}, errors.Wrap(err, "resolving context vendor")
	}
	item, err := api.svc.MenuItem(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return vendor.MenuItem{}, errors.Wrap(err, "finding menu item by ID")
	}
	if item.VendorID != vnd.ID {
		return vendor.MenuItem{}, errHttpNotFound
	}
	return item, nil
}

func (api *vendorApi) updateMenuItem(ctx echo.Context) error {
	item, err := api.contextMenuItem(ctx)
	if err != nil {
		return err
	}

	var data vendor.UpdateMenuItem
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateMenuItem")
	}
	if err := data.Validate(api.validate, item); err != nil {
		return err
	}

	item, err = api.svc.UpdateMenuItem(ctx.Request().Context(), item.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating menu item")
	}
	return ctx.JSON(http.StatusOK, item)
}

func (api *vendorApi) removeMenuItem(ctx echo.Context) error {
	item, err := api.contextMenuItem(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.RemoveMenuItems(ctx.Request().Context(), item.ID); err != nil {
		return errors.Wrap(err, "removing menu item")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// adminQuery lists all vendors whatever their status.
func (api *vendorApi) adminQuery(ctx echo.Context) error {
	filter := new(vendor.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []vendor.Vendor{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	vendors, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying vendors")
	}
	if vendors == nil {
		vendors = []vendor.Vendor{}
	}
	return ctx.JSON(http.StatusOK, vendors)
}

// setStatus transitions a vendor's status. Approving a vendor grants its
// owner the vendor owner role so they can access the dashboard.
func (api *vendorApi) setStatus(ctx echo.Context) error {
	var data SetVendorStatusRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetVendorStatusRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	vnd, err := api.svc.SetStatus(ctx.Request().Context(), ctx.Param("id"), data.Status)
	if err != nil {
		return errors.Wrap(err, "setting vendor status")
	}

	if data.Status == vendor.StatusApproved {
		if err := api.grantOwnerRole(ctx, vnd.OwnerID); err != nil {
			return errors.Wrap(err, "granting vendor owner role")
		}
	}
	return ctx.JSON(http.StatusOK, vnd)
}

func (api *vendorApi) grantOwnerRole(ctx echo.Context, ownerID string) error {
	rctx := ctx.Request().Context()
	owner, err := api.userSvc.GetByID(rctx, ownerID)
	if err != nil {
		return err
	}
	for _, role := range owner.Roles {
		if role == user.RoleVendorOwner {
			return nil
		}
	}
	roles := append(owner.Roles, user.RoleVendorOwner)
	_, err = api.userSvc.Update(rctx, owner.ID, user.UpdateUser{Roles: roles})
	return err
}

func (api *vendorApi) setCommission(ctx echo.Context) error {
	var data SetCommissionRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetCommissionRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	vnd, err := api.svc.SetCommissionRate(ctx.Request().Context(), ctx.Param("id"), data.CommissionRate)
	if err != nil {
		return errors.Wrap(err, "setting commission rate")
	}
	return ctx.JSON(http.StatusOK, vnd)
}

type (
	SetVendorStatusRequest struct {
		Status string `json:"status" validate:"required,oneof=pending approved suspended"`
	}

	// SetCommissionRequest overrides the vendor commission rate; a null rate
	// reverts to the configured default.
	SetCommissionRequest struct {
		CommissionRate *float64 `json:"commission_rate" validate:"omitempty,gte=0,lte=1"`
	}
)

func (sv *SetVendorStatusRequest) Validate(validate *validator.Validate) error {
	sv.Status = core.CleanString(sv.Status, true /* lower */)
	return validate.Struct(sv)
}
