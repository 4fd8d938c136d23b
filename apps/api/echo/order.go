package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/chakula/core/order"
	"github.com/trezcool/chakula/core/payment"
	"github.com/trezcool/chakula/core/user"
	"github.com/trezcool/chakula/core/vendor"
)

type orderApi struct {
	svc       order.Service
	pmtSvc    payment.Service
	vendorSvc vendor.Service
	userSvc   user.Service
	validate  *validator.Validate
}

func registerOrderAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc order.Service,
	pmtSvc payment.Service,
	vendorSvc vendor.Service,
	userSvc user.Service,
	validate *validator.Validate,
) {
	api := orderApi{
		svc:       svc,
		pmtSvc:    pmtSvc,
		vendorSvc: vendorSvc,
		userSvc:   userSvc,
		validate:  validate,
	}

	og := g.Group("/orders", jwt)
	og.POST("", api.place)
	og.GET("", api.query)
	og.GET("/:id", api.retrieve)
	og.POST("/:id/cancel", api.cancel)
	og.POST("/:id/checkout", api.checkout)

	// vendor dashboard order management
	dg := g.Group("/vendor/orders", jwt, vendorStaffMiddleware())
	dg.GET("", api.dashboardQuery)
	dg.PUT("/:id/status", api.advance)

	pg := g.Group("/payments", jwt)
	pg.POST("/verify", api.verifyPayment)
	pg.GET("", api.adminQueryPayments, adminMiddleware())
}

// Handlers

func (api *orderApi) place(ctx echo.Context) error {
	var data order.NewOrder
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewOrder")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	ord, err := api.svc.Place(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "placing order")
	}
	return ctx.JSON(http.StatusCreated, ord)
}

// query scopes the listing to the caller: customers see their own orders,
// vendor staff their vendor's, admins everything.
func (api *orderApi) query(ctx echo.Context) error {
	filter := new(order.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []order.Order{})
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	switch {
	case claims.IsAdmin:
		// unscoped; VendorID is not client-bindable so admins pass it here
		filter.VendorID = ctx.QueryParam("vendor_id")
	case claims.IsVendor:
		vnd, err := api.vendorSvc.GetByOwner(ctx.Request().Context(), claims.Subject)
		if err != nil {
			return errors.Wrap(err, "resolving context vendor")
		}
		filter.VendorID = vnd.ID
	default:
		filter.CustomerID = claims.Subject
	}

	ordering := new(Ordering)
	ordering.Bind(ctx)

	orders, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying orders")
	}
	if orders == nil {
		orders = []order.Order{}
	}
	return ctx.JSON(http.StatusOK, orders)
}

// contextOrder fetches the order and checks the caller may see it.
func (api *orderApi) contextOrder(ctx echo.Context) (order.Order, error) {
	ord, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return order.Order{}, errors.Wrap(err, "finding order by ID")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return order.Order{}, errors.Wrap(err, "getting context claims")
	}
	if claims.IsAdmin || ord.CustomerID == claims.Subject {
		return ord, nil
	}
	if claims.IsVendor {
		vnd, err := api.vendorSvc.GetByOwner(ctx.Request().Context(), claims.Subject)
		if err == nil && vnd.ID == ord.VendorID {
			return ord, nil
		}
	}
	return order.Order{}, errHttpNotFound
}

func (api *orderApi) retrieve(ctx echo.Context) error {
	ord, err := api.contextOrder(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, ord)
}

func (api *orderApi) cancel(ctx echo.Context) error {
	ord, err := api.contextOrder(ctx)
	if err != nil {
		return err
	}

	ord, err = api.pmtSvc.CancelOrder(ctx.Request().Context(), ord.ID)
	if err != nil {
		return errors.Wrap(err, "cancelling order")
	}
	return ctx.JSON(http.StatusOK, ord)
}

func (api *orderApi) checkout(ctx echo.Context) error {
	ctxUsr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	intent, err := api.pmtSvc.Checkout(ctx.Request().Context(), ctx.Param("id"), ctxUsr)
	if err != nil {
		if errors.Cause(err) == payment.ErrNotYourOrder {
			return errHttpNotFound
		}
		return errors.Wrap(err, "checking out order")
	}
	return ctx.JSON(http.StatusOK, intent)
}

// contextVendor resolves the vendor a dashboard request operates on: the
// caller's own vendor, or any vendor via the `vendor_id` query param for admins.
func (api *orderApi) contextVendor(ctx echo.Context) (vendor.Vendor, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return vendor.Vendor{}, errors.Wrap(err, "getting context claims")
	}
	if claims.IsAdmin {
		if id := ctx.QueryParam("vendor_id"); id != "" {
			return api.vendorSvc.GetByID(ctx.Request().Context(), id)
		}
	}
	return api.vendorSvc.GetByOwner(ctx.Request().Context(), claims.Subject)
}

func (api *orderApi) dashboardQuery(ctx echo.Context) error {
	vnd, err := api.contextVendor(ctx)
	if err != nil {
		return errors.Wrap(err, "resolving context vendor")
	}

	filter := new(order.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []order.Order{})
	}
	filter.VendorID = vnd.ID
	ordering := new(Ordering)
	ordering.Bind(ctx)

	orders, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying orders")
	}
	if orders == nil {
		orders = []order.Order{}
	}
	return ctx.JSON(http.StatusOK, orders)
}

// advance moves an order along the kitchen pipeline. Cancellation goes
// through the cancel endpoint so paid orders get refunded.
func (api *orderApi) advance(ctx echo.Context) error {
	var data order.AdvanceOrder
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AdvanceOrder")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	if data.Status == order.StatusCancelled {
		return errHttpForbidden
	}

	ord, err := api.contextOrder(ctx)
	if err != nil {
		return err
	}

	ord, err = api.svc.Advance(ctx.Request().Context(), ord.ID, data.Status)
	if err != nil {
		return errors.Wrap(err, "advancing order")
	}
	return ctx.JSON(http.StatusOK, ord)
}

// verifyPayment confirms a charge after the customer returns from the gateway
// checkout page. Safe to retry; settlement happens at most once.
func (api *orderApi) verifyPayment(ctx echo.Context) error {
	var data VerifyPaymentRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to VerifyPaymentRequest")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	pmt, err := api.pmtSvc.Verify(ctx.Request().Context(), data.Reference)
	if err != nil {
		return errors.Wrap(err, "verifying payment")
	}
	return ctx.JSON(http.StatusOK, pmt)
}

func (api *orderApi) adminQueryPayments(ctx echo.Context) error {
	filter := new(payment.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []payment.Payment{})
	}
	filter.OrderID = ctx.QueryParam("order_id")
	filter.VendorID = ctx.QueryParam("vendor_id")
	ordering := new(Ordering)
	ordering.Bind(ctx)

	pmts, err := api.pmtSvc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying payments")
	}
	if pmts == nil {
		pmts = []payment.Payment{}
	}
	return ctx.JSON(http.StatusOK, pmts)
}

type VerifyPaymentRequest struct {
	Reference string `json:"reference" validate:"required"`
}
