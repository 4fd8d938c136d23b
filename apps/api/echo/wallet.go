package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/chakula/core"
	"github.com/trezcool/chakula/core/user"
	"github.com/trezcool/chakula/core/vendor"
	"github.com/trezcool/chakula/core/wallet"
)

type walletApi struct {
	svc       wallet.Service
	vendorSvc vendor.Service
	userSvc   user.Service
	gateway   core.PaymentGateway
	validate  *validator.Validate
}

func registerWalletAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc wallet.Service,
	vendorSvc vendor.Service,
	userSvc user.Service,
	gateway core.PaymentGateway,
	validate *validator.Validate,
) {
	api := walletApi{
		svc:       svc,
		vendorSvc: vendorSvc,
		userSvc:   userSvc,
		gateway:   gateway,
		validate:  validate,
	}

	wg := g.Group("/vendor/wallet", jwt, vendorStaffMiddleware())
	wg.GET("", api.balance)
	wg.GET("/entries", api.entries)
	wg.GET("/withdrawals", api.withdrawals)
	wg.POST("/withdrawals", api.requestWithdrawal, vendorStaffMiddleware(user.RoleVendorOwner))

	// bank list for the settlement account picker
	g.GET("/banks", api.banks, jwt)
}

// contextVendor resolves the caller's vendor, or any vendor via the
// `vendor_id` query param for admins.
func (api *walletApi) contextVendor(ctx echo.Context) (vendor.Vendor, error) {
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

// Handlers

func (api *walletApi) balance(ctx echo.Context) error {
	vnd, err := api.contextVendor(ctx)
	if err != nil {
		return errors.Wrap(err, "resolving context vendor")
	}

	bal, err := api.svc.Balance(ctx.Request().Context(), vnd.ID)
	if err != nil {
		return errors.Wrap(err, "getting wallet balance")
	}
	return ctx.JSON(http.StatusOK, bal)
}

func (api *walletApi) entries(ctx echo.Context) error {
	vnd, err := api.contextVendor(ctx)
	if err != nil {
		return errors.Wrap(err, "resolving context vendor")
	}

	ordering := new(Ordering)
	ordering.Bind(ctx)

	entries, err := api.svc.Entries(ctx.Request().Context(), vnd.ID, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying wallet entries")
	}
	if entries == nil {
		entries = []wallet.Entry{}
	}
	return ctx.JSON(http.StatusOK, entries)
}

func (api *walletApi) withdrawals(ctx echo.Context) error {
	vnd, err := api.contextVendor(ctx)
	if err != nil {
		return errors.Wrap(err, "resolving context vendor")
	}

	ordering := new(Ordering)
	ordering.Bind(ctx)

	wds, err := api.svc.Withdrawals(ctx.Request().Context(), vnd.ID, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying withdrawals")
	}
	if wds == nil {
		wds = []wallet.Withdrawal{}
	}
	return ctx.JSON(http.StatusOK, wds)
}

func (api *walletApi) requestWithdrawal(ctx echo.Context) error {
	vnd, err := api.contextVendor(ctx)
	if err != nil {
		return errors.Wrap(err, "resolving context vendor")
	}

	var data wallet.NewWithdrawal
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewWithdrawal")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	wd, err := api.svc.RequestWithdrawal(ctx.Request().Context(), vnd.ID, data)
	if err != nil {
		return errors.Wrap(err, "requesting withdrawal")
	}
	return ctx.JSON(http.StatusCreated, wd)
}

func (api *walletApi) banks(ctx echo.Context) error {
	banks, err := api.gateway.ListBanks(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "listing banks")
	}
	if banks == nil {
		banks = []core.Bank{}
	}
	return ctx.JSON(http.StatusOK, banks)
}
