package echoapi

import (
	"encoding/json"
	"io/ioutil"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/chakula/core"
	"github.com/trezcool/chakula/core/payment"
	"github.com/trezcool/chakula/core/wallet"
)

const paystackSignatureHeader = "x-paystack-signature"

type hooksApi struct {
	pmtSvc    payment.Service
	walletSvc wallet.Service
	gateway   core.PaymentGateway
	logger    core.Logger
}

// registerHooksAPI mounts the gateway webhook outside the JWT middleware;
// authenticity comes from the payload signature instead.
func registerHooksAPI(
	g *echo.Group,
	pmtSvc payment.Service,
	walletSvc wallet.Service,
	gateway core.PaymentGateway,
	logger core.Logger,
) {
	api := hooksApi{
		pmtSvc:    pmtSvc,
		walletSvc: walletSvc,
		gateway:   gateway,
		logger:    logger,
	}
	g.POST("/hooks/paystack", api.paystack)
}

// webhookEvent mirrors the slice of the gateway event envelope we care about.
type webhookEvent struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
		Status    string `json:"status"`
		Reason    string `json:"reason"`
		Transfer  struct {
			Reference string `json:"reference"`
		} `json:"transfer"`
	} `json:"data"`
}

func (api *hooksApi) paystack(ctx echo.Context) error {
	payload, err := ioutil.ReadAll(ctx.Request().Body)
	if err != nil {
		return errors.Wrap(err, "reading webhook payload")
	}
	if !api.gateway.VerifyWebhookSignature(payload, ctx.Request().Header.Get(paystackSignatureHeader)) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid signature")
	}

	var event webhookEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "malformed payload")
	}

	rctx := ctx.Request().Context()
	switch event.Event {
	case "charge.success":
		if _, err := api.pmtSvc.Verify(rctx, event.Data.Reference); err != nil {
			// the processor retries on non-2xx; transient failures self-heal
			api.logger.Error("settling webhook charge "+event.Data.Reference, err)
			return echo.NewHTTPError(http.StatusInternalServerError, "settlement failed")
		}

	case "transfer.success", "transfer.failed", "transfer.reversed":
		reference := event.Data.Reference
		if reference == "" {
			reference = event.Data.Transfer.Reference
		}
		status := event.Data.Status
		if status == "" {
			// derive from the event name, e.g. "transfer.reversed"
			status = event.Event[len("transfer."):]
		}
		if err := api.walletSvc.HandleTransferUpdate(rctx, reference, status, event.Data.Reason); err != nil {
			if errors.Cause(err) == wallet.ErrWithdrawalNotFound {
				break // not one of ours
			}
			api.logger.Error("handling transfer update "+reference, err)
			return echo.NewHTTPError(http.StatusInternalServerError, "transfer update failed")
		}
	}

	// unknown events are acknowledged so the processor stops retrying
	return ctx.NoContent(http.StatusOK)
}
