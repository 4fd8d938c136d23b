package paystack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/trezcool/chakula/core"
)

type transactionData struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type chargeData struct {
	ID        int64  `json:"id"`
	Status    string `json:"status"`
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Channel   string `json:"channel"`
	PaidAt    string `json:"paid_at"`
	Customer  struct {
		Email string `json:"email"`
	} `json:"customer"`
}

func (d chargeData) charge() core.GatewayCharge {
	charge := core.GatewayCharge{
		Reference:     d.Reference,
		Status:        d.Status,
		Amount:        d.Amount,
		Currency:      d.Currency,
		Channel:       d.Channel,
		CustomerEmail: d.Customer.Email,
	}
	if d.ID != 0 {
		charge.GatewayRef = strconv.FormatInt(d.ID, 10)
	}
	if t, err := time.Parse(time.RFC3339, d.PaidAt); err == nil {
		charge.PaidAt = t
	}
	return charge
}

func (c *Client) InitializeTransaction(ctx context.Context, email string, amount int64, reference, callbackURL string) (core.GatewayTransaction, error) {
	params := map[string]interface{}{
		"email":     email,
		"amount":    amount,
		"reference": reference,
		"currency":  "NGN",
	}
	if callbackURL != "" {
		params["callback_url"] = callbackURL
	}

	var data transactionData
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", params, &data); err != nil {
		return core.GatewayTransaction{}, err
	}
	return core.GatewayTransaction{
		Reference:        data.Reference,
		AccessCode:       data.AccessCode,
		AuthorizationURL: data.AuthorizationURL,
	}, nil
}

func (c *Client) VerifyTransaction(ctx context.Context, reference string) (core.GatewayCharge, error) {
	var data chargeData
	if err := c.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &data); err != nil {
		return core.GatewayCharge{}, err
	}
	return data.charge(), nil
}

func (c *Client) ListBanks(ctx context.Context) ([]core.Bank, error) {
	var data []struct {
		Name string `json:"name"`
		Code string `json:"code"`
	}
	if err := c.do(ctx, http.MethodGet, "/bank?country=nigeria", nil, &data); err != nil {
		return nil, err
	}
	banks := make([]core.Bank, 0, len(data))
	for _, b := range data {
		banks = append(banks, core.Bank{Name: b.Name, Code: b.Code})
	}
	return banks, nil
}

func (c *Client) ResolveAccount(ctx context.Context, accountNumber, bankCode string) (core.ResolvedAccount, error) {
	q := make(url.Values)
	q.Set("account_number", accountNumber)
	q.Set("bank_code", bankCode)

	var data struct {
		AccountNumber string `json:"account_number"`
		AccountName   string `json:"account_name"`
	}
	if err := c.do(ctx, http.MethodGet, "/bank/resolve?"+q.Encode(), nil, &data); err != nil {
		return core.ResolvedAccount{}, err
	}
	return core.ResolvedAccount{AccountNumber: data.AccountNumber, AccountName: data.AccountName}, nil
}

func (c *Client) CreateTransferRecipient(ctx context.Context, name, accountNumber, bankCode string) (core.TransferRecipient, error) {
	params := map[string]interface{}{
		"type":           "nuban",
		"name":           name,
		"account_number": accountNumber,
		"bank_code":      bankCode,
		"currency":       "NGN",
	}

	var data struct {
		RecipientCode string `json:"recipient_code"`
	}
	if err := c.do(ctx, http.MethodPost, "/transferrecipient", params, &data); err != nil {
		return core.TransferRecipient{}, err
	}
	return core.TransferRecipient{RecipientCode: data.RecipientCode}, nil
}

func (c *Client) InitiateTransfer(ctx context.Context, recipientCode string, amount int64, reference, reason string) (core.GatewayTransfer, error) {
	params := map[string]interface{}{
		"source":    "balance",
		"recipient": recipientCode,
		"amount":    amount,
		"reference": reference,
		"reason":    reason,
	}

	var data struct {
		TransferCode string `json:"transfer_code"`
		Reference    string `json:"reference"`
		Status       string `json:"status"`
	}
	if err := c.do(ctx, http.MethodPost, "/transfer", params, &data); err != nil {
		return core.GatewayTransfer{}, err
	}
	return core.GatewayTransfer{
		TransferCode: data.TransferCode,
		Reference:    data.Reference,
		Status:       data.Status,
	}, nil
}

// Event is a decoded webhook notification.
type Event struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}
