package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/chakula/core"
	"github.com/trezcool/chakula/core/payment"
)

const paymentColumns = `id, order_id, vendor_id, customer_id, reference, amount, commission,
	vendor_net, status, channel, gateway_ref, paid_at, created_at, updated_at`

var paymentOrderable = orderable("id", "reference", "amount", "commission", "vendor_net", "status", "channel", "paid_at", "created_at", "updated_at")

type paymentRow struct {
	ID         string      `db:"id"`
	OrderID    string      `db:"order_id"`
	VendorID   string      `db:"vendor_id"`
	CustomerID string      `db:"customer_id"`
	Reference  string      `db:"reference"`
	Amount     int64       `db:"amount"`
	Commission int64       `db:"commission"`
	VendorNet  int64       `db:"vendor_net"`
	Status     string      `db:"status"`
	Channel    null.String `db:"channel"`
	GatewayRef null.String `db:"gateway_ref"`
	PaidAt     null.Time   `db:"paid_at"`
	CreatedAt  null.Time   `db:"created_at"`
	UpdatedAt  null.Time   `db:"updated_at"`
}

func (r paymentRow) payment() payment.Payment {
	return payment.Payment{
		ID:         r.ID,
		OrderID:    r.OrderID,
		VendorID:   r.VendorID,
		CustomerID: r.CustomerID,
		Reference:  r.Reference,
		Amount:     r.Amount,
		Commission: r.Commission,
		VendorNet:  r.VendorNet,
		Status:     r.Status,
		Channel:    r.Channel.String,
		GatewayRef: r.GatewayRef.String,
		PaidAt:     r.PaidAt.Time,
		CreatedAt:  r.CreatedAt.Time,
		UpdatedAt:  r.UpdatedAt.Time,
	}
}

type paymentRepository struct {
	db *sqlx.DB
}

var _ payment.Repository = (*paymentRepository)(nil) // interface compliance check

func NewPaymentRepository(db *sqlx.DB) *paymentRepository {
	return &paymentRepository{db: db}
}

func (repo paymentRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return payment.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo paymentRepository) CreatePayment(ctx context.Context, pmt payment.Payment) (payment.Payment, error) {
	pmt.ID = uuid.New().String()
	q := `
		INSERT INTO payments (id, order_id, vendor_id, customer_id, reference, amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := repo.db.ExecContext(ctx, q,
		pmt.ID,
		pmt.OrderID,
		pmt.VendorID,
		pmt.CustomerID,
		pmt.Reference,
		pmt.Amount,
		pmt.Status,
		pmt.CreatedAt.UTC(),
		pmt.UpdatedAt.UTC(),
	)
	if err != nil {
		return payment.Payment{}, errors.Wrap(err, "inserting payment")
	}
	return pmt, nil
}

func (repo paymentRepository) GetPaymentByReference(ctx context.Context, reference string) (payment.Payment, error) {
	var row paymentRow
	q := fmt.Sprintf("SELECT %s FROM payments WHERE reference = $1", paymentColumns)
	if err := repo.db.GetContext(ctx, &row, q, reference); err != nil {
		return payment.Payment{}, repo.trapNoRowsErr(err, "finding payment")
	}
	return row.payment(), nil
}

func (repo paymentRepository) QueryPayments(ctx context.Context, filter *payment.QueryFilter, ordering []core.DBOrdering) ([]payment.Payment, error) {
	var args argList
	var conds []string

	if filter != nil {
		if filter.OrderID != "" {
			conds = append(conds, "order_id = "+args.add(filter.OrderID))
		}
		if filter.VendorID != "" {
			conds = append(conds, "vendor_id = "+args.add(filter.VendorID))
		}
		if filter.Status != "" {
			conds = append(conds, "status = "+args.add(filter.Status))
		}
	}

	q := fmt.Sprintf("SELECT %s FROM payments", paymentColumns)
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY " + orderBy(ordering, paymentOrderable, "created_at DESC")

	var rows []paymentRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying payments")
	}
	payments := make([]payment.Payment, 0, len(rows))
	for _, row := range rows {
		payments = append(payments, row.payment())
	}
	return payments, nil
}

func (repo paymentRepository) UpdatePayment(ctx context.Context, pmt payment.Payment) (payment.Payment, error) {
	q := `
		UPDATE payments SET status = $2, commission = $3, vendor_net = $4, channel = $5,
			gateway_ref = $6, paid_at = $7, updated_at = $8
		WHERE id = $1
		RETURNING ` + paymentColumns
	var row paymentRow
	err := repo.db.GetContext(ctx, &row, q,
		pmt.ID,
		pmt.Status,
		pmt.Commission,
		pmt.VendorNet,
		null.NewString(pmt.Channel, pmt.Channel != ""),
		null.NewString(pmt.GatewayRef, pmt.GatewayRef != ""),
		null.NewTime(pmt.PaidAt.UTC(), !pmt.PaidAt.IsZero()),
		pmt.UpdatedAt.UTC(),
	)
	if err != nil {
		return payment.Payment{}, repo.trapNoRowsErr(err, "updating payment")
	}
	return row.payment(), nil
}
