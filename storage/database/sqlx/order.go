package sqlxrepos

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/chakula/core"
	"github.com/trezcool/chakula/core/order"
)

const orderColumns = `id, ref, customer_id, vendor_id, lines, subtotal, delivery_fee, total,
	status, payment_status, address, phone, note, created_at, updated_at`

var orderOrderable = orderable("id", "ref", "subtotal", "delivery_fee", "total", "status", "payment_status", "created_at", "updated_at")

type orderRow struct {
	ID            string      `db:"id"`
	Ref           string      `db:"ref"`
	CustomerID    string      `db:"customer_id"`
	VendorID      string      `db:"vendor_id"`
	Lines         []byte      `db:"lines"`
	Subtotal      int64       `db:"subtotal"`
	DeliveryFee   int64       `db:"delivery_fee"`
	Total         int64       `db:"total"`
	Status        string      `db:"status"`
	PaymentStatus string      `db:"payment_status"`
	Address       null.String `db:"address"`
	Phone         null.String `db:"phone"`
	Note          null.String `db:"note"`
	CreatedAt     null.Time   `db:"created_at"`
	UpdatedAt     null.Time   `db:"updated_at"`
}

func (r orderRow) order() (order.Order, error) {
	var lines []order.Line
	if len(r.Lines) > 0 {
		if err := json.Unmarshal(r.Lines, &lines); err != nil {
			return order.Order{}, errors.Wrap(err, "decoding order lines")
		}
	}
	return order.Order{
		ID:            r.ID,
		Ref:           r.Ref,
		CustomerID:    r.CustomerID,
		VendorID:      r.VendorID,
		Lines:         lines,
		Subtotal:      r.Subtotal,
		DeliveryFee:   r.DeliveryFee,
		Total:         r.Total,
		Status:        order.Status(r.Status),
		PaymentStatus: r.PaymentStatus,
		Address:       r.Address.String,
		Phone:         r.Phone.String,
		Note:          r.Note.String,
		CreatedAt:     r.CreatedAt.Time,
		UpdatedAt:     r.UpdatedAt.Time,
	}, nil
}

type orderRepository struct {
	db *sqlx.DB
}

var _ order.Repository = (*orderRepository)(nil) // interface compliance check

func NewOrderRepository(db *sqlx.DB) *orderRepository {
	return &orderRepository{db: db}
}

func (repo orderRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return order.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo orderRepository) CreateOrder(ctx context.Context, ord order.Order) (order.Order, error) {
	ord.ID = uuid.New().String()
	lines, err := json.Marshal(ord.Lines)
	if err != nil {
		return order.Order{}, errors.Wrap(err, "encoding order lines")
	}

	q := `
		INSERT INTO orders (id, ref, customer_id, vendor_id, lines, subtotal, delivery_fee, total,
			status, payment_status, address, phone, note, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err = repo.db.ExecContext(ctx, q,
		ord.ID,
		ord.Ref,
		ord.CustomerID,
		ord.VendorID,
		lines,
		ord.Subtotal,
		ord.DeliveryFee,
		ord.Total,
		ord.Status,
		ord.PaymentStatus,
		ord.Address,
		ord.Phone,
		null.NewString(ord.Note, ord.Note != ""),
		ord.CreatedAt.UTC(),
		ord.UpdatedAt.UTC(),
	)
	if err != nil {
		return order.Order{}, errors.Wrap(err, "inserting order")
	}
	return ord, nil
}

func (repo orderRepository) getOrderWhere(ctx context.Context, cond string, args ...interface{}) (order.Order, error) {
	var row orderRow
	q := fmt.Sprintf("SELECT %s FROM orders WHERE %s", orderColumns, cond)
	if err := repo.db.GetContext(ctx, &row, q, args...); err != nil {
		return order.Order{}, repo.trapNoRowsErr(err, "finding order")
	}
	return row.order()
}

func (repo orderRepository) GetOrderByID(ctx context.Context, id string) (order.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return order.Order{}, order.ErrNotFound
	}
	return repo.getOrderWhere(ctx, "id = $1", id)
}

func (repo orderRepository) GetOrderByRef(ctx context.Context, ref string) (order.Order, error) {
	return repo.getOrderWhere(ctx, "ref = $1", ref)
}

func (repo orderRepository) QueryOrders(ctx context.Context, filter *order.QueryFilter, ordering []core.DBOrdering) ([]order.Order, error) {
	var args argList
	var conds []string

	if filter != nil {
		if filter.CustomerID != "" {
			conds = append(conds, "customer_id = "+args.add(filter.CustomerID))
		}
		if filter.VendorID != "" {
			conds = append(conds, "vendor_id = "+args.add(filter.VendorID))
		}
		if filter.Status != "" {
			conds = append(conds, "status = "+args.add(string(filter.Status)))
		}
		if filter.PaymentStatus != "" {
			conds = append(conds, "payment_status = "+args.add(filter.PaymentStatus))
		}
		if !filter.CreatedFrom.IsZero() {
			conds = append(conds, "created_at >= "+args.add(filter.CreatedFrom.UTC()))
		}
		if !filter.CreatedTo.IsZero() {
			conds = append(conds, "created_at <= "+args.add(filter.CreatedTo.UTC()))
		}
	}

	q := fmt.Sprintf("SELECT %s FROM orders", orderColumns)
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY " + orderBy(ordering, orderOrderable, "created_at DESC")

	var rows []orderRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying orders")
	}
	orders := make([]order.Order, 0, len(rows))
	for _, row := range rows {
		ord, err := row.order()
		if err != nil {
			return nil, err
		}
		orders = append(orders, ord)
	}
	return orders, nil
}

func (repo orderRepository) UpdateOrderStatus(ctx context.Context, id string, status order.Status, paymentStatus string) (order.Order, error) {
	var args argList
	sets := []string{"updated_at = NOW()"}
	if status != "" {
		sets = append(sets, "status = "+args.add(string(status)))
	}
	if paymentStatus != "" {
		sets = append(sets, "payment_status = "+args.add(paymentStatus))
	}

	q := fmt.Sprintf(
		"UPDATE orders SET %s WHERE id = %s RETURNING %s",
		strings.Join(sets, ", "), args.add(id), orderColumns)
	var row orderRow
	if err := repo.db.GetContext(ctx, &row, q, args...); err != nil {
		return order.Order{}, repo.trapNoRowsErr(err, "updating order status")
	}
	return row.order()
}
