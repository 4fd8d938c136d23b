package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/chakula/core"
	"github.com/trezcool/chakula/core/order"
)

type orderRepository struct {
	db *DB
}

var _ order.Repository = (*orderRepository)(nil) // interface compliance check

func NewOrderRepository(db *DB) *orderRepository {
	return &orderRepository{db: db}
}

func (repo *orderRepository) query() []order.Order {
	orders := make([]order.Order, 0, len(repo.db.orders))
	for _, o := range repo.db.orders {
		orders = append(orders, *o)
	}
	// newest first, matching the sql backend's default
	sort.Slice(orders, func(i, j int) bool {
		if orders[i].CreatedAt.Equal(orders[j].CreatedAt) {
			return orders[i].ID > orders[j].ID
		}
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders
}

func (repo *orderRepository) CreateOrder(ctx context.Context, ord order.Order) (order.Order, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	ord.ID = uuid.New().String()
	repo.db.orders[ord.ID] = &ord
	return ord, nil
}

func (repo *orderRepository) GetOrderByID(ctx context.Context, id string) (order.Order, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if ord, ok := repo.db.orders[id]; ok {
		return *ord, nil
	}
	return order.Order{}, order.ErrNotFound
}

func (repo *orderRepository) GetOrderByRef(ctx context.Context, ref string) (order.Order, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, ord := range repo.db.orders {
		if ord.Ref == ref {
			return *ord, nil
		}
	}
	return order.Order{}, order.ErrNotFound
}

func (repo *orderRepository) QueryOrders(ctx context.Context, filter *order.QueryFilter, ordering []core.DBOrdering) ([]order.Order, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	orders := repo.query()
	if filter == nil || filter.IsEmpty() {
		return orders, nil
	}

	matches := make([]order.Order, 0, len(orders))
	for _, ord := range orders {
		if filter.CustomerID != "" && ord.CustomerID != filter.CustomerID {
			continue
		}
		if filter.VendorID != "" && ord.VendorID != filter.VendorID {
			continue
		}
		if filter.Status != "" && ord.Status != filter.Status {
			continue
		}
		if filter.PaymentStatus != "" && ord.PaymentStatus != filter.PaymentStatus {
			continue
		}
		if !filter.CreatedFrom.IsZero() && ord.CreatedAt.Before(filter.CreatedFrom) {
			continue
		}
		if !filter.CreatedTo.IsZero() && ord.CreatedAt.After(filter.CreatedTo) {
			continue
		}
		matches = append(matches, ord)
	}
	return matches, nil
}

func (repo *orderRepository) UpdateOrderStatus(ctx context.Context, id string, status order.Status, paymentStatus string) (order.Order, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	ord, ok := repo.db.orders[id]
	if !ok {
		return order.Order{}, order.ErrNotFound
	}
	if status != "" {
		ord.Status = status
	}
	if paymentStatus != "" {
		ord.PaymentStatus = paymentStatus
	}
	ord.UpdatedAt = time.Now().UTC()
	return *ord, nil
}
