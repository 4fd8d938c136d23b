package inmemdb

import (
	"strings"
	"sync"

	"github.com/trezcool/chakula/core/order"
	"github.com/trezcool/chakula/core/payment"
	"github.com/trezcool/chakula/core/user"
	"github.com/trezcool/chakula/core/vendor"
	"github.com/trezcool/chakula/core/wallet"
)

// DB is an in-memory storage backend used by tests and local development.
type DB struct {
	mutex sync.RWMutex

	users       map[string]*user.User
	vendors     map[string]*vendor.Vendor
	menuItems   map[string]*vendor.MenuItem
	orders      map[string]*order.Order
	payments    map[string]*payment.Payment
	entries     map[string]*wallet.Entry
	withdrawals map[string]*wallet.Withdrawal
}

func NewDB() *DB {
	return &DB{
		users:       make(map[string]*user.User),
		vendors:     make(map[string]*vendor.Vendor),
		menuItems:   make(map[string]*vendor.MenuItem),
		orders:      make(map[string]*order.Order),
		payments:    make(map[string]*payment.Payment),
		entries:     make(map[string]*wallet.Entry),
		withdrawals: make(map[string]*wallet.Withdrawal),
	}
}

// Reset drops all data; handy between tests sharing one DB.
func (db *DB) Reset() {
	db.mutex.Lock()
	defer db.mutex.Unlock()
	db.users = make(map[string]*user.User)
	db.vendors = make(map[string]*vendor.Vendor)
	db.menuItems = make(map[string]*vendor.MenuItem)
	db.orders = make(map[string]*order.Order)
	db.payments = make(map[string]*payment.Payment)
	db.entries = make(map[string]*wallet.Entry)
	db.withdrawals = make(map[string]*wallet.Withdrawal)
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
