package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/chakula/core"
	"github.com/trezcool/chakula/core/vendor"
)

type vendorRepository struct {
	db *DB
}

var _ vendor.Repository = (*vendorRepository)(nil) // interface compliance check

func NewVendorRepository(db *DB) *vendorRepository {
	return &vendorRepository{db: db}
}

func (repo *vendorRepository) query() []vendor.Vendor {
	vendors := make([]vendor.Vendor, 0, len(repo.db.vendors))
	for _, v := range repo.db.vendors {
		vendors = append(vendors, *v)
	}
	sort.Slice(vendors, func(i, j int) bool {
		if vendors[i].Name == vendors[j].Name {
			return vendors[i].ID < vendors[j].ID
		}
		return vendors[i].Name < vendors[j].Name
	})
	return vendors
}

func (repo *vendorRepository) CheckSlugUniqueness(ctx context.Context, slug string, excludedVendors ...vendor.Vendor) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	excluded := make(map[string]bool, len(excludedVendors))
	for _, v := range excludedVendors {
		excluded[v.ID] = true
	}

	for _, vnd := range repo.db.vendors {
		if vnd.Slug == slug && !excluded[vnd.ID] {
			return vendor.ErrSlugExists
		}
	}
	return nil
}

func (repo *vendorRepository) CreateVendor(ctx context.Context, vnd vendor.Vendor) (vendor.Vendor, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	vnd.ID = uuid.New().String()
	repo.db.vendors[vnd.ID] = &vnd
	return vnd, nil
}

func (repo *vendorRepository) GetVendorByID(ctx context.Context, id string) (vendor.Vendor, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if vnd, ok := repo.db.vendors[id]; ok {
		return *vnd, nil
	}
	return vendor.Vendor{}, vendor.ErrNotFound
}

func (repo *vendorRepository) GetVendorBySlug(ctx context.Context, slug string) (vendor.Vendor, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, vnd := range repo.db.vendors {
		if vnd.Slug == slug {
			return *vnd, nil
		}
	}
	return vendor.Vendor{}, vendor.ErrNotFound
}

func (repo *vendorRepository) GetVendorByOwnerID(ctx context.Context, ownerID string) (vendor.Vendor, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, vnd := range repo.db.vendors {
		if vnd.OwnerID == ownerID {
			return *vnd, nil
		}
	}
	return vendor.Vendor{}, vendor.ErrNotFound
}

func (repo *vendorRepository) QueryVendors(ctx context.Context, filter *vendor.QueryFilter, ordering []core.DBOrdering) ([]vendor.Vendor, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	vendors := repo.query()
	if filter == nil || filter.IsEmpty() {
		return vendors, nil
	}

	matches := make([]vendor.Vendor, 0, len(vendors))
	for _, vnd := range vendors {
		if filter.Search != "" &&
			!containsFold(vnd.Name, filter.Search) &&
			!containsFold(vnd.Description, filter.Search) &&
			!containsFold(vnd.Cuisine, filter.Search) {
			continue
		}
		if filter.City != "" && !strings.EqualFold(vnd.City, filter.City) {
			continue
		}
		if filter.Cuisine != "" && !strings.EqualFold(vnd.Cuisine, filter.Cuisine) {
			continue
		}
		if filter.Status != "" && vnd.Status != filter.Status {
			continue
		}
		matches = append(matches, vnd)
	}
	return matches, nil
}

func (repo *vendorRepository) UpdateVendor(ctx context.Context, vnd vendor.Vendor) (vendor.Vendor, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.vendors[vnd.ID]; !ok {
		return vendor.Vendor{}, vendor.ErrNotFound
	}
	repo.db.vendors[vnd.ID] = &vnd
	return vnd, nil
}

func (repo *vendorRepository) CreateMenuItem(ctx context.Context, item vendor.MenuItem) (vendor.MenuItem, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	item.ID = uuid.New().String()
	repo.db.menuItems[item.ID] = &item
	return item, nil
}

func (repo *vendorRepository) GetMenuItemByID(ctx context.Context, id string) (vendor.MenuItem, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if item, ok := repo.db.menuItems[id]; ok {
		return *item, nil
	}
	return vendor.MenuItem{}, vendor.ErrMenuItemNotFound
}

func (repo *vendorRepository) QueryMenuItems(ctx context.Context, vendorID string, filter *vendor.MenuFilter) ([]vendor.MenuItem, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	items := make([]vendor.MenuItem, 0, len(repo.db.menuItems))
	for _, item := range repo.db.menuItems {
		if item.VendorID != vendorID {
			continue
		}
		if filter != nil {
			if filter.Category != "" && !strings.EqualFold(item.Category, filter.Category) {
				continue
			}
			if filter.AvailableOnly && !item.Available() {
				continue
			}
		}
		items = append(items, *item)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Category == items[j].Category {
			return items[i].Name < items[j].Name
		}
		return items[i].Category < items[j].Category
	})
	return items, nil
}

func (repo *vendorRepository) UpdateMenuItem(ctx context.Context, item vendor.MenuItem, isAvailable *bool) (vendor.MenuItem, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	// only save set fields
	orig, ok := repo.db.menuItems[item.ID]
	if !ok {
		return vendor.MenuItem{}, vendor.ErrMenuItemNotFound
	}
	if item.Name != "" {
		orig.Name = item.Name
	}
	if item.Description != "" {
		orig.Description = item.Description
	}
	if item.Price != 0 {
		orig.Price = item.Price
	}
	if item.Category != "" {
		orig.Category = item.Category
	}
	if item.ImageURL != "" {
		orig.ImageURL = item.ImageURL
	}
	if isAvailable != nil {
		orig.SetAvailable(*isAvailable)
	}
	if !item.UpdatedAt.IsZero() {
		orig.UpdatedAt = item.UpdatedAt
	}
	return *orig, nil
}

func (repo *vendorRepository) DeleteMenuItemsByID(ctx context.Context, ids ...string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()
	for _, id := range ids {
		delete(repo.db.menuItems, id)
	}
	return nil
}
