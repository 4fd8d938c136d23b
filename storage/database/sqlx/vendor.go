package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/chakula/core"
	"github.com/trezcool/chakula/core/vendor"
)

const (
	vendorColumns = `id, owner_id, name, slug, description, address, city, phone, cuisine,
		opens_at, closes_at, status, commission_rate, bank_code, account_number, account_name,
		recipient_code, created_at, updated_at`
	menuItemColumns = "id, vendor_id, name, description, price, category, image_url, is_available, created_at, updated_at"
)

var vendorOrderable = orderable("id", "name", "slug", "city", "cuisine", "status", "commission_rate", "created_at", "updated_at")

type vendorRow struct {
	ID             string       `db:"id"`
	OwnerID        string       `db:"owner_id"`
	Name           null.String  `db:"name"`
	Slug           null.String  `db:"slug"`
	Description    null.String  `db:"description"`
	Address        null.String  `db:"address"`
	City           null.String  `db:"city"`
	Phone          null.String  `db:"phone"`
	Cuisine        null.String  `db:"cuisine"`
	OpensAt        null.String  `db:"opens_at"`
	ClosesAt       null.String  `db:"closes_at"`
	Status         null.String  `db:"status"`
	CommissionRate null.Float64 `db:"commission_rate"`
	BankCode       null.String  `db:"bank_code"`
	AccountNumber  null.String  `db:"account_number"`
	AccountName    null.String  `db:"account_name"`
	RecipientCode  null.String  `db:"recipient_code"`
	CreatedAt      null.Time    `db:"created_at"`
	UpdatedAt      null.Time    `db:"updated_at"`
}

func (r vendorRow) vendor() vendor.Vendor {
	return vendor.Vendor{
		ID:             r.ID,
		OwnerID:        r.OwnerID,
		Name:           r.Name.String,
		Slug:           r.Slug.String,
		Description:    r.Description.String,
		Address:        r.Address.String,
		City:           r.City.String,
		Phone:          r.Phone.String,
		Cuisine:        r.Cuisine.String,
		OpensAt:        r.OpensAt.String,
		ClosesAt:       r.ClosesAt.String,
		Status:         r.Status.String,
		CommissionRate: r.CommissionRate.Ptr(),
		BankAccount: vendor.BankAccount{
			BankCode:      r.BankCode.String,
			AccountNumber: r.AccountNumber.String,
			AccountName:   r.AccountName.String,
			RecipientCode: r.RecipientCode.String,
		},
		CreatedAt: r.CreatedAt.Time,
		UpdatedAt: r.UpdatedAt.Time,
	}
}

type menuItemRow struct {
	ID          string      `db:"id"`
	VendorID    string      `db:"vendor_id"`
	Name        null.String `db:"name"`
	Description null.String `db:"description"`
	Price       null.Int64  `db:"price"`
	Category    null.String `db:"category"`
	ImageURL    null.String `db:"image_url"`
	IsAvailable null.Bool   `db:"is_available"`
	CreatedAt   null.Time   `db:"created_at"`
	UpdatedAt   null.Time   `db:"updated_at"`
}

func (r menuItemRow) menuItem() vendor.MenuItem {
	return vendor.MenuItem{
		ID:          r.ID,
		VendorID:    r.VendorID,
		Name:        r.Name.String,
		Description: r.Description.String,
		Price:       r.Price.Int64,
		Category:    r.Category.String,
		ImageURL:    r.ImageURL.String,
		IsAvailable: r.IsAvailable.Ptr(),
		CreatedAt:   r.CreatedAt.Time,
		UpdatedAt:   r.UpdatedAt.Time,
	}
}

type vendorRepository struct {
	db *sqlx.DB
}

var _ vendor.Repository = (*vendorRepository)(nil) // interface compliance check

func NewVendorRepository(db *sqlx.DB) *vendorRepository {
	return &vendorRepository{db: db}
}

func (repo vendorRepository) trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func (repo vendorRepository) CheckSlugUniqueness(ctx context.Context, slug string, excludedVendors ...vendor.Vendor) error {
	var args argList
	cond := "slug = " + args.add(slug)
	if len(excludedVendors) > 0 {
		ids := make([]string, 0, len(excludedVendors))
		for _, v := range excludedVendors {
			ids = append(ids, v.ID)
		}
		cond += fmt.Sprintf(" AND id != ALL(%s)", args.add(pq.StringArray(ids)))
	}

	var exists bool
	q := "SELECT EXISTS (SELECT 1 FROM vendors WHERE " + cond + ")"
	if err := repo.db.GetContext(ctx, &exists, q, args...); err != nil {
		return errors.Wrap(err, "checking slug uniqueness")
	}
	if exists {
		return vendor.ErrSlugExists
	}
	return nil
}

func (repo vendorRepository) CreateVendor(ctx context.Context, vnd vendor.Vendor) (vendor.Vendor, error) {
	vnd.ID = uuid.New().String()
	q := `
		INSERT INTO vendors (id, owner_id, name, slug, description, address, city, phone, cuisine,
			opens_at, closes_at, status, commission_rate, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := repo.db.ExecContext(ctx, q,
		vnd.ID,
		vnd.OwnerID,
		vnd.Name,
		vnd.Slug,
		vnd.Description,
		vnd.Address,
		vnd.City,
		vnd.Phone,
		vnd.Cuisine,
		null.NewString(vnd.OpensAt, vnd.OpensAt != ""),
		null.NewString(vnd.ClosesAt, vnd.ClosesAt != ""),
		vnd.Status,
		null.Float64FromPtr(vnd.CommissionRate),
		vnd.CreatedAt.UTC(),
		vnd.UpdatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return vendor.Vendor{}, vendor.ErrSlugExists
		}
		return vendor.Vendor{}, errors.Wrap(err, "inserting vendor")
	}
	return vnd, nil
}

func (repo vendorRepository) getVendorWhere(ctx context.Context, cond string, args ...interface{}) (vendor.Vendor, error) {
	var row vendorRow
	q := fmt.Sprintf("SELECT %s FROM vendors WHERE %s", vendorColumns, cond)
	if err := repo.db.GetContext(ctx, &row, q, args...); err != nil {
		return vendor.Vendor{}, repo.trapNoRowsErr(err, vendor.ErrNotFound, "finding vendor")
	}
	return row.vendor(), nil
}

func (repo vendorRepository) GetVendorByID(ctx context.Context, id string) (vendor.Vendor, error) {
	if _, err := uuid.Parse(id); err != nil {
		return vendor.Vendor{}, vendor.ErrNotFound
	}
	return repo.getVendorWhere(ctx, "id = $1", id)
}

func (repo vendorRepository) GetVendorBySlug(ctx context.Context, slug string) (vendor.Vendor, error) {
	return repo.getVendorWhere(ctx, "slug = $1", slug)
}

func (repo vendorRepository) GetVendorByOwnerID(ctx context.Context, ownerID string) (vendor.Vendor, error) {
	return repo.getVendorWhere(ctx, "owner_id = $1", ownerID)
}

func (repo vendorRepository) QueryVendors(ctx context.Context, filter *vendor.QueryFilter, ordering []core.DBOrdering) ([]vendor.Vendor, error) {
	var args argList
	var conds []string

	if filter != nil {
		if filter.Search != "" {
			val := args.add("%" + filter.Search + "%")
			conds = append(conds, fmt.Sprintf("(name ILIKE %[1]s OR description ILIKE %[1]s OR cuisine ILIKE %[1]s)", val))
		}
		if filter.City != "" {
			conds = append(conds, "LOWER(city) = "+args.add(filter.City))
		}
		if filter.Cuisine != "" {
			conds = append(conds, "LOWER(cuisine) = "+args.add(filter.Cuisine))
		}
		if filter.Status != "" {
			conds = append(conds, "status = "+args.add(filter.Status))
		}
	}

	q := fmt.Sprintf("SELECT %s FROM vendors", vendorColumns)
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY " + orderBy(ordering, vendorOrderable, "name ASC")

	var rows []vendorRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying vendors")
	}
	vendors := make([]vendor.Vendor, 0, len(rows))
	for _, row := range rows {
		vendors = append(vendors, row.vendor())
	}
	return vendors, nil
}

func (repo vendorRepository) UpdateVendor(ctx context.Context, vnd vendor.Vendor) (vendor.Vendor, error) {
	q := `
		UPDATE vendors SET name = $2, slug = $3, description = $4, address = $5, city = $6,
			phone = $7, cuisine = $8, opens_at = $9, closes_at = $10, status = $11,
			commission_rate = $12, bank_code = $13, account_number = $14, account_name = $15,
			recipient_code = $16, updated_at = $17
		WHERE id = $1
		RETURNING ` + vendorColumns
	var row vendorRow
	err := repo.db.GetContext(ctx, &row, q,
		vnd.ID,
		vnd.Name,
		vnd.Slug,
		vnd.Description,
		vnd.Address,
		vnd.City,
		vnd.Phone,
		vnd.Cuisine,
		null.NewString(vnd.OpensAt, vnd.OpensAt != ""),
		null.NewString(vnd.ClosesAt, vnd.ClosesAt != ""),
		vnd.Status,
		null.Float64FromPtr(vnd.CommissionRate),
		null.NewString(vnd.BankAccount.BankCode, vnd.BankAccount.BankCode != ""),
		null.NewString(vnd.BankAccount.AccountNumber, vnd.BankAccount.AccountNumber != ""),
		null.NewString(vnd.BankAccount.AccountName, vnd.BankAccount.AccountName != ""),
		null.NewString(vnd.BankAccount.RecipientCode, vnd.BankAccount.RecipientCode != ""),
		vnd.UpdatedAt.UTC(),
	)
	if err != nil {
		return vendor.Vendor{}, repo.trapNoRowsErr(err, vendor.ErrNotFound, "updating vendor")
	}
	return row.vendor(), nil
}

func (repo vendorRepository) CreateMenuItem(ctx context.Context, item vendor.MenuItem) (vendor.MenuItem, error) {
	item.ID = uuid.New().String()
	q := `
		INSERT INTO menu_items (id, vendor_id, name, description, price, category, image_url, is_available, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := repo.db.ExecContext(ctx, q,
		item.ID,
		item.VendorID,
		item.Name,
		item.Description,
		item.Price,
		item.Category,
		item.ImageURL,
		null.BoolFromPtr(item.IsAvailable),
		item.CreatedAt.UTC(),
		item.UpdatedAt.UTC(),
	)
	if err != nil {
		return vendor.MenuItem{}, errors.Wrap(err, "inserting menu item")
	}
	return item, nil
}

func (repo vendorRepository) GetMenuItemByID(ctx context.Context, id string) (vendor.MenuItem, error) {
	if _, err := uuid.Parse(id); err != nil {
		return vendor.MenuItem{}, vendor.ErrMenuItemNotFound
	}
	var row menuItemRow
	q := fmt.Sprintf("SELECT %s FROM menu_items WHERE id = $1", menuItemColumns)
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		return vendor.MenuItem{}, repo.trapNoRowsErr(err, vendor.ErrMenuItemNotFound, "finding menu item")
	}
	return row.menuItem(), nil
}

func (repo vendorRepository) QueryMenuItems(ctx context.Context, vendorID string, filter *vendor.MenuFilter) ([]vendor.MenuItem, error) {
	var args argList
	conds := []string{"vendor_id = " + args.add(vendorID)}

	if filter != nil {
		if filter.Category != "" {
			conds = append(conds, "LOWER(category) = "+args.add(strings.ToLower(filter.Category)))
		}
		if filter.AvailableOnly {
			conds = append(conds, "is_available = TRUE")
		}
	}

	q := fmt.Sprintf(
		"SELECT %s FROM menu_items WHERE %s ORDER BY category ASC, name ASC",
		menuItemColumns, strings.Join(conds, " AND "))

	var rows []menuItemRow
	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying menu items")
	}
	items := make([]vendor.MenuItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.menuItem())
	}
	return items, nil
}

func (repo vendorRepository) UpdateMenuItem(ctx context.Context, item vendor.MenuItem, isAvailable *bool) (vendor.MenuItem, error) {
	// only save set fields
	var args argList
	var sets []string
	if item.Name != "" {
		sets = append(sets, "name = "+args.add(item.Name))
	}
	if item.Description != "" {
		sets = append(sets, "description = "+args.add(item.Description))
	}
	if item.Price != 0 {
		sets = append(sets, "price = "+args.add(item.Price))
	}
	if item.Category != "" {
		sets = append(sets, "category = "+args.add(item.Category))
	}
	if item.ImageURL != "" {
		sets = append(sets, "image_url = "+args.add(item.ImageURL))
	}
	if isAvailable != nil {
		sets = append(sets, "is_available = "+args.add(*isAvailable))
	}
	if !item.UpdatedAt.IsZero() {
		sets = append(sets, "updated_at = "+args.add(item.UpdatedAt.UTC()))
	}
	if len(sets) == 0 {
		return repo.GetMenuItemByID(ctx, item.ID)
	}

	q := fmt.Sprintf(
		"UPDATE menu_items SET %s WHERE id = %s RETURNING %s",
		strings.Join(sets, ", "), args.add(item.ID), menuItemColumns)
	var row menuItemRow
	if err := repo.db.GetContext(ctx, &row, q, args...); err != nil {
		return vendor.MenuItem{}, repo.trapNoRowsErr(err, vendor.ErrMenuItemNotFound, "updating menu item")
	}
	return row.menuItem(), nil
}

func (repo vendorRepository) DeleteMenuItemsByID(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := repo.db.ExecContext(ctx, "DELETE FROM menu_items WHERE id = ANY($1)", pq.StringArray(ids)); err != nil {
		return errors.Wrap(err, "deleting menu items")
	}
	return nil
}
