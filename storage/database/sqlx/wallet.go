package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/chakula/core"
	"github.com/trezcool/chakula/core/wallet"
)

const (
	entryColumns      = "id, vendor_id, kind, amount, reference, order_id, note, created_at"
	withdrawalColumns = `id, vendor_id, amount, status, reference, recipient_code, transfer_code,
		failure_reason, created_at, updated_at`
)

var (
	entryOrderable      = orderable("id", "kind", "amount", "reference", "created_at")
	withdrawalOrderable = orderable("id", "amount", "status", "reference", "created_at", "updated_at")
)

type entryRow struct {
	ID        string      `db:"id"`
	VendorID  string      `db:"vendor_id"`
	Kind      string      `db:"kind"`
	Amount    int64       `db:"amount"`
	Reference string      `db:"reference"`
	OrderID   null.String `db:"order_id"`
	Note      null.String `db:"note"`
	CreatedAt null.Time   `db:"created_at"`
}

func (r entryRow) entry() wallet.Entry {
	return wallet.Entry{
		ID:        r.ID,
		VendorID:  r.VendorID,
		Kind:      r.Kind,
		Amount:    r.Amount,
		Reference: r.Reference,
		OrderID:   r.OrderID.String,
		Note:      r.Note.String,
		CreatedAt: r.CreatedAt.Time,
	}
}

type withdrawalRow struct {
	ID            string      `db:"id"`
	VendorID      string      `db:"vendor_id"`
	Amount        int64       `db:"amount"`
	Status        string      `db:"status"`
	Reference     string      `db:"reference"`
	RecipientCode null.String `db:"recipient_code"`
	TransferCode  null.String `db:"transfer_code"`
	FailureReason null.String `db:"failure_reason"`
	CreatedAt     null.Time   `db:"created_at"`
	UpdatedAt     null.Time   `db:"updated_at"`
}

func (r withdrawalRow) withdrawal() wallet.Withdrawal {
	return wallet.Withdrawal{
		ID:            r.ID,
		VendorID:      r.VendorID,
		Amount:        r.Amount,
		Status:        r.Status,
		Reference:     r.Reference,
		RecipientCode: r.RecipientCode.String,
		TransferCode:  r.TransferCode.String,
		FailureReason: r.FailureReason.String,
		CreatedAt:     r.CreatedAt.Time,
		UpdatedAt:     r.UpdatedAt.Time,
	}
}

type walletRepository struct {
	db *sqlx.DB
}

var _ wallet.Repository = (*walletRepository)(nil) // interface compliance check

func NewWalletRepository(db *sqlx.DB) *walletRepository {
	return &walletRepository{db: db}
}

func (repo walletRepository) CreateEntry(ctx context.Context, entry wallet.Entry) (wallet.Entry, error) {
	entry.ID = uuid.New().String()
	q := `
		INSERT INTO wallet_entries (id, vendor_id, kind, amount, reference, order_id, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := repo.db.ExecContext(ctx, q,
		entry.ID,
		entry.VendorID,
		entry.Kind,
		entry.Amount,
		entry.Reference,
		null.NewString(entry.OrderID, entry.OrderID != ""),
		null.NewString(entry.Note, entry.Note != ""),
		entry.CreatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return wallet.Entry{}, wallet.ErrDuplicateReference
		}
		return wallet.Entry{}, errors.Wrap(err, "inserting wallet entry")
	}
	return entry, nil
}

func (repo walletRepository) QueryEntries(ctx context.Context, vendorID string, ordering []core.DBOrdering) ([]wallet.Entry, error) {
	q := fmt.Sprintf(
		"SELECT %s FROM wallet_entries WHERE vendor_id = $1 ORDER BY %s",
		entryColumns, orderBy(ordering, entryOrderable, "created_at DESC"))

	var rows []entryRow
	if err := repo.db.SelectContext(ctx, &rows, q, vendorID); err != nil {
		return nil, errors.Wrap(err, "querying wallet entries")
	}
	entries := make([]wallet.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.entry())
	}
	return entries, nil
}

func (repo walletRepository) WalletBalance(ctx context.Context, vendorID string) (int64, error) {
	q := `
		SELECT COALESCE(SUM(CASE kind WHEN 'credit' THEN amount ELSE -amount END), 0)
		FROM wallet_entries WHERE vendor_id = $1`
	var balance int64
	if err := repo.db.GetContext(ctx, &balance, q, vendorID); err != nil {
		return 0, errors.Wrap(err, "computing wallet balance")
	}
	return balance, nil
}

func (repo walletRepository) CreateWithdrawal(ctx context.Context, wd wallet.Withdrawal) (wallet.Withdrawal, error) {
	wd.ID = uuid.New().String()
	q := `
		INSERT INTO withdrawals (id, vendor_id, amount, status, reference, recipient_code, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := repo.db.ExecContext(ctx, q,
		wd.ID,
		wd.VendorID,
		wd.Amount,
		wd.Status,
		wd.Reference,
		null.NewString(wd.RecipientCode, wd.RecipientCode != ""),
		wd.CreatedAt.UTC(),
		wd.UpdatedAt.UTC(),
	)
	if err != nil {
		return wallet.Withdrawal{}, errors.Wrap(err, "inserting withdrawal")
	}
	return wd, nil
}

func (repo walletRepository) GetWithdrawalByReference(ctx context.Context, reference string) (wallet.Withdrawal, error) {
	var row withdrawalRow
	q := fmt.Sprintf("SELECT %s FROM withdrawals WHERE reference = $1", withdrawalColumns)
	if err := repo.db.GetContext(ctx, &row, q, reference); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return wallet.Withdrawal{}, wallet.ErrWithdrawalNotFound
		}
		return wallet.Withdrawal{}, errors.Wrap(err, "finding withdrawal")
	}
	return row.withdrawal(), nil
}

func (repo walletRepository) QueryWithdrawals(ctx context.Context, vendorID string, ordering []core.DBOrdering) ([]wallet.Withdrawal, error) {
	q := fmt.Sprintf(
		"SELECT %s FROM withdrawals WHERE vendor_id = $1 ORDER BY %s",
		withdrawalColumns, orderBy(ordering, withdrawalOrderable, "created_at DESC"))

	var rows []withdrawalRow
	if err := repo.db.SelectContext(ctx, &rows, q, vendorID); err != nil {
		return nil, errors.Wrap(err, "querying withdrawals")
	}
	withdrawals := make([]wallet.Withdrawal, 0, len(rows))
	for _, row := range rows {
		withdrawals = append(withdrawals, row.withdrawal())
	}
	return withdrawals, nil
}

func (repo walletRepository) UpdateWithdrawal(ctx context.Context, wd wallet.Withdrawal) (wallet.Withdrawal, error) {
	q := `
		UPDATE withdrawals SET status = $2, transfer_code = $3, failure_reason = $4, updated_at = $5
		WHERE id = $1
		RETURNING ` + withdrawalColumns
	var row withdrawalRow
	err := repo.db.GetContext(ctx, &row, q,
		wd.ID,
		wd.Status,
		null.NewString(wd.TransferCode, wd.TransferCode != ""),
		null.NewString(wd.FailureReason, wd.FailureReason != ""),
		wd.UpdatedAt.UTC(),
	)
	if err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return wallet.Withdrawal{}, wallet.ErrWithdrawalNotFound
		}
		return wallet.Withdrawal{}, errors.Wrap(err, "updating withdrawal")
	}
	return row.withdrawal(), nil
}
