package inmemdb

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/trezcool/chakula/core"
	"github.com/trezcool/chakula/core/wallet"
)

type walletRepository struct {
	db *DB
}

var _ wallet.Repository = (*walletRepository)(nil) // interface compliance check

func NewWalletRepository(db *DB) *walletRepository {
	return &walletRepository{db: db}
}

func (repo *walletRepository) CreateEntry(ctx context.Context, entry wallet.Entry) (wallet.Entry, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, e := range repo.db.entries {
		if e.Reference == entry.Reference {
			return wallet.Entry{}, wallet.ErrDuplicateReference
		}
	}

	entry.ID = uuid.New().String()
	repo.db.entries[entry.ID] = &entry
	return entry, nil
}

func (repo *walletRepository) QueryEntries(ctx context.Context, vendorID string, ordering []core.DBOrdering) ([]wallet.Entry, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	entries := make([]wallet.Entry, 0, len(repo.db.entries))
	for _, e := range repo.db.entries {
		if e.VendorID == vendorID {
			entries = append(entries, *e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].ID > entries[j].ID
		}
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, nil
}

func (repo *walletRepository) WalletBalance(ctx context.Context, vendorID string) (int64, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var balance int64
	for _, e := range repo.db.entries {
		if e.VendorID != vendorID {
			continue
		}
		if e.Kind == wallet.KindCredit {
			balance += e.Amount
		} else {
			balance -= e.Amount
		}
	}
	return balance, nil
}

func (repo *walletRepository) CreateWithdrawal(ctx context.Context, wd wallet.Withdrawal) (wallet.Withdrawal, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	wd.ID = uuid.New().String()
	repo.db.withdrawals[wd.ID] = &wd
	return wd, nil
}

func (repo *walletRepository) GetWithdrawalByReference(ctx context.Context, reference string) (wallet.Withdrawal, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, wd := range repo.db.withdrawals {
		if wd.Reference == reference {
			return *wd, nil
		}
	}
	return wallet.Withdrawal{}, wallet.ErrWithdrawalNotFound
}

func (repo *walletRepository) QueryWithdrawals(ctx context.Context, vendorID string, ordering []core.DBOrdering) ([]wallet.Withdrawal, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	withdrawals := make([]wallet.Withdrawal, 0, len(repo.db.withdrawals))
	for _, wd := range repo.db.withdrawals {
		if wd.VendorID == vendorID {
			withdrawals = append(withdrawals, *wd)
		}
	}
	sort.Slice(withdrawals, func(i, j int) bool {
		if withdrawals[i].CreatedAt.Equal(withdrawals[j].CreatedAt) {
			return withdrawals[i].ID > withdrawals[j].ID
		}
		return withdrawals[i].CreatedAt.After(withdrawals[j].CreatedAt)
	})
	return withdrawals, nil
}

func (repo *walletRepository) UpdateWithdrawal(ctx context.Context, wd wallet.Withdrawal) (wallet.Withdrawal, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.withdrawals[wd.ID]; !ok {
		return wallet.Withdrawal{}, wallet.ErrWithdrawalNotFound
	}
	repo.db.withdrawals[wd.ID] = &wd
	return wd, nil
}
