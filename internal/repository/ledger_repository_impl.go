package repository

import (
	"errors"
	"fmt"

	"telehealth-booking/internal/domain/entity"
	domainRepo "telehealth-booking/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ledgerRepository struct{}

func NewLedgerRepository() domainRepo.LedgerRepository {
	return &ledgerRepository{}
}

// Credit creates the account on first use and otherwise increments it in place.
func (r *ledgerRepository) Credit(db *gorm.DB, owner entity.LedgerOwner, currency string, amountMinor int64) error {
	if amountMinor < 0 {
		return fmt.Errorf("credit amount must not be negative: %d", amountMinor)
	}

	account := &entity.LedgerAccount{
		OwnerType:    owner.Type,
		OwnerID:      owner.ID,
		Currency:     currency,
		BalanceMinor: amountMinor,
	}

	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "owner_type"}, {Name: "owner_id"}, {Name: "currency"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"balance_minor": gorm.Expr("ledger_accounts.balance_minor + EXCLUDED.balance_minor"),
			"updated_at":    gorm.Expr("NOW()"),
		}),
	}).Create(account).Error
}

// Debit decrements the balance in one statement guarded by balance_minor >= amount.
// A missing account or a short balance both yield ErrInsufficientBalance.
func (r *ledgerRepository) Debit(db *gorm.DB, owner entity.LedgerOwner, currency string, amountMinor int64) error {
	if amountMinor < 0 {
		return fmt.Errorf("debit amount must not be negative: %d", amountMinor)
	}
	if amountMinor == 0 {
		return nil
	}

	result := db.Model(&entity.LedgerAccount{}).
		Where("owner_type = ? AND owner_id = ? AND currency = ? AND balance_minor >= ?", owner.Type, owner.ID, currency, amountMinor).
		Updates(map[string]interface{}{
			"balance_minor": gorm.Expr("balance_minor - ?", amountMinor),
			"updated_at":    gorm.Expr("NOW()"),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domainRepo.ErrInsufficientBalance
	}
	return nil
}

func (r *ledgerRepository) FindAccount(db *gorm.DB, owner entity.LedgerOwner, currency string) (*entity.LedgerAccount, error) {
	var account entity.LedgerAccount
	err := db.Where("owner_type = ? AND owner_id = ? AND currency = ?", owner.Type, owner.ID, currency).
		First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &account, nil
}

func (r *ledgerRepository) FindByOwner(db *gorm.DB, owner entity.LedgerOwner) ([]entity.LedgerAccount, error) {
	var accounts []entity.LedgerAccount
	err := db.Where("owner_type = ? AND owner_id = ?", owner.Type, owner.ID).
		Order("currency ASC").
		Find(&accounts).Error
	if err != nil {
		return nil, err
	}
	return accounts, nil
}

type ledgerHistoryRepository struct{}

func NewLedgerHistoryRepository() domainRepo.LedgerHistoryRepository {
	return &ledgerHistoryRepository{}
}

// CreateBatch inserts all entries in one statement so a set is never half written.
func (r *ledgerHistoryRepository) CreateBatch(db *gorm.DB, entries []entity.LedgerHistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return db.Create(&entries).Error
}

func (r *ledgerHistoryRepository) FindByReference(db *gorm.DB, referenceID uuid.UUID) ([]entity.LedgerHistoryEntry, error) {
	var entries []entity.LedgerHistoryEntry
	err := db.Where("reference_id = ?", referenceID).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *ledgerHistoryRepository) FindByOwner(db *gorm.DB, owner entity.LedgerOwner, limit int) ([]entity.LedgerHistoryEntry, error) {
	var entries []entity.LedgerHistoryEntry
	query := db.Where("owner_type = ? AND owner_id = ?", owner.Type, owner.ID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&entries).Error; err != nil {
		return nil, err
	}
	return entries, nil
}
