package repository

import (
	"errors"

	"telehealth-booking/internal/domain/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrInsufficientBalance is returned by Debit when the account cannot cover the amount.
var ErrInsufficientBalance = errors.New("insufficient ledger balance")

// LedgerRepository is the only place balances change.
// Credit upserts and increments; Debit is a single guarded decrement.
type LedgerRepository interface {
	Credit(db *gorm.DB, owner entity.LedgerOwner, currency string, amountMinor int64) error
	Debit(db *gorm.DB, owner entity.LedgerOwner, currency string, amountMinor int64) error
	FindAccount(db *gorm.DB, owner entity.LedgerOwner, currency string) (*entity.LedgerAccount, error)
	FindByOwner(db *gorm.DB, owner entity.LedgerOwner) ([]entity.LedgerAccount, error)
}

type LedgerHistoryRepository interface {
	CreateBatch(db *gorm.DB, entries []entity.LedgerHistoryEntry) error
	FindByReference(db *gorm.DB, referenceID uuid.UUID) ([]entity.LedgerHistoryEntry, error)
	FindByOwner(db *gorm.DB, owner entity.LedgerOwner, limit int) ([]entity.LedgerHistoryEntry, error)
}
