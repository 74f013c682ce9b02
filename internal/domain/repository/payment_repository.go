package repository

import (
	"time"

	"telehealth-booking/internal/domain/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PaymentRepository interface {
	Create(db *gorm.DB, payment *entity.Payment) error
	FindByBookingID(db *gorm.DB, bookingID uuid.UUID) (*entity.Payment, error)
	FindSuccessByBookingID(db *gorm.DB, bookingID uuid.UUID) (*entity.Payment, error)
	UpdateSession(db *gorm.DB, id uuid.UUID, sessionID string) error
	MarkSucceeded(db *gorm.DB, id uuid.UUID, transactionID string) (int64, error)
	MarkFailed(db *gorm.DB, id uuid.UUID) (int64, error)
	MarkLedgerApplied(db *gorm.DB, id uuid.UUID, at time.Time) (int64, error)
	MarkRefunded(db *gorm.DB, id uuid.UUID, refundReference string, at time.Time) (int64, error)
	RecordRefundError(db *gorm.DB, id uuid.UUID, message string) error
	Delete(db *gorm.DB, id uuid.UUID) error
}
