package repository

import (
	"time"

	"telehealth-booking/internal/domain/entity"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BookingRepository gates every status change on the current status.
// Transition methods return affected rows: 1 = applied, 0 = someone else got there first.
type BookingRepository interface {
	Create(db *gorm.DB, booking *entity.Booking) error
	FindByID(db *gorm.DB, id uuid.UUID) (*entity.Booking, error)
	FindActiveBySlot(db *gorm.DB, providerID uuid.UUID, date time.Time, clock string) (*entity.Booking, error)
	LastSerialBetween(db *gorm.DB, from, to time.Time) (int, error)
	UpdateSession(db *gorm.DB, id uuid.UUID, sessionID, redirectURL string) error
	MarkPaid(db *gorm.DB, id uuid.UUID) (int64, error)
	MarkFailed(db *gorm.DB, id uuid.UUID) (int64, error)
	Cancel(db *gorm.DB, id uuid.UUID, cancelledBy uuid.UUID, reason string) (int64, error)
	MarkRefunded(db *gorm.DB, id uuid.UUID) (int64, error)
	Delete(db *gorm.DB, id uuid.UUID) error
}
