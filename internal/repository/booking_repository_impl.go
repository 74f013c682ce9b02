package repository

import (
	"errors"
	"time"

	"telehealth-booking/internal/domain/entity"
	domainRepo "telehealth-booking/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type bookingRepository struct{}

func NewBookingRepository() domainRepo.BookingRepository {
	return &bookingRepository{}
}

func (r *bookingRepository) Create(db *gorm.DB, booking *entity.Booking) error {
	return db.Create(booking).Error
}

func (r *bookingRepository) FindByID(db *gorm.DB, id uuid.UUID) (*entity.Booking, error) {
	var booking entity.Booking
	err := db.Where("id = ?", id).First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &booking, nil
}

// FindActiveBySlot returns the pending or paid booking occupying the slot, if any.
func (r *bookingRepository) FindActiveBySlot(db *gorm.DB, providerID uuid.UUID, date time.Time, clock string) (*entity.Booking, error) {
	var booking entity.Booking
	err := db.Where("provider_id = ? AND date = ? AND time = ? AND status IN ?",
		providerID, date.Format("2006-01-02"), clock, entity.ActiveBookingStatuses).
		First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &booking, nil
}

// LastSerialBetween returns the highest booking serial created in [from, to), 0 if none.
func (r *bookingRepository) LastSerialBetween(db *gorm.DB, from, to time.Time) (int, error) {
	var serial int
	err := db.Model(&entity.Booking{}).
		Select("COALESCE(MAX(booking_serial), 0)").
		Where("created_at >= ? AND created_at < ?", from, to).
		Scan(&serial).Error
	return serial, err
}

func (r *bookingRepository) UpdateSession(db *gorm.DB, id uuid.UUID, sessionID, redirectURL string) error {
	result := db.Model(&entity.Booking{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"external_session_id": sessionID,
			"redirect_url":        redirectURL,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkPaid moves a pending or failed booking to paid.
func (r *bookingRepository) MarkPaid(db *gorm.DB, id uuid.UUID) (int64, error) {
	result := db.Model(&entity.Booking{}).
		Where("id = ? AND status IN ?", id, []entity.BookingStatus{entity.BookingStatusPending, entity.BookingStatusFailed}).
		Update("status", entity.BookingStatusPaid)
	return result.RowsAffected, result.Error
}

func (r *bookingRepository) MarkFailed(db *gorm.DB, id uuid.UUID) (int64, error) {
	result := db.Model(&entity.Booking{}).
		Where("id = ? AND status = ?", id, entity.BookingStatusPending).
		Update("status", entity.BookingStatusFailed)
	return result.RowsAffected, result.Error
}

// Cancel moves a paid booking to cancelled. Returns 0 if it is no longer paid.
func (r *bookingRepository) Cancel(db *gorm.DB, id uuid.UUID, cancelledBy uuid.UUID, reason string) (int64, error) {
	result := db.Model(&entity.Booking{}).
		Where("id = ? AND status = ?", id, entity.BookingStatusPaid).
		Updates(map[string]interface{}{
			"status":        entity.BookingStatusCancelled,
			"cancelled_by":  cancelledBy,
			"cancel_reason": reason,
		})
	return result.RowsAffected, result.Error
}

func (r *bookingRepository) MarkRefunded(db *gorm.DB, id uuid.UUID) (int64, error) {
	result := db.Model(&entity.Booking{}).
		Where("id = ? AND status = ?", id, entity.BookingStatusCancelled).
		Update("status", entity.BookingStatusRefunded)
	return result.RowsAffected, result.Error
}

func (r *bookingRepository) Delete(db *gorm.DB, id uuid.UUID) error {
	return db.Where("id = ?", id).Delete(&entity.Booking{}).Error
}
