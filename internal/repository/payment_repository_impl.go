package repository

import (
	"errors"
	"time"

	"telehealth-booking/internal/domain/entity"
	domainRepo "telehealth-booking/internal/domain/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type paymentRepository struct{}

func NewPaymentRepository() domainRepo.PaymentRepository {
	return &paymentRepository{}
}

func (r *paymentRepository) Create(db *gorm.DB, payment *entity.Payment) error {
	return db.Create(payment).Error
}

func (r *paymentRepository) FindByBookingID(db *gorm.DB, bookingID uuid.UUID) (*entity.Payment, error) {
	return r.findOne(db.Where("booking_id = ?", bookingID))
}

func (r *paymentRepository) FindSuccessByBookingID(db *gorm.DB, bookingID uuid.UUID) (*entity.Payment, error) {
	return r.findOne(db.Where("booking_id = ? AND status = ?", bookingID, entity.PaymentStatusSuccess))
}

func (r *paymentRepository) findOne(query *gorm.DB) (*entity.Payment, error) {
	var payment entity.Payment
	err := query.First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) UpdateSession(db *gorm.DB, id uuid.UUID, sessionID string) error {
	return db.Model(&entity.Payment{}).
		Where("id = ?", id).
		Update("external_session_id", sessionID).Error
}

// MarkSucceeded moves a pending or failed payment to success and records the
// provider transaction id. A failed payment can still succeed when the provider
// confirms after the session was reported expired.
func (r *paymentRepository) MarkSucceeded(db *gorm.DB, id uuid.UUID, transactionID string) (int64, error) {
	result := db.Model(&entity.Payment{}).
		Where("id = ? AND status IN ?", id, []entity.PaymentStatus{entity.PaymentStatusPending, entity.PaymentStatusFailed}).
		Updates(map[string]interface{}{
			"status":                  entity.PaymentStatusSuccess,
			"external_transaction_id": transactionID,
		})
	return result.RowsAffected, result.Error
}

func (r *paymentRepository) MarkFailed(db *gorm.DB, id uuid.UUID) (int64, error) {
	result := db.Model(&entity.Payment{}).
		Where("id = ? AND status = ?", id, entity.PaymentStatusPending).
		Update("status", entity.PaymentStatusFailed)
	return result.RowsAffected, result.Error
}

// MarkLedgerApplied flips ledger_applied false -> true. 0 rows means the
// ledger effects of this payment were already written.
func (r *paymentRepository) MarkLedgerApplied(db *gorm.DB, id uuid.UUID, at time.Time) (int64, error) {
	result := db.Model(&entity.Payment{}).
		Where("id = ? AND status = ? AND ledger_applied = ?", id, entity.PaymentStatusSuccess, false).
		Updates(map[string]interface{}{
			"ledger_applied":    true,
			"ledger_applied_at": at,
		})
	return result.RowsAffected, result.Error
}

func (r *paymentRepository) MarkRefunded(db *gorm.DB, id uuid.UUID, refundReference string, at time.Time) (int64, error) {
	result := db.Model(&entity.Payment{}).
		Where("id = ? AND status = ?", id, entity.PaymentStatusSuccess).
		Updates(map[string]interface{}{
			"status":           entity.PaymentStatusRefunded,
			"refund_reference": refundReference,
			"refunded_at":      at,
			"refund_error":     "",
		})
	return result.RowsAffected, result.Error
}

// RecordRefundError stores the provider's message and counts the failed attempt,
// so the next attempt is sent under a new idempotency key.
func (r *paymentRepository) RecordRefundError(db *gorm.DB, id uuid.UUID, message string) error {
	return db.Model(&entity.Payment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"refund_error":    message,
			"refund_attempts": gorm.Expr("refund_attempts + 1"),
		}).Error
}

func (r *paymentRepository) Delete(db *gorm.DB, id uuid.UUID) error {
	return db.Where("id = ?", id).Delete(&entity.Payment{}).Error
}
