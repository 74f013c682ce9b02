package repository

import (
	"errors"

	"telehealth-booking/internal/domain/entity"
	domainRepo "telehealth-booking/internal/domain/repository"

	"gorm.io/gorm"
)

type auditLogRepository struct{}

func NewAuditLogRepository() domainRepo.AuditLogRepository {
	return &auditLogRepository{}
}

func (r *auditLogRepository) Create(db *gorm.DB, log *entity.AuditLog) error {
	return db.Create(log).Error
}

// FindAll lists audit logs newest first, optionally narrowed to one action.
func (r *auditLogRepository) FindAll(db *gorm.DB, action string) ([]entity.AuditLog, error) {
	var logs []entity.AuditLog
	query := db.Order("created_at DESC")
	if action != "" {
		query = query.Where("action = ?", action)
	}
	if err := query.Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *auditLogRepository) FindByID(db *gorm.DB, id int64) (*entity.AuditLog, error) {
	var log entity.AuditLog
	err := db.Where("id = ?", id).First(&log).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &log, nil
}
