package repository

import (
	"telehealth-booking/internal/domain/entity"
	domainRepo "telehealth-booking/internal/domain/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type notificationRepository struct{}

func NewNotificationRepository() domainRepo.NotificationRepository {
	return &notificationRepository{}
}

func (r *notificationRepository) CreateIfAbsent(db *gorm.DB, notification *entity.Notification) (bool, error) {
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}, {Name: "type"}, {Name: "booking_id"}},
		DoNothing: true,
	}).Create(notification)
	return result.RowsAffected == 1, result.Error
}
