package repository

import (
	"telehealth-booking/internal/domain/entity"

	"gorm.io/gorm"
)

type NotificationRepository interface {
	// CreateIfAbsent inserts the notification unless one with the same
	// (owner, type, booking) exists. Returns true when a row was inserted.
	CreateIfAbsent(db *gorm.DB, notification *entity.Notification) (bool, error)
}
