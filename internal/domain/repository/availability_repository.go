package repository

import (
	"telehealth-booking/internal/domain/entity"

	"gorm.io/gorm"
)

type AvailabilityRepository interface {
	FindByFilter(db *gorm.DB, filter *entity.AvailabilityFilter) ([]entity.ProviderAvailability, error)
}
