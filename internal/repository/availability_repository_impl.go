package repository

import (
	"telehealth-booking/internal/domain/entity"
	domainRepo "telehealth-booking/internal/domain/repository"

	"gorm.io/gorm"
)

type availabilityRepository struct{}

func NewAvailabilityRepository() domainRepo.AvailabilityRepository {
	return &availabilityRepository{}
}

// FindByFilter lists a provider's published slots in a date range, earliest first.
func (r *availabilityRepository) FindByFilter(db *gorm.DB, filter *entity.AvailabilityFilter) ([]entity.ProviderAvailability, error) {
	var slots []entity.ProviderAvailability
	query := db.Where("provider_id = ?", filter.ProviderID)

	if filter.StartAt != "" {
		query = query.Where("date >= ?", filter.StartAt)
	}
	if filter.EndAt != "" {
		query = query.Where("date <= ?", filter.EndAt)
	}

	err := query.Order("date ASC, time ASC").Find(&slots).Error
	if err != nil {
		return nil, err
	}
	return slots, nil
}
