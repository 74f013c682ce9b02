package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProviderAvailability is a slot a provider has published as bookable.
// The fee is authoritative; clients never supply a price.
type ProviderAvailability struct {
	ID              int                `gorm:"primaryKey;autoIncrement" json:"id"`
	ProviderID      uuid.UUID          `gorm:"type:uuid;not null;index:ix_availability_provider_date,priority:1" json:"provider_id"`
	Date            time.Time          `gorm:"type:date;not null;index:ix_availability_provider_date,priority:2" json:"date"`
	Time            string             `gorm:"type:varchar(5);not null" json:"time"`
	DurationMinutes int                `gorm:"not null" json:"duration_minutes"`
	Modes           []ConsultationMode `gorm:"type:jsonb;serializer:json;not null" json:"modes"`
	Fee             decimal.Decimal    `gorm:"type:decimal(12,2);not null" json:"fee"`
	Currency        string             `gorm:"type:char(3);not null" json:"currency"`
	CreatedAt       time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ProviderAvailability) TableName() string {
	return "provider_availabilities"
}

// SupportsMode reports whether the slot can be held in mode
func (a *ProviderAvailability) SupportsMode(mode ConsultationMode) bool {
	for _, m := range a.Modes {
		if m == mode {
			return true
		}
	}
	return false
}

// AvailabilityFilter narrows availability lookups to one provider and a date range.
type AvailabilityFilter struct {
	ProviderID uuid.UUID
	StartAt    string // Format: YYYY-MM-DD
	EndAt      string // Format: YYYY-MM-DD
}
