package entity

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BookingStatus represents the status of a booking
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusPaid      BookingStatus = "paid"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusFailed    BookingStatus = "failed"
	BookingStatusRefunded  BookingStatus = "refunded"
)

// ActiveBookingStatuses occupy a slot. Only one booking per (provider, date, time)
// may be in one of these states, enforced by ux_bookings_active_slot.
var ActiveBookingStatuses = []BookingStatus{BookingStatusPending, BookingStatusPaid}

// ConsultationMode is how the consultation is held
type ConsultationMode string

const (
	ConsultationModeChat  ConsultationMode = "chat"
	ConsultationModeVoice ConsultationMode = "voice"
	ConsultationModeVideo ConsultationMode = "video"
)

// Booking represents a reserved consultation slot
type Booking struct {
	ID                uuid.UUID        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	PatientID         uuid.UUID        `gorm:"type:uuid;not null;index" json:"patient_id"`
	ProviderID        uuid.UUID        `gorm:"type:uuid;not null;index" json:"provider_id"`
	Date              time.Time        `gorm:"type:date;not null" json:"date"`
	Time              string           `gorm:"type:varchar(5);not null" json:"time"`
	DurationMinutes   int              `gorm:"not null" json:"duration_minutes"`
	Mode              ConsultationMode `gorm:"type:varchar(20);not null" json:"mode"`
	Amount            decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"amount"`
	Currency          string           `gorm:"type:char(3);not null" json:"currency"`
	Status            BookingStatus    `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ExternalSessionID string           `gorm:"type:varchar(255)" json:"external_session_id,omitempty"`
	RedirectURL       string           `gorm:"type:text" json:"redirect_url,omitempty"`
	BookingNumber     string           `gorm:"type:varchar(50);not null" json:"booking_number"`
	BookingSerial     int              `gorm:"not null" json:"booking_serial"`
	CancelledBy       *uuid.UUID       `gorm:"type:uuid" json:"cancelled_by,omitempty"`
	CancelReason      string           `gorm:"type:text" json:"cancel_reason,omitempty"`
	CreatedAt         time.Time        `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time        `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Booking) TableName() string {
	return "bookings"
}

// IsPaid checks if booking has been settled
func (b *Booking) IsPaid() bool {
	return b.Status == BookingStatusPaid
}

// IsReversed checks if booking already went through cancellation
func (b *Booking) IsReversed() bool {
	return b.Status == BookingStatusCancelled || b.Status == BookingStatusRefunded
}

// StartsAt combines the booking date and HH:MM time in loc
func (b *Booking) StartsAt(loc *time.Location) (time.Time, error) {
	return SlotStart(b.Date, b.Time, loc)
}

// IsParticipant reports whether userID is the booking's patient or provider
func (b *Booking) IsParticipant(userID uuid.UUID) bool {
	return b.PatientID == userID || b.ProviderID == userID
}

// SlotStart combines a calendar date and an HH:MM clock time in loc
func SlotStart(date time.Time, clock string, loc *time.Location) (time.Time, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(date.Year(), date.Month(), date.Day(), t.Hour(), t.Minute(), 0, 0, loc), nil
}
