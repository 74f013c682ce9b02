package entity

import (
	"time"

	"github.com/google/uuid"
)

// Notification types
const (
	NotificationTypeBookingPaid      = "booking_paid"
	NotificationTypeBookingCancelled = "booking_cancelled"
	NotificationTypeBookingRefunded  = "booking_refunded"
)

// Notification is one message for one user about one booking.
// (owner_id, type, booking_id) is unique so repeated deliveries collapse.
type Notification struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OwnerID   uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_notifications_owner_type_booking,priority:1" json:"owner_id"`
	OwnerRole string    `gorm:"type:varchar(20);not null" json:"owner_role"`
	Type      string    `gorm:"type:varchar(50);not null;uniqueIndex:ux_notifications_owner_type_booking,priority:2" json:"type"`
	BookingID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_notifications_owner_type_booking,priority:3" json:"booking_id"`
	Message   string    `gorm:"type:text;not null" json:"message"`
	Meta      JSON      `gorm:"type:jsonb" json:"meta,omitempty"`
	IsRead    bool      `gorm:"not null;default:false" json:"is_read"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Notification) TableName() string {
	return "notifications"
}
