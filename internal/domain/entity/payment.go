package entity

import (
	"time"

	"github.com/google/uuid"
)

// PaymentStatus represents the status of a payment attempt
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusSuccess  PaymentStatus = "success"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// Payment is one attempt at collecting money for a booking.
// Amounts are integer minor units; PlatformFeeMinor + ProviderEarningMinor == AmountMinor.
type Payment struct {
	ID                    uuid.UUID     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	BookingID             uuid.UUID     `gorm:"type:uuid;not null;uniqueIndex" json:"booking_id"`
	PatientID             uuid.UUID     `gorm:"type:uuid;not null;index" json:"patient_id"`
	ProviderID            uuid.UUID     `gorm:"type:uuid;not null;index" json:"provider_id"`
	AmountMinor           int64         `gorm:"not null" json:"amount_minor"`
	PlatformFeeMinor      int64         `gorm:"not null" json:"platform_fee_minor"`
	ProviderEarningMinor  int64         `gorm:"not null" json:"provider_earning_minor"`
	Currency              string        `gorm:"type:char(3);not null" json:"currency"`
	Status                PaymentStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ExternalSessionID     string        `gorm:"type:varchar(255);index" json:"external_session_id,omitempty"`
	ExternalTransactionID string        `gorm:"type:varchar(255)" json:"external_transaction_id,omitempty"`
	LedgerApplied         bool          `gorm:"not null;default:false" json:"ledger_applied"`
	LedgerAppliedAt       *time.Time    `json:"ledger_applied_at,omitempty"`
	RefundedAt            *time.Time    `json:"refunded_at,omitempty"`
	RefundReference       string        `gorm:"type:varchar(255)" json:"refund_reference,omitempty"`
	RefundError           string        `gorm:"type:text" json:"refund_error,omitempty"`
	RefundAttempts        int           `gorm:"not null;default:0" json:"refund_attempts"`
	CreatedAt             time.Time     `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time     `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}

// IsSuccess checks if the payment was collected
func (p *Payment) IsSuccess() bool {
	return p.Status == PaymentStatusSuccess
}
