package dto

import (
	"time"

	"github.com/google/uuid"
)

// Request DTOs

// SlotRequest identifies one bookable slot. Price is never accepted from the client.
type SlotRequest struct {
	ProviderID      uuid.UUID `json:"provider_id" validate:"required"`
	Date            string    `json:"date" validate:"required,datetime=2006-01-02"`
	Time            string    `json:"time" validate:"required,datetime=15:04"`
	DurationMinutes int       `json:"duration_minutes" validate:"required,min=1,max=480"`
	Mode            string    `json:"mode" validate:"required,oneof=chat voice video"`
}

type CheckoutRequest struct {
	SlotRequest
}

type CancelBookingRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// Response DTOs

type QuoteResponse struct {
	ProviderID      uuid.UUID `json:"provider_id"`
	Date            string    `json:"date"`
	Time            string    `json:"time"`
	DurationMinutes int       `json:"duration_minutes"`
	Mode            string    `json:"mode"`
	Amount          string    `json:"amount"`
	Currency        string    `json:"currency"`
	StartsAt        time.Time `json:"starts_at"`
}

type CheckoutResponse struct {
	BookingID     uuid.UUID `json:"booking_id"`
	BookingNumber string    `json:"booking_number"`
	PaymentID     uuid.UUID `json:"payment_id"`
	Status        string    `json:"status"`
	Amount        string    `json:"amount"`
	Currency      string    `json:"currency"`
	RedirectURL   string    `json:"redirect_url"`
}

type CancellationResponse struct {
	BookingID       uuid.UUID `json:"booking_id"`
	Outcome         string    `json:"outcome"`
	BookingStatus   string    `json:"booking_status"`
	PaymentStatus   string    `json:"payment_status,omitempty"`
	RefundReference string    `json:"refund_reference,omitempty"`
	RefundedAmount  string    `json:"refunded_amount,omitempty"`
	Currency        string    `json:"currency,omitempty"`
}

type BookingResponse struct {
	ID              uuid.UUID `json:"id"`
	BookingNumber   string    `json:"booking_number"`
	PatientID       uuid.UUID `json:"patient_id"`
	ProviderID      uuid.UUID `json:"provider_id"`
	Date            string    `json:"date"`
	Time            string    `json:"time"`
	DurationMinutes int       `json:"duration_minutes"`
	Mode            string    `json:"mode"`
	Amount          string    `json:"amount"`
	Currency        string    `json:"currency"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type ProviderTransactionResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
}

// PaymentStatusResponse is the admin view of one booking's money movements.
type PaymentStatusResponse struct {
	BookingID             uuid.UUID                    `json:"booking_id"`
	BookingStatus         string                       `json:"booking_status"`
	PaymentID             uuid.UUID                    `json:"payment_id"`
	PaymentStatus         string                       `json:"payment_status"`
	Amount                string                       `json:"amount"`
	PlatformFee           string                       `json:"platform_fee"`
	ProviderEarning       string                       `json:"provider_earning"`
	Currency              string                       `json:"currency"`
	LedgerApplied         bool                         `json:"ledger_applied"`
	LedgerAppliedAt       *time.Time                   `json:"ledger_applied_at,omitempty"`
	RefundReference       string                       `json:"refund_reference,omitempty"`
	RefundedAt            *time.Time                   `json:"refunded_at,omitempty"`
	RefundError           string                       `json:"refund_error,omitempty"`
	ExternalSessionID     string                       `json:"external_session_id,omitempty"`
	ExternalTransactionID string                       `json:"external_transaction_id,omitempty"`
	ProviderTransaction   *ProviderTransactionResponse `json:"provider_transaction,omitempty"`
	LedgerEntries         []LedgerEntryResponse        `json:"ledger_entries"`
}
