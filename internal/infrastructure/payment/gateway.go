package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Metadata keys bound to every session. They are the only link between a
// provider event and our booking/payment records.
const (
	MetaBookingID  = "booking_id"
	MetaPaymentID  = "payment_id"
	MetaProviderID = "provider_id"
	MetaPatientID  = "patient_id"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrInvalidPayload   = errors.New("invalid webhook payload")
)

type EventType string

const (
	EventPaymentConfirmed EventType = "payment.confirmed"
	EventPaymentFailed    EventType = "payment.failed"
	EventIgnored          EventType = "ignored"
)

type SessionRequest struct {
	AmountMinor int64
	Currency    string
	Description string
	Metadata    map[string]string
}

type Session struct {
	ID          string
	RedirectURL string
}

type Transaction struct {
	ID          string
	Status      string
	AmountMinor int64
	Currency    string
}

// RefundRequest refunds AmountMinor of a captured transaction. Attempt counts
// earlier failed refunds of the same transaction.
type RefundRequest struct {
	TransactionID string
	AmountMinor   int64
	Currency      string
	Attempt       int
}

// IdempotencyKey stays the same when an attempt is replayed and changes once
// a failed attempt has been recorded.
func (r *RefundRequest) IdempotencyKey() string {
	return fmt.Sprintf("refund-%s-%d", r.TransactionID, r.Attempt)
}

type RefundReceipt struct {
	ID     string
	Status string
}

// Event is a provider webhook normalized to what settlement needs.
type Event struct {
	ID            string            `json:"id"`
	Provider      string            `json:"provider"`
	Type          EventType         `json:"type"`
	RawType       string            `json:"raw_type"`
	SessionID     string            `json:"session_id,omitempty"`
	TransactionID string            `json:"transaction_id,omitempty"`
	AmountMinor   int64             `json:"amount_minor"`
	Currency      string            `json:"currency"`
	Metadata      map[string]string `json:"metadata"`
}

// Gateway is the external payment provider.
type Gateway interface {
	Name() string
	CreateSession(ctx context.Context, req *SessionRequest) (*Session, error)
	RetrieveTransaction(ctx context.Context, transactionID string) (*Transaction, error)
	Refund(ctx context.Context, req *RefundRequest) (*RefundReceipt, error)
	ParseEvent(ctx context.Context, payload []byte, header http.Header) (*Event, error)
}
