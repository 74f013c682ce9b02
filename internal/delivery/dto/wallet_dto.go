package dto

import (
	"time"

	"github.com/google/uuid"
)

type WalletBalanceResponse struct {
	Currency     string `json:"currency"`
	BalanceMinor int64  `json:"balance_minor"`
	Balance      string `json:"balance"`
}

type LedgerEntryResponse struct {
	ID          uuid.UUID `json:"id"`
	Direction   string    `json:"direction"`
	Type        string    `json:"type"`
	AmountMinor int64     `json:"amount_minor"`
	Amount      string    `json:"amount"`
	Currency    string    `json:"currency"`
	BookingID   uuid.UUID `json:"booking_id"`
	CreatedAt   time.Time `json:"created_at"`
}

type WalletResponse struct {
	OwnerType string                  `json:"owner_type"`
	OwnerID   uuid.UUID               `json:"owner_id"`
	Balances  []WalletBalanceResponse `json:"balances"`
	Entries   []LedgerEntryResponse   `json:"entries"`
}
