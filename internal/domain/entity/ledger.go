package entity

import (
	"time"

	"github.com/google/uuid"
)

// OwnerType identifies which party a ledger account belongs to
type OwnerType string

const (
	OwnerTypePatient  OwnerType = "patient"
	OwnerTypeProvider OwnerType = "provider"
	OwnerTypePlatform OwnerType = "platform"
)

// PlatformOwnerID is the owner id of the single platform account per currency
var PlatformOwnerID = uuid.Nil

type LedgerDirection string

const (
	LedgerDirectionCredit LedgerDirection = "credit"
	LedgerDirectionDebit  LedgerDirection = "debit"
)

// Ledger history reason codes
const (
	LedgerTypeConsultationPayment = "consultation_payment"
	LedgerTypeConsultationEarning = "consultation_earning"
	LedgerTypePlatformFee         = "platform_fee"
	LedgerTypeConsultationRefund  = "consultation_refund"
	LedgerTypeEarningReversal     = "earning_reversal"
	LedgerTypePlatformFeeReversal = "platform_fee_reversal"
)

// LedgerOwner addresses one ledger account
type LedgerOwner struct {
	Type OwnerType
	ID   uuid.UUID
}

func PatientOwner(id uuid.UUID) LedgerOwner  { return LedgerOwner{Type: OwnerTypePatient, ID: id} }
func ProviderOwner(id uuid.UUID) LedgerOwner { return LedgerOwner{Type: OwnerTypeProvider, ID: id} }
func PlatformOwner() LedgerOwner             { return LedgerOwner{Type: OwnerTypePlatform, ID: PlatformOwnerID} }

// LedgerAccount is the running balance of one owner in one currency.
// BalanceMinor is only changed through LedgerRepository.Credit and Debit.
type LedgerAccount struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OwnerType    OwnerType `gorm:"type:varchar(20);not null;uniqueIndex:ux_ledger_accounts_owner,priority:1" json:"owner_type"`
	OwnerID      uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:ux_ledger_accounts_owner,priority:2" json:"owner_id"`
	Currency     string    `gorm:"type:char(3);not null;uniqueIndex:ux_ledger_accounts_owner,priority:3" json:"currency"`
	BalanceMinor int64     `gorm:"not null;default:0;check:balance_minor >= 0" json:"balance_minor"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (LedgerAccount) TableName() string {
	return "ledger_accounts"
}

// LedgerHistoryEntry is an immutable record of one credit or debit.
// ReferenceID is the payment id; the unique index rejects a replayed entry.
type LedgerHistoryEntry struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	OwnerType   OwnerType       `gorm:"type:varchar(20);not null;index:ix_ledger_history_owner,priority:1;uniqueIndex:ux_ledger_history_event,priority:2" json:"owner_type"`
	OwnerID     uuid.UUID       `gorm:"type:uuid;not null;index:ix_ledger_history_owner,priority:2" json:"owner_id"`
	Currency    string          `gorm:"type:char(3);not null" json:"currency"`
	AmountMinor int64           `gorm:"not null" json:"amount_minor"`
	Direction   LedgerDirection `gorm:"type:varchar(10);not null;uniqueIndex:ux_ledger_history_event,priority:3" json:"direction"`
	Type        string          `gorm:"type:varchar(50);not null;uniqueIndex:ux_ledger_history_event,priority:4" json:"type"`
	ReferenceID uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:ux_ledger_history_event,priority:1" json:"reference_id"`
	BookingID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"booking_id"`
	CreatedAt   time.Time       `gorm:"autoCreateTime;index" json:"created_at"`
}

func (LedgerHistoryEntry) TableName() string {
	return "ledger_history"
}
