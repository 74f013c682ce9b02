package converter

import (
	"telehealth-booking/internal/delivery/dto"
	"telehealth-booking/internal/domain/entity"
	"telehealth-booking/pkg/money"
)

// LedgerAccountsToBalances converts ledger accounts to wallet balance DTOs
func LedgerAccountsToBalances(accounts []entity.LedgerAccount) []dto.WalletBalanceResponse {
	balances := make([]dto.WalletBalanceResponse, len(accounts))
	for i, account := range accounts {
		balances[i] = dto.WalletBalanceResponse{
			Currency:     account.Currency,
			BalanceMinor: account.BalanceMinor,
			Balance:      money.FromMinor(account.BalanceMinor, account.Currency).StringFixed(money.Exponent(account.Currency)),
		}
	}
	return balances
}

// LedgerEntriesToResponses converts ledger history entries to DTOs
func LedgerEntriesToResponses(entries []entity.LedgerHistoryEntry) []dto.LedgerEntryResponse {
	responses := make([]dto.LedgerEntryResponse, len(entries))
	for i, e := range entries {
		responses[i] = dto.LedgerEntryResponse{
			ID:          e.ID,
			Direction:   string(e.Direction),
			Type:        e.Type,
			AmountMinor: e.AmountMinor,
			Amount:      money.FromMinor(e.AmountMinor, e.Currency).StringFixed(money.Exponent(e.Currency)),
			Currency:    e.Currency,
			BookingID:   e.BookingID,
			CreatedAt:   e.CreatedAt,
		}
	}
	return responses
}
