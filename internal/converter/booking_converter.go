package converter

import (
	"telehealth-booking/internal/delivery/dto"
	"telehealth-booking/internal/domain/entity"
	gateway "telehealth-booking/internal/infrastructure/payment"
	"telehealth-booking/pkg/money"
)

const dateLayout = "2006-01-02"

// BookingToResponse converts a Booking entity to BookingResponse DTO
func BookingToResponse(booking *entity.Booking) *dto.BookingResponse {
	if booking == nil {
		return nil
	}

	return &dto.BookingResponse{
		ID:              booking.ID,
		BookingNumber:   booking.BookingNumber,
		PatientID:       booking.PatientID,
		ProviderID:      booking.ProviderID,
		Date:            booking.Date.Format(dateLayout),
		Time:            booking.Time,
		DurationMinutes: booking.DurationMinutes,
		Mode:            string(booking.Mode),
		Amount:          booking.Amount.StringFixed(money.Exponent(booking.Currency)),
		Currency:        booking.Currency,
		Status:          string(booking.Status),
		CreatedAt:       booking.CreatedAt,
		UpdatedAt:       booking.UpdatedAt,
	}
}

// CheckoutToResponse builds the checkout result from the created booking and payment
func CheckoutToResponse(booking *entity.Booking, payment *entity.Payment) *dto.CheckoutResponse {
	return &dto.CheckoutResponse{
		BookingID:     booking.ID,
		BookingNumber: booking.BookingNumber,
		PaymentID:     payment.ID,
		Status:        string(booking.Status),
		Amount:        booking.Amount.StringFixed(money.Exponent(booking.Currency)),
		Currency:      booking.Currency,
		RedirectURL:   booking.RedirectURL,
	}
}

// PaymentToStatusResponse builds the admin payment view. tx is nil when the
// provider has no transaction yet or could not be reached.
func PaymentToStatusResponse(booking *entity.Booking, payment *entity.Payment, tx *gateway.Transaction, entries []entity.LedgerHistoryEntry) *dto.PaymentStatusResponse {
	exp := money.Exponent(payment.Currency)
	resp := &dto.PaymentStatusResponse{
		BookingID:             booking.ID,
		BookingStatus:         string(booking.Status),
		PaymentID:             payment.ID,
		PaymentStatus:         string(payment.Status),
		Amount:                money.FromMinor(payment.AmountMinor, payment.Currency).StringFixed(exp),
		PlatformFee:           money.FromMinor(payment.PlatformFeeMinor, payment.Currency).StringFixed(exp),
		ProviderEarning:       money.FromMinor(payment.ProviderEarningMinor, payment.Currency).StringFixed(exp),
		Currency:              payment.Currency,
		LedgerApplied:         payment.LedgerApplied,
		LedgerAppliedAt:       payment.LedgerAppliedAt,
		RefundReference:       payment.RefundReference,
		RefundedAt:            payment.RefundedAt,
		RefundError:           payment.RefundError,
		ExternalSessionID:     payment.ExternalSessionID,
		ExternalTransactionID: payment.ExternalTransactionID,
		LedgerEntries:         LedgerEntriesToResponses(entries),
	}
	if tx != nil {
		resp.ProviderTransaction = &dto.ProviderTransactionResponse{
			ID:          tx.ID,
			Status:      tx.Status,
			AmountMinor: tx.AmountMinor,
			Currency:    tx.Currency,
		}
	}
	return resp
}
