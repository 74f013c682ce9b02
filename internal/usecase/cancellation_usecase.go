package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"telehealth-booking/internal/delivery/dto"
	"telehealth-booking/internal/domain/entity"
	"telehealth-booking/internal/domain/repository"
	"telehealth-booking/internal/infrastructure/database"
	gateway "telehealth-booking/internal/infrastructure/payment"
	"telehealth-booking/internal/service"
	"telehealth-booking/pkg/metrics"
	"telehealth-booking/pkg/money"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const maxRefundErrorLength = 1000

type CancellationUsecase interface {
	Cancel(ctx context.Context, bookingID, actorID uuid.UUID, actorRole, reason string) (*dto.CancellationResponse, error)
	// RetryRefund re-runs the refund for a booking left cancelled with a
	// successful payment after the provider refund call failed.
	RetryRefund(ctx context.Context, bookingID, operatorID uuid.UUID) (*dto.CancellationResponse, error)
}

type cancellationUsecase struct {
	transactor  database.Transactor
	log         *logrus.Logger
	notifier    service.Notifier
	audit       service.AuditService
	bookingRepo repository.BookingRepository
	paymentRepo repository.PaymentRepository
	ledgerRepo  repository.LedgerRepository
	historyRepo repository.LedgerHistoryRepository
	gateway     gateway.Gateway
}

func NewCancellationUsecase(
	transactor database.Transactor,
	log *logrus.Logger,
	notifier service.Notifier,
	audit service.AuditService,
	bookingRepo repository.BookingRepository,
	paymentRepo repository.PaymentRepository,
	ledgerRepo repository.LedgerRepository,
	historyRepo repository.LedgerHistoryRepository,
	paymentGateway gateway.Gateway,
) CancellationUsecase {
	return &cancellationUsecase{
		transactor:  transactor,
		log:         log,
		notifier:    notifier,
		audit:       audit,
		bookingRepo: bookingRepo,
		paymentRepo: paymentRepo,
		ledgerRepo:  ledgerRepo,
		historyRepo: historyRepo,
		gateway:     paymentGateway,
	}
}

// reversal collects what happened inside the cancellation transaction.
type reversal struct {
	outcome      Outcome
	payment      *entity.Payment
	refund       *gateway.RefundReceipt
	refundErr    error
	refundIssued bool
}

// Cancel cancels a paid booking and reverses its money movements.
//
// Flow (one transaction):
// 1. Booking paid -> cancelled (0 rows: already reversed)
// 2. Find the success payment; none -> nothing to reverse
// 3. Refund at the provider; failure -> keep cancellation, record the error
// 4. Payment success -> refunded
// 5. Credit patient, debit provider and platform, history, booking -> refunded
// 6. After commit: notify the counter-party
func (u *cancellationUsecase) Cancel(ctx context.Context, bookingID, actorID uuid.UUID, actorRole, reason string) (*dto.CancellationResponse, error) {
	booking, err := u.bookingRepo.FindByID(u.transactor.DB(ctx), bookingID)
	if err != nil {
		u.log.Warnf("Failed to find booking %s: %+v", bookingID, err)
		return nil, err
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}
	if !booking.IsParticipant(actorID) {
		return nil, ErrBookingNotOwned
	}
	if booking.IsReversed() {
		return alreadyReversed(booking), nil
	}
	if !booking.IsPaid() {
		return nil, ErrBookingNotCancellable
	}

	result := &reversal{outcome: OutcomeApplied}
	err = u.transactor.WithinTransaction(ctx, func(tx *gorm.DB) error {
		affected, err := u.bookingRepo.Cancel(tx, bookingID, actorID, reason)
		if err != nil {
			return err
		}
		if affected == 0 {
			result.outcome = OutcomeAlreadyReversed
			return nil
		}
		if err := u.audit.LogUpdate(ctx, tx, &actorID, entity.AuditActionBookingCancel, "booking", bookingID.String(),
			entity.JSON{"status": entity.BookingStatusPaid},
			entity.JSON{"status": entity.BookingStatusCancelled, "actor_role": actorRole, "reason": reason},
		); err != nil {
			return err
		}
		return u.refundAndReverse(ctx, tx, booking, actorID, result)
	})

	resp, err := u.finish(ctx, booking, actorID, result, err)
	if err != nil || result.outcome == OutcomeAlreadyReversed {
		return resp, err
	}

	u.notifier.Notify(ctx, service.NotificationMessage{
		OwnerID:   counterParty(booking, actorID),
		OwnerRole: counterPartyRole(booking, actorID),
		Type:      entity.NotificationTypeBookingCancelled,
		BookingID: bookingID,
		Message:   fmt.Sprintf("Booking %s has been cancelled", booking.BookingNumber),
		Meta:      map[string]interface{}{"reason": reason},
	})

	return resp, u.refundFailure(result)
}

func (u *cancellationUsecase) RetryRefund(ctx context.Context, bookingID, operatorID uuid.UUID) (*dto.CancellationResponse, error) {
	booking, err := u.bookingRepo.FindByID(u.transactor.DB(ctx), bookingID)
	if err != nil {
		u.log.Warnf("Failed to find booking %s: %+v", bookingID, err)
		return nil, err
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}
	if booking.Status == entity.BookingStatusRefunded {
		return alreadyReversed(booking), nil
	}
	if booking.Status != entity.BookingStatusCancelled {
		return nil, ErrNoPendingRefund
	}

	result := &reversal{outcome: OutcomeApplied}
	err = u.transactor.WithinTransaction(ctx, func(tx *gorm.DB) error {
		return u.refundAndReverse(ctx, tx, booking, operatorID, result)
	})

	resp, err := u.finish(ctx, booking, operatorID, result, err)
	if err != nil {
		return resp, err
	}
	if result.payment == nil {
		return nil, ErrNoPendingRefund
	}
	return resp, u.refundFailure(result)
}

// refundAndReverse runs steps 2-5. A provider refund failure is recorded and
// returns nil so the cancellation still commits.
func (u *cancellationUsecase) refundAndReverse(ctx context.Context, tx *gorm.DB, booking *entity.Booking, actorID uuid.UUID, result *reversal) error {
	payment, err := u.paymentRepo.FindSuccessByBookingID(tx, booking.ID)
	if err != nil {
		return err
	}
	if payment == nil {
		u.log.Infof("Booking %s has no successful payment, nothing to refund", booking.ID)
		return nil
	}
	result.payment = payment

	receipt, err := u.issueRefund(ctx, payment)
	if err != nil {
		result.refundErr = err
		result.outcome = OutcomeRefundPending
		metrics.RefundFailuresTotal.Inc()
		u.log.Errorf("Refund of payment %s for booking %s failed, booking left cancelled: %+v", payment.ID, booking.ID, err)

		if err := u.paymentRepo.RecordRefundError(tx, payment.ID, truncateError(err)); err != nil {
			return err
		}
		return u.audit.LogEvent(ctx, tx, &actorID, entity.AuditActionRefundFailed, entity.JSON{
			"booking_id": booking.ID.String(),
			"payment_id": payment.ID.String(),
			"provider":   u.gateway.Name(),
			"error":      truncateError(err),
		})
	}
	result.refund = receipt
	result.refundIssued = true

	now := time.Now()
	affected, err := u.paymentRepo.MarkRefunded(tx, payment.ID, receipt.ID, now)
	if err != nil {
		return err
	}
	if affected == 0 {
		result.outcome = OutcomeAlreadyReversed
		u.log.Warnf("Payment %s was refunded concurrently, skipping ledger reversal", payment.ID)
		return nil
	}

	if err := u.reverseLedger(tx, booking.ID, payment); err != nil {
		return err
	}

	if _, err := u.bookingRepo.MarkRefunded(tx, booking.ID); err != nil {
		return err
	}

	payment.Status = entity.PaymentStatusRefunded
	payment.RefundReference = receipt.ID
	payment.RefundedAt = &now

	return u.audit.LogUpdate(ctx, tx, &actorID, entity.AuditActionBookingRefund, "booking", booking.ID.String(),
		entity.JSON{"status": entity.BookingStatusCancelled, "payment_status": entity.PaymentStatusSuccess},
		entity.JSON{
			"status":           entity.BookingStatusRefunded,
			"payment_status":   entity.PaymentStatusRefunded,
			"refund_reference": receipt.ID,
			"amount_minor":     payment.AmountMinor,
		})
}

func (u *cancellationUsecase) issueRefund(ctx context.Context, payment *entity.Payment) (*gateway.RefundReceipt, error) {
	if payment.ExternalTransactionID == "" {
		return nil, errors.New("payment has no provider transaction id")
	}
	return u.gateway.Refund(ctx, &gateway.RefundRequest{
		TransactionID: payment.ExternalTransactionID,
		AmountMinor:   payment.AmountMinor,
		Currency:      payment.Currency,
		Attempt:       payment.RefundAttempts,
	})
}

// reverseLedger is the inverse of settlement: patient +amount, provider -earning, platform -fee.
func (u *cancellationUsecase) reverseLedger(tx *gorm.DB, bookingID uuid.UUID, payment *entity.Payment) error {
	if err := u.ledgerRepo.Credit(tx, entity.PatientOwner(payment.PatientID), payment.Currency, payment.AmountMinor); err != nil {
		return err
	}
	if err := u.ledgerRepo.Debit(tx, entity.ProviderOwner(payment.ProviderID), payment.Currency, payment.ProviderEarningMinor); err != nil {
		return fmt.Errorf("debit provider %s: %w", payment.ProviderID, err)
	}
	if err := u.ledgerRepo.Debit(tx, entity.PlatformOwner(), payment.Currency, payment.PlatformFeeMinor); err != nil {
		return fmt.Errorf("debit platform: %w", err)
	}

	entries := []entity.LedgerHistoryEntry{
		historyEntry(entity.PatientOwner(payment.PatientID), payment, bookingID, payment.AmountMinor, entity.LedgerDirectionCredit, entity.LedgerTypeConsultationRefund),
		historyEntry(entity.ProviderOwner(payment.ProviderID), payment, bookingID, payment.ProviderEarningMinor, entity.LedgerDirectionDebit, entity.LedgerTypeEarningReversal),
		historyEntry(entity.PlatformOwner(), payment, bookingID, payment.PlatformFeeMinor, entity.LedgerDirectionDebit, entity.LedgerTypePlatformFeeReversal),
	}
	return u.historyRepo.CreateBatch(tx, entries)
}

// finish handles the transaction result shared by Cancel and RetryRefund.
func (u *cancellationUsecase) finish(ctx context.Context, booking *entity.Booking, actorID uuid.UUID, result *reversal, txErr error) (*dto.CancellationResponse, error) {
	if txErr != nil {
		if errors.Is(txErr, ErrInsufficientBalance) {
			metrics.LedgerIntegrityAlarmsTotal.Inc()
			u.log.Errorf("CRITICAL: Ledger reversal for booking %s rolled back, balance does not cover the reversal: %+v", booking.ID, txErr)
			details := entity.JSON{
				"booking_id":      booking.ID.String(),
				"error":           txErr.Error(),
				"refund_issued":   result.refundIssued,
				"refund_provider": u.gateway.Name(),
			}
			if result.payment != nil {
				details["provider_earning_minor"] = result.payment.ProviderEarningMinor
				account, err := u.ledgerRepo.FindAccount(u.transactor.DB(ctx), entity.ProviderOwner(result.payment.ProviderID), result.payment.Currency)
				if err != nil {
					u.log.Warnf("Failed to read provider balance for booking %s: %+v", booking.ID, err)
				} else if account != nil {
					details["provider_balance_minor"] = account.BalanceMinor
				}
			}
			_ = u.audit.LogEvent(ctx, u.transactor.DB(ctx), &actorID, entity.AuditActionLedgerIntegrity, details)
		}
		if result.refundIssued {
			u.log.Errorf("CRITICAL: Refund %s issued for booking %s but the local reversal did not commit", result.refund.ID, booking.ID)
		}
		if !errors.Is(txErr, ErrInsufficientBalance) {
			u.log.Warnf("Failed to cancel booking %s: %+v", booking.ID, txErr)
		}
		return nil, txErr
	}

	switch result.outcome {
	case OutcomeAlreadyReversed:
		current, err := u.bookingRepo.FindByID(u.transactor.DB(ctx), booking.ID)
		if err != nil || current == nil {
			return alreadyReversed(booking), nil
		}
		return alreadyReversed(current), nil
	case OutcomeApplied:
		if result.payment != nil {
			metrics.ReversalsAppliedTotal.Inc()
			u.log.WithFields(logrus.Fields{
				"booking_id":       booking.ID,
				"payment_id":       result.payment.ID,
				"refund_reference": result.refund.ID,
				"amount_minor":     result.payment.AmountMinor,
				"currency":         result.payment.Currency,
			}).Info("Booking refunded and ledger reversed")

			u.notifier.Notify(ctx, service.NotificationMessage{
				OwnerID:   booking.PatientID,
				OwnerRole: entity.RolePatient,
				Type:      entity.NotificationTypeBookingRefunded,
				BookingID: booking.ID,
				Message:   fmt.Sprintf("Your payment for booking %s has been refunded", booking.BookingNumber),
				Meta:      map[string]interface{}{"refund_reference": result.refund.ID},
			})
		}
	}

	return cancellationResponse(booking, result), nil
}

func (u *cancellationUsecase) refundFailure(result *reversal) error {
	if result.refundErr == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", ErrRefundProviderFailure, result.refundErr)
}

func cancellationResponse(booking *entity.Booking, result *reversal) *dto.CancellationResponse {
	resp := &dto.CancellationResponse{
		BookingID:     booking.ID,
		Outcome:       string(result.outcome),
		BookingStatus: string(entity.BookingStatusCancelled),
	}
	if result.payment == nil {
		return resp
	}

	resp.PaymentStatus = string(result.payment.Status)
	resp.Currency = result.payment.Currency
	if result.outcome == OutcomeApplied {
		resp.BookingStatus = string(entity.BookingStatusRefunded)
		resp.RefundReference = result.refund.ID
		resp.RefundedAmount = money.FromMinor(result.payment.AmountMinor, result.payment.Currency).
			StringFixed(money.Exponent(result.payment.Currency))
	}
	return resp
}

func alreadyReversed(booking *entity.Booking) *dto.CancellationResponse {
	return &dto.CancellationResponse{
		BookingID:     booking.ID,
		Outcome:       string(OutcomeAlreadyReversed),
		BookingStatus: string(booking.Status),
	}
}

func counterParty(booking *entity.Booking, actorID uuid.UUID) uuid.UUID {
	if actorID == booking.ProviderID {
		return booking.PatientID
	}
	return booking.ProviderID
}

func counterPartyRole(booking *entity.Booking, actorID uuid.UUID) string {
	if actorID == booking.ProviderID {
		return entity.RolePatient
	}
	return entity.RoleProvider
}

func truncateError(err error) string {
	msg := err.Error()
	if len(msg) > maxRefundErrorLength {
		return msg[:maxRefundErrorLength]
	}
	return msg
}
