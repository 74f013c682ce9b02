package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"telehealth-booking/internal/domain/entity"
	"telehealth-booking/internal/domain/repository"
	"telehealth-booking/internal/infrastructure/database"
	gateway "telehealth-booking/internal/infrastructure/payment"
	"telehealth-booking/internal/service"
	"telehealth-booking/pkg/metrics"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SettlementUsecase applies provider payment events exactly once.
// Every method is safe to call any number of times for the same event.
type SettlementUsecase interface {
	HandleEvent(ctx context.Context, event *gateway.Event) (Outcome, error)
	OnPaymentConfirmed(ctx context.Context, event *gateway.Event) (Outcome, error)
	OnPaymentFailed(ctx context.Context, event *gateway.Event) (Outcome, error)
}

type settlementUsecase struct {
	transactor  database.Transactor
	log         *logrus.Logger
	notifier    service.Notifier
	audit       service.AuditService
	bookingRepo repository.BookingRepository
	paymentRepo repository.PaymentRepository
	ledgerRepo  repository.LedgerRepository
	historyRepo repository.LedgerHistoryRepository
}

func NewSettlementUsecase(
	transactor database.Transactor,
	log *logrus.Logger,
	notifier service.Notifier,
	audit service.AuditService,
	bookingRepo repository.BookingRepository,
	paymentRepo repository.PaymentRepository,
	ledgerRepo repository.LedgerRepository,
	historyRepo repository.LedgerHistoryRepository,
) SettlementUsecase {
	return &settlementUsecase{
		transactor:  transactor,
		log:         log,
		notifier:    notifier,
		audit:       audit,
		bookingRepo: bookingRepo,
		paymentRepo: paymentRepo,
		ledgerRepo:  ledgerRepo,
		historyRepo: historyRepo,
	}
}

func (u *settlementUsecase) HandleEvent(ctx context.Context, event *gateway.Event) (Outcome, error) {
	switch event.Type {
	case gateway.EventPaymentConfirmed:
		return u.OnPaymentConfirmed(ctx, event)
	case gateway.EventPaymentFailed:
		return u.OnPaymentFailed(ctx, event)
	default:
		u.log.Debugf("Ignoring %s event %s (%s)", event.Provider, event.ID, event.RawType)
		return OutcomeIgnored, nil
	}
}

// OnPaymentConfirmed settles a booking.
//
// Gates, all inside one transaction:
// 1. Booking pending|failed -> paid (0 rows: already settled, or dropped when the booking is gone)
// 2. Payment -> success, then load the success payment of the booking
// 3. Payment ledger_applied false -> true (0 rows: ledger already written)
// 4. Credit provider and platform, append the balanced history set
func (u *settlementUsecase) OnPaymentConfirmed(ctx context.Context, event *gateway.Event) (Outcome, error) {
	bookingID, paymentID, err := u.eventIDs(ctx, event)
	if err != nil {
		return "", err
	}

	start := time.Now()
	outcome := OutcomeApplied
	var settled *entity.Payment

	err = u.transactor.WithinTransaction(ctx, func(tx *gorm.DB) error {
		affected, err := u.bookingRepo.MarkPaid(tx, bookingID)
		if err != nil {
			return err
		}
		if affected == 0 {
			existing, err := u.bookingRepo.FindByID(tx, bookingID)
			if err != nil {
				return err
			}
			if existing == nil {
				return ErrBookingNotFound
			}
			outcome = OutcomeAlreadySettled
			metrics.SettlementsDuplicateTotal.WithLabelValues("booking").Inc()
			return nil
		}

		if _, err := u.paymentRepo.MarkSucceeded(tx, paymentID, event.TransactionID); err != nil {
			return err
		}

		payment, err := u.paymentRepo.FindSuccessByBookingID(tx, bookingID)
		if err != nil {
			return err
		}
		if payment == nil {
			return ErrPaymentNotFound
		}
		if event.AmountMinor > 0 && event.AmountMinor != payment.AmountMinor {
			u.log.Warnf("Payment %s confirmed for %d %s but %d %s was expected",
				payment.ID, event.AmountMinor, event.Currency, payment.AmountMinor, payment.Currency)
		}

		applied, err := u.paymentRepo.MarkLedgerApplied(tx, payment.ID, time.Now())
		if err != nil {
			return err
		}
		if applied == 0 {
			outcome = OutcomeAlreadySettled
			metrics.SettlementsDuplicateTotal.WithLabelValues("ledger").Inc()
			return nil
		}

		if err := u.applyLedger(tx, bookingID, payment); err != nil {
			return err
		}
		settled = payment

		return u.audit.LogUpdate(ctx, tx, nil, entity.AuditActionBookingSettle, "booking", bookingID.String(),
			entity.JSON{"status": "pending"},
			entity.JSON{
				"status":         entity.BookingStatusPaid,
				"payment_id":     payment.ID.String(),
				"transaction_id": event.TransactionID,
				"event_id":       event.ID,
				"event_type":     event.RawType,
				"provider":       event.Provider,
			})
	})
	if err != nil {
		if isDuplicateKeyError(err, activeSlotConstraint) {
			u.log.Errorf("CRITICAL: Payment %s confirmed for booking %s whose slot was booked again, manual refund required", paymentID, bookingID)
			u.dropEvent(ctx, event, "slot_rebooked")
			return "", fmt.Errorf("%w: booking %s", ErrSettlementConflict, bookingID)
		}
		if errors.Is(err, ErrBookingNotFound) {
			u.log.Errorf("CRITICAL: %s confirmed payment %s (transaction %s) for unknown booking %s, manual refund required",
				event.Provider, paymentID, event.TransactionID, bookingID)
			u.dropEvent(ctx, event, "booking_not_found")
			return "", fmt.Errorf("%w: %s", ErrBookingNotFound, bookingID)
		}
		if errors.Is(err, ErrPaymentNotFound) {
			u.log.Errorf("No successful payment for booking %s after event %s", bookingID, event.ID)
			u.dropEvent(ctx, event, "payment_not_found")
			return "", fmt.Errorf("%w: booking %s", ErrPaymentNotFound, bookingID)
		}
		u.log.Warnf("Failed to settle booking %s: %+v", bookingID, err)
		return "", err
	}

	if outcome != OutcomeApplied {
		u.log.Infof("Booking %s already settled, event %s acknowledged", bookingID, event.ID)
		return outcome, nil
	}

	metrics.SettlementsAppliedTotal.Inc()
	metrics.SettlementLatency.Observe(time.Since(start).Seconds())
	u.log.WithFields(logrus.Fields{
		"booking_id":       bookingID,
		"payment_id":       settled.ID,
		"amount_minor":     settled.AmountMinor,
		"platform_fee":     settled.PlatformFeeMinor,
		"provider_earning": settled.ProviderEarningMinor,
		"currency":         settled.Currency,
	}).Info("Booking settled")

	u.notifier.Notify(ctx, service.NotificationMessage{
		OwnerID:   settled.ProviderID,
		OwnerRole: entity.RoleProvider,
		Type:      entity.NotificationTypeBookingPaid,
		BookingID: bookingID,
		Message:   "A consultation booking has been paid",
		Meta: map[string]interface{}{
			"payment_id": settled.ID.String(),
		},
	})

	return OutcomeApplied, nil
}

// applyLedger credits the provider and platform and writes the history set
// patient debit = provider credit + platform credit.
func (u *settlementUsecase) applyLedger(tx *gorm.DB, bookingID uuid.UUID, payment *entity.Payment) error {
	if err := u.ledgerRepo.Credit(tx, entity.ProviderOwner(payment.ProviderID), payment.Currency, payment.ProviderEarningMinor); err != nil {
		return err
	}
	if err := u.ledgerRepo.Credit(tx, entity.PlatformOwner(), payment.Currency, payment.PlatformFeeMinor); err != nil {
		return err
	}

	entries := []entity.LedgerHistoryEntry{
		historyEntry(entity.PatientOwner(payment.PatientID), payment, bookingID, payment.AmountMinor, entity.LedgerDirectionDebit, entity.LedgerTypeConsultationPayment),
		historyEntry(entity.ProviderOwner(payment.ProviderID), payment, bookingID, payment.ProviderEarningMinor, entity.LedgerDirectionCredit, entity.LedgerTypeConsultationEarning),
		historyEntry(entity.PlatformOwner(), payment, bookingID, payment.PlatformFeeMinor, entity.LedgerDirectionCredit, entity.LedgerTypePlatformFee),
	}
	return u.historyRepo.CreateBatch(tx, entries)
}

// OnPaymentFailed releases the slot of a booking whose session expired or failed.
func (u *settlementUsecase) OnPaymentFailed(ctx context.Context, event *gateway.Event) (Outcome, error) {
	bookingID, paymentID, err := u.eventIDs(ctx, event)
	if err != nil {
		return "", err
	}

	outcome := OutcomeApplied
	err = u.transactor.WithinTransaction(ctx, func(tx *gorm.DB) error {
		affected, err := u.bookingRepo.MarkFailed(tx, bookingID)
		if err != nil {
			return err
		}
		if affected == 0 {
			outcome = OutcomeAlreadySettled
			return nil
		}
		if _, err := u.paymentRepo.MarkFailed(tx, paymentID); err != nil {
			return err
		}
		return u.audit.LogUpdate(ctx, tx, nil, entity.AuditActionBookingFail, "booking", bookingID.String(),
			entity.JSON{"status": "pending"},
			entity.JSON{
				"status":     entity.BookingStatusFailed,
				"payment_id": paymentID.String(),
				"event_id":   event.ID,
				"event_type": event.RawType,
			})
	})
	if err != nil {
		u.log.Warnf("Failed to mark booking %s failed: %+v", bookingID, err)
		return "", err
	}

	if outcome == OutcomeApplied {
		u.log.Infof("Booking %s failed after %s, slot released", bookingID, event.RawType)
	}
	return outcome, nil
}

// eventIDs extracts the booking and payment ids. A malformed event is
// recorded and reported as ErrMalformedEvent.
func (u *settlementUsecase) eventIDs(ctx context.Context, event *gateway.Event) (uuid.UUID, uuid.UUID, error) {
	bookingID, bErr := uuid.Parse(event.Metadata[gateway.MetaBookingID])
	paymentID, pErr := uuid.Parse(event.Metadata[gateway.MetaPaymentID])
	if bErr != nil || pErr != nil {
		u.log.Warnf("Dropping %s event %s (%s): missing or invalid booking/payment id", event.Provider, event.ID, event.RawType)
		u.dropEvent(ctx, event, "malformed")
		return uuid.Nil, uuid.Nil, fmt.Errorf("%w: event %s", ErrMalformedEvent, event.ID)
	}
	return bookingID, paymentID, nil
}

func (u *settlementUsecase) dropEvent(ctx context.Context, event *gateway.Event, reason string) {
	metrics.PaymentEventsDroppedTotal.WithLabelValues(reason).Inc()
	_ = u.audit.LogEvent(ctx, u.transactor.DB(ctx), nil, entity.AuditActionPaymentEventDropped, entity.JSON{
		"reason":         reason,
		"event_id":       event.ID,
		"event_type":     event.RawType,
		"provider":       event.Provider,
		"session_id":     event.SessionID,
		"transaction_id": event.TransactionID,
		"metadata":       event.Metadata,
	})
}

func historyEntry(owner entity.LedgerOwner, payment *entity.Payment, bookingID uuid.UUID, amountMinor int64, direction entity.LedgerDirection, reason string) entity.LedgerHistoryEntry {
	return entity.LedgerHistoryEntry{
		OwnerType:   owner.Type,
		OwnerID:     owner.ID,
		Currency:    payment.Currency,
		AmountMinor: amountMinor,
		Direction:   direction,
		Type:        reason,
		ReferenceID: payment.ID,
		BookingID:   bookingID,
	}
}
