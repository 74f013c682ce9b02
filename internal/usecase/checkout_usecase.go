package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"telehealth-booking/internal/converter"
	"telehealth-booking/internal/delivery/dto"
	"telehealth-booking/internal/domain/entity"
	"telehealth-booking/internal/domain/repository"
	"telehealth-booking/internal/infrastructure/database"
	gateway "telehealth-booking/internal/infrastructure/payment"
	"telehealth-booking/internal/service"
	"telehealth-booking/pkg/metrics"
	"telehealth-booking/pkg/money"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const compensationTimeout = 5 * time.Second

type CheckoutUsecase interface {
	CreateCheckout(ctx context.Context, patientID uuid.UUID, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error)
}

type checkoutUsecase struct {
	transactor    database.Transactor
	log           *logrus.Logger
	admission     SlotAdmissionUsecase
	serialService service.BookingSerialService
	auditService  service.AuditService
	bookingRepo   repository.BookingRepository
	paymentRepo   repository.PaymentRepository
	gateway       gateway.Gateway
	feeRate       decimal.Decimal
}

func NewCheckoutUsecase(
	transactor database.Transactor,
	log *logrus.Logger,
	admission SlotAdmissionUsecase,
	serialService service.BookingSerialService,
	auditService service.AuditService,
	bookingRepo repository.BookingRepository,
	paymentRepo repository.PaymentRepository,
	paymentGateway gateway.Gateway,
	feeRate decimal.Decimal,
) CheckoutUsecase {
	return &checkoutUsecase{
		transactor:    transactor,
		log:           log,
		admission:     admission,
		serialService: serialService,
		auditService:  auditService,
		bookingRepo:   bookingRepo,
		paymentRepo:   paymentRepo,
		gateway:       paymentGateway,
		feeRate:       feeRate,
	}
}

// CreateCheckout reserves a slot and opens a payment session for it.
//
// Flow:
// 1. Re-run slot admission (server-side price)
// 2. Issue booking number
// 3. Insert Booking(pending) + Payment(pending) in one transaction
// 4. Open provider session
// 5. Store session id and redirect URL
// 6. If 4 or 5 fails -> compensate: delete both rows, releasing the slot
func (u *checkoutUsecase) CreateCheckout(ctx context.Context, patientID uuid.UUID, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error) {
	match, err := u.admission.Reserve(ctx, &req.SlotRequest)
	if err != nil {
		if errors.Is(err, ErrSlotUnavailable) {
			metrics.CheckoutsFailedTotal.WithLabelValues("slot_unavailable").Inc()
		}
		return nil, err
	}

	amountMinor, err := money.ToMinor(match.Amount, match.Currency)
	if err != nil {
		u.log.Warnf("Failed to convert fee %s %s to minor units: %+v", match.Amount, match.Currency, err)
		return nil, err
	}
	platformFee, providerEarning := money.Split(amountMinor, u.feeRate)

	number, err := u.serialService.Next(ctx, time.Now())
	if err != nil {
		u.log.Warnf("Failed to issue booking number: %+v", err)
		return nil, err
	}

	booking := &entity.Booking{
		PatientID:       patientID,
		ProviderID:      match.ProviderID,
		Date:            match.Date,
		Time:            match.Time,
		DurationMinutes: match.DurationMinutes,
		Mode:            match.Mode,
		Amount:          match.Amount,
		Currency:        match.Currency,
		Status:          entity.BookingStatusPending,
		BookingNumber:   number.Number,
		BookingSerial:   number.Serial,
	}
	payment := &entity.Payment{
		PatientID:            patientID,
		ProviderID:           match.ProviderID,
		AmountMinor:          amountMinor,
		PlatformFeeMinor:     platformFee,
		ProviderEarningMinor: providerEarning,
		Currency:             match.Currency,
		Status:               entity.PaymentStatusPending,
	}

	err = u.transactor.WithinTransaction(ctx, func(tx *gorm.DB) error {
		if err := u.bookingRepo.Create(tx, booking); err != nil {
			return err
		}
		payment.BookingID = booking.ID
		if err := u.paymentRepo.Create(tx, payment); err != nil {
			return err
		}
		return u.auditService.LogCreate(ctx, tx, &patientID, entity.AuditActionBookingCheckout, "booking", booking.ID.String(), entity.JSON{
			"booking_number": booking.BookingNumber,
			"payment_id":     payment.ID.String(),
			"amount_minor":   amountMinor,
			"currency":       booking.Currency,
		})
	})
	if err != nil {
		if isDuplicateKeyError(err, activeSlotConstraint) {
			metrics.CheckoutsFailedTotal.WithLabelValues("slot_unavailable").Inc()
			return nil, fmt.Errorf("%w: %v", ErrSlotUnavailable, errSlotAlreadyBooked)
		}
		u.log.Warnf("Failed to create booking and payment: %+v", err)
		return nil, err
	}

	session, err := u.gateway.CreateSession(ctx, &gateway.SessionRequest{
		AmountMinor: amountMinor,
		Currency:    booking.Currency,
		Description: fmt.Sprintf("Consultation %s %s %s", booking.BookingNumber, match.Date.Format("2006-01-02"), booking.Time),
		Metadata: map[string]string{
			gateway.MetaBookingID:  booking.ID.String(),
			gateway.MetaPaymentID:  payment.ID.String(),
			gateway.MetaProviderID: booking.ProviderID.String(),
			gateway.MetaPatientID:  patientID.String(),
		},
	})
	if err != nil {
		u.log.Warnf("Failed to open %s session for booking %s, compensating: %+v", u.gateway.Name(), booking.ID, err)
		u.compensate(ctx, booking, payment, "session")
		return nil, fmt.Errorf("%w: %v", ErrCheckoutFailed, err)
	}

	err = u.transactor.WithinTransaction(ctx, func(tx *gorm.DB) error {
		if err := u.bookingRepo.UpdateSession(tx, booking.ID, session.ID, session.RedirectURL); err != nil {
			return err
		}
		return u.paymentRepo.UpdateSession(tx, payment.ID, session.ID)
	})
	if err != nil {
		u.log.Warnf("Failed to store session %s for booking %s, compensating: %+v", session.ID, booking.ID, err)
		u.compensate(ctx, booking, payment, "persist_session")
		return nil, fmt.Errorf("%w: %v", ErrCheckoutFailed, err)
	}

	booking.ExternalSessionID = session.ID
	booking.RedirectURL = session.RedirectURL
	payment.ExternalSessionID = session.ID

	metrics.CheckoutsCreatedTotal.Inc()
	u.log.WithFields(logrus.Fields{
		"booking_id":     booking.ID,
		"booking_number": booking.BookingNumber,
		"payment_id":     payment.ID,
		"amount_minor":   amountMinor,
		"currency":       booking.Currency,
	}).Info("Checkout created")

	return converter.CheckoutToResponse(booking, payment), nil
}

// compensate deletes the rows created for a checkout that could not get a session.
func (u *checkoutUsecase) compensate(ctx context.Context, booking *entity.Booking, payment *entity.Payment, reason string) {
	metrics.CheckoutsFailedTotal.WithLabelValues(reason).Inc()

	compCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), compensationTimeout)
	defer cancel()

	err := u.transactor.WithinTransaction(compCtx, func(tx *gorm.DB) error {
		if err := u.paymentRepo.Delete(tx, payment.ID); err != nil {
			return err
		}
		if err := u.bookingRepo.Delete(tx, booking.ID); err != nil {
			return err
		}
		return u.auditService.LogDelete(compCtx, tx, &booking.PatientID, entity.AuditActionBookingCheckout, "booking", booking.ID.String(), entity.JSON{
			"booking_number": booking.BookingNumber,
			"reason":         reason,
		})
	})
	if err != nil {
		u.log.Errorf("CRITICAL: Failed to delete booking %s after checkout failure, slot stays held: %+v", booking.ID, err)
	}
}
