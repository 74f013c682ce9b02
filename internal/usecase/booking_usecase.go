package usecase

import (
	"context"

	"telehealth-booking/internal/converter"
	"telehealth-booking/internal/delivery/dto"
	"telehealth-booking/internal/domain/entity"
	"telehealth-booking/internal/domain/repository"
	"telehealth-booking/internal/infrastructure/database"
	gateway "telehealth-booking/internal/infrastructure/payment"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type BookingUsecase interface {
	// GetBooking returns a booking to one of its two parties or to an admin.
	GetBooking(ctx context.Context, bookingID, actorID uuid.UUID, role string) (*dto.BookingResponse, error)
	// GetPaymentStatus joins the local payment row, its ledger entries and
	// the provider's view of the transaction.
	GetPaymentStatus(ctx context.Context, bookingID uuid.UUID) (*dto.PaymentStatusResponse, error)
}

type bookingUsecase struct {
	transactor  database.Transactor
	log         *logrus.Logger
	bookingRepo repository.BookingRepository
	paymentRepo repository.PaymentRepository
	historyRepo repository.LedgerHistoryRepository
	gateway     gateway.Gateway
}

func NewBookingUsecase(
	transactor database.Transactor,
	log *logrus.Logger,
	bookingRepo repository.BookingRepository,
	paymentRepo repository.PaymentRepository,
	historyRepo repository.LedgerHistoryRepository,
	paymentGateway gateway.Gateway,
) BookingUsecase {
	return &bookingUsecase{
		transactor:  transactor,
		log:         log,
		bookingRepo: bookingRepo,
		paymentRepo: paymentRepo,
		historyRepo: historyRepo,
		gateway:     paymentGateway,
	}
}

func (u *bookingUsecase) GetBooking(ctx context.Context, bookingID, actorID uuid.UUID, role string) (*dto.BookingResponse, error) {
	booking, err := u.bookingRepo.FindByID(u.transactor.DB(ctx), bookingID)
	if err != nil {
		u.log.Warnf("Failed to find booking %s: %+v", bookingID, err)
		return nil, err
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}
	if role != entity.RoleAdmin && !booking.IsParticipant(actorID) {
		return nil, ErrBookingNotOwned
	}

	return converter.BookingToResponse(booking), nil
}

func (u *bookingUsecase) GetPaymentStatus(ctx context.Context, bookingID uuid.UUID) (*dto.PaymentStatusResponse, error) {
	db := u.transactor.DB(ctx)

	booking, err := u.bookingRepo.FindByID(db, bookingID)
	if err != nil {
		u.log.Warnf("Failed to find booking %s: %+v", bookingID, err)
		return nil, err
	}
	if booking == nil {
		return nil, ErrBookingNotFound
	}

	payment, err := u.paymentRepo.FindByBookingID(db, bookingID)
	if err != nil {
		u.log.Warnf("Failed to find payment for booking %s: %+v", bookingID, err)
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}

	entries, err := u.historyRepo.FindByReference(db, payment.ID)
	if err != nil {
		u.log.Warnf("Failed to find ledger entries for payment %s: %+v", payment.ID, err)
		return nil, err
	}

	// The provider lookup is informational; local state is still returned without it.
	var tx *gateway.Transaction
	if payment.ExternalTransactionID != "" {
		tx, err = u.gateway.RetrieveTransaction(ctx, payment.ExternalTransactionID)
		if err != nil {
			u.log.Warnf("Failed to retrieve %s transaction %s: %+v", u.gateway.Name(), payment.ExternalTransactionID, err)
			tx = nil
		}
	}

	return converter.PaymentToStatusResponse(booking, payment, tx, entries), nil
}
