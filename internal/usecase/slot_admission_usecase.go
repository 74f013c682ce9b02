package usecase

import (
	"context"
	"fmt"
	"time"

	"telehealth-booking/internal/delivery/dto"
	"telehealth-booking/internal/domain/entity"
	"telehealth-booking/internal/domain/repository"
	"telehealth-booking/internal/infrastructure/database"
	"telehealth-booking/pkg/money"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// SlotMatch is an admitted slot with its server-side price.
type SlotMatch struct {
	ProviderID      uuid.UUID
	Date            time.Time
	Time            string
	DurationMinutes int
	Mode            entity.ConsultationMode
	Amount          decimal.Decimal
	Currency        string
	StartsAt        time.Time
}

type SlotAdmissionUsecase interface {
	// Reserve checks that the slot is published, far enough ahead and not
	// held by an active booking. It holds nothing; the active-slot index
	// settles races at insert time.
	Reserve(ctx context.Context, req *dto.SlotRequest) (*SlotMatch, error)
	Quote(ctx context.Context, req *dto.SlotRequest) (*dto.QuoteResponse, error)
}

type slotAdmissionUsecase struct {
	transactor       database.Transactor
	log              *logrus.Logger
	availabilityRepo repository.AvailabilityRepository
	bookingRepo      repository.BookingRepository
	minLeadTime      time.Duration
	loc              *time.Location
	now              func() time.Time
}

func NewSlotAdmissionUsecase(
	transactor database.Transactor,
	log *logrus.Logger,
	availabilityRepo repository.AvailabilityRepository,
	bookingRepo repository.BookingRepository,
	minLeadTime time.Duration,
	loc *time.Location,
	now func() time.Time,
) SlotAdmissionUsecase {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &slotAdmissionUsecase{
		transactor:       transactor,
		log:              log,
		availabilityRepo: availabilityRepo,
		bookingRepo:      bookingRepo,
		minLeadTime:      minLeadTime,
		loc:              loc,
		now:              now,
	}
}

func (u *slotAdmissionUsecase) Reserve(ctx context.Context, req *dto.SlotRequest) (*SlotMatch, error) {
	date, err := time.ParseInLocation("2006-01-02", req.Date, u.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSlotUnavailable, errInvalidSlot)
	}
	startsAt, err := entity.SlotStart(date, req.Time, u.loc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSlotUnavailable, errInvalidSlot)
	}

	db := u.transactor.DB(ctx)

	slots, err := u.availabilityRepo.FindByFilter(db, &entity.AvailabilityFilter{
		ProviderID: req.ProviderID,
		StartAt:    req.Date,
		EndAt:      req.Date,
	})
	if err != nil {
		u.log.Warnf("Failed to find availability for provider %s: %+v", req.ProviderID, err)
		return nil, err
	}
	availability := matchSlot(slots, req.Time, req.DurationMinutes)
	if availability == nil {
		return nil, fmt.Errorf("%w: %v", ErrSlotUnavailable, errNoAvailability)
	}

	mode := entity.ConsultationMode(req.Mode)
	if !availability.SupportsMode(mode) {
		return nil, fmt.Errorf("%w: %v", ErrSlotUnavailable, errModeNotSupported)
	}

	if startsAt.Sub(u.now()) < u.minLeadTime {
		return nil, fmt.Errorf("%w: %v", ErrSlotUnavailable, errInsideLeadTime)
	}

	active, err := u.bookingRepo.FindActiveBySlot(db, req.ProviderID, date, req.Time)
	if err != nil {
		u.log.Warnf("Failed to check active booking for provider %s: %+v", req.ProviderID, err)
		return nil, err
	}
	if active != nil {
		return nil, fmt.Errorf("%w: %v", ErrSlotUnavailable, errSlotAlreadyBooked)
	}

	return &SlotMatch{
		ProviderID:      req.ProviderID,
		Date:            date,
		Time:            req.Time,
		DurationMinutes: req.DurationMinutes,
		Mode:            mode,
		Amount:          availability.Fee,
		Currency:        availability.Currency,
		StartsAt:        startsAt,
	}, nil
}

func (u *slotAdmissionUsecase) Quote(ctx context.Context, req *dto.SlotRequest) (*dto.QuoteResponse, error) {
	match, err := u.Reserve(ctx, req)
	if err != nil {
		return nil, err
	}

	return &dto.QuoteResponse{
		ProviderID:      match.ProviderID,
		Date:            req.Date,
		Time:            match.Time,
		DurationMinutes: match.DurationMinutes,
		Mode:            string(match.Mode),
		Amount:          match.Amount.StringFixed(money.Exponent(match.Currency)),
		Currency:        match.Currency,
		StartsAt:        match.StartsAt,
	}, nil
}

// matchSlot picks the published slot with exactly this start time and duration.
func matchSlot(slots []entity.ProviderAvailability, clock string, durationMinutes int) *entity.ProviderAvailability {
	for i := range slots {
		if slots[i].Time == clock && slots[i].DurationMinutes == durationMinutes {
			return &slots[i]
		}
	}
	return nil
}
