package usecase

import (
	"errors"
	"strings"

	"telehealth-booking/internal/domain/repository"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrSlotUnavailable       = errors.New("slot unavailable")
	ErrCheckoutFailed        = errors.New("checkout failed")
	ErrMalformedEvent        = errors.New("malformed payment event")
	ErrInsufficientBalance   = repository.ErrInsufficientBalance
	ErrRefundProviderFailure = errors.New("refund provider failure")

	ErrBookingNotFound       = errors.New("booking not found")
	ErrBookingNotOwned       = errors.New("booking does not belong to you")
	ErrBookingNotCancellable = errors.New("only paid bookings can be cancelled")
	ErrNoPendingRefund       = errors.New("booking has no pending refund")
	ErrPaymentNotFound       = errors.New("successful payment not found for booking")
	ErrSettlementConflict    = errors.New("payment confirmed for a slot that was booked again")
)

// Reasons wrapped by ErrSlotUnavailable.
var (
	errNoAvailability    = errors.New("provider has not published this slot")
	errModeNotSupported  = errors.New("consultation mode not offered for this slot")
	errInsideLeadTime    = errors.New("slot starts too soon")
	errSlotAlreadyBooked = errors.New("slot is already booked")
	errInvalidSlot       = errors.New("invalid slot date or time")
)

const activeSlotConstraint = "ux_bookings_active_slot"

// Outcome is the result of an idempotent operation that did not fail.
type Outcome string

const (
	OutcomeApplied         Outcome = "applied"
	OutcomeAlreadySettled  Outcome = "already_settled"
	OutcomeAlreadyReversed Outcome = "already_reversed"
	OutcomeRefundPending   Outcome = "refund_pending"
	OutcomeIgnored         Outcome = "ignored"
)

// IsPermanent reports whether redelivering the same payment event can never succeed.
// Such events are acknowledged and dropped instead of retried.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrMalformedEvent) ||
		errors.Is(err, ErrBookingNotFound) ||
		errors.Is(err, ErrPaymentNotFound) ||
		errors.Is(err, ErrSettlementConflict)
}

// isDuplicateKeyError checks if the error is a PostgreSQL unique constraint violation
// containing the specified constraint name
func isDuplicateKeyError(err error, constraintName string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// PostgreSQL error code 23505 = unique_violation
		if pgErr.Code == "23505" && strings.Contains(strings.ToLower(pgErr.ConstraintName), strings.ToLower(constraintName)) {
			return true
		}
	}
	return false
}
