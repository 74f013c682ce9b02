package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"telehealth-booking/internal/domain/entity"
	gateway "telehealth-booking/internal/infrastructure/payment"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCheckout_PendingBookingAndSplitPayment(t *testing.T) {
	h := newHarness(t)

	resp := h.mustCheckout(t)

	assert.Equal(t, string(entity.BookingStatusPending), resp.Status)
	assert.Equal(t, "10.00", resp.Amount)
	assert.Equal(t, "https://pay.example/cs_"+resp.PaymentID.String(), resp.RedirectURL)
	assert.Regexp(t, `^BKG-\d{8}-001$`, resp.BookingNumber)

	booking := h.store.booking(resp.BookingID)
	assert.Equal(t, entity.BookingStatusPending, booking.Status)
	assert.Equal(t, "cs_"+resp.PaymentID.String(), booking.ExternalSessionID)

	payment := h.store.payment(resp.PaymentID)
	assert.Equal(t, entity.PaymentStatusPending, payment.Status)
	assert.Equal(t, resp.BookingID, payment.BookingID)
	assert.Equal(t, int64(1000), payment.AmountMinor)
	assert.Equal(t, int64(200), payment.PlatformFeeMinor)
	assert.Equal(t, int64(800), payment.ProviderEarningMinor)
	assert.Equal(t, "cs_"+resp.PaymentID.String(), payment.ExternalSessionID)

	require.Len(t, h.gw.sessions, 1)
	session := h.gw.sessions[0]
	assert.Equal(t, int64(1000), session.AmountMinor)
	assert.Equal(t, testCurrency, session.Currency)
	assert.Equal(t, resp.BookingID.String(), session.Metadata[gateway.MetaBookingID])
	assert.Equal(t, resp.PaymentID.String(), session.Metadata[gateway.MetaPaymentID])
	assert.Equal(t, h.providerID.String(), session.Metadata[gateway.MetaProviderID])
	assert.Equal(t, h.patientID.String(), session.Metadata[gateway.MetaPatientID])

	assert.Len(t, h.store.auditsWith(entity.AuditActionBookingCheckout), 1)
}

func TestCreateCheckout_SessionFailureRemovesRows(t *testing.T) {
	h := newHarness(t)
	h.gw.sessionErr = errors.New("provider unavailable")

	_, err := h.checkout.CreateCheckout(context.Background(), h.patientID, h.checkoutRequest())
	assert.ErrorIs(t, err, ErrCheckoutFailed)

	bookings, payments := h.store.counts()
	assert.Zero(t, bookings)
	assert.Zero(t, payments)

	// the slot is free again
	h.gw.sessionErr = nil
	resp := h.mustCheckout(t)
	assert.NotEmpty(t, resp.RedirectURL)
}

func TestCreateCheckout_SessionPersistFailureRemovesRows(t *testing.T) {
	h := newHarness(t)
	h.store.setFailure("booking.UpdateSession", errors.New("connection reset"))

	_, err := h.checkout.CreateCheckout(context.Background(), h.patientID, h.checkoutRequest())
	assert.ErrorIs(t, err, ErrCheckoutFailed)

	bookings, payments := h.store.counts()
	assert.Zero(t, bookings)
	assert.Zero(t, payments)
}

func TestCreateCheckout_InsertFailureIsReturned(t *testing.T) {
	h := newHarness(t)
	dbErr := errors.New("database is down")
	h.store.setFailure("booking.Create", dbErr)

	_, err := h.checkout.CreateCheckout(context.Background(), h.patientID, h.checkoutRequest())
	assert.ErrorIs(t, err, dbErr)
	assert.Empty(t, h.gw.sessions)
}

func TestCreateCheckout_ConcurrentSameSlot(t *testing.T) {
	h := newHarness(t)

	const workers = 10
	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		succeeded   int
		unavailable int
	)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.checkout.CreateCheckout(context.Background(), h.patientID, h.checkoutRequest())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrSlotUnavailable):
				unavailable++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, unavailable)

	bookings, payments := h.store.counts()
	assert.Equal(t, 1, bookings)
	assert.Equal(t, 1, payments)
}

func TestCreateCheckout_SerialIncrementsPerDay(t *testing.T) {
	h := newHarness(t)

	first := h.mustCheckout(t)
	_, err := h.settlement.OnPaymentFailed(context.Background(), failedEvent(first))
	require.NoError(t, err)

	second := h.mustCheckout(t)

	assert.Regexp(t, `-001$`, first.BookingNumber)
	assert.Regexp(t, `-002$`, second.BookingNumber)
}
