package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"telehealth-booking/config"
	"telehealth-booking/internal/delivery/dto"
	"telehealth-booking/internal/delivery/http/handler"
	"telehealth-booking/internal/delivery/http/middleware"
	"telehealth-booking/internal/domain/entity"
	gateway "telehealth-booking/internal/infrastructure/payment"
	"telehealth-booking/internal/usecase"
	"telehealth-booking/pkg/jwt"
	"telehealth-booking/pkg/response"
	"telehealth-booking/pkg/validator"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var body response.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// Webhook

type stubGateway struct {
	event *gateway.Event
	err   error
}

func (g *stubGateway) Name() string { return "stub" }

func (g *stubGateway) CreateSession(ctx context.Context, req *gateway.SessionRequest) (*gateway.Session, error) {
	return nil, errors.New("not used")
}

func (g *stubGateway) RetrieveTransaction(ctx context.Context, transactionID string) (*gateway.Transaction, error) {
	return nil, errors.New("not used")
}

func (g *stubGateway) Refund(ctx context.Context, req *gateway.RefundRequest) (*gateway.RefundReceipt, error) {
	return nil, errors.New("not used")
}

func (g *stubGateway) ParseEvent(ctx context.Context, payload []byte, header http.Header) (*gateway.Event, error) {
	return g.event, g.err
}

type stubSettlement struct {
	outcome usecase.Outcome
	err     error
	calls   int
}

func (s *stubSettlement) HandleEvent(ctx context.Context, event *gateway.Event) (usecase.Outcome, error) {
	s.calls++
	return s.outcome, s.err
}

func (s *stubSettlement) OnPaymentConfirmed(ctx context.Context, event *gateway.Event) (usecase.Outcome, error) {
	return s.HandleEvent(ctx, event)
}

func (s *stubSettlement) OnPaymentFailed(ctx context.Context, event *gateway.Event) (usecase.Outcome, error) {
	return s.HandleEvent(ctx, event)
}

type stubPublisher struct {
	keys []string
	err  error
}

func (p *stubPublisher) PublishJSON(ctx context.Context, key string, v any) error {
	p.keys = append(p.keys, key)
	return p.err
}

func confirmed() *gateway.Event {
	return &gateway.Event{
		ID:       "evt_1",
		Provider: "stub",
		Type:     gateway.EventPaymentConfirmed,
		RawType:  "checkout.session.completed",
	}
}

func postWebhook(h *handler.WebhookHandler) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", bytes.NewBufferString(`{"id":"evt_1"}`))
	rec := httptest.NewRecorder()
	h.HandlePayment(rec, req)
	return rec
}

func TestWebhook_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		parseErr   error
		settleErr  error
		outcome    usecase.Outcome
		wantStatus int
		wantCalls  int
	}{
		{"applied", nil, nil, usecase.OutcomeApplied, http.StatusOK, 1},
		{"duplicate", nil, nil, usecase.OutcomeAlreadySettled, http.StatusOK, 1},
		{"malformed is acknowledged", nil, fmt.Errorf("%w: evt_1", usecase.ErrMalformedEvent), "", http.StatusOK, 1},
		{"conflict is acknowledged", nil, usecase.ErrSettlementConflict, "", http.StatusOK, 1},
		{"unknown booking is acknowledged", nil, fmt.Errorf("%w: b1", usecase.ErrBookingNotFound), "", http.StatusOK, 1},
		{"database down is retried", nil, errors.New("connection refused"), "", http.StatusInternalServerError, 1},
		{"bad signature", gateway.ErrInvalidSignature, nil, "", http.StatusBadRequest, 0},
		{"bad payload", fmt.Errorf("%w: eof", gateway.ErrInvalidPayload), nil, "", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw := &stubGateway{event: confirmed(), err: tt.parseErr}
			settlement := &stubSettlement{outcome: tt.outcome, err: tt.settleErr}
			h := handler.NewWebhookHandler(gw, settlement, nil, quietLogger())

			rec := postWebhook(h)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCalls, settlement.calls)
		})
	}
}

func TestWebhook_PublishesWhenBrokerConfigured(t *testing.T) {
	settlement := &stubSettlement{}
	publisher := &stubPublisher{}
	h := handler.NewWebhookHandler(&stubGateway{event: confirmed()}, settlement, publisher, quietLogger())

	rec := postWebhook(h)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{string(gateway.EventPaymentConfirmed)}, publisher.keys)
	assert.Zero(t, settlement.calls)
}

func TestWebhook_PublishFailureIsRetried(t *testing.T) {
	publisher := &stubPublisher{err: errors.New("channel closed")}
	h := handler.NewWebhookHandler(&stubGateway{event: confirmed()}, &stubSettlement{}, publisher, quietLogger())

	rec := postWebhook(h)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestWebhook_IgnoredEventsAreNotQueued(t *testing.T) {
	publisher := &stubPublisher{}
	settlement := &stubSettlement{outcome: usecase.OutcomeIgnored}
	event := confirmed()
	event.Type = gateway.EventIgnored
	h := handler.NewWebhookHandler(&stubGateway{event: event}, settlement, publisher, quietLogger())

	rec := postWebhook(h)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, publisher.keys)
	assert.Equal(t, 1, settlement.calls)
}

// Booking

type stubAdmission struct {
	quote *dto.QuoteResponse
	err   error
}

func (s *stubAdmission) Reserve(ctx context.Context, req *dto.SlotRequest) (*usecase.SlotMatch, error) {
	return nil, s.err
}

func (s *stubAdmission) Quote(ctx context.Context, req *dto.SlotRequest) (*dto.QuoteResponse, error) {
	return s.quote, s.err
}

type stubCheckout struct {
	patientID uuid.UUID
	err       error
}

func (s *stubCheckout) CreateCheckout(ctx context.Context, patientID uuid.UUID, req *dto.CheckoutRequest) (*dto.CheckoutResponse, error) {
	s.patientID = patientID
	if s.err != nil {
		return nil, s.err
	}
	return &dto.CheckoutResponse{BookingID: uuid.New(), BookingNumber: "BKG-03032026-001", RedirectURL: "https://pay.example/cs_1"}, nil
}

type stubCancellation struct {
	result *dto.CancellationResponse
	err    error
	role   string
}

func (s *stubCancellation) Cancel(ctx context.Context, bookingID, actorID uuid.UUID, actorRole, reason string) (*dto.CancellationResponse, error) {
	s.role = actorRole
	return s.result, s.err
}

func (s *stubCancellation) RetryRefund(ctx context.Context, bookingID, operatorID uuid.UUID) (*dto.CancellationResponse, error) {
	return s.result, s.err
}

type stubBookings struct{ err error }

func (s *stubBookings) GetBooking(ctx context.Context, bookingID, actorID uuid.UUID, role string) (*dto.BookingResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &dto.BookingResponse{ID: bookingID}, nil
}

func (s *stubBookings) GetPaymentStatus(ctx context.Context, bookingID uuid.UUID) (*dto.PaymentStatusResponse, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &dto.PaymentStatusResponse{BookingID: bookingID}, nil
}

type bookingFixture struct {
	jwt          *jwt.JWTService
	checkout     *stubCheckout
	cancellation *stubCancellation
	router       *mux.Router
}

func newBookingFixture(admission *stubAdmission, checkout *stubCheckout, cancellation *stubCancellation, bookings *stubBookings) *bookingFixture {
	jwtService := jwt.NewJWTService(config.JWTConfig{Secret: "test-secret", AccessExpiry: time.Minute})
	h := handler.NewBookingHandler(admission, checkout, cancellation, bookings, validator.NewValidator())
	auth := middleware.NewAuthMiddleware(jwtService)

	r := mux.NewRouter()
	r.Use(auth.Authenticate)
	r.HandleFunc("/bookings/quote", h.Quote).Methods(http.MethodPost)
	r.HandleFunc("/bookings/checkout", h.Checkout).Methods(http.MethodPost)
	r.HandleFunc("/bookings/{id}", h.GetBooking).Methods(http.MethodGet)
	r.HandleFunc("/bookings/{id}/cancel", h.CancelBooking).Methods(http.MethodPost)
	r.HandleFunc("/admin/bookings/{id}/refund-retry", h.RetryRefund).Methods(http.MethodPost)
	r.HandleFunc("/admin/bookings/{id}/payment", h.GetPaymentStatus).Methods(http.MethodGet)

	return &bookingFixture{jwt: jwtService, checkout: checkout, cancellation: cancellation, router: r}
}

func (f *bookingFixture) do(t *testing.T, method, path, role string, userID uuid.UUID, body string) *httptest.ResponseRecorder {
	t.Helper()
	token, _, err := f.jwt.GenerateAccessToken(userID, role)
	require.NoError(t, err)

	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = http.NoBody
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func checkoutBody(providerID uuid.UUID) string {
	return fmt.Sprintf(`{"provider_id":%q,"date":"2026-03-03","time":"09:00","duration_minutes":30,"mode":"video"}`, providerID)
}

func TestCheckout_Created(t *testing.T) {
	f := newBookingFixture(&stubAdmission{}, &stubCheckout{}, &stubCancellation{}, &stubBookings{})
	patientID := uuid.New()

	rec := f.do(t, http.MethodPost, "/bookings/checkout", entity.RolePatient, patientID, checkoutBody(uuid.New()))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, patientID, f.checkout.patientID)
	assert.True(t, decode(t, rec).Success)
}

func TestCheckout_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"slot taken", fmt.Errorf("%w: slot is already booked", usecase.ErrSlotUnavailable), http.StatusConflict},
		{"provider down", usecase.ErrCheckoutFailed, http.StatusBadGateway},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBookingFixture(&stubAdmission{}, &stubCheckout{err: tt.err}, &stubCancellation{}, &stubBookings{})

			rec := f.do(t, http.MethodPost, "/bookings/checkout", entity.RolePatient, uuid.New(), checkoutBody(uuid.New()))

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestCheckout_ValidationError(t *testing.T) {
	f := newBookingFixture(&stubAdmission{}, &stubCheckout{}, &stubCancellation{}, &stubBookings{})

	body := fmt.Sprintf(`{"provider_id":%q,"date":"03/03/2026","time":"09:00","duration_minutes":30,"mode":"fax"}`, uuid.New())
	rec := f.do(t, http.MethodPost, "/bookings/checkout", entity.RolePatient, uuid.New(), body)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errs, ok := decode(t, rec).Error.(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, errs, "Date")
	assert.Contains(t, errs, "Mode")
}

func TestQuote_Unavailable(t *testing.T) {
	admission := &stubAdmission{err: fmt.Errorf("%w: slot starts too soon", usecase.ErrSlotUnavailable)}
	f := newBookingFixture(admission, &stubCheckout{}, &stubCancellation{}, &stubBookings{})

	rec := f.do(t, http.MethodPost, "/bookings/quote", entity.RolePatient, uuid.New(), checkoutBody(uuid.New()))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, decode(t, rec).Message, "too soon")
}

func TestCancel_Mapping(t *testing.T) {
	pending := &dto.CancellationResponse{Outcome: string(usecase.OutcomeRefundPending), BookingStatus: "cancelled"}
	tests := []struct {
		name       string
		result     *dto.CancellationResponse
		err        error
		wantStatus int
	}{
		{"refunded", &dto.CancellationResponse{Outcome: string(usecase.OutcomeApplied)}, nil, http.StatusOK},
		{"refund pending", pending, fmt.Errorf("%w: card declined", usecase.ErrRefundProviderFailure), http.StatusAccepted},
		{"not a party", nil, usecase.ErrBookingNotOwned, http.StatusForbidden},
		{"unknown booking", nil, usecase.ErrBookingNotFound, http.StatusNotFound},
		{"still pending", nil, usecase.ErrBookingNotCancellable, http.StatusConflict},
		{"integrity alarm", nil, usecase.ErrInsufficientBalance, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cancellation := &stubCancellation{result: tt.result, err: tt.err}
			f := newBookingFixture(&stubAdmission{}, &stubCheckout{}, cancellation, &stubBookings{})

			rec := f.do(t, http.MethodPost, "/bookings/"+uuid.NewString()+"/cancel", entity.RoleProvider, uuid.New(), `{"reason":"sick"}`)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, entity.RoleProvider, cancellation.role)
		})
	}
}

func TestCancel_EmptyBody(t *testing.T) {
	cancellation := &stubCancellation{result: &dto.CancellationResponse{Outcome: string(usecase.OutcomeApplied)}}
	f := newBookingFixture(&stubAdmission{}, &stubCheckout{}, cancellation, &stubBookings{})

	rec := f.do(t, http.MethodPost, "/bookings/"+uuid.NewString()+"/cancel", entity.RolePatient, uuid.New(), "")

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCancel_InvalidID(t *testing.T) {
	f := newBookingFixture(&stubAdmission{}, &stubCheckout{}, &stubCancellation{}, &stubBookings{})

	rec := f.do(t, http.MethodPost, "/bookings/not-a-uuid/cancel", entity.RolePatient, uuid.New(), "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRetryRefund_NoPending(t *testing.T) {
	f := newBookingFixture(&stubAdmission{}, &stubCheckout{}, &stubCancellation{err: usecase.ErrNoPendingRefund}, &stubBookings{})

	rec := f.do(t, http.MethodPost, "/admin/bookings/"+uuid.NewString()+"/refund-retry", entity.RoleAdmin, uuid.New(), "")

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGetBooking_Forbidden(t *testing.T) {
	f := newBookingFixture(&stubAdmission{}, &stubCheckout{}, &stubCancellation{}, &stubBookings{err: usecase.ErrBookingNotOwned})

	rec := f.do(t, http.MethodGet, "/bookings/"+uuid.NewString(), entity.RolePatient, uuid.New(), "")

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetPaymentStatus_Mapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"found", nil, http.StatusOK},
		{"no booking", usecase.ErrBookingNotFound, http.StatusNotFound},
		{"no payment", usecase.ErrPaymentNotFound, http.StatusNotFound},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBookingFixture(&stubAdmission{}, &stubCheckout{}, &stubCancellation{}, &stubBookings{err: tt.err})

			rec := f.do(t, http.MethodGet, "/admin/bookings/"+uuid.NewString()+"/payment", entity.RoleAdmin, uuid.New(), "")

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}
