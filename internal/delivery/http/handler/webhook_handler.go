package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	gateway "telehealth-booking/internal/infrastructure/payment"
	"telehealth-booking/internal/usecase"
	"telehealth-booking/pkg/response"

	"github.com/sirupsen/logrus"
)

const maxWebhookBodyBytes = 64 << 10

// EventPublisher hands a verified event to the message broker instead of
// settling it inline.
type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

type WebhookHandler struct {
	gateway           gateway.Gateway
	settlementUsecase usecase.SettlementUsecase
	publisher         EventPublisher
	log               *logrus.Logger
}

// NewWebhookHandler builds the payment webhook handler. publisher may be nil,
// in which case events are settled in the request.
func NewWebhookHandler(paymentGateway gateway.Gateway, settlementUsecase usecase.SettlementUsecase, publisher EventPublisher, log *logrus.Logger) *WebhookHandler {
	return &WebhookHandler{
		gateway:           paymentGateway,
		settlementUsecase: settlementUsecase,
		publisher:         publisher,
		log:               log,
	}
}

// HandlePayment answers 2xx only once the event is durably handled: settled,
// queued, or known to be undeliverable. Anything else is 5xx so the provider retries.
func (h *WebhookHandler) HandlePayment(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		response.Error(w, http.StatusBadRequest, "Failed to read request body", nil)
		return
	}

	event, err := h.gateway.ParseEvent(r.Context(), payload, r.Header)
	if err != nil {
		switch {
		case errors.Is(err, gateway.ErrInvalidSignature):
			h.log.Warnf("Rejected %s webhook: %+v", h.gateway.Name(), err)
			response.Error(w, http.StatusBadRequest, "Invalid signature", nil)
		case errors.Is(err, gateway.ErrInvalidPayload):
			response.Error(w, http.StatusBadRequest, "Invalid payload", nil)
		default:
			h.log.Errorf("Failed to parse %s webhook: %+v", h.gateway.Name(), err)
			response.InternalServerError(w, "Failed to parse event")
		}
		return
	}

	if h.publisher != nil && event.Type != gateway.EventIgnored {
		if err := h.publisher.PublishJSON(r.Context(), string(event.Type), event); err != nil {
			h.log.Errorf("Failed to queue %s event %s: %+v", event.Provider, event.ID, err)
			response.InternalServerError(w, "Failed to queue event")
			return
		}
		response.Success(w, http.StatusOK, "Event queued", map[string]string{"event_id": event.ID})
		return
	}

	outcome, err := h.settlementUsecase.HandleEvent(r.Context(), event)
	if err != nil {
		if usecase.IsPermanent(err) {
			response.Success(w, http.StatusOK, "Event dropped", map[string]string{"event_id": event.ID})
			return
		}
		h.log.Errorf("Failed to settle %s event %s: %+v", event.Provider, event.ID, err)
		response.InternalServerError(w, "Failed to process event")
		return
	}

	response.Success(w, http.StatusOK, "Event processed", map[string]string{
		"event_id": event.ID,
		"outcome":  string(outcome),
	})
}
