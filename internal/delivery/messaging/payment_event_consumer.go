package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gateway "telehealth-booking/internal/infrastructure/payment"
	"telehealth-booking/internal/usecase"
	"telehealth-booking/pkg/metrics"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const (
	defaultRetryDelay = 2 * time.Second
	minResubscribe    = time.Second
	maxResubscribe    = 30 * time.Second
)

var ErrDeliveriesClosed = errors.New("payment event deliveries closed by the broker")

// DeliverySource yields broker deliveries until ctx is cancelled.
type DeliverySource interface {
	Deliveries(ctx context.Context) (<-chan amqp.Delivery, error)
}

// PaymentEventConsumer settles payment events queued by the webhook handler.
type PaymentEventConsumer struct {
	source     DeliverySource
	settlement usecase.SettlementUsecase
	log        *logrus.Logger
	retryDelay time.Duration
	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewPaymentEventConsumer(source DeliverySource, settlement usecase.SettlementUsecase, log *logrus.Logger) *PaymentEventConsumer {
	return &PaymentEventConsumer{
		source:     source,
		settlement: settlement,
		log:        log,
		retryDelay: defaultRetryDelay,
		minBackoff: minResubscribe,
		maxBackoff: maxResubscribe,
	}
}

// Supervise keeps the consumer subscribed until ctx is cancelled, resubscribing
// with exponential backoff whenever Run stops.
func (c *PaymentEventConsumer) Supervise(ctx context.Context) {
	backoff := c.minBackoff
	for {
		started := time.Now()
		err := c.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		// a subscription that stayed up for a while starts over from the minimum
		if time.Since(started) > c.maxBackoff {
			backoff = c.minBackoff
		}

		metrics.PaymentEventConsumerRestartsTotal.Inc()
		c.log.Errorf("Payment event consumer stopped, resubscribing in %s: %v", backoff, err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > c.maxBackoff {
			backoff = c.maxBackoff
		}
	}
}

// Run blocks until ctx is cancelled (nil) or the subscription ends
// (ErrDeliveriesClosed or the subscribe error).
func (c *PaymentEventConsumer) Run(ctx context.Context) error {
	msgs, err := c.source.Deliveries(ctx)
	if err != nil {
		return fmt.Errorf("consume payment events: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return ErrDeliveriesClosed
			}
			c.handle(ctx, d)
		}
	}
}

// handle acks once the event is settled or can never be settled, and
// requeues it otherwise.
func (c *PaymentEventConsumer) handle(ctx context.Context, d amqp.Delivery) {
	var event gateway.Event
	if err := json.Unmarshal(d.Body, &event); err != nil {
		c.log.Warnf("Dropping undecodable payment event on %s: %+v", d.RoutingKey, err)
		metrics.PaymentEventsDroppedTotal.WithLabelValues("undecodable").Inc()
		_ = d.Ack(false)
		return
	}

	outcome, err := c.settlement.HandleEvent(ctx, &event)
	if err != nil && !usecase.IsPermanent(err) {
		c.log.Errorf("Failed to settle %s event %s, requeueing: %+v", event.Provider, event.ID, err)
		select {
		case <-ctx.Done():
		case <-time.After(c.retryDelay):
		}
		_ = d.Nack(false, true)
		return
	}

	if err != nil {
		c.log.Warnf("Acknowledging %s event %s without settlement: %v", event.Provider, event.ID, err)
	} else {
		c.log.Debugf("Event %s handled: %s", event.ID, outcome)
	}
	_ = d.Ack(false)
}
