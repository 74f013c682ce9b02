package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"telehealth-booking/config"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/checkout/session"
	"github.com/stripe/stripe-go/v80/paymentintent"
	"github.com/stripe/stripe-go/v80/refund"
	"github.com/stripe/stripe-go/v80/webhook"
)

type stripeGateway struct {
	webhookSecret string
	successURL    string
	cancelURL     string
}

func NewStripeGateway(cfg config.PaymentConfig) Gateway {
	stripe.Key = cfg.StripeSecretKey
	return &stripeGateway{
		webhookSecret: cfg.StripeWebhookSecret,
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
	}
}

func (g *stripeGateway) Name() string {
	return config.PaymentProviderStripe
}

// CreateSession opens a Checkout Session. Metadata is set on both the session
// and the PaymentIntent so either event family carries it.
func (g *stripeGateway) CreateSession(ctx context.Context, req *SessionRequest) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(g.successURL),
		CancelURL:  stripe.String(g.cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(strings.ToLower(req.Currency)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
					UnitAmount: stripe.Int64(req.AmountMinor),
				},
				Quantity: stripe.Int64(1),
			},
		},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: req.Metadata,
		},
		ClientReferenceID: stripe.String(req.Metadata[MetaBookingID]),
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}
	if paymentID := req.Metadata[MetaPaymentID]; paymentID != "" {
		params.SetIdempotencyKey("checkout-" + paymentID)
	}

	s, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create checkout session: %w", err)
	}

	return &Session{ID: s.ID, RedirectURL: s.URL}, nil
}

func (g *stripeGateway) RetrieveTransaction(ctx context.Context, transactionID string) (*Transaction, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := paymentintent.Get(transactionID, params)
	if err != nil {
		return nil, fmt.Errorf("stripe get payment intent %s: %w", transactionID, err)
	}

	return &Transaction{
		ID:          pi.ID,
		Status:      string(pi.Status),
		AmountMinor: pi.Amount,
		Currency:    strings.ToUpper(string(pi.Currency)),
	}, nil
}

// Refund refunds amountMinor of a PaymentIntent. The idempotency key makes a
// retried refund for the same intent return the original refund.
func (g *stripeGateway) Refund(ctx context.Context, req *RefundRequest) (*RefundReceipt, error) {
	r, err := refund.New(refundParams(ctx, req))
	if err != nil {
		return nil, fmt.Errorf("stripe create refund for %s: %w", req.TransactionID, err)
	}

	return &RefundReceipt{ID: r.ID, Status: string(r.Status)}, nil
}

func refundParams(ctx context.Context, req *RefundRequest) *stripe.RefundParams {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.TransactionID),
		Amount:        stripe.Int64(req.AmountMinor),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.IdempotencyKey())
	return params
}

func (g *stripeGateway) ParseEvent(ctx context.Context, payload []byte, header http.Header) (*Event, error) {
	event, err := webhook.ConstructEvent(payload, header.Get("Stripe-Signature"), g.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	result := &Event{
		ID:       event.ID,
		Provider: g.Name(),
		Type:     EventIgnored,
		RawType:  string(event.Type),
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded,
		stripe.EventTypeCheckoutSessionExpired,
		stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
	default:
		return result, nil
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	result.SessionID = sess.ID
	result.AmountMinor = sess.AmountTotal
	result.Currency = strings.ToUpper(string(sess.Currency))
	result.Metadata = sess.Metadata
	if sess.PaymentIntent != nil {
		result.TransactionID = sess.PaymentIntent.ID
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		// delayed payment methods complete the session before the money arrives
		if sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
			result.Type = EventPaymentConfirmed
		}
	case stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		result.Type = EventPaymentConfirmed
	case stripe.EventTypeCheckoutSessionExpired, stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
		result.Type = EventPaymentFailed
	}

	return result, nil
}
