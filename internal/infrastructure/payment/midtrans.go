package payment

import (
	"context"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"telehealth-booking/config"
	"telehealth-booking/pkg/money"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"
	"github.com/shopspring/decimal"
)

var ErrUnsupportedAmount = errors.New("amount cannot be expressed in whole currency units")

type midtransGateway struct {
	serverKey  string
	finishURL  string
	snapClient snap.Client
	coreClient coreapi.Client
}

func NewMidtransGateway(cfg config.PaymentConfig) Gateway {
	env := midtrans.Sandbox
	if cfg.MidtransIsProduction {
		env = midtrans.Production
	}

	var s snap.Client
	s.New(cfg.MidtransServerKey, env)

	var c coreapi.Client
	c.New(cfg.MidtransServerKey, env)

	return &midtransGateway{
		serverKey:  cfg.MidtransServerKey,
		finishURL:  cfg.SuccessURL,
		snapClient: s,
		coreClient: c,
	}
}

func (g *midtransGateway) Name() string {
	return config.PaymentProviderMidtrans
}

// grossAmount converts minor units to the whole-unit gross amount Midtrans expects.
func grossAmount(amountMinor int64, currency string) (int64, error) {
	major := money.FromMinor(amountMinor, currency)
	if !major.IsInteger() {
		return 0, ErrUnsupportedAmount
	}
	return major.IntPart(), nil
}

// CreateSession opens a Snap transaction keyed by the payment id. Snap has no
// metadata map, so booking/provider/patient ride in the custom fields.
func (g *midtransGateway) CreateSession(ctx context.Context, req *SessionRequest) (*Session, error) {
	gross, err := grossAmount(req.AmountMinor, req.Currency)
	if err != nil {
		return nil, err
	}

	orderID := req.Metadata[MetaPaymentID]
	snapReq := &snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  orderID,
			GrossAmt: gross,
		},
		Items: &[]midtrans.ItemDetails{
			{
				ID:    req.Metadata[MetaBookingID],
				Name:  truncate(req.Description, 50),
				Price: gross,
				Qty:   1,
			},
		},
		CustomField1: req.Metadata[MetaBookingID],
		CustomField2: req.Metadata[MetaProviderID],
		CustomField3: req.Metadata[MetaPatientID],
	}
	if g.finishURL != "" {
		snapReq.Callbacks = &snap.Callbacks{Finish: g.finishURL}
	}

	resp, mErr := g.snapClient.CreateTransaction(snapReq)
	if mErr != nil {
		return nil, fmt.Errorf("midtrans create transaction: %w", mErr)
	}

	return &Session{ID: resp.Token, RedirectURL: resp.RedirectURL}, nil
}

func (g *midtransGateway) RetrieveTransaction(ctx context.Context, transactionID string) (*Transaction, error) {
	resp, mErr := g.coreClient.CheckTransaction(transactionID)
	if mErr != nil {
		return nil, fmt.Errorf("midtrans check transaction %s: %w", transactionID, mErr)
	}

	currency := strings.ToUpper(resp.Currency)
	if currency == "" {
		currency = "IDR"
	}
	amountMinor, err := parseGross(resp.GrossAmount, currency)
	if err != nil {
		return nil, err
	}

	return &Transaction{
		ID:          resp.TransactionID,
		Status:      resp.TransactionStatus,
		AmountMinor: amountMinor,
		Currency:    currency,
	}, nil
}

func (g *midtransGateway) Refund(ctx context.Context, req *RefundRequest) (*RefundReceipt, error) {
	body, err := refundBody(req)
	if err != nil {
		return nil, err
	}

	resp, mErr := g.coreClient.RefundTransaction(req.TransactionID, body)
	if mErr != nil {
		return nil, fmt.Errorf("midtrans refund %s: %w", req.TransactionID, mErr)
	}
	if resp.StatusCode != "200" && resp.StatusCode != "201" {
		return nil, fmt.Errorf("midtrans refund %s rejected: %s %s", req.TransactionID, resp.StatusCode, resp.StatusMessage)
	}

	return &RefundReceipt{ID: resp.RefundKey, Status: resp.TransactionStatus}, nil
}

func refundBody(req *RefundRequest) (*coreapi.RefundReq, error) {
	gross, err := grossAmount(req.AmountMinor, req.Currency)
	if err != nil {
		return nil, err
	}
	return &coreapi.RefundReq{
		RefundKey: req.IdempotencyKey(),
		Amount:    gross,
		Reason:    "consultation cancelled",
	}, nil
}

// midtransNotification is the HTTP notification body Midtrans posts.
type midtransNotification struct {
	TransactionID     string `json:"transaction_id"`
	TransactionStatus string `json:"transaction_status"`
	FraudStatus       string `json:"fraud_status"`
	StatusCode        string `json:"status_code"`
	OrderID           string `json:"order_id"`
	GrossAmount       string `json:"gross_amount"`
	Currency          string `json:"currency"`
	SignatureKey      string `json:"signature_key"`
	CustomField1      string `json:"custom_field1"`
	CustomField2      string `json:"custom_field2"`
	CustomField3      string `json:"custom_field3"`
}

func (g *midtransGateway) ParseEvent(ctx context.Context, payload []byte, header http.Header) (*Event, error) {
	var n midtransNotification
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if !g.validSignature(&n) {
		return nil, ErrInvalidSignature
	}

	currency := strings.ToUpper(n.Currency)
	if currency == "" {
		currency = "IDR"
	}
	amountMinor, err := parseGross(n.GrossAmount, currency)
	if err != nil {
		return nil, err
	}

	event := &Event{
		ID:            n.TransactionID + ":" + n.TransactionStatus,
		Provider:      g.Name(),
		Type:          EventIgnored,
		RawType:       n.TransactionStatus,
		TransactionID: n.TransactionID,
		AmountMinor:   amountMinor,
		Currency:      currency,
		Metadata: map[string]string{
			MetaPaymentID:  n.OrderID,
			MetaBookingID:  n.CustomField1,
			MetaProviderID: n.CustomField2,
			MetaPatientID:  n.CustomField3,
		},
	}

	switch n.TransactionStatus {
	case "settlement":
		event.Type = EventPaymentConfirmed
	case "capture":
		if n.FraudStatus == "" || n.FraudStatus == "accept" {
			event.Type = EventPaymentConfirmed
		}
	case "deny", "cancel", "expire", "failure":
		event.Type = EventPaymentFailed
	}

	return event, nil
}

// validSignature checks SHA512(order_id + status_code + gross_amount + server_key).
func (g *midtransGateway) validSignature(n *midtransNotification) bool {
	sum := sha512.Sum512([]byte(n.OrderID + n.StatusCode + n.GrossAmount + g.serverKey))
	expected := hex.EncodeToString(sum[:])
	return subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(n.SignatureKey))) == 1
}

func parseGross(gross, currency string) (int64, error) {
	if gross == "" {
		return 0, nil
	}
	amount, err := decimal.NewFromString(gross)
	if err != nil {
		return 0, fmt.Errorf("%w: gross_amount %q", ErrInvalidPayload, gross)
	}
	return money.ToMinor(amount, currency)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
