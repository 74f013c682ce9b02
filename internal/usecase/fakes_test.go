package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"testing"
	"time"

	"telehealth-booking/internal/delivery/dto"
	"telehealth-booking/internal/domain/entity"
	"telehealth-booking/internal/domain/repository"
	gateway "telehealth-booking/internal/infrastructure/payment"
	"telehealth-booking/internal/service"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// memStore is an in-memory stand-in for the database. Repositories ignore the
// *gorm.DB they receive and work on the store instead.
type memStore struct {
	mu            sync.Mutex
	bookings      map[uuid.UUID]entity.Booking
	payments      map[uuid.UUID]entity.Payment
	accounts      map[accountKey]int64
	history       []entity.LedgerHistoryEntry
	notifications []entity.Notification
	audits        []entity.AuditLog
	availability  []entity.ProviderAvailability
	failOn        map[string]error
}

type accountKey struct {
	owner    entity.LedgerOwner
	currency string
}

type storeSnapshot struct {
	bookings map[uuid.UUID]entity.Booking
	payments map[uuid.UUID]entity.Payment
	accounts map[accountKey]int64
	history  []entity.LedgerHistoryEntry
	audits   []entity.AuditLog
}

func newMemStore() *memStore {
	return &memStore{
		bookings: map[uuid.UUID]entity.Booking{},
		payments: map[uuid.UUID]entity.Payment{},
		accounts: map[accountKey]int64{},
		failOn:   map[string]error{},
	}
}

func (s *memStore) snapshot() storeSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := storeSnapshot{
		bookings: make(map[uuid.UUID]entity.Booking, len(s.bookings)),
		payments: make(map[uuid.UUID]entity.Payment, len(s.payments)),
		accounts: make(map[accountKey]int64, len(s.accounts)),
		history:  append([]entity.LedgerHistoryEntry(nil), s.history...),
		audits:   append([]entity.AuditLog(nil), s.audits...),
	}
	for k, v := range s.bookings {
		snap.bookings[k] = v
	}
	for k, v := range s.payments {
		snap.payments[k] = v
	}
	for k, v := range s.accounts {
		snap.accounts[k] = v
	}
	return snap
}

func (s *memStore) restore(snap storeSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bookings = snap.bookings
	s.payments = snap.payments
	s.accounts = snap.accounts
	s.history = snap.history
	s.audits = snap.audits
}

func (s *memStore) injected(op string) error {
	return s.failOn[op]
}

func (s *memStore) setFailure(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOn[op] = err
}

func (s *memStore) booking(id uuid.UUID) entity.Booking {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bookings[id]
}

func (s *memStore) payment(id uuid.UUID) entity.Payment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payments[id]
}

func (s *memStore) balance(owner entity.LedgerOwner, currency string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.accounts[accountKey{owner, currency}]
	return b, ok
}

func (s *memStore) setBalance(owner entity.LedgerOwner, currency string, amount int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[accountKey{owner, currency}] = amount
}

func (s *memStore) historyFor(referenceID uuid.UUID) []entity.LedgerHistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.LedgerHistoryEntry
	for _, e := range s.history {
		if e.ReferenceID == referenceID {
			out = append(out, e)
		}
	}
	return out
}

func (s *memStore) notificationsOf(ownerID uuid.UUID) []entity.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.Notification
	for _, n := range s.notifications {
		if n.OwnerID == ownerID {
			out = append(out, n)
		}
	}
	return out
}

func (s *memStore) auditsWith(action string) []entity.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []entity.AuditLog
	for _, a := range s.audits {
		if a.Action == action {
			out = append(out, a)
		}
	}
	return out
}

func (s *memStore) counts() (bookings, payments int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bookings), len(s.payments)
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

// fakeTransactor serializes transactions and rolls the store back when fn fails.
type fakeTransactor struct {
	store *memStore
	txMu  sync.Mutex
}

func (t *fakeTransactor) DB(ctx context.Context) *gorm.DB {
	return nil
}

func (t *fakeTransactor) WithinTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	t.txMu.Lock()
	defer t.txMu.Unlock()

	snap := t.store.snapshot()
	if err := fn(nil); err != nil {
		t.store.restore(snap)
		return err
	}
	if err := t.store.injected("commit"); err != nil {
		t.store.restore(snap)
		return err
	}
	return nil
}

// Booking repository

type fakeBookingRepo struct{ s *memStore }

func sameSlot(a entity.Booking, providerID uuid.UUID, date time.Time, clock string) bool {
	return a.ProviderID == providerID && a.Date.Format("2006-01-02") == date.Format("2006-01-02") && a.Time == clock
}

func isActive(status entity.BookingStatus) bool {
	return status == entity.BookingStatusPending || status == entity.BookingStatusPaid
}

func (r *fakeBookingRepo) Create(db *gorm.DB, booking *entity.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("booking.Create"); err != nil {
		return err
	}
	for _, b := range r.s.bookings {
		if isActive(b.Status) && sameSlot(b, booking.ProviderID, booking.Date, booking.Time) {
			return uniqueViolation("ux_bookings_active_slot")
		}
	}
	if booking.ID == uuid.Nil {
		booking.ID = uuid.New()
	}
	now := time.Now()
	booking.CreatedAt = now
	booking.UpdatedAt = now
	r.s.bookings[booking.ID] = *booking
	return nil
}

func (r *fakeBookingRepo) FindByID(db *gorm.DB, id uuid.UUID) (*entity.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (r *fakeBookingRepo) FindActiveBySlot(db *gorm.DB, providerID uuid.UUID, date time.Time, clock string) (*entity.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.bookings {
		if isActive(b.Status) && sameSlot(b, providerID, date, clock) {
			return &b, nil
		}
	}
	return nil, nil
}

func (r *fakeBookingRepo) LastSerialBetween(db *gorm.DB, from, to time.Time) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	max := 0
	for _, b := range r.s.bookings {
		if !b.CreatedAt.Before(from) && b.CreatedAt.Before(to) && b.BookingSerial > max {
			max = b.BookingSerial
		}
	}
	return max, nil
}

func (r *fakeBookingRepo) UpdateSession(db *gorm.DB, id uuid.UUID, sessionID, redirectURL string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.injected("booking.UpdateSession"); err != nil {
		return err
	}
	b, ok := r.s.bookings[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	b.ExternalSessionID = sessionID
	b.RedirectURL = redirectURL
	r.s.bookings[id] = b
	return nil
}

func (r *fakeBookingRepo) transition(id uuid.UUID, to entity.BookingStatus, from ...entity.BookingStatus) int64 {
	b, ok := r.s.bookings[id]
	if !ok {
		return 0
	}
	for _, f := range from {
		if b.Status == f {
			b.Status = to
			b.UpdatedAt = time.Now()
			r.s.bookings[id] = b
			return 1
		}
	}
	return 0
}

func (r *fakeBookingRepo) MarkPaid(db *gorm.DB, id uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if ok && b.Status == entity.BookingStatusFailed {
		for otherID, other := range r.s.bookings {
			if otherID != id && isActive(other.Status) && sameSlot(other, b.ProviderID, b.Date, b.Time) {
				return 0, uniqueViolation("ux_bookings_active_slot")
			}
		}
	}
	return r.transition(id, entity.BookingStatusPaid, entity.BookingStatusPending, entity.BookingStatusFailed), nil
}

func (r *fakeBookingRepo) MarkFailed(db *gorm.DB, id uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.transition(id, entity.BookingStatusFailed, entity.BookingStatusPending), nil
}

func (r *fakeBookingRepo) Cancel(db *gorm.DB, id uuid.UUID, cancelledBy uuid.UUID, reason string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	affected := r.transition(id, entity.BookingStatusCancelled, entity.BookingStatusPaid)
	if affected == 1 {
		b := r.s.bookings[id]
		b.CancelledBy = &cancelledBy
		b.CancelReason = reason
		r.s.bookings[id] = b
	}
	return affected, nil
}

func (r *fakeBookingRepo) MarkRefunded(db *gorm.DB, id uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.transition(id, entity.BookingStatusRefunded, entity.BookingStatusCancelled), nil
}

func (r *fakeBookingRepo) Delete(db *gorm.DB, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.bookings, id)
	return nil
}

// Payment repository

type fakePaymentRepo struct{ s *memStore }

func (r *fakePaymentRepo) Create(db *gorm.DB, payment *entity.Payment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.payments {
		if p.BookingID == payment.BookingID {
			return uniqueViolation("payments_booking_id_key")
		}
	}
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	payment.CreatedAt = time.Now()
	r.s.payments[payment.ID] = *payment
	return nil
}

func (r *fakePaymentRepo) find(match func(entity.Payment) bool) *entity.Payment {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.payments {
		if match(p) {
			return &p
		}
	}
	return nil
}

func (r *fakePaymentRepo) FindByBookingID(db *gorm.DB, bookingID uuid.UUID) (*entity.Payment, error) {
	return r.find(func(p entity.Payment) bool { return p.BookingID == bookingID }), nil
}

func (r *fakePaymentRepo) FindSuccessByBookingID(db *gorm.DB, bookingID uuid.UUID) (*entity.Payment, error) {
	return r.find(func(p entity.Payment) bool {
		return p.BookingID == bookingID && p.Status == entity.PaymentStatusSuccess
	}), nil
}

func (r *fakePaymentRepo) update(id uuid.UUID, apply func(p *entity.Payment) bool) int64 {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok || !apply(&p) {
		return 0
	}
	p.UpdatedAt = time.Now()
	r.s.payments[id] = p
	return 1
}

func (r *fakePaymentRepo) UpdateSession(db *gorm.DB, id uuid.UUID, sessionID string) error {
	r.update(id, func(p *entity.Payment) bool {
		p.ExternalSessionID = sessionID
		return true
	})
	return nil
}

func (r *fakePaymentRepo) MarkSucceeded(db *gorm.DB, id uuid.UUID, transactionID string) (int64, error) {
	return r.update(id, func(p *entity.Payment) bool {
		if p.Status != entity.PaymentStatusPending && p.Status != entity.PaymentStatusFailed {
			return false
		}
		p.Status = entity.PaymentStatusSuccess
		p.ExternalTransactionID = transactionID
		return true
	}), nil
}

func (r *fakePaymentRepo) MarkFailed(db *gorm.DB, id uuid.UUID) (int64, error) {
	return r.update(id, func(p *entity.Payment) bool {
		if p.Status != entity.PaymentStatusPending {
			return false
		}
		p.Status = entity.PaymentStatusFailed
		return true
	}), nil
}

func (r *fakePaymentRepo) MarkLedgerApplied(db *gorm.DB, id uuid.UUID, at time.Time) (int64, error) {
	return r.update(id, func(p *entity.Payment) bool {
		if p.Status != entity.PaymentStatusSuccess || p.LedgerApplied {
			return false
		}
		p.LedgerApplied = true
		p.LedgerAppliedAt = &at
		return true
	}), nil
}

func (r *fakePaymentRepo) MarkRefunded(db *gorm.DB, id uuid.UUID, refundReference string, at time.Time) (int64, error) {
	return r.update(id, func(p *entity.Payment) bool {
		if p.Status != entity.PaymentStatusSuccess {
			return false
		}
		p.Status = entity.PaymentStatusRefunded
		p.RefundReference = refundReference
		p.RefundedAt = &at
		p.RefundError = ""
		return true
	}), nil
}

func (r *fakePaymentRepo) RecordRefundError(db *gorm.DB, id uuid.UUID, message string) error {
	r.update(id, func(p *entity.Payment) bool {
		p.RefundError = message
		p.RefundAttempts++
		return true
	})
	return nil
}

func (r *fakePaymentRepo) Delete(db *gorm.DB, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.payments, id)
	return nil
}

// Ledger repositories

type fakeLedgerRepo struct{ s *memStore }

func (r *fakeLedgerRepo) Credit(db *gorm.DB, owner entity.LedgerOwner, currency string, amountMinor int64) error {
	if amountMinor < 0 {
		return fmt.Errorf("credit amount must not be negative: %d", amountMinor)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.accounts[accountKey{owner, currency}] += amountMinor
	return nil
}

func (r *fakeLedgerRepo) Debit(db *gorm.DB, owner entity.LedgerOwner, currency string, amountMinor int64) error {
	if amountMinor < 0 {
		return fmt.Errorf("debit amount must not be negative: %d", amountMinor)
	}
	if amountMinor == 0 {
		return nil
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := accountKey{owner, currency}
	balance, ok := r.s.accounts[key]
	if !ok || balance < amountMinor {
		return repository.ErrInsufficientBalance
	}
	r.s.accounts[key] = balance - amountMinor
	return nil
}

func (r *fakeLedgerRepo) FindAccount(db *gorm.DB, owner entity.LedgerOwner, currency string) (*entity.LedgerAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	balance, ok := r.s.accounts[accountKey{owner, currency}]
	if !ok {
		return nil, nil
	}
	return &entity.LedgerAccount{OwnerType: owner.Type, OwnerID: owner.ID, Currency: currency, BalanceMinor: balance}, nil
}

func (r *fakeLedgerRepo) FindByOwner(db *gorm.DB, owner entity.LedgerOwner) ([]entity.LedgerAccount, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var accounts []entity.LedgerAccount
	for key, balance := range r.s.accounts {
		if key.owner == owner {
			accounts = append(accounts, entity.LedgerAccount{OwnerType: owner.Type, OwnerID: owner.ID, Currency: key.currency, BalanceMinor: balance})
		}
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Currency < accounts[j].Currency })
	return accounts, nil
}

type fakeHistoryRepo struct{ s *memStore }

func (r *fakeHistoryRepo) CreateBatch(db *gorm.DB, entries []entity.LedgerHistoryEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range entries {
		for _, existing := range r.s.history {
			if existing.ReferenceID == e.ReferenceID && existing.OwnerType == e.OwnerType &&
				existing.Direction == e.Direction && existing.Type == e.Type {
				return uniqueViolation("ux_ledger_history_event")
			}
		}
	}
	for _, e := range entries {
		e.ID = uuid.New()
		e.CreatedAt = time.Now()
		r.s.history = append(r.s.history, e)
	}
	return nil
}

func (r *fakeHistoryRepo) FindByReference(db *gorm.DB, referenceID uuid.UUID) ([]entity.LedgerHistoryEntry, error) {
	return r.s.historyFor(referenceID), nil
}

func (r *fakeHistoryRepo) FindByOwner(db *gorm.DB, owner entity.LedgerOwner, limit int) ([]entity.LedgerHistoryEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []entity.LedgerHistoryEntry
	for i := len(r.s.history) - 1; i >= 0; i-- {
		e := r.s.history[i]
		if e.OwnerType == owner.Type && e.OwnerID == owner.ID {
			out = append(out, e)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

// Notification, audit and availability repositories

type fakeNotificationRepo struct{ s *memStore }

func (r *fakeNotificationRepo) CreateIfAbsent(db *gorm.DB, n *entity.Notification) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.notifications {
		if existing.OwnerID == n.OwnerID && existing.Type == n.Type && existing.BookingID == n.BookingID {
			return false, nil
		}
	}
	n.ID = uuid.New()
	n.CreatedAt = time.Now()
	r.s.notifications = append(r.s.notifications, *n)
	return true, nil
}

type fakeAuditRepo struct{ s *memStore }

func (r *fakeAuditRepo) Create(db *gorm.DB, log *entity.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	log.ID = int64(len(r.s.audits) + 1)
	log.CreatedAt = time.Now()
	r.s.audits = append(r.s.audits, *log)
	return nil
}

func (r *fakeAuditRepo) FindAll(db *gorm.DB, action string) ([]entity.AuditLog, error) {
	if action == "" {
		r.s.mu.Lock()
		defer r.s.mu.Unlock()
		return append([]entity.AuditLog(nil), r.s.audits...), nil
	}
	return r.s.auditsWith(action), nil
}

func (r *fakeAuditRepo) FindByID(db *gorm.DB, id int64) (*entity.AuditLog, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.audits {
		if a.ID == id {
			return &a, nil
		}
	}
	return nil, nil
}

type fakeAvailabilityRepo struct{ s *memStore }

func (r *fakeAvailabilityRepo) FindByFilter(db *gorm.DB, filter *entity.AvailabilityFilter) ([]entity.ProviderAvailability, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []entity.ProviderAvailability
	for _, a := range r.s.availability {
		day := a.Date.Format("2006-01-02")
		if a.ProviderID != filter.ProviderID {
			continue
		}
		if filter.StartAt != "" && day < filter.StartAt {
			continue
		}
		if filter.EndAt != "" && day > filter.EndAt {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// Payment gateway

type fakeGateway struct {
	mu         sync.Mutex
	sessionErr  error
	refundErr   error
	retrieveErr error
	sessions    []gateway.SessionRequest
	refunds     []string
	refundKeys  []string
}

func (g *fakeGateway) Name() string { return "fake" }

func (g *fakeGateway) CreateSession(ctx context.Context, req *gateway.SessionRequest) (*gateway.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sessionErr != nil {
		return nil, g.sessionErr
	}
	g.sessions = append(g.sessions, *req)
	id := "cs_" + req.Metadata[gateway.MetaPaymentID]
	return &gateway.Session{ID: id, RedirectURL: "https://pay.example/" + id}, nil
}

func (g *fakeGateway) RetrieveTransaction(ctx context.Context, transactionID string) (*gateway.Transaction, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.retrieveErr != nil {
		return nil, g.retrieveErr
	}
	return &gateway.Transaction{ID: transactionID, Status: "succeeded", AmountMinor: 1000, Currency: testCurrency}, nil
}

func (g *fakeGateway) Refund(ctx context.Context, req *gateway.RefundRequest) (*gateway.RefundReceipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refundKeys = append(g.refundKeys, req.IdempotencyKey())
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	g.refunds = append(g.refunds, fmt.Sprintf("%s:%d:%s", req.TransactionID, req.AmountMinor, req.Currency))
	return &gateway.RefundReceipt{ID: "re_" + req.TransactionID, Status: "succeeded"}, nil
}

func (g *fakeGateway) ParseEvent(ctx context.Context, payload []byte, header http.Header) (*gateway.Event, error) {
	return nil, errors.New("not used")
}

func (g *fakeGateway) setRefundErr(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refundErr = err
}

func (g *fakeGateway) refundCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.refunds)
}

// harness wires the usecases over the in-memory store.
type harness struct {
	store        *memStore
	transactor   *fakeTransactor
	gw           *fakeGateway
	now          time.Time
	providerID   uuid.UUID
	patientID    uuid.UUID
	admission    SlotAdmissionUsecase
	checkout     CheckoutUsecase
	settlement   SettlementUsecase
	cancellation CancellationUsecase
	wallet       WalletUsecase
	auditLogs    AuditLogUsecase
	bookings     BookingUsecase
}

const (
	testCurrency = "IDR"
	testDate     = "2026-03-03"
	testTime     = "09:00"
)

func newHarness(t *testing.T) *harness {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	store := newMemStore()
	transactor := &fakeTransactor{store: store}
	gw := &fakeGateway{}

	h := &harness{
		store:      store,
		transactor: transactor,
		gw:         gw,
		now:        time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC),
		providerID: uuid.New(),
		patientID:  uuid.New(),
	}

	date, _ := time.Parse("2006-01-02", testDate)
	store.availability = append(store.availability, entity.ProviderAvailability{
		ID:              1,
		ProviderID:      h.providerID,
		Date:            date,
		Time:            testTime,
		DurationMinutes: 30,
		Modes:           []entity.ConsultationMode{entity.ConsultationModeVideo, entity.ConsultationModeChat},
		Fee:             decimal.RequireFromString("10.00"),
		Currency:        testCurrency,
	})

	bookingRepo := &fakeBookingRepo{s: store}
	paymentRepo := &fakePaymentRepo{s: store}
	ledgerRepo := &fakeLedgerRepo{s: store}
	historyRepo := &fakeHistoryRepo{s: store}
	auditRepo := &fakeAuditRepo{s: store}

	audit := service.NewAuditService(log, auditRepo)
	notifier := service.NewNotificationService(transactor, nil, log, &fakeNotificationRepo{s: store})
	serials := service.NewBookingSerialService(transactor, nil, log, bookingRepo, "BKG", time.UTC)

	h.admission = NewSlotAdmissionUsecase(transactor, log, &fakeAvailabilityRepo{s: store}, bookingRepo,
		30*time.Minute, time.UTC, func() time.Time { return h.now })
	h.checkout = NewCheckoutUsecase(transactor, log, h.admission, serials, audit, bookingRepo, paymentRepo, gw,
		decimal.RequireFromString("0.20"))
	h.settlement = NewSettlementUsecase(transactor, log, notifier, audit, bookingRepo, paymentRepo, ledgerRepo, historyRepo)
	h.cancellation = NewCancellationUsecase(transactor, log, notifier, audit, bookingRepo, paymentRepo, ledgerRepo, historyRepo, gw)
	h.wallet = NewWalletUsecase(transactor, log, ledgerRepo, historyRepo)
	h.auditLogs = NewAuditLogUsecase(transactor, log, auditRepo)
	h.bookings = NewBookingUsecase(transactor, log, bookingRepo, paymentRepo, historyRepo, gw)

	return h
}

func (h *harness) checkoutRequest() *dto.CheckoutRequest {
	return &dto.CheckoutRequest{SlotRequest: dto.SlotRequest{
		ProviderID:      h.providerID,
		Date:            testDate,
		Time:            testTime,
		DurationMinutes: 30,
		Mode:            string(entity.ConsultationModeVideo),
	}}
}

func (h *harness) mustCheckout(t *testing.T) *dto.CheckoutResponse {
	t.Helper()
	resp, err := h.checkout.CreateCheckout(context.Background(), h.patientID, h.checkoutRequest())
	require.NoError(t, err)
	return resp
}

func (h *harness) mustSettle(t *testing.T) *dto.CheckoutResponse {
	t.Helper()
	resp := h.mustCheckout(t)
	outcome, err := h.settlement.OnPaymentConfirmed(context.Background(), confirmedEvent(resp))
	require.NoError(t, err)
	require.Equal(t, OutcomeApplied, outcome)
	return resp
}

func confirmedEvent(resp *dto.CheckoutResponse) *gateway.Event {
	return &gateway.Event{
		ID:            "evt_" + resp.PaymentID.String(),
		Provider:      "fake",
		Type:          gateway.EventPaymentConfirmed,
		RawType:       "checkout.session.completed",
		SessionID:     "cs_" + resp.PaymentID.String(),
		TransactionID: "pi_" + resp.PaymentID.String(),
		AmountMinor:   1000,
		Currency:      testCurrency,
		Metadata: map[string]string{
			gateway.MetaBookingID: resp.BookingID.String(),
			gateway.MetaPaymentID: resp.PaymentID.String(),
		},
	}
}

func failedEvent(resp *dto.CheckoutResponse) *gateway.Event {
	event := confirmedEvent(resp)
	event.Type = gateway.EventPaymentFailed
	event.RawType = "checkout.session.expired"
	event.TransactionID = ""
	return event
}
