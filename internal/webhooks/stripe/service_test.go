package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stripe/stripe-go/v84"

	"github.com/bundleup/bundleup-backend/internal/purchases"
	"github.com/bundleup/bundleup-backend/pkg/db/models"
	"github.com/bundleup/bundleup-backend/pkg/enums"
	pkgerrors "github.com/bundleup/bundleup-backend/pkg/errors"
	"github.com/bundleup/bundleup-backend/pkg/logger"
)

type stubRepo struct {
	created   *models.LegacyPurchase
	exists    bool
	createErr error
	calls     int
}

func (s *stubRepo) CreateLegacy(ctx context.Context, purchase *models.LegacyPurchase) (bool, error) {
	s.calls++
	if s.createErr != nil {
		return false, s.createErr
	}
	if s.exists {
		return false, nil
	}
	s.created = purchase
	return true, nil
}

type stubMigrator struct {
	err   error
	calls int
}

func (s *stubMigrator) MigrateOne(ctx context.Context, userID, bundleID uuid.UUID) (*purchases.MigrateResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &purchases.MigrateResult{ItemsMigrated: 2}, nil
}

type stubPublisher struct {
	events []any
	err    error
}

func (s *stubPublisher) PublishPurchaseEvent(ctx context.Context, event any) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Level: zerolog.ErrorLevel, Output: io.Discard})
}

func newTestService(t *testing.T, repo *stubRepo, migrator *stubMigrator, publisher *stubPublisher) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		PurchasesRepo: repo,
		Migrator:      migrator,
		Publisher:     publisher,
		Logger:        testLogger(),
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func completedEvent(t *testing.T, sess stripe.CheckoutSession) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(sess)
	if err != nil {
		t.Fatalf("marshal session: %v", err)
	}
	return &stripe.Event{
		ID:   "evt_" + uuid.NewString(),
		Type: stripe.EventTypeCheckoutSessionCompleted,
		Data: &stripe.EventData{Raw: raw},
	}
}

func paidSession(buyerID, bundleID uuid.UUID) stripe.CheckoutSession {
	return stripe.CheckoutSession{
		ID:            "cs_test_hook",
		PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
		Metadata: map[string]string{
			metadataBuyerID:  buyerID.String(),
			metadataBundleID: bundleID.String(),
		},
	}
}

func TestHandleEventRecordsPurchase(t *testing.T) {
	buyerID := uuid.New()
	bundleID := uuid.New()

	repo := &stubRepo{}
	migrator := &stubMigrator{}
	publisher := &stubPublisher{}
	svc := newTestService(t, repo, migrator, publisher)

	err := svc.HandleEvent(context.Background(), completedEvent(t, paidSession(buyerID, bundleID)))
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if repo.created == nil {
		t.Fatal("expected legacy purchase written")
	}
	if repo.created.BuyerID != buyerID || repo.created.BundleID != bundleID {
		t.Fatal("purchase identity mismatch")
	}
	if repo.created.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("unexpected payment status %s", repo.created.PaymentStatus)
	}
	if migrator.calls != 1 {
		t.Fatal("expected eager unification")
	}
	if len(publisher.events) != 1 {
		t.Fatalf("expected one published event, got %d", len(publisher.events))
	}
	event, ok := publisher.events[0].(PurchaseEvent)
	if !ok || event.Type != "purchase.created" || event.SessionID != "cs_test_hook" {
		t.Fatalf("unexpected event %+v", publisher.events[0])
	}
}

func TestHandleEventRedeliveryDoesNotRepublish(t *testing.T) {
	buyerID := uuid.New()
	bundleID := uuid.New()

	repo := &stubRepo{exists: true}
	publisher := &stubPublisher{}
	svc := newTestService(t, repo, &stubMigrator{}, publisher)

	err := svc.HandleEvent(context.Background(), completedEvent(t, paidSession(buyerID, bundleID)))
	if err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(publisher.events) != 0 {
		t.Fatal("redelivered session must not republish")
	}
}

func TestHandleEventUnpaidSessionIgnored(t *testing.T) {
	sess := paidSession(uuid.New(), uuid.New())
	sess.PaymentStatus = stripe.CheckoutSessionPaymentStatusUnpaid

	repo := &stubRepo{}
	svc := newTestService(t, repo, &stubMigrator{}, &stubPublisher{})

	if err := svc.HandleEvent(context.Background(), completedEvent(t, sess)); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if repo.calls != 0 {
		t.Fatal("unpaid session must not be recorded")
	}
}

func TestHandleEventMissingMetadata(t *testing.T) {
	sess := stripe.CheckoutSession{
		ID:            "cs_test_meta",
		PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
	}
	svc := newTestService(t, &stubRepo{}, &stubMigrator{}, &stubPublisher{})

	err := svc.HandleEvent(context.Background(), completedEvent(t, sess))
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestHandleEventStoreFailurePropagates(t *testing.T) {
	repo := &stubRepo{createErr: errors.New("db down")}
	svc := newTestService(t, repo, &stubMigrator{}, &stubPublisher{})

	err := svc.HandleEvent(context.Background(), completedEvent(t, paidSession(uuid.New(), uuid.New())))
	if !pkgerrors.IsRetryable(err) {
		t.Fatalf("store failure should be retryable so the webhook is redelivered, got %v", err)
	}
}

func TestHandleEventIgnoresUnrelatedTypes(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(t, repo, &stubMigrator{}, &stubPublisher{})

	event := &stripe.Event{
		Type: stripe.EventTypeInvoicePaid,
		Data: &stripe.EventData{Raw: json.RawMessage(`{}`)},
	}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("unrelated events must be acknowledged: %v", err)
	}
	if repo.calls != 0 {
		t.Fatal("unrelated event must not write")
	}
}

type stubIdemStore struct {
	keys map[string]time.Time
	err  error
}

func (s *stubIdemStore) Get(ctx context.Context, key string) (string, error) { return "", nil }

func (s *stubIdemStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if s.err != nil {
		return false, s.err
	}
	if s.keys == nil {
		s.keys = make(map[string]time.Time)
	}
	if _, exists := s.keys[key]; exists {
		return false, nil
	}
	s.keys[key] = time.Now()
	return true, nil
}

func (s *stubIdemStore) IdempotencyKey(scope, id string) string { return "bu:idempotency:" + scope + ":" + id }

func (s *stubIdemStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.keys, key)
	}
	return nil
}

func TestIdempotencyGuard(t *testing.T) {
	store := &stubIdemStore{}
	guard, err := NewIdempotencyGuard(store, time.Hour, "stripe")
	if err != nil {
		t.Fatalf("NewIdempotencyGuard: %v", err)
	}

	seen, err := guard.CheckAndMark(context.Background(), "evt_1")
	if err != nil || seen {
		t.Fatalf("first delivery should pass: seen=%v err=%v", seen, err)
	}
	seen, err = guard.CheckAndMark(context.Background(), "evt_1")
	if err != nil || !seen {
		t.Fatalf("redelivery should be flagged: seen=%v err=%v", seen, err)
	}

	if err := guard.Delete(context.Background(), "evt_1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	seen, err = guard.CheckAndMark(context.Background(), "evt_1")
	if err != nil || seen {
		t.Fatalf("after delete the event should process again: seen=%v err=%v", seen, err)
	}
}
