package stripewebhook

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/bundleup/bundleup-backend/internal/purchases"
	"github.com/bundleup/bundleup-backend/pkg/db/models"
	"github.com/bundleup/bundleup-backend/pkg/enums"
	pkgerrors "github.com/bundleup/bundleup-backend/pkg/errors"
	"github.com/bundleup/bundleup-backend/pkg/logger"
)

const (
	metadataBundleID = "bundle_id"
	metadataBuyerID  = "buyer_id"
)

type purchasesRepository interface {
	CreateLegacy(ctx context.Context, purchase *models.LegacyPurchase) (bool, error)
}

type purchaseMigrator interface {
	MigrateOne(ctx context.Context, userID, bundleID uuid.UUID) (*purchases.MigrateResult, error)
}

type eventPublisher interface {
	PublishPurchaseEvent(ctx context.Context, event any) error
}

// PurchaseEvent is the message emitted after a completed checkout is recorded.
type PurchaseEvent struct {
	Type       string    `json:"type"`
	SessionID  string    `json:"session_id"`
	BuyerID    string    `json:"buyer_id"`
	BundleID   string    `json:"bundle_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

type ServiceParams struct {
	PurchasesRepo purchasesRepository
	Migrator      purchaseMigrator
	Publisher     eventPublisher
	Logger        *logger.Logger
}

// Service turns Stripe checkout events into purchase records.
type Service struct {
	repo      purchasesRepository
	migrator  purchaseMigrator
	publisher eventPublisher
	logg      *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.PurchasesRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "purchases repo required")
	}
	if params.Migrator == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "migrator required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		repo:      params.PurchasesRepo,
		migrator:  params.Migrator,
		publisher: params.Publisher,
		logg:      params.Logger,
	}, nil
}

// HandleEvent processes a verified Stripe event. Unhandled event types are
// acknowledged without action so Stripe stops redelivering them.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted,
		stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode checkout session event")
		}
		return s.recordPurchase(ctx, &sess)
	case stripe.EventTypeCheckoutSessionAsyncPaymentFailed:
		s.logg.Warn(s.logg.WithField(ctx, "session_id", event.GetObjectValue("id")), "async payment failed")
		return nil
	default:
		return nil
	}
}

func (s *Service) recordPurchase(ctx context.Context, sess *stripe.CheckoutSession) error {
	status := paymentStatus(sess)
	if !status.Settled() {
		// Completed sessions can still be unpaid for delayed payment
		// methods; the async_payment_succeeded event follows later.
		return nil
	}

	buyerID, bundleID, err := identityFromMetadata(sess)
	if err != nil {
		return err
	}

	ctx = s.logg.WithBundleID(s.logg.WithUserID(ctx, buyerID.String()), bundleID.String())

	legacy := &models.LegacyPurchase{
		SessionID:     sess.ID,
		BuyerID:       buyerID,
		BundleID:      bundleID,
		PaymentStatus: status,
	}
	created, err := s.repo.CreateLegacy(ctx, legacy)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record purchase")
	}
	if !created {
		s.logg.Info(ctx, "purchase already recorded for session")
	}

	// Unify eagerly; a failure here is recoverable via the read-path
	// fallback, so the webhook still acknowledges.
	if _, err := s.migrator.MigrateOne(ctx, buyerID, bundleID); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "post-webhook migration failed")
	}

	if created && s.publisher != nil {
		event := PurchaseEvent{
			Type:       "purchase.created",
			SessionID:  sess.ID,
			BuyerID:    buyerID.String(),
			BundleID:   bundleID.String(),
			OccurredAt: time.Now().UTC(),
		}
		if err := s.publisher.PublishPurchaseEvent(ctx, event); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "purchase event publish failed")
		}
	}

	return nil
}

func paymentStatus(sess *stripe.CheckoutSession) enums.PaymentStatus {
	switch sess.PaymentStatus {
	case stripe.CheckoutSessionPaymentStatusPaid:
		return enums.PaymentStatusPaid
	case stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		return enums.PaymentStatusNoPaymentRequired
	default:
		return enums.PaymentStatusUnpaid
	}
}

func identityFromMetadata(sess *stripe.CheckoutSession) (buyerID, bundleID uuid.UUID, err error) {
	rawBuyer := sess.Metadata[metadataBuyerID]
	if rawBuyer == "" {
		rawBuyer = sess.ClientReferenceID
	}
	buyerID, err = uuid.Parse(rawBuyer)
	if err != nil {
		return uuid.Nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "session missing buyer metadata")
	}
	bundleID, err = uuid.Parse(sess.Metadata[metadataBundleID])
	if err != nil {
		return uuid.Nil, uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "session missing bundle metadata")
	}
	return buyerID, bundleID, nil
}
