package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

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

type bundlesRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Bundle, error)
}

type purchasesRepository interface {
	FindUnified(ctx context.Context, buyerID, bundleID uuid.UUID) (*models.UnifiedPurchase, error)
	FindLegacyBySession(ctx context.Context, sessionID string) (*models.LegacyPurchase, error)
	CreateLegacy(ctx context.Context, purchase *models.LegacyPurchase) (bool, error)
}

type purchaseMigrator interface {
	MigrateOne(ctx context.Context, userID, bundleID uuid.UUID) (*purchases.MigrateResult, error)
}

// CreateSessionResult carries the hosted checkout redirect.
type CreateSessionResult struct {
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}

// VerifyResult is a confirmed purchase. Unified is nil when the unified
// conversion has not happened yet; Legacy is always set.
type VerifyResult struct {
	Legacy  *models.LegacyPurchase  `json:"purchase"`
	Unified *models.UnifiedPurchase `json:"unified_purchase,omitempty"`
}

// Service creates hosted checkout sessions for bundles and verifies them
// after redirect.
type Service interface {
	CreateSession(ctx context.Context, userID uuid.UUID, userEmail string, bundleID uuid.UUID) (*CreateSessionResult, error)
	VerifySession(ctx context.Context, userID uuid.UUID, sessionID string) (*VerifyResult, error)
}

type service struct {
	stripe     StripeSessionClient
	bundleRepo bundlesRepository
	repo       purchasesRepository
	migrator   purchaseMigrator
	logg       *logger.Logger
	successURL string
	cancelURL  string
}

// NewService builds the checkout service.
func NewService(stripeClient StripeSessionClient, bundleRepo bundlesRepository, repo purchasesRepository, migrator purchaseMigrator, logg *logger.Logger, successURL, cancelURL string) (Service, error) {
	if stripeClient == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	if bundleRepo == nil {
		return nil, fmt.Errorf("bundle repository required")
	}
	if repo == nil {
		return nil, fmt.Errorf("purchase repository required")
	}
	if migrator == nil {
		return nil, fmt.Errorf("migrator required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if successURL == "" || cancelURL == "" {
		return nil, fmt.Errorf("success and cancel urls required")
	}
	return &service{
		stripe:     stripeClient,
		bundleRepo: bundleRepo,
		repo:       repo,
		migrator:   migrator,
		logg:       logg,
		successURL: successURL,
		cancelURL:  cancelURL,
	}, nil
}

func (s *service) CreateSession(ctx context.Context, userID uuid.UUID, userEmail string, bundleID uuid.UUID) (*CreateSessionResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}
	if bundleID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bundle id is required")
	}

	bundle, err := s.bundleRepo.FindByID(ctx, bundleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "bundle not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup bundle")
	}
	if !bundle.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "bundle is not for sale")
	}
	if !bundle.Price.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "bundle has no price")
	}

	existing, err := s.repo.FindUnified(ctx, userID, bundleID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup unified purchase")
	}
	if existing != nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "bundle already purchased")
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(s.successURL + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(s.cancelURL),
		ClientReferenceID: stripe.String(userID.String()),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(bundle.Currency.String()),
					UnitAmount: stripe.Int64(amountCents(bundle.Price)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(bundle.Title),
					},
				},
			},
		},
	}
	if userEmail != "" {
		params.CustomerEmail = stripe.String(userEmail)
	}
	params.AddMetadata(metadataBundleID, bundleID.String())
	params.AddMetadata(metadataBuyerID, userID.String())

	created, err := s.stripe.Create(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}

	return &CreateSessionResult{
		SessionID:   created.ID,
		RedirectURL: created.URL,
	}, nil
}

// VerifySession fetches the session from the payment processor and, when paid,
// upserts the purchase record keyed by session id. An unpaid session writes
// nothing; the failure taxonomy (unpaid, session not found, processor
// unreachable) is preserved for the caller's messaging.
func (s *service) VerifySession(ctx context.Context, userID uuid.UUID, sessionID string) (*VerifyResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}
	if strings.TrimSpace(sessionID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}

	sess, err := s.stripe.Get(ctx, sessionID, nil)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && (stripeErr.Code == stripe.ErrorCodeResourceMissing || stripeErr.HTTPStatusCode == 404) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "session not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch checkout session")
	}

	status := paymentStatusFromSession(sess)
	if !status.Settled() {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "payment not completed")
	}

	bundleID, err := bundleIDFromSession(sess)
	if err != nil {
		return nil, err
	}
	if buyer := buyerIDFromSession(sess); buyer != uuid.Nil && buyer != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "session belongs to another buyer")
	}

	legacy := &models.LegacyPurchase{
		SessionID:     sess.ID,
		BuyerID:       userID,
		BundleID:      bundleID,
		PaymentStatus: status,
	}
	if _, err := s.repo.CreateLegacy(ctx, legacy); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record purchase")
	}
	stored, err := s.repo.FindLegacyBySession(ctx, sess.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load purchase")
	}

	result := &VerifyResult{Legacy: stored}

	// Unify eagerly so the first content view takes the fast path. Best
	// effort: verification already succeeded.
	if _, err := s.migrator.MigrateOne(ctx, userID, bundleID); err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "post-verify migration failed")
		return result, nil
	}
	if unified, err := s.repo.FindUnified(ctx, userID, bundleID); err == nil {
		result.Unified = unified
	}

	return result, nil
}

func amountCents(price decimal.Decimal) int64 {
	return price.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func paymentStatusFromSession(sess *stripe.CheckoutSession) enums.PaymentStatus {
	switch sess.PaymentStatus {
	case stripe.CheckoutSessionPaymentStatusPaid:
		return enums.PaymentStatusPaid
	case stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		return enums.PaymentStatusNoPaymentRequired
	default:
		return enums.PaymentStatusUnpaid
	}
}

func bundleIDFromSession(sess *stripe.CheckoutSession) (uuid.UUID, error) {
	raw := sess.Metadata[metadataBundleID]
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "session missing bundle metadata")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid bundle metadata")
	}
	return id, nil
}

func buyerIDFromSession(sess *stripe.CheckoutSession) uuid.UUID {
	raw := sess.Metadata[metadataBuyerID]
	if raw == "" {
		raw = sess.ClientReferenceID
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil
	}
	return id
}
