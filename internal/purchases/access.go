package purchases

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bundleup/bundleup-backend/internal/content"
	"github.com/bundleup/bundleup-backend/pkg/db/models"
	"github.com/bundleup/bundleup-backend/pkg/enums"
	pkgerrors "github.com/bundleup/bundleup-backend/pkg/errors"
	"github.com/bundleup/bundleup-backend/pkg/logger"
	"github.com/bundleup/bundleup-backend/pkg/metrics"
)

const (
	resolutionPathUnified = "unified"
	resolutionPathLegacy  = "legacy_fallback"
)

type purchasesRepository interface {
	FindUnified(ctx context.Context, buyerID, bundleID uuid.UUID) (*models.UnifiedPurchase, error)
	FindLegacy(ctx context.Context, buyerID, bundleID uuid.UUID) (*models.LegacyPurchase, error)
	CreateUnified(ctx context.Context, purchase *models.UnifiedPurchase) (bool, error)
	ListUnifiedByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.UnifiedPurchase, error)
	ListLegacyByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.LegacyPurchase, error)
}

type bundlesRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Bundle, error)
}

type contentResolver interface {
	ResolveItems(ctx context.Context, ids []uuid.UUID) (*content.ResolvedSet, error)
}

// AccessResult is a granted access outcome. Purchase always carries the
// unified shape: either the stored record or one synthesized in memory from a
// legacy purchase plus the bundle's current content.
type AccessResult struct {
	Purchase *models.UnifiedPurchase
	// Synthesized is true when the result was built from the legacy fallback
	// path rather than read from the unified store.
	Synthesized bool
	// NoContent marks a confirmed purchase whose bundle resolved to zero
	// usable items. This is a permission success, not a denial.
	NoContent bool
	// Persisted is true when the fallback path also managed to write the
	// unified record. Best effort only; rendering never depends on it.
	Persisted bool
}

// Service answers "can this user see this bundle's content, and what is it?",
// tolerating the two historical purchase shapes.
type Service interface {
	ResolveAccess(ctx context.Context, userID, bundleID uuid.UUID) (*AccessResult, error)
	ListUnified(ctx context.Context, buyerID uuid.UUID) ([]models.UnifiedPurchase, error)
	ListLegacy(ctx context.Context, buyerID uuid.UUID) ([]models.LegacyPurchase, error)
	PurchaseState(ctx context.Context, userID, bundleID uuid.UUID) (*StateSnapshot, error)
}

type service struct {
	repo       purchasesRepository
	bundleRepo bundlesRepository
	resolver   contentResolver
	logg       *logger.Logger
	metrics    *metrics.AccessMetrics
}

// NewService builds the access reconciler.
func NewService(repo purchasesRepository, bundleRepo bundlesRepository, resolver contentResolver, logg *logger.Logger, accessMetrics *metrics.AccessMetrics) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("purchase repository required")
	}
	if bundleRepo == nil {
		return nil, fmt.Errorf("bundle repository required")
	}
	if resolver == nil {
		return nil, fmt.Errorf("content resolver required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:       repo,
		bundleRepo: bundleRepo,
		resolver:   resolver,
		logg:       logg,
		metrics:    accessMetrics,
	}, nil
}

// ResolveAccess consults the unified store first; a stored record with items
// is returned as-is. Otherwise it falls back to the legacy purchase plus
// on-demand content resolution, synthesizing a unified-shaped result and
// persisting it best-effort so subsequent reads take the fast path.
//
// Store failures surface as retryable dependency errors, never as denials.
func (s *service) ResolveAccess(ctx context.Context, userID, bundleID uuid.UUID) (*AccessResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}
	if bundleID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bundle id is required")
	}

	ctx = s.logg.WithBundleID(ctx, bundleID.String())

	unified, err := s.repo.FindUnified(ctx, userID, bundleID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup unified purchase")
	}
	if unified != nil && len(unified.Items) > 0 {
		s.metrics.IncResolution(resolutionPathUnified)
		return &AccessResult{Purchase: unified}, nil
	}

	legacy, err := s.repo.FindLegacy(ctx, userID, bundleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.metrics.IncDenial()
			return nil, pkgerrors.New(pkgerrors.CodeForbidden, "no purchase found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup legacy purchase")
	}

	result, err := s.synthesizeFromLegacy(ctx, legacy)
	if err != nil {
		return nil, err
	}
	s.metrics.IncResolution(resolutionPathLegacy)

	// Persist the synthesized record so the next read is O(1). The render
	// path must succeed even when this write fails.
	if len(result.Purchase.Items) > 0 {
		created, persistErr := s.repo.CreateUnified(ctx, result.Purchase)
		if persistErr != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", persistErr.Error()), "lazy unified persist failed")
			s.metrics.IncMigration("persist_failed")
		} else {
			result.Persisted = created
			if created {
				s.metrics.IncMigration("lazy")
			}
		}
	}

	return result, nil
}

// synthesizeFromLegacy builds an in-memory unified purchase from the bundle's
// current content-item list. A missing bundle or an empty resolution both
// yield the no-content outcome rather than an error: access was paid for.
func (s *service) synthesizeFromLegacy(ctx context.Context, legacy *models.LegacyPurchase) (*AccessResult, error) {
	sessionID := legacy.SessionID
	purchase := &models.UnifiedPurchase{
		BuyerID:  legacy.BuyerID,
		BundleID: legacy.BundleID,
		Source:   enums.PurchaseSourceMigration,
	}
	if sessionID != "" {
		purchase.SessionID = &sessionID
	}

	bundle, err := s.bundleRepo.FindByID(ctx, legacy.BundleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logg.Warn(ctx, "legacy purchase references missing bundle")
			return &AccessResult{Purchase: purchase, Synthesized: true, NoContent: true}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup bundle")
	}
	purchase.BundleTitle = bundle.Title
	purchase.BundleDescription = bundle.Description

	resolved, err := s.resolver.ResolveItems(ctx, parseItemIDs(bundle.ContentItemIDs))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve content items")
	}
	purchase.Items = snapshotItems(resolved.Items)

	return &AccessResult{
		Purchase:    purchase,
		Synthesized: true,
		NoContent:   len(purchase.Items) == 0,
	}, nil
}

func (s *service) ListUnified(ctx context.Context, buyerID uuid.UUID) ([]models.UnifiedPurchase, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}
	rows, err := s.repo.ListUnifiedByBuyer(ctx, buyerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list unified purchases")
	}
	return rows, nil
}

func (s *service) ListLegacy(ctx context.Context, buyerID uuid.UUID) ([]models.LegacyPurchase, error) {
	if buyerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}
	rows, err := s.repo.ListLegacyByBuyer(ctx, buyerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list legacy purchases")
	}
	return rows, nil
}

// snapshotItems denormalizes resolved content into unified item snapshots.
// Callers have already applied the delivery-URL filter.
func snapshotItems(items []models.ContentItem) []models.UnifiedPurchaseItem {
	out := make([]models.UnifiedPurchaseItem, 0, len(items))
	for _, item := range items {
		out = append(out, models.UnifiedPurchaseItem{
			ContentItemID: item.ID,
			Title:         item.Title,
			FileName:      item.FileName,
			DeliveryURL:   item.DeliveryURL,
			ThumbnailURL:  item.ThumbnailURL,
			MimeType:      item.MimeType,
			SizeBytes:     item.SizeBytes,
			DurationSecs:  item.DurationSecs,
			ContentType:   item.ContentType,
		})
	}
	return out
}

// parseItemIDs converts the bundle's stored id array, dropping malformed entries.
func parseItemIDs(raw []string) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(raw))
	for _, value := range raw {
		id, err := uuid.Parse(value)
		if err != nil {
			continue
		}
		out = append(out, id)
	}
	return out
}
