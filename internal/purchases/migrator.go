package purchases

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/bundleup/bundleup-backend/pkg/db/models"
	"github.com/bundleup/bundleup-backend/pkg/enums"
	pkgerrors "github.com/bundleup/bundleup-backend/pkg/errors"
	"github.com/bundleup/bundleup-backend/pkg/logger"
	"github.com/bundleup/bundleup-backend/pkg/metrics"
	"github.com/bundleup/bundleup-backend/pkg/types"
)

// MigrateResult reports one legacy-to-unified conversion.
type MigrateResult struct {
	// ItemsMigrated is the number of content items snapshotted into the
	// unified record. Zero when the purchase was already migrated.
	ItemsMigrated int `json:"items_migrated"`
	// AlreadyMigrated is true when a unified record existed and the call
	// was a no-op.
	AlreadyMigrated bool `json:"already_migrated"`
}

// Migrator converts legacy purchases into the unified shape. Conversions are
// additive and idempotent; the source legacy rows are never touched.
type Migrator interface {
	MigrateOne(ctx context.Context, userID, bundleID uuid.UUID) (*MigrateResult, error)
	MigrateAll(ctx context.Context, userID uuid.UUID) (*types.BatchResult, error)
}

type migrator struct {
	repo       purchasesRepository
	bundleRepo bundlesRepository
	resolver   contentResolver
	logg       *logger.Logger
	metrics    *metrics.AccessMetrics
}

// NewMigrator builds the legacy-to-unified migrator.
func NewMigrator(repo purchasesRepository, bundleRepo bundlesRepository, resolver contentResolver, logg *logger.Logger, accessMetrics *metrics.AccessMetrics) (Migrator, error) {
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
	return &migrator{
		repo:       repo,
		bundleRepo: bundleRepo,
		resolver:   resolver,
		logg:       logg,
		metrics:    accessMetrics,
	}, nil
}

// MigrateOne converts a single legacy purchase. Safe to invoke repeatedly: an
// existing unified record makes it a no-op, and the insert itself ignores
// conflicts on (buyer_id, bundle_id) so concurrent callers cannot duplicate.
func (m *migrator) MigrateOne(ctx context.Context, userID, bundleID uuid.UUID) (*MigrateResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}
	if bundleID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bundle id is required")
	}

	ctx = m.logg.WithBundleID(ctx, bundleID.String())

	existing, err := m.repo.FindUnified(ctx, userID, bundleID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup unified purchase")
	}
	if existing != nil {
		m.metrics.IncMigration("noop")
		return &MigrateResult{AlreadyMigrated: true}, nil
	}

	legacy, err := m.repo.FindLegacy(ctx, userID, bundleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "purchase not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup legacy purchase")
	}

	bundle, err := m.bundleRepo.FindByID(ctx, legacy.BundleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			m.metrics.IncMigration("failed")
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "bundle not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup bundle")
	}

	resolved, err := m.resolver.ResolveItems(ctx, parseItemIDs(bundle.ContentItemIDs))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve content items")
	}

	sessionID := legacy.SessionID
	purchase := &models.UnifiedPurchase{
		BuyerID:           legacy.BuyerID,
		BundleID:          legacy.BundleID,
		BundleTitle:       bundle.Title,
		BundleDescription: bundle.Description,
		Source:            enums.PurchaseSourceMigration,
		Items:             snapshotItems(resolved.Items),
	}
	if sessionID != "" {
		purchase.SessionID = &sessionID
	}

	created, err := m.repo.CreateUnified(ctx, purchase)
	if err != nil {
		m.metrics.IncMigration("failed")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write unified purchase")
	}
	if !created {
		// Lost the insert race to a concurrent migration; the record exists.
		m.metrics.IncMigration("noop")
		return &MigrateResult{AlreadyMigrated: true}, nil
	}

	m.metrics.IncMigration("migrated")
	return &MigrateResult{ItemsMigrated: len(purchase.Items)}, nil
}

// MigrateAll converts every legacy purchase the user holds, continuing past
// individual failures. The returned batch reports both sides; per-bundle
// conversions carry no ordering dependency.
func (m *migrator) MigrateAll(ctx context.Context, userID uuid.UUID) (*types.BatchResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}

	legacyRows, err := m.repo.ListLegacyByBuyer(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list legacy purchases")
	}

	result := &types.BatchResult{}
	var errs error
	for _, legacy := range legacyRows {
		if _, err := m.MigrateOne(ctx, userID, legacy.BundleID); err != nil {
			errs = multierr.Append(errs, err)
			result.Failed = append(result.Failed, types.ItemFailure{
				ID:     legacy.BundleID,
				Reason: err.Error(),
			})
			continue
		}
		result.Migrated++
	}

	if errs != nil {
		m.logg.Error(ctx, "some purchase migrations failed", errs)
	}
	return result, nil
}
