package purchases

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/bundleup/bundleup-backend/pkg/db/models"
)

// Repository exposes persistence for both historical purchase shapes. Legacy
// rows are never mutated or deleted here; migration is strictly additive.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a purchase repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindUnified returns the unified purchase for (buyer, bundle) with its items.
func (r *Repository) FindUnified(ctx context.Context, buyerID, bundleID uuid.UUID) (*models.UnifiedPurchase, error) {
	var purchase models.UnifiedPurchase
	err := r.db.WithContext(ctx).
		Preload("Items").
		First(&purchase, "buyer_id = ? AND bundle_id = ?", buyerID, bundleID).Error
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

// FindUnifiedBySession returns the unified purchase created from a checkout session.
func (r *Repository) FindUnifiedBySession(ctx context.Context, sessionID string) (*models.UnifiedPurchase, error) {
	var purchase models.UnifiedPurchase
	err := r.db.WithContext(ctx).
		Preload("Items").
		First(&purchase, "session_id = ?", sessionID).Error
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

// ListUnifiedByBuyer returns all unified purchases for the buyer, newest first.
func (r *Repository) ListUnifiedByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.UnifiedPurchase, error) {
	var rows []models.UnifiedPurchase
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("buyer_id = ?", buyerID).
		Order("created_at DESC").Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// CreateUnified inserts a unified purchase with its item snapshots. The insert
// ignores conflicts on the (buyer_id, bundle_id) unique index so a concurrent
// double-migration yields exactly one row; created reports whether this call
// won the insert. The parent row is written without its association so a lost
// race skips the item rows entirely instead of pointing them at a purchase id
// that was never inserted.
func (r *Repository) CreateUnified(ctx context.Context, purchase *models.UnifiedPurchase) (created bool, err error) {
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "buyer_id"}, {Name: "bundle_id"}},
				DoNothing: true,
			}).
			Omit(clause.Associations).
			Create(purchase)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return nil
		}
		created = true
		if len(purchase.Items) == 0 {
			return nil
		}
		for i := range purchase.Items {
			purchase.Items[i].PurchaseID = purchase.ID
		}
		return tx.Create(&purchase.Items).Error
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// FindLegacy returns the legacy purchase for (buyer, bundle).
func (r *Repository) FindLegacy(ctx context.Context, buyerID, bundleID uuid.UUID) (*models.LegacyPurchase, error) {
	var purchase models.LegacyPurchase
	err := r.db.WithContext(ctx).
		First(&purchase, "buyer_id = ? AND bundle_id = ?", buyerID, bundleID).Error
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

// FindLegacyBySession returns the legacy purchase keyed by checkout session id.
func (r *Repository) FindLegacyBySession(ctx context.Context, sessionID string) (*models.LegacyPurchase, error) {
	var purchase models.LegacyPurchase
	err := r.db.WithContext(ctx).First(&purchase, "session_id = ?", sessionID).Error
	if err != nil {
		return nil, err
	}
	return &purchase, nil
}

// ListLegacyByBuyer returns all legacy purchases for the buyer, newest first.
func (r *Repository) ListLegacyByBuyer(ctx context.Context, buyerID uuid.UUID) ([]models.LegacyPurchase, error) {
	var rows []models.LegacyPurchase
	err := r.db.WithContext(ctx).
		Where("buyer_id = ?", buyerID).
		Order("created_at DESC").Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// CreateLegacy inserts a legacy purchase, ignoring a session-id conflict so
// webhook retries stay idempotent; created reports whether a row was written.
func (r *Repository) CreateLegacy(ctx context.Context, purchase *models.LegacyPurchase) (created bool, err error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_id"}},
			DoNothing: true,
		}).
		Create(purchase)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
