package bundles

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bundleup/bundleup-backend/pkg/db/models"
	"github.com/bundleup/bundleup-backend/pkg/pagination"
)

type listQuery struct {
	creatorID uuid.UUID
	cursor    *pagination.Cursor
	limit     int
}

// Repository exposes bundle persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a bundle repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new bundle row.
func (r *Repository) Create(ctx context.Context, bundle *models.Bundle) (*models.Bundle, error) {
	if err := r.db.WithContext(ctx).Create(bundle).Error; err != nil {
		return nil, err
	}
	return bundle, nil
}

// FindByID returns the bundle with the given id, active or not.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Bundle, error) {
	var bundle models.Bundle
	if err := r.db.WithContext(ctx).First(&bundle, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &bundle, nil
}

// Update persists the full bundle row.
func (r *Repository) Update(ctx context.Context, bundle *models.Bundle) error {
	return r.db.WithContext(ctx).Save(bundle).Error
}

// List returns creator-scoped bundles using cursor pagination.
func (r *Repository) List(ctx context.Context, opts listQuery) ([]models.Bundle, error) {
	query := r.db.WithContext(ctx).Model(&models.Bundle{}).Where("creator_id = ?", opts.creatorID)

	if opts.cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", opts.cursor.CreatedAt, opts.cursor.CreatedAt, opts.cursor.ID)
	}

	query = query.Order("created_at DESC").Order("id DESC").Limit(opts.limit)

	var rows []models.Bundle
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
