package content

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bundleup/bundleup-backend/pkg/db/models"
)

// Repository exposes content-item persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a content-item repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new content-item row.
func (r *Repository) Create(ctx context.Context, item *models.ContentItem) (*models.ContentItem, error) {
	if err := r.db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

// FindByID returns the content item with the given id.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.ContentItem, error) {
	var item models.ContentItem
	if err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// ListByCreator returns all content items owned by the creator, newest first.
func (r *Repository) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]models.ContentItem, error) {
	var rows []models.ContentItem
	err := r.db.WithContext(ctx).
		Where("creator_id = ?", creatorID).
		Order("created_at DESC").Order("id DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
