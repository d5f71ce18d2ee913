package bundles

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bundleup/bundleup-backend/pkg/db/models"
	"github.com/bundleup/bundleup-backend/pkg/enums"
	pkgerrors "github.com/bundleup/bundleup-backend/pkg/errors"
	pkgpagination "github.com/bundleup/bundleup-backend/pkg/pagination"
)

type bundlesRepository interface {
	Create(ctx context.Context, bundle *models.Bundle) (*models.Bundle, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Bundle, error)
	Update(ctx context.Context, bundle *models.Bundle) error
	List(ctx context.Context, opts listQuery) ([]models.Bundle, error)
}

type contentRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.ContentItem, error)
}

// Service exposes creator-facing bundle management semantics. Bundles are
// soft-disabled rather than deleted so historical purchases keep resolving.
type Service interface {
	CreateBundle(ctx context.Context, creatorID uuid.UUID, input CreateBundleInput) (*models.Bundle, error)
	GetBundle(ctx context.Context, bundleID uuid.UUID) (*models.Bundle, error)
	ListBundles(ctx context.Context, creatorID uuid.UUID, params pkgpagination.Params) (*ListResult, error)
	UpdateBundle(ctx context.Context, creatorID, bundleID uuid.UUID, input UpdateBundleInput) (*models.Bundle, error)
	DisableBundle(ctx context.Context, creatorID, bundleID uuid.UUID) error
	AttachContent(ctx context.Context, creatorID, bundleID, contentItemID uuid.UUID) (*models.Bundle, error)
	DetachContent(ctx context.Context, creatorID, bundleID, contentItemID uuid.UUID) (*models.Bundle, error)
}

// CreateBundleInput holds the metadata required to create a bundle.
type CreateBundleInput struct {
	Title       string
	Description *string
	Price       decimal.Decimal
	Currency    enums.Currency
}

// UpdateBundleInput carries partial metadata edits; nil fields are untouched.
type UpdateBundleInput struct {
	Title       *string
	Description *string
	Price       *decimal.Decimal
	IsActive    *bool
}

// ListResult is a page of bundles plus the cursor for the next page.
type ListResult struct {
	Bundles []models.Bundle
	Cursor  string
}

type service struct {
	repo        bundlesRepository
	contentRepo contentRepository
}

// NewService builds a bundle service backed by the provided repositories.
func NewService(repo bundlesRepository, contentRepo contentRepository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("bundle repository required")
	}
	if contentRepo == nil {
		return nil, fmt.Errorf("content repository required")
	}
	return &service{repo: repo, contentRepo: contentRepo}, nil
}

func (s *service) CreateBundle(ctx context.Context, creatorID uuid.UUID, input CreateBundleInput) (*models.Bundle, error) {
	if creatorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "creator identity missing")
	}
	if strings.TrimSpace(input.Title) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if input.Price.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}
	currency := input.Currency
	if currency == "" {
		currency = enums.CurrencyUSD
	}
	if !currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid currency")
	}

	bundle := &models.Bundle{
		CreatorID:      creatorID,
		Title:          strings.TrimSpace(input.Title),
		Description:    input.Description,
		Price:          input.Price,
		Currency:       currency,
		IsActive:       true,
		ContentItemIDs: []string{},
	}

	created, err := s.repo.Create(ctx, bundle)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create bundle")
	}
	return created, nil
}

func (s *service) GetBundle(ctx context.Context, bundleID uuid.UUID) (*models.Bundle, error) {
	if bundleID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bundle id is required")
	}
	bundle, err := s.repo.FindByID(ctx, bundleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "bundle not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup bundle")
	}
	return bundle, nil
}

func (s *service) ListBundles(ctx context.Context, creatorID uuid.UUID, params pkgpagination.Params) (*ListResult, error) {
	if creatorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "creator identity missing")
	}

	limit := pkgpagination.NormalizeLimit(params.Limit)
	query := listQuery{
		creatorID: creatorID,
		limit:     pkgpagination.LimitWithBuffer(params.Limit),
	}
	if params.Cursor != "" {
		cursor, err := pkgpagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.cursor = cursor
	}

	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list bundles")
	}

	nextCursor := ""
	if len(rows) > limit {
		nextCursor = pkgpagination.EncodeCursor(pkgpagination.Cursor{
			CreatedAt: rows[limit].CreatedAt,
			ID:        rows[limit].ID,
		})
		rows = rows[:limit]
	}

	return &ListResult{Bundles: rows, Cursor: nextCursor}, nil
}

func (s *service) UpdateBundle(ctx context.Context, creatorID, bundleID uuid.UUID, input UpdateBundleInput) (*models.Bundle, error) {
	bundle, err := s.ownedBundle(ctx, creatorID, bundleID)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		if strings.TrimSpace(*input.Title) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "title must not be empty")
		}
		bundle.Title = strings.TrimSpace(*input.Title)
	}
	if input.Description != nil {
		bundle.Description = input.Description
	}
	if input.Price != nil {
		if input.Price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
		}
		bundle.Price = *input.Price
	}
	if input.IsActive != nil {
		bundle.IsActive = *input.IsActive
	}

	if err := s.repo.Update(ctx, bundle); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update bundle")
	}
	return bundle, nil
}

func (s *service) DisableBundle(ctx context.Context, creatorID, bundleID uuid.UUID) error {
	bundle, err := s.ownedBundle(ctx, creatorID, bundleID)
	if err != nil {
		return err
	}
	if !bundle.IsActive {
		return nil
	}
	bundle.IsActive = false
	if err := s.repo.Update(ctx, bundle); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "disable bundle")
	}
	return nil
}

func (s *service) AttachContent(ctx context.Context, creatorID, bundleID, contentItemID uuid.UUID) (*models.Bundle, error) {
	if contentItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "content item id is required")
	}

	bundle, err := s.ownedBundle(ctx, creatorID, bundleID)
	if err != nil {
		return nil, err
	}

	item, err := s.contentRepo.FindByID(ctx, contentItemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "content item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup content item")
	}
	if item.CreatorID != creatorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "content item does not belong to creator")
	}

	idStr := contentItemID.String()
	for _, existing := range bundle.ContentItemIDs {
		if existing == idStr {
			return bundle, nil
		}
	}
	bundle.ContentItemIDs = append(bundle.ContentItemIDs, idStr)

	if err := s.repo.Update(ctx, bundle); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach content item")
	}
	return bundle, nil
}

func (s *service) DetachContent(ctx context.Context, creatorID, bundleID, contentItemID uuid.UUID) (*models.Bundle, error) {
	if contentItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "content item id is required")
	}

	bundle, err := s.ownedBundle(ctx, creatorID, bundleID)
	if err != nil {
		return nil, err
	}

	idStr := contentItemID.String()
	filtered := bundle.ContentItemIDs[:0]
	removed := false
	for _, existing := range bundle.ContentItemIDs {
		if existing == idStr {
			removed = true
			continue
		}
		filtered = append(filtered, existing)
	}
	if !removed {
		return bundle, nil
	}
	bundle.ContentItemIDs = filtered

	if err := s.repo.Update(ctx, bundle); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "detach content item")
	}
	return bundle, nil
}

func (s *service) ownedBundle(ctx context.Context, creatorID, bundleID uuid.UUID) (*models.Bundle, error) {
	if creatorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "creator identity missing")
	}
	if bundleID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bundle id is required")
	}

	bundle, err := s.repo.FindByID(ctx, bundleID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "bundle not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup bundle")
	}
	if bundle.CreatorID != creatorID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "bundle does not belong to creator")
	}
	return bundle, nil
}
