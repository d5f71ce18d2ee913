package purchases

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bundleup/bundleup-backend/internal/content"
	"github.com/bundleup/bundleup-backend/pkg/db/models"
	pkgerrors "github.com/bundleup/bundleup-backend/pkg/errors"
)

// StateSnapshot is the diagnostic view of both purchase shapes plus the live
// bundle and content state. Errors are captured verbatim per section; this
// verbose surface is intentional and scoped to operator tooling.
type StateSnapshot struct {
	Unified    *models.UnifiedPurchase `json:"unified_purchase,omitempty"`
	UnifiedErr string                  `json:"unified_error,omitempty"`

	Legacy    *models.LegacyPurchase `json:"legacy_purchase,omitempty"`
	LegacyErr string                 `json:"legacy_error,omitempty"`

	Bundle    *models.Bundle `json:"bundle,omitempty"`
	BundleErr string         `json:"bundle_error,omitempty"`

	ResolvedItems  []models.ContentItem `json:"resolved_items,omitempty"`
	FailedItems    []string             `json:"failed_items,omitempty"`
	ResolutionErr  string               `json:"resolution_error,omitempty"`
	UsableItems    int                  `json:"usable_items"`
	WouldHaveItems int                  `json:"bundle_item_count"`
}

// PurchaseState assembles the snapshot without short-circuiting on section
// failures; every lookup is attempted so the operator sees the whole picture.
func (s *service) PurchaseState(ctx context.Context, userID, bundleID uuid.UUID) (*StateSnapshot, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user identity missing")
	}
	if bundleID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "bundle id is required")
	}

	snapshot := &StateSnapshot{}

	unified, err := s.repo.FindUnified(ctx, userID, bundleID)
	switch {
	case err == nil:
		snapshot.Unified = unified
	case !errors.Is(err, gorm.ErrRecordNotFound):
		snapshot.UnifiedErr = err.Error()
	}

	legacy, err := s.repo.FindLegacy(ctx, userID, bundleID)
	switch {
	case err == nil:
		snapshot.Legacy = legacy
	case !errors.Is(err, gorm.ErrRecordNotFound):
		snapshot.LegacyErr = err.Error()
	}

	bundle, err := s.bundleRepo.FindByID(ctx, bundleID)
	switch {
	case err == nil:
		snapshot.Bundle = bundle
	case !errors.Is(err, gorm.ErrRecordNotFound):
		snapshot.BundleErr = err.Error()
	}

	if bundle != nil {
		snapshot.WouldHaveItems = len(bundle.ContentItemIDs)
		resolved, err := s.resolver.ResolveItems(ctx, parseItemIDs(bundle.ContentItemIDs))
		if err != nil {
			snapshot.ResolutionErr = err.Error()
		} else {
			snapshot.ResolvedItems = resolved.Items
			snapshot.UsableItems = len(resolved.Items)
			snapshot.FailedItems = failureIDs(resolved)
		}
	}

	return snapshot, nil
}

func failureIDs(set *content.ResolvedSet) []string {
	if len(set.Failed) == 0 {
		return nil
	}
	out := make([]string, 0, len(set.Failed))
	for _, failure := range set.Failed {
		out = append(out, failure.ID.String())
	}
	return out
}
