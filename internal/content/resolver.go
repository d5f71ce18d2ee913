package content

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/bundleup/bundleup-backend/pkg/db/models"
	"github.com/bundleup/bundleup-backend/pkg/logger"
	"github.com/bundleup/bundleup-backend/pkg/types"
)

type itemRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.ContentItem, error)
}

// Resolver turns a bundle's content-item id list into renderable item metadata.
// Individual lookup failures are recorded and skipped; a batch of 50 lookups
// where 3 fail still returns the other 47.
type Resolver interface {
	ResolveItems(ctx context.Context, ids []uuid.UUID) (*ResolvedSet, error)
}

// ResolvedSet is the outcome of a best-effort resolution pass. Failed carries
// one entry per id that could not be resolved or lacked a usable URL.
type ResolvedSet struct {
	Items  []models.ContentItem
	Failed []types.ItemFailure
}

type resolver struct {
	repo itemRepository
	logg *logger.Logger
}

// NewResolver builds a content resolver backed by the given repository.
func NewResolver(repo itemRepository, logg *logger.Logger) (Resolver, error) {
	if repo == nil {
		return nil, fmt.Errorf("content repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &resolver{repo: repo, logg: logg}, nil
}

func (r *resolver) ResolveItems(ctx context.Context, ids []uuid.UUID) (*ResolvedSet, error) {
	out := &ResolvedSet{
		Items: make([]models.ContentItem, 0, len(ids)),
	}

	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		itemCtx := r.logg.WithField(ctx, "content_item_id", id.String())
		item, err := r.repo.FindByID(ctx, id)
		if err != nil {
			r.logg.Warn(r.logg.WithField(itemCtx, "error", err.Error()), "content item lookup failed")
			out.Failed = append(out.Failed, types.ItemFailure{ID: id, Reason: err.Error()})
			continue
		}
		if !UsableDeliveryURL(item.DeliveryURL) {
			r.logg.Warn(itemCtx, "content item has no usable delivery url")
			out.Failed = append(out.Failed, types.ItemFailure{ID: id, Reason: "missing or non-http delivery url"})
			continue
		}
		out.Items = append(out.Items, *item)
	}

	return out, nil
}

// UsableDeliveryURL is the single acceptance filter for delivery URLs: the
// value must be present and carry an HTTP(S) scheme. It is applied both on the
// legacy-resolution path and when unified items are written.
func UsableDeliveryURL(url string) bool {
	return strings.HasPrefix(strings.TrimSpace(url), "http")
}
