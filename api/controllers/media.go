package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/bundleup/bundleup-backend/api/responses"
	"github.com/bundleup/bundleup-backend/api/validators"
	"github.com/bundleup/bundleup-backend/internal/media"
	"github.com/bundleup/bundleup-backend/pkg/db/models"
	pkgerrors "github.com/bundleup/bundleup-backend/pkg/errors"
	"github.com/bundleup/bundleup-backend/pkg/logger"
)

type contentLister interface {
	ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]models.ContentItem, error)
}

type mediaPresignRequest struct {
	Title        string   `json:"title,omitempty"`
	FileName     string   `json:"file_name" validate:"required"`
	MimeType     string   `json:"mime_type" validate:"required"`
	SizeBytes    int64    `json:"size_bytes" validate:"required,min=1"`
	DurationSecs *float64 `json:"duration_secs,omitempty"`
}

// MediaPresign creates a content-item record and returns a signed PUT URL.
func MediaPresign(svc media.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "media service unavailable"))
			return
		}

		creatorID, err := creatorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload mediaPresignRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.PresignUpload(r.Context(), creatorID, media.PresignInput{
			Title:        payload.Title,
			FileName:     payload.FileName,
			MimeType:     payload.MimeType,
			SizeBytes:    payload.SizeBytes,
			DurationSecs: payload.DurationSecs,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"upload_url": result.UploadURL,
			"item":       result.Item,
		})
	}
}

// ContentList returns the caller's uploaded content items.
func ContentList(repo contentLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		creatorID, err := creatorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := repo.ListByCreator(r.Context(), creatorID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list content items"))
			return
		}
		responses.WriteSuccess(w, map[string]any{"items": items})
	}
}
