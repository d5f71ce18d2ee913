package controllers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bundleup/bundleup-backend/api/middleware"
	"github.com/bundleup/bundleup-backend/api/responses"
	"github.com/bundleup/bundleup-backend/api/validators"
	"github.com/bundleup/bundleup-backend/internal/bundles"
	"github.com/bundleup/bundleup-backend/pkg/enums"
	pkgerrors "github.com/bundleup/bundleup-backend/pkg/errors"
	"github.com/bundleup/bundleup-backend/pkg/logger"
)

type bundleCreateRequest struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Description *string `json:"description,omitempty"`
	Price       string  `json:"price" validate:"required"`
	Currency    string  `json:"currency,omitempty"`
}

func (req bundleCreateRequest) toInput() (bundles.CreateBundleInput, error) {
	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		return bundles.CreateBundleInput{}, pkgerrors.New(pkgerrors.CodeValidation, "price must be a decimal string")
	}
	currency := enums.Currency("")
	if req.Currency != "" {
		parsed, err := enums.ParseCurrency(req.Currency)
		if err != nil {
			return bundles.CreateBundleInput{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid currency")
		}
		currency = parsed
	}
	return bundles.CreateBundleInput{
		Title:       req.Title,
		Description: req.Description,
		Price:       price,
		Currency:    currency,
	}, nil
}

type bundleUpdateRequest struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Price       *string `json:"price,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

func (req bundleUpdateRequest) toInput() (bundles.UpdateBundleInput, error) {
	input := bundles.UpdateBundleInput{
		Title:       req.Title,
		Description: req.Description,
		IsActive:    req.IsActive,
	}
	if req.Price != nil {
		price, err := decimal.NewFromString(*req.Price)
		if err != nil {
			return bundles.UpdateBundleInput{}, pkgerrors.New(pkgerrors.CodeValidation, "price must be a decimal string")
		}
		input.Price = &price
	}
	return input, nil
}

func creatorFromContext(r *http.Request) (uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id")
	}
	return id, nil
}

func BundleCreate(svc bundles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		creatorID, err := creatorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload bundleCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bundle, err := svc.CreateBundle(r.Context(), creatorID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, bundle)
	}
}

func BundleGet(svc bundles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bundleID, err := validators.ParsePathUUID(r, "bundleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		bundle, err := svc.GetBundle(r.Context(), bundleID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, bundle)
	}
}

func BundleList(svc bundles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		creatorID, err := creatorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListBundles(r.Context(), creatorID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"bundles": result.Bundles,
			"cursor":  result.Cursor,
		})
	}
}

func BundleUpdate(svc bundles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		creatorID, err := creatorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		bundleID, err := validators.ParsePathUUID(r, "bundleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload bundleUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bundle, err := svc.UpdateBundle(r.Context(), creatorID, bundleID, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, bundle)
	}
}

func BundleDisable(svc bundles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		creatorID, err := creatorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		bundleID, err := validators.ParsePathUUID(r, "bundleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.DisableBundle(r.Context(), creatorID, bundleID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "disabled"})
	}
}

func BundleAttachContent(svc bundles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		creatorID, err := creatorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		bundleID, err := validators.ParsePathUUID(r, "bundleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := validators.ParsePathUUID(r, "contentItemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bundle, err := svc.AttachContent(r.Context(), creatorID, bundleID, itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, bundle)
	}
}

func BundleDetachContent(svc bundles.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		creatorID, err := creatorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		bundleID, err := validators.ParsePathUUID(r, "bundleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		itemID, err := validators.ParsePathUUID(r, "contentItemId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		bundle, err := svc.DetachContent(r.Context(), creatorID, bundleID, itemID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, bundle)
	}
}
