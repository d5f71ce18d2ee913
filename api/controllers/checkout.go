package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/bundleup/bundleup-backend/api/middleware"
	"github.com/bundleup/bundleup-backend/api/responses"
	"github.com/bundleup/bundleup-backend/api/validators"
	"github.com/bundleup/bundleup-backend/internal/checkout"
	pkgerrors "github.com/bundleup/bundleup-backend/pkg/errors"
	"github.com/bundleup/bundleup-backend/pkg/logger"
)

type checkoutCreateRequest struct {
	BundleID string `json:"bundle_id" validate:"required"`
}

type checkoutVerifyRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

// CheckoutCreate starts a hosted checkout session for a bundle.
func CheckoutCreate(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := creatorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		bundleID, err := uuid.Parse(payload.BundleID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "bundle_id must be a uuid"))
			return
		}

		email := middleware.UserEmailFromContext(r.Context())
		result, err := svc.CreateSession(r.Context(), userID, email, bundleID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// CheckoutVerify confirms a session after the buyer is redirected back. The
// failure taxonomy (unpaid, session not found, processor unreachable) maps to
// distinct codes so clients can message each case.
func CheckoutVerify(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := creatorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload checkoutVerifyRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.VerifySession(r.Context(), userID, payload.SessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
