package controllers

import (
	"net/http"

	"github.com/bundleup/bundleup-backend/api/responses"
	"github.com/bundleup/bundleup-backend/api/validators"
	"github.com/bundleup/bundleup-backend/internal/purchases"
	"github.com/bundleup/bundleup-backend/pkg/logger"
)

// BundleAccess resolves whether the caller may view a bundle's content and
// returns the resolved item list. The unified record is served when present;
// otherwise the legacy fallback synthesizes one on the fly.
func BundleAccess(svc purchases.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := creatorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		bundleID, err := validators.ParsePathUUID(r, "bundleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ResolveAccess(r.Context(), userID, bundleID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"purchase":    result.Purchase,
			"synthesized": result.Synthesized,
			"no_content":  result.NoContent,
			"persisted":   result.Persisted,
		})
	}
}

// MyPurchases lists the caller's unified purchases.
func MyPurchases(svc purchases.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := creatorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListUnified(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"purchases": rows})
	}
}

// MyLegacyPurchases lists the caller's pre-migration purchase records.
func MyLegacyPurchases(svc purchases.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := creatorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.ListLegacy(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"purchases": rows})
	}
}

// MigrateMyPurchases converts all of the caller's legacy purchases to the
// unified shape, continuing past per-purchase failures.
func MigrateMyPurchases(migrator purchases.Migrator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := creatorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := migrator.MigrateAll(r.Context(), userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// MigratePurchase converts a single legacy purchase to the unified shape.
func MigratePurchase(migrator purchases.Migrator, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := creatorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		bundleID, err := validators.ParsePathUUID(r, "bundleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := migrator.MigrateOne(r.Context(), userID, bundleID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"items_migrated":   result.ItemsMigrated,
			"already_migrated": result.AlreadyMigrated,
		})
	}
}

// PurchaseState exposes the diagnostic snapshot of both purchase shapes for a
// bundle. Operator tooling only; the verbose error surface is intentional.
func PurchaseState(svc purchases.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := creatorFromContext(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		bundleID, err := validators.ParsePathUUID(r, "bundleId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snapshot, err := svc.PurchaseState(r.Context(), userID, bundleID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, snapshot)
	}
}
