package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bundleup/bundleup-backend/api/controllers"
	webhookcontrollers "github.com/bundleup/bundleup-backend/api/controllers/webhooks"
	"github.com/bundleup/bundleup-backend/api/middleware"
	"github.com/bundleup/bundleup-backend/internal/bundles"
	checkoutsvc "github.com/bundleup/bundleup-backend/internal/checkout"
	"github.com/bundleup/bundleup-backend/internal/content"
	"github.com/bundleup/bundleup-backend/internal/media"
	"github.com/bundleup/bundleup-backend/internal/purchases"
	stripewebhook "github.com/bundleup/bundleup-backend/internal/webhooks/stripe"
	"github.com/bundleup/bundleup-backend/pkg/config"
	"github.com/bundleup/bundleup-backend/pkg/db"
	"github.com/bundleup/bundleup-backend/pkg/logger"
	"github.com/bundleup/bundleup-backend/pkg/redis"
	"github.com/bundleup/bundleup-backend/pkg/storage/gcs"
	"github.com/bundleup/bundleup-backend/pkg/stripe"
)

const (
	apiRateLimit       = 240
	apiRateLimitWindow = time.Minute
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	gcsP gcs.Pinger,
	metricsRegistry *prometheus.Registry,
	bundlesService bundles.Service,
	contentRepo *content.Repository,
	mediaService media.Service,
	checkoutService checkoutsvc.Service,
	purchasesService purchases.Service,
	migrator purchases.Migrator,
	stripeClient *stripe.Client,
	stripeWebhookService *stripewebhook.Service,
	stripeWebhookGuard *stripewebhook.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	readiness := map[string]controllers.Pinger{"database": nil, "redis": nil, "gcs": nil}
	if dbP != nil {
		readiness["database"] = dbP
	}
	if redisClient != nil {
		readiness["redis"] = redisClient
	}
	if gcsP != nil {
		readiness["gcs"] = gcsP
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, readiness))
	})

	if metricsRegistry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{}))
	}

	var (
		webhookSvc    webhookcontrollers.StripeWebhookService
		webhookSigner webhookcontrollers.StripeSigningClient
		webhookGuard  webhookcontrollers.StripeWebhookGuard
	)
	if stripeWebhookService != nil {
		webhookSvc = stripeWebhookService
	}
	if stripeClient != nil {
		webhookSigner = stripeClient
	}
	if stripeWebhookGuard != nil {
		webhookGuard = stripeWebhookGuard
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(webhookSvc, webhookSigner, webhookGuard, logg))
	})

	var idemStore redis.IdempotencyStore
	if redisClient != nil {
		idemStore = redisClient
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(idemStore, logg))
		r.Use(middleware.RateLimit(redisClient, apiRateLimit, apiRateLimitWindow, logg))

		r.Route("/bundles", func(r chi.Router) {
			r.Post("/", controllers.BundleCreate(bundlesService, logg))
			r.Get("/", controllers.BundleList(bundlesService, logg))
			r.Route("/{bundleId}", func(r chi.Router) {
				r.Get("/", controllers.BundleGet(bundlesService, logg))
				r.Patch("/", controllers.BundleUpdate(bundlesService, logg))
				r.Delete("/", controllers.BundleDisable(bundlesService, logg))
				r.Get("/access", controllers.BundleAccess(purchasesService, logg))
				r.Route("/content/{contentItemId}", func(r chi.Router) {
					r.Post("/", controllers.BundleAttachContent(bundlesService, logg))
					r.Delete("/", controllers.BundleDetachContent(bundlesService, logg))
				})
			})
		})

		r.Get("/content", controllers.ContentList(contentRepo, logg))
		r.Post("/media/presign", controllers.MediaPresign(mediaService, logg))

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", controllers.CheckoutCreate(checkoutService, logg))
			r.Post("/verify", controllers.CheckoutVerify(checkoutService, logg))
		})

		r.Route("/purchases", func(r chi.Router) {
			r.Get("/", controllers.MyPurchases(purchasesService, logg))
			r.Get("/legacy", controllers.MyLegacyPurchases(purchasesService, logg))
			r.Post("/migrate", controllers.MigrateMyPurchases(migrator, logg))
			r.Post("/migrate/{bundleId}", controllers.MigratePurchase(migrator, logg))
			r.Get("/{bundleId}/state", controllers.PurchaseState(purchasesService, logg))
		})
	})

	return r
}
