package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/bundleup/bundleup-backend/api/routes"
	"github.com/bundleup/bundleup-backend/internal/bundles"
	"github.com/bundleup/bundleup-backend/internal/checkout"
	"github.com/bundleup/bundleup-backend/internal/content"
	"github.com/bundleup/bundleup-backend/internal/media"
	"github.com/bundleup/bundleup-backend/internal/purchases"
	stripewebhook "github.com/bundleup/bundleup-backend/internal/webhooks/stripe"
	"github.com/bundleup/bundleup-backend/pkg/config"
	"github.com/bundleup/bundleup-backend/pkg/db"
	"github.com/bundleup/bundleup-backend/pkg/logger"
	"github.com/bundleup/bundleup-backend/pkg/metrics"
	"github.com/bundleup/bundleup-backend/pkg/migrate"
	"github.com/bundleup/bundleup-backend/pkg/pubsub"
	"github.com/bundleup/bundleup-backend/pkg/redis"
	"github.com/bundleup/bundleup-backend/pkg/storage/gcs"
	"github.com/bundleup/bundleup-backend/pkg/stripe"
)

const webhookEventTTL = 48 * time.Hour

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gcsClient, err := gcs.NewClient(context.Background(), cfg.GCS, cfg.GCP, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap gcs", err)
		os.Exit(1)
	}

	stripeClient, err := stripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	// Pub/Sub is best-effort: purchase events are a downstream convenience,
	// not a prerequisite for serving traffic.
	var publisher *pubsub.Client
	if pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg); err != nil {
		logg.Warn(logg.WithField(context.Background(), "error", err.Error()), "pubsub unavailable, purchase events disabled")
	} else {
		publisher = pubsubClient
		defer func() {
			if err := publisher.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	accessMetrics := metrics.NewAccessMetrics(registry)

	contentRepo := content.NewRepository(dbClient.DB())
	bundlesRepo := bundles.NewRepository(dbClient.DB())
	purchasesRepo := purchases.NewRepository(dbClient.DB())

	resolver, err := content.NewResolver(contentRepo, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create content resolver", err)
		os.Exit(1)
	}

	bundlesService, err := bundles.NewService(bundlesRepo, contentRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create bundles service", err)
		os.Exit(1)
	}

	purchasesService, err := purchases.NewService(purchasesRepo, bundlesRepo, resolver, logg, accessMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create purchases service", err)
		os.Exit(1)
	}

	migrator, err := purchases.NewMigrator(purchasesRepo, bundlesRepo, resolver, logg, accessMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to create purchase migrator", err)
		os.Exit(1)
	}

	mediaService, err := media.NewService(contentRepo, gcsClient, cfg.GCS.BucketName, cfg.GCS.UploadURLExpiry, cfg.Media.MaxUploadMB)
	if err != nil {
		logg.Error(context.Background(), "failed to create media service", err)
		os.Exit(1)
	}

	checkoutService, err := checkout.NewService(
		checkout.NewStripeClient(stripeClient),
		bundlesRepo,
		purchasesRepo,
		migrator,
		logg,
		cfg.Checkout.SuccessURL,
		cfg.Checkout.CancelURL,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create checkout service", err)
		os.Exit(1)
	}

	webhookParams := stripewebhook.ServiceParams{
		PurchasesRepo: purchasesRepo,
		Migrator:      migrator,
		Logger:        logg,
	}
	if publisher != nil {
		webhookParams.Publisher = publisher
	}
	webhookService, err := stripewebhook.NewService(webhookParams)
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook service", err)
		os.Exit(1)
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, webhookEventTTL, "stripe")
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe webhook guard", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			gcsClient,
			registry,
			bundlesService,
			contentRepo,
			mediaService,
			checkoutService,
			purchasesService,
			migrator,
			stripeClient,
			webhookService,
			webhookGuard,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
