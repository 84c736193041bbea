package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/nutriplanhq/nutriplan-backend/api/routes"
	"github.com/nutriplanhq/nutriplan-backend/internal/billingevents"
	"github.com/nutriplanhq/nutriplan-backend/internal/checkout"
	"github.com/nutriplanhq/nutriplan-backend/internal/chat"
	cronjobs "github.com/nutriplanhq/nutriplan-backend/internal/cron"
	"github.com/nutriplanhq/nutriplan-backend/internal/exchange"
	"github.com/nutriplanhq/nutriplan-backend/internal/geo"
	"github.com/nutriplanhq/nutriplan-backend/internal/mealplans"
	"github.com/nutriplanhq/nutriplan-backend/internal/notifications"
	"github.com/nutriplanhq/nutriplan-backend/internal/profiles"
	"github.com/nutriplanhq/nutriplan-backend/internal/subscriptions"
	"github.com/nutriplanhq/nutriplan-backend/internal/users"
	mpwebhook "github.com/nutriplanhq/nutriplan-backend/internal/webhooks/mercadopago"
	stripewebhook "github.com/nutriplanhq/nutriplan-backend/internal/webhooks/stripe"
	"github.com/nutriplanhq/nutriplan-backend/pkg/config"
	"github.com/nutriplanhq/nutriplan-backend/pkg/db"
	"github.com/nutriplanhq/nutriplan-backend/pkg/llm"
	"github.com/nutriplanhq/nutriplan-backend/pkg/logger"
	"github.com/nutriplanhq/nutriplan-backend/pkg/mercadopago"
	"github.com/nutriplanhq/nutriplan-backend/pkg/migrate"
	"github.com/nutriplanhq/nutriplan-backend/pkg/redis"
	"github.com/nutriplanhq/nutriplan-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		logg.Warn(ctx, ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(ctx, "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(ctx, "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(ctx, "error closing redis", err)
		}
	}()

	gdb := dbClient.DB()
	subRepo := subscriptions.NewRepository(gdb)
	userRepo := users.NewRepository(gdb)
	profileRepo := profiles.NewRepository(gdb)
	mealRepo := mealplans.NewRepository(gdb)
	notifRepo := notifications.NewRepository(gdb)

	notifier := notifications.NewNotifier(notifRepo, logg)
	notificationService, err := notifications.NewService(notifRepo)
	if err != nil {
		logg.Error(ctx, "failed to create notification service", err)
		os.Exit(1)
	}

	ledger, err := billingevents.NewLedger(gdb)
	if err != nil {
		logg.Error(ctx, "failed to create billing ledger", err)
		os.Exit(1)
	}

	rates, err := exchange.NewService(cfg.Exchange, redisClient, logg)
	if err != nil {
		logg.Error(ctx, "failed to create exchange service", err)
		os.Exit(1)
	}

	catalog := subscriptions.NewCatalog(cfg.Stripe, cfg.MercadoPago, cfg.Plans)

	// Stripe stays optional: AR-only deployments run pure Mercado Pago.
	var stripeClient *stripe.Client
	if cfg.Stripe.APIKey != "" {
		stripeClient, err = stripe.NewClient(ctx, cfg.Stripe, logg)
		if err != nil {
			logg.Error(ctx, "failed to create stripe client", err)
			os.Exit(1)
		}
	}

	var mpClient *mercadopago.Client
	if cfg.MercadoPago.AccessToken != "" {
		mpClient, err = mercadopago.NewClient(ctx, cfg.MercadoPago, logg)
		if err != nil {
			logg.Error(ctx, "failed to create mercadopago client", err)
			os.Exit(1)
		}
	}

	llmClient, err := llm.NewClient(ctx, cfg.LLM, logg)
	if err != nil {
		logg.Error(ctx, "failed to create llm client", err)
		os.Exit(1)
	}

	subParams := subscriptions.ServiceParams{
		Repo:     subRepo,
		Catalog:  catalog,
		Notifier: notifier,
		Logger:   logg,
	}
	if stripeClient != nil {
		subParams.Stripe = subscriptions.NewStripeClient(stripeClient)
	}
	if mpClient != nil {
		subParams.MercadoPago = mpClient
	}
	subscriptionService, err := subscriptions.NewService(subParams)
	if err != nil {
		logg.Error(ctx, "failed to create subscription service", err)
		os.Exit(1)
	}

	checkoutParams := checkout.ServiceParams{
		Repo:     subRepo,
		Catalog:  catalog,
		Rates:    rates,
		Notifier: notifier,
		Stripe:   cfg.Stripe,
		MP:       cfg.MercadoPago,
		Logger:   logg,
	}
	if stripeClient != nil {
		checkoutParams.StripeSess = checkout.NewStripeSessionClient(stripeClient)
	}
	if mpClient != nil {
		checkoutParams.MercadoPago = mpClient
	}
	checkoutService, err := checkout.NewService(checkoutParams)
	if err != nil {
		logg.Error(ctx, "failed to create checkout service", err)
		os.Exit(1)
	}

	mealPlanService, err := mealplans.NewService(mealplans.ServiceParams{
		Repo:              mealRepo,
		Subscriptions:     subRepo,
		Profiles:          profileRepo,
		LLM:               llmClient,
		TransactionRunner: dbClient,
		Logger:            logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create meal plan service", err)
		os.Exit(1)
	}

	chatService, err := chat.NewService(chat.ServiceParams{
		Profiles: profileRepo,
		LLM:      llmClient,
		Limiter:  redisClient,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(ctx, "failed to create chat service", err)
		os.Exit(1)
	}

	var stripeWebhookService *stripewebhook.Service
	var stripeEventGuard *stripewebhook.IdempotencyGuard
	if stripeClient != nil {
		stripeWebhookService, err = stripewebhook.NewService(stripewebhook.ServiceParams{
			SubscriptionRepo:  subRepo,
			UserRepo:          userRepo,
			StripeClient:      subscriptions.NewStripeClient(stripeClient),
			Catalog:           catalog,
			Ledger:            ledger,
			Notifier:          notifier,
			TransactionRunner: dbClient,
			Logger:            logg,
		})
		if err != nil {
			logg.Error(ctx, "failed to create stripe webhook service", err)
			os.Exit(1)
		}
		stripeEventGuard, err = stripewebhook.NewIdempotencyGuard(redisClient, 24*time.Hour, "webhook:stripe")
		if err != nil {
			logg.Error(ctx, "failed to create stripe event guard", err)
			os.Exit(1)
		}
	}

	var mpWebhookService *mpwebhook.Service
	if mpClient != nil {
		mpWebhookService, err = mpwebhook.NewService(mpwebhook.ServiceParams{
			SubscriptionRepo:  subRepo,
			MercadoPago:       mpClient,
			Ledger:            ledger,
			Notifier:          notifier,
			TransactionRunner: dbClient,
			Logger:            logg,
		})
		if err != nil {
			logg.Error(ctx, "failed to create mercadopago webhook service", err)
			os.Exit(1)
		}
	}

	expireJob, err := cronjobs.NewSubscriptionExpireJob(cronjobs.SubscriptionExpireJobParams{
		Logger:           logg,
		DB:               dbClient,
		SubscriptionRepo: subRepo,
		Notifier:         notifier,
	})
	if err != nil {
		logg.Error(ctx, "failed to create expire job", err)
		os.Exit(1)
	}
	noticeJob, err := cronjobs.NewExpiryNoticeJob(cronjobs.ExpiryNoticeJobParams{
		Logger:           logg,
		SubscriptionRepo: subRepo,
		Notifier:         notifier,
	})
	if err != nil {
		logg.Error(ctx, "failed to create expiry notice job", err)
		os.Exit(1)
	}

	router, err := routes.NewRouter(routes.Deps{
		Config: cfg,
		Logger: logg,

		DB:    dbClient,
		Redis: redisClient,

		GeoDetector:      geo.NewDetector(cfg.FeatureFlags.UseOnlyMercadoPago, rates),
		Subscriptions:    subscriptionService,
		Checkout:         checkoutService,
		Users:            userRepo,
		MealPlans:        mealPlanService,
		Chat:             chatService,
		Notifications:    notificationService,
		StripeClient:     stripeClient,
		StripeWebhooks:   stripeWebhookService,
		StripeEventGuard: stripeEventGuard,
		MercadoPagoHooks: mpWebhookService,

		ExpireJob: expireJob,
		NoticeJob: noticeJob,
	})
	if err != nil {
		logg.Error(ctx, "failed to build router", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	startCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(startCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(startCtx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
