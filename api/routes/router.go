package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nutriplanhq/nutriplan-backend/api/controllers"
	webhookcontrollers "github.com/nutriplanhq/nutriplan-backend/api/controllers/webhooks"
	"github.com/nutriplanhq/nutriplan-backend/api/middleware"
	checkoutsvc "github.com/nutriplanhq/nutriplan-backend/internal/checkout"
	"github.com/nutriplanhq/nutriplan-backend/internal/chat"
	cronjobs "github.com/nutriplanhq/nutriplan-backend/internal/cron"
	"github.com/nutriplanhq/nutriplan-backend/internal/geo"
	"github.com/nutriplanhq/nutriplan-backend/internal/mealplans"
	"github.com/nutriplanhq/nutriplan-backend/internal/notifications"
	subscriptionsvc "github.com/nutriplanhq/nutriplan-backend/internal/subscriptions"
	"github.com/nutriplanhq/nutriplan-backend/internal/users"
	mpwebhook "github.com/nutriplanhq/nutriplan-backend/internal/webhooks/mercadopago"
	stripewebhook "github.com/nutriplanhq/nutriplan-backend/internal/webhooks/stripe"
	"github.com/nutriplanhq/nutriplan-backend/pkg/config"
	"github.com/nutriplanhq/nutriplan-backend/pkg/db"
	"github.com/nutriplanhq/nutriplan-backend/pkg/logger"
	"github.com/nutriplanhq/nutriplan-backend/pkg/redis"
	"github.com/nutriplanhq/nutriplan-backend/pkg/stripe"
)

// Deps carries everything the HTTP surface needs. Optional entries stay
// nil and their routes answer through the controllers' own guards rather
// than dropping the route.
type Deps struct {
	Config *config.Config
	Logger *logger.Logger

	DB    db.Pinger
	Redis *redis.Client

	GeoDetector      *geo.Detector
	Subscriptions    subscriptionsvc.Service
	Checkout         *checkoutsvc.Service
	Users            *users.Repository
	MealPlans        *mealplans.Service
	Chat             *chat.Service
	Notifications    notifications.Service
	StripeClient     *stripe.Client
	StripeWebhooks   *stripewebhook.Service
	StripeEventGuard *stripewebhook.IdempotencyGuard
	MercadoPagoHooks *mpwebhook.Service

	ExpireJob cronjobs.Job
	NoticeJob cronjobs.Job
}

func NewRouter(deps Deps) (http.Handler, error) {
	cfg := deps.Config
	logg := deps.Logger

	checkoutCtrl, err := controllers.NewCheckoutController(deps.Checkout, deps.Users, logg)
	if err != nil {
		return nil, err
	}
	mealPlanCtrl, err := controllers.NewMealPlanController(deps.MealPlans, logg)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	healthDeps := map[string]controllers.Pinger{}
	if deps.DB != nil {
		healthDeps["postgres"] = deps.DB
	}
	if deps.Redis != nil {
		healthDeps["redis"] = deps.Redis
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive())
		r.Get("/ready", controllers.HealthReady(logg, healthDeps))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(deps.StripeWebhooks, deps.StripeClient, deps.StripeEventGuard, logg))
		r.Post("/mercadopago", webhookcontrollers.MercadoPagoWebhook(deps.MercadoPagoHooks, logg))
	})

	r.Route("/internal/cron", func(r chi.Router) {
		r.Use(middleware.CronSecret(cfg.Cron, logg))
		r.Post("/expire-subscriptions", controllers.RunCronJob(deps.ExpireJob, logg))
		r.Post("/notify-expiring-subscriptions", controllers.RunCronJob(deps.NoticeJob, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/detect-country", controllers.DetectCountry(deps.GeoDetector, logg))

		r.Group(func(r chi.Router) {
			r.Use(
				middleware.Auth(cfg.JWT, logg),
				middleware.Idempotency(deps.Redis, logg),
			)

			r.Post("/subscriptions/check", controllers.CheckSubscription(deps.Subscriptions, logg))
			r.Post("/subscriptions/cancel", controllers.CancelSubscription(deps.Subscriptions, logg))

			r.Post("/checkout/stripe", checkoutCtrl.StripeCheckout())
			r.Post("/checkout/mercadopago/preference", checkoutCtrl.MercadoPagoPreference())
			r.Post("/checkout/mercadopago/subscription", checkoutCtrl.MercadoPagoSubscription())
			r.Post("/mercadopago/check-payment", checkoutCtrl.CheckMercadoPagoPayment())

			r.Post("/meal-plans/generate", mealPlanCtrl.Generate())
			r.Post("/meal-plans/validate-dates", mealPlanCtrl.ValidateDates())
			r.Post("/meal-plans/items/{itemID}/replace", mealPlanCtrl.ReplaceMeal())

			r.Post("/chat", controllers.Chat(deps.Chat, logg))

			r.Get("/notifications", controllers.ListNotifications(deps.Notifications, logg))
			r.Post("/notifications/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
			r.Post("/notifications/{notificationID}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
		})
	})

	return r, nil
}
