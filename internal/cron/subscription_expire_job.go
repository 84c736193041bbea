package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/nutriplanhq/nutriplan-backend/internal/notifications"
	"github.com/nutriplanhq/nutriplan-backend/internal/subscriptions"
	"github.com/nutriplanhq/nutriplan-backend/pkg/db/models"
	"github.com/nutriplanhq/nutriplan-backend/pkg/enums"
	"github.com/nutriplanhq/nutriplan-backend/pkg/logger"
)

// SubscriptionExpireJobParams configures the Mercado Pago expiration job.
type SubscriptionExpireJobParams struct {
	Logger           *logger.Logger
	DB               txRunner
	SubscriptionRepo subscriptions.Repository
	Notifier         *notifications.Notifier
	Now              func() time.Time
}

// NewSubscriptionExpireJob builds the job that demotes Mercado Pago rows whose
// paid window has lapsed. Stripe rows are excluded: Stripe drives its own
// lifecycle through webhooks.
func NewSubscriptionExpireJob(params SubscriptionExpireJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.SubscriptionRepo == nil {
		return nil, fmt.Errorf("subscription repository required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &subscriptionExpireJob{
		logg:     params.Logger,
		db:       params.DB,
		subRepo:  params.SubscriptionRepo,
		notifier: params.Notifier,
		now:      now,
	}, nil
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type subscriptionExpireJob struct {
	logg     *logger.Logger
	db       txRunner
	subRepo  subscriptions.Repository
	notifier *notifications.Notifier
	now      func() time.Time
}

func (j *subscriptionExpireJob) Name() string { return "subscription-expire" }

func (j *subscriptionExpireJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	lapsed, err := j.subRepo.ListExpired(ctx, enums.PaymentGatewayMercadoPago, now)
	if err != nil {
		return fmt.Errorf("list expired subscriptions: %w", err)
	}

	var errs error
	expired := 0
	for i := range lapsed {
		if err := j.expire(ctx, &lapsed[i], now); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		expired++
	}

	reportCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(lapsed),
		"expired":    expired,
	})
	j.logg.Info(reportCtx, "subscription expire loop complete")
	return errs
}

func (j *subscriptionExpireJob) expire(ctx context.Context, sub *models.Subscription, now time.Time) error {
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"subscription_id": sub.ID,
		"user_id":         sub.UserID,
		"plan":            string(sub.Plan),
	})

	if err := j.db.WithTx(logCtx, func(tx *gorm.DB) error {
		repo := j.subRepo.WithTx(tx)
		stored, err := repo.FindByUserID(logCtx, sub.UserID)
		if err != nil {
			return err
		}
		if stored == nil || stored.Status != enums.SubscriptionStatusActive {
			// Another writer got there first; re-expiring is a no-op.
			return nil
		}
		if stored.CurrentPeriodEnd == nil || stored.CurrentPeriodEnd.After(now) {
			j.logg.Info(logCtx, "subscription renewed since scan; skipping")
			return nil
		}
		stored.Status = enums.SubscriptionStatusCanceled
		stored.Plan = enums.PlanFree
		canceledAt := now
		stored.CanceledAt = &canceledAt
		return repo.Update(logCtx, stored)
	}); err != nil {
		return fmt.Errorf("expire subscription %s: %w", sub.ID, err)
	}

	j.notifier.Notify(logCtx, sub.UserID,
		enums.NotificationTypeSubscriptionExpired, enums.NotificationSeverityWarning,
		"Tu suscripción venció",
		"Tu suscripción de NutriPlan venció. Renovála para seguir generando planes de comida.")
	j.logg.Info(logCtx, "subscription expired")
	return nil
}
