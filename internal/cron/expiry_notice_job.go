package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/nutriplanhq/nutriplan-backend/internal/notifications"
	"github.com/nutriplanhq/nutriplan-backend/internal/subscriptions"
	"github.com/nutriplanhq/nutriplan-backend/pkg/db/models"
	"github.com/nutriplanhq/nutriplan-backend/pkg/enums"
	"github.com/nutriplanhq/nutriplan-backend/pkg/logger"
)

const (
	defaultNoticeFrom = 24 * time.Hour
	defaultNoticeTo   = 48 * time.Hour
)

// ExpiryNoticeJobParams configures the expiring-soon warning job.
type ExpiryNoticeJobParams struct {
	Logger           *logger.Logger
	SubscriptionRepo subscriptions.Repository
	Notifier         *notifications.Notifier
	NoticeFrom       time.Duration
	NoticeTo         time.Duration
	Now              func() time.Time
}

// NewExpiryNoticeJob builds the job that warns Mercado Pago users whose paid
// window ends within the notice horizon. expiration_notified keeps the warning
// one-shot across reruns.
func NewExpiryNoticeJob(params ExpiryNoticeJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.SubscriptionRepo == nil {
		return nil, fmt.Errorf("subscription repository required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	from := params.NoticeFrom
	if from <= 0 {
		from = defaultNoticeFrom
	}
	to := params.NoticeTo
	if to <= from {
		to = defaultNoticeTo
	}
	return &expiryNoticeJob{
		logg:     params.Logger,
		subRepo:  params.SubscriptionRepo,
		notifier: params.Notifier,
		from:     from,
		to:       to,
		now:      now,
	}, nil
}

type expiryNoticeJob struct {
	logg     *logger.Logger
	subRepo  subscriptions.Repository
	notifier *notifications.Notifier
	from     time.Duration
	to       time.Duration
	now      func() time.Time
}

func (j *expiryNoticeJob) Name() string { return "subscription-expiry-notice" }

func (j *expiryNoticeJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	expiring, err := j.subRepo.ListExpiringBetween(ctx,
		enums.PaymentGatewayMercadoPago, now.Add(j.from), now.Add(j.to))
	if err != nil {
		return fmt.Errorf("list expiring subscriptions: %w", err)
	}

	var errs error
	notified := 0
	for i := range expiring {
		if err := j.warn(ctx, &expiring[i]); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		notified++
	}

	reportCtx := j.logg.WithFields(ctx, map[string]any{
		"candidates": len(expiring),
		"notified":   notified,
	})
	j.logg.Info(reportCtx, "expiry notice loop complete")
	return errs
}

func (j *expiryNoticeJob) warn(ctx context.Context, sub *models.Subscription) error {
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"subscription_id": sub.ID,
		"user_id":         sub.UserID,
	})

	// Flag first. Losing a warning beats spamming one per cycle if the
	// notification write fails after the flag.
	if err := j.subRepo.SetExpirationNotified(logCtx, sub.ID); err != nil {
		return fmt.Errorf("flag expiration notice %s: %w", sub.ID, err)
	}

	message := "Tu suscripción de NutriPlan vence pronto. Renovála para no perder el acceso."
	if sub.CurrentPeriodEnd != nil {
		message = fmt.Sprintf("Tu suscripción de NutriPlan vence el %s. Renovála para no perder el acceso.",
			sub.CurrentPeriodEnd.Format("2006-01-02"))
	}
	j.notifier.Notify(logCtx, sub.UserID,
		enums.NotificationTypeExpiringSoon, enums.NotificationSeverityWarning,
		"Tu suscripción vence pronto", message)
	j.logg.Info(logCtx, "expiry notice sent")
	return nil
}
