package mpwebhook

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nutriplanhq/nutriplan-backend/internal/billingevents"
	"github.com/nutriplanhq/nutriplan-backend/internal/notifications"
	"github.com/nutriplanhq/nutriplan-backend/internal/subscriptions"
	"github.com/nutriplanhq/nutriplan-backend/pkg/db/models"
	"github.com/nutriplanhq/nutriplan-backend/pkg/enums"
	pkgerrors "github.com/nutriplanhq/nutriplan-backend/pkg/errors"
	"github.com/nutriplanhq/nutriplan-backend/pkg/logger"
	"github.com/nutriplanhq/nutriplan-backend/pkg/mercadopago"
)

type paymentFetcher interface {
	GetPayment(ctx context.Context, paymentID string) (*mercadopago.Payment, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	SubscriptionRepo  subscriptions.Repository
	MercadoPago       paymentFetcher
	Ledger            billingevents.Ledger
	Notifier          *notifications.Notifier
	TransactionRunner txRunner
	Logger            *logger.Logger
}

// Service reconciles Mercado Pago payment notifications. Mercado Pago sends a
// thin reference, so every notification is resolved against the Payments API
// before any state changes.
type Service struct {
	subRepo  subscriptions.Repository
	mp       paymentFetcher
	ledger   billingevents.Ledger
	notifier *notifications.Notifier
	txRunner txRunner
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.SubscriptionRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscription repo required")
	}
	if params.MercadoPago == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "mercadopago client required")
	}
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "event ledger required")
	}
	if params.TransactionRunner == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction runner required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		subRepo:  params.SubscriptionRepo,
		mp:       params.MercadoPago,
		ledger:   params.Ledger,
		notifier: params.Notifier,
		txRunner: params.TransactionRunner,
		logg:     params.Logger,
	}, nil
}

// HandleNotification processes a payment notification. Non-payment topics are
// acknowledged untouched. Mercado Pago carries no event id, so one is
// synthesized from action, payment id and the payment's creation timestamp.
func (s *Service) HandleNotification(ctx context.Context, notification *mercadopago.WebhookNotification) error {
	if notification == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification required")
	}
	if notification.Type != "payment" {
		return nil
	}
	paymentID := strings.TrimSpace(notification.Data.ID)
	if paymentID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment id required")
	}

	payment, err := s.mp.GetPayment(ctx, paymentID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch mercadopago payment")
	}

	eventID := billingevents.MercadoPagoEventID(notification.Action, paymentID, payment.DateCreated)
	ctx = s.logg.WithEventID(ctx, eventID)

	duplicate, err := s.ledger.MarkProcessed(ctx, billingevents.Event{
		EventID:   eventID,
		Gateway:   enums.PaymentGatewayMercadoPago,
		EventType: notification.Action,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record webhook event")
	}
	if duplicate {
		s.logg.Info(ctx, "duplicate mercadopago event skipped")
		return nil
	}

	if err := s.applyPayment(ctx, payment); err != nil {
		if forgetErr := s.ledger.Forget(ctx, eventID); forgetErr != nil {
			s.logg.Error(ctx, "release ledger entry after failure", forgetErr)
		}
		return err
	}
	return nil
}

func (s *Service) applyPayment(ctx context.Context, payment *mercadopago.Payment) error {
	userID := userIDFromPayment(payment)
	if userID == uuid.Nil {
		// Payment without attribution; acknowledge so it is not retried forever.
		s.logg.Warn(s.logg.WithGateway(ctx, "mercadopago"), "mercadopago payment without user reference dropped")
		return nil
	}

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.subRepo.WithTx(tx)

		stored, err := repo.FindByUserID(ctx, userID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup subscription")
		}
		target := stored
		if target == nil {
			target = &models.Subscription{UserID: userID}
		}

		plan := planFromPayment(payment, target)
		now := time.Now().UTC()
		gateway := enums.PaymentGatewayMercadoPago
		paymentRef := fmt.Sprintf("%d", payment.ID)

		target.PaymentGateway = &gateway
		target.MercadoPagoPaymentID = &paymentRef
		// Mercado Pago owns the record now; exactly one gateway's
		// identifier group may stay populated.
		target.StripeCustomerID = nil
		target.StripeSubscriptionID = nil
		target.LatestInvoiceID = nil

		switch payment.Status {
		case mercadopago.PaymentStatusApproved:
			start := approvedAt(payment, now)
			end := start.AddDate(0, 0, plan.HorizonDays())
			if override, ok := periodEndFromMetadata(payment); ok {
				end = override
			}
			target.Plan = plan
			target.Status = enums.SubscriptionStatusActive
			target.CurrentPeriodStart = &start
			target.CurrentPeriodEnd = &end
			target.CancelAtPeriodEnd = false
			target.CanceledAt = nil
			// Fresh paid window, re-arm the expiring-soon warning.
			target.ExpirationNotified = false
		case mercadopago.PaymentStatusPending, mercadopago.PaymentStatusInProcess:
			target.Plan = plan
			target.Status = enums.SubscriptionStatusPending
		case mercadopago.PaymentStatusRejected, mercadopago.PaymentStatusCancelled, mercadopago.PaymentStatusRefunded:
			target.Status = enums.SubscriptionStatusCanceled
			target.Plan = enums.PlanFree
		default:
			s.logg.Warn(ctx, "unknown mercadopago payment status ignored")
			return nil
		}

		if err := repo.Upsert(ctx, target); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist subscription")
		}

		s.notifyOutcome(ctx, userID, payment.Status)
		return nil
	})
}

func (s *Service) notifyOutcome(ctx context.Context, userID uuid.UUID, status string) {
	switch status {
	case mercadopago.PaymentStatusApproved:
		s.notifier.Notify(ctx, userID, enums.NotificationTypePaymentSucceeded, enums.NotificationSeverityInfo,
			"Pago acreditado", "Tu pago fue acreditado y la suscripción está activa.")
	case mercadopago.PaymentStatusRejected:
		s.notifier.Notify(ctx, userID, enums.NotificationTypePaymentFailed, enums.NotificationSeverityError,
			"Pago rechazado", "Tu pago fue rechazado. Probá con otro medio de pago.")
	}
}

// userIDFromPayment prefers the metadata the checkout flow wrote, falling
// back to the external reference.
func userIDFromPayment(payment *mercadopago.Payment) uuid.UUID {
	if payment == nil {
		return uuid.Nil
	}
	if raw, ok := payment.Metadata["user_id"].(string); ok {
		if id, err := uuid.Parse(raw); err == nil {
			return id
		}
	}
	ref := strings.TrimSpace(payment.ExternalReference)
	ref = strings.TrimPrefix(ref, "user:")
	if id, err := uuid.Parse(ref); err == nil {
		return id
	}
	return uuid.Nil
}

func planFromPayment(payment *mercadopago.Payment, stored *models.Subscription) enums.Plan {
	if raw, ok := payment.Metadata["plan"].(string); ok {
		if plan, err := enums.ParsePlan(raw); err == nil && plan.IsPaid() {
			return plan
		}
	}
	if stored != nil && stored.Plan.IsPaid() {
		return stored.Plan
	}
	return enums.PlanWeekly
}

// periodEndFromMetadata honors an explicit window the checkout flow pinned on
// the payment. Accepts date-only and RFC3339 forms.
func periodEndFromMetadata(payment *mercadopago.Payment) (time.Time, bool) {
	raw, ok := payment.Metadata["period_end"].(string)
	if !ok || raw == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}

func approvedAt(payment *mercadopago.Payment, fallback time.Time) time.Time {
	if payment.DateApproved != "" {
		if ts, err := time.Parse(time.RFC3339, payment.DateApproved); err == nil {
			return ts.UTC()
		}
	}
	return fallback
}
