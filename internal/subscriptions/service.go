package subscriptions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/nutriplanhq/nutriplan-backend/internal/notifications"
	"github.com/nutriplanhq/nutriplan-backend/pkg/db/models"
	"github.com/nutriplanhq/nutriplan-backend/pkg/enums"
	pkgerrors "github.com/nutriplanhq/nutriplan-backend/pkg/errors"
	"github.com/nutriplanhq/nutriplan-backend/pkg/logger"
	"github.com/nutriplanhq/nutriplan-backend/pkg/mercadopago"
)

type mercadoPagoClient interface {
	CancelPreapproval(ctx context.Context, preapprovalID string) (*mercadopago.Preapproval, error)
}

// Service defines the subscription lifecycle surface.
type Service interface {
	// Check is the canonical pull reconciliation: for Stripe users it
	// refreshes the local record from the provider before answering.
	Check(ctx context.Context, userID uuid.UUID, email string) (*CheckResult, error)
	// Cancel soft-cancels through the active gateway. Entitlement runs to
	// period end on Stripe; Mercado Pago records drop to free immediately.
	Cancel(ctx context.Context, userID uuid.UUID) (*CheckResult, error)
	Get(ctx context.Context, userID uuid.UUID) (*models.Subscription, error)
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	Repo        Repository
	Stripe      StripeSubscriptionClient
	MercadoPago mercadoPagoClient
	Catalog     *Catalog
	Notifier    *notifications.Notifier
	Logger      *logger.Logger
}

// CheckResult is the wire answer of the check/cancel endpoints. Field names
// are a client contract.
type CheckResult struct {
	Subscribed          bool       `json:"subscribed"`
	Plan                string     `json:"plan"`
	Status              string     `json:"status"`
	CurrentPeriodStart  *time.Time `json:"current_period_start"`
	CurrentPeriodEnd    *time.Time `json:"current_period_end"`
	CancelAtPeriodEnd   bool       `json:"cancel_at_period_end"`
	PaymentGateway      string     `json:"payment_gateway"`
	IsRecurring         bool       `json:"is_recurring"`
	DaysUntilExpiration int        `json:"days_until_expiration"`
}

type service struct {
	repo     Repository
	stripe   StripeSubscriptionClient
	mp       mercadoPagoClient
	catalog  *Catalog
	notifier *notifications.Notifier
	logg     *logger.Logger
}

// NewService builds a subscription service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("subscription repo required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("plan catalog required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:     params.Repo,
		stripe:   params.Stripe,
		mp:       params.MercadoPago,
		catalog:  params.Catalog,
		notifier: params.Notifier,
		logg:     params.Logger,
	}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	sub, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup subscription")
	}
	return sub, nil
}

func (s *service) Check(ctx context.Context, userID uuid.UUID, email string) (*CheckResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	stored, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup subscription")
	}

	// Mercado Pago records are reconciled by webhooks and check-payment, not
	// by a provider pull here.
	if stored != nil && stored.PaymentGateway != nil && *stored.PaymentGateway == enums.PaymentGatewayMercadoPago {
		return ResultFromRecord(stored, time.Now().UTC()), nil
	}

	if s.stripe == nil || strings.TrimSpace(email) == "" {
		return ResultFromRecord(stored, time.Now().UTC()), nil
	}

	refreshed, err := s.pullFromStripe(ctx, userID, email, stored)
	if err != nil {
		// A provider outage must not break page load; answer from the local
		// snapshot and let the next check retry.
		s.logg.Error(s.logg.WithUserID(ctx, userID.String()), "stripe pull reconciliation failed", err)
		return ResultFromRecord(stored, time.Now().UTC()), nil
	}
	return ResultFromRecord(refreshed, time.Now().UTC()), nil
}

func (s *service) pullFromStripe(ctx context.Context, userID uuid.UUID, email string, stored *models.Subscription) (*models.Subscription, error) {
	cust, err := s.stripe.FindCustomerByEmail(ctx, email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "find stripe customer")
	}
	if cust == nil {
		return stored, nil
	}

	subs, err := s.stripe.ListSubscriptions(ctx, cust.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stripe subscriptions")
	}
	best := pickRelevantSubscription(subs)
	if best == nil {
		return stored, nil
	}

	plan := s.resolvePlan(best)
	target := stored
	if target == nil {
		target = &models.Subscription{UserID: userID}
	}
	if err := ApplyStripe(target, cust.ID, best, plan); err != nil {
		return nil, err
	}
	if err := s.repo.Upsert(ctx, target); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist subscription snapshot")
	}
	return target, nil
}

func (s *service) Cancel(ctx context.Context, userID uuid.UUID) (*CheckResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	stored, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup subscription")
	}
	if stored == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
	}

	gateway := enums.PaymentGatewayManual
	if stored.PaymentGateway != nil {
		gateway = *stored.PaymentGateway
	}

	now := time.Now().UTC()
	switch gateway {
	case enums.PaymentGatewayStripe:
		if err := s.cancelStripe(ctx, stored, now); err != nil {
			return nil, err
		}
	case enums.PaymentGatewayMercadoPago:
		s.cancelMercadoPago(ctx, stored)
		stored.Status = enums.SubscriptionStatusCanceled
		stored.Plan = enums.PlanFree
		stored.CanceledAt = &now
	default:
		stored.Status = enums.SubscriptionStatusCanceled
		stored.Plan = enums.PlanFree
		stored.CanceledAt = &now
	}

	if err := s.repo.Update(ctx, stored); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist cancellation")
	}

	s.notifier.Notify(ctx, userID, enums.NotificationTypeSubscriptionCanceled, enums.NotificationSeverityInfo,
		"Suscripción cancelada", "Tu suscripción fue cancelada. Podés reactivarla cuando quieras.")

	return ResultFromRecord(stored, now), nil
}

func (s *service) cancelStripe(ctx context.Context, stored *models.Subscription, now time.Time) error {
	if s.stripe == nil || stored.StripeSubscriptionID == nil {
		return pkgerrors.New(pkgerrors.CodeConflict, "stripe subscription id missing")
	}
	updated, err := s.stripe.Update(ctx, *stored.StripeSubscriptionID, &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(true),
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel stripe subscription")
	}

	// Mirror the soft-cancel; entitlement runs to period end.
	stored.CancelAtPeriodEnd = true
	stored.CanceledAt = &now
	if updated != nil {
		stored.Status = MapStripeStatus(updated.Status)
	}
	return nil
}

// cancelMercadoPago is best effort: the local record is canceled regardless,
// because the user's intent must be honored even when the provider call fails.
func (s *service) cancelMercadoPago(ctx context.Context, stored *models.Subscription) {
	if s.mp == nil || stored.MercadoPagoSubscriptionID == nil {
		return
	}
	if _, err := s.mp.CancelPreapproval(ctx, *stored.MercadoPagoSubscriptionID); err != nil {
		s.logg.Error(ctx, "mercadopago preapproval cancel failed", err)
	}
}

func (s *service) resolvePlan(stripeSub *stripe.Subscription) enums.Plan {
	if stripeSub.Items != nil && len(stripeSub.Items.Data) > 0 && stripeSub.Items.Data[0].Price != nil {
		if plan, ok := s.catalog.PlanForStripePrice(stripeSub.Items.Data[0].Price.ID); ok {
			return plan
		}
	}
	return enums.PlanFree
}

// pickRelevantSubscription prefers the live subscription, falling back to the
// most recently created one so a lapsed record still reports its last state.
func pickRelevantSubscription(subs []*stripe.Subscription) *stripe.Subscription {
	var best *stripe.Subscription
	for _, sub := range subs {
		if sub == nil {
			continue
		}
		if sub.Status == stripe.SubscriptionStatusActive || sub.Status == stripe.SubscriptionStatusTrialing {
			return sub
		}
		if best == nil || sub.Created > best.Created {
			best = sub
		}
	}
	return best
}

// ResultFromRecord projects a stored record onto the wire contract. A nil
// record answers as an unentitled free user.
func ResultFromRecord(sub *models.Subscription, now time.Time) *CheckResult {
	if sub == nil {
		return &CheckResult{
			Plan:   string(enums.PlanFree),
			Status: string(enums.SubscriptionStatusExpired),
		}
	}
	gateway := ""
	if sub.PaymentGateway != nil {
		gateway = string(*sub.PaymentGateway)
	}
	return &CheckResult{
		Subscribed:          sub.Subscribed,
		Plan:                string(sub.Plan),
		Status:              string(sub.Status),
		CurrentPeriodStart:  sub.CurrentPeriodStart,
		CurrentPeriodEnd:    sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:   sub.CancelAtPeriodEnd,
		PaymentGateway:      gateway,
		IsRecurring:         sub.IsRecurring,
		DaysUntilExpiration: DaysUntilExpiration(sub, now),
	}
}
