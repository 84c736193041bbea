package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/nutriplanhq/nutriplan-backend/internal/notifications"
	"github.com/nutriplanhq/nutriplan-backend/internal/subscriptions"
	"github.com/nutriplanhq/nutriplan-backend/pkg/config"
	"github.com/nutriplanhq/nutriplan-backend/pkg/db/models"
	"github.com/nutriplanhq/nutriplan-backend/pkg/enums"
	pkgerrors "github.com/nutriplanhq/nutriplan-backend/pkg/errors"
	"github.com/nutriplanhq/nutriplan-backend/pkg/logger"
	"github.com/nutriplanhq/nutriplan-backend/pkg/mercadopago"
)

type mercadoPagoClient interface {
	CreatePreference(ctx context.Context, req *mercadopago.PreferenceRequest) (*mercadopago.Preference, error)
	CreatePreapproval(ctx context.Context, req *mercadopago.PreapprovalRequest) (*mercadopago.Preapproval, error)
	GetPayment(ctx context.Context, paymentID string) (*mercadopago.Payment, error)
}

type rateQuoter interface {
	USDToARS(ctx context.Context) decimal.Decimal
}

type ServiceParams struct {
	Repo        subscriptions.Repository
	Catalog     *subscriptions.Catalog
	StripeSess  StripeSessionClient
	MercadoPago mercadoPagoClient
	Rates       rateQuoter
	Notifier    *notifications.Notifier
	Stripe      config.StripeConfig
	MP          config.MercadoPagoConfig
	Logger      *logger.Logger
}

// Service starts purchase flows on both gateways and runs the Mercado Pago
// pull reconciliation.
type Service struct {
	repo      subscriptions.Repository
	catalog   *subscriptions.Catalog
	stripeSes StripeSessionClient
	mp        mercadoPagoClient
	rates     rateQuoter
	notifier  *notifications.Notifier
	stripeCfg config.StripeConfig
	mpCfg     config.MercadoPagoConfig
	logg      *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("subscription repo required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("plan catalog required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		repo:      params.Repo,
		catalog:   params.Catalog,
		stripeSes: params.StripeSess,
		mp:        params.MercadoPago,
		rates:     params.Rates,
		notifier:  params.Notifier,
		stripeCfg: params.Stripe,
		mpCfg:     params.MP,
		logg:      params.Logger,
	}, nil
}

// StripeCheckoutResult is the wire answer of the stripe checkout endpoint.
type StripeCheckoutResult struct {
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

// PreferenceResult is the wire answer of the one-time purchase endpoint.
type PreferenceResult struct {
	PreferenceID string          `json:"preference_id"`
	InitPoint    string          `json:"init_point"`
	AmountARS    decimal.Decimal `json:"amount_ars"`
	Plan         string          `json:"plan"`
}

// PreapprovalResult is the wire answer of the recurring purchase endpoint.
type PreapprovalResult struct {
	PreapprovalID string `json:"preapproval_id"`
	InitPoint     string `json:"init_point"`
	Plan          string `json:"plan"`
}

// StripeCheckout opens a hosted subscription checkout for the given plan.
func (s *Service) StripeCheckout(ctx context.Context, user *models.User, plan enums.Plan) (*StripeCheckoutResult, error) {
	if err := validatePaidPlan(plan); err != nil {
		return nil, err
	}
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user required")
	}
	if s.stripeSes == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe is not configured")
	}
	priceID, ok := s.catalog.StripePriceForPlan(plan)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "no stripe price configured for plan")
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL: stripe.String(s.stripeCfg.SuccessURL),
		CancelURL:  stripe.String(s.stripeCfg.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(priceID),
			Quantity: stripe.Int64(1),
		}},
		CustomerEmail: stripe.String(user.Email),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"user_id": user.ID.String()},
		},
	}
	if user.StripeCustomerID != nil {
		params.Customer = stripe.String(*user.StripeCustomerID)
		params.CustomerEmail = nil
	}

	sess, err := s.stripeSes.CreateCheckoutSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create stripe checkout session")
	}

	if err := s.upsertPending(ctx, user.ID, plan, enums.PaymentGatewayStripe, func(sub *models.Subscription) {
		sub.IsRecurring = true
	}); err != nil {
		return nil, err
	}

	return &StripeCheckoutResult{SessionID: sess.ID, CheckoutURL: sess.URL}, nil
}

// CreatePreference starts a one-time Mercado Pago purchase priced in ARS
// from the live exchange rate. The record's period end is precomputed; with
// no renewal behind it, that end is the hard expiration.
func (s *Service) CreatePreference(ctx context.Context, user *models.User, plan enums.Plan) (*PreferenceResult, error) {
	if err := validatePaidPlan(plan); err != nil {
		return nil, err
	}
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user required")
	}
	if s.mp == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "mercadopago is not configured")
	}
	priceUSD, ok := s.catalog.PriceUSD(plan)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "no price configured for plan")
	}

	rate := s.rates.USDToARS(ctx)
	amountARS := priceUSD.Mul(rate).Round(0)

	now := time.Now().UTC()
	periodEnd := now.AddDate(0, 0, plan.HorizonDays())

	req := &mercadopago.PreferenceRequest{
		Items: []mercadopago.PreferenceItem{{
			Title:      planTitle(plan),
			Quantity:   1,
			UnitPrice:  amountARS.InexactFloat64(),
			CurrencyID: "ARS",
		}},
		ExternalReference: "user:" + user.ID.String(),
		Metadata: map[string]string{
			"user_id":    user.ID.String(),
			"plan":       string(plan),
			"period_end": periodEnd.Format(time.RFC3339),
		},
		BackURLs:   backURLs(s.mpCfg.BackURL),
		AutoReturn: "approved",
	}

	pref, err := s.mp.CreatePreference(ctx, req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create mercadopago preference")
	}

	if err := s.upsertPending(ctx, user.ID, plan, enums.PaymentGatewayMercadoPago, func(sub *models.Subscription) {
		sub.IsRecurring = false
		sub.MercadoPagoPreferenceID = &pref.ID
		sub.CurrentPeriodStart = &now
		sub.CurrentPeriodEnd = &periodEnd
	}); err != nil {
		return nil, err
	}

	return &PreferenceResult{
		PreferenceID: pref.ID,
		InitPoint:    pref.InitPoint,
		AmountARS:    amountARS,
		Plan:         string(plan),
	}, nil
}

// CreateSubscription starts a recurring Mercado Pago preapproval against the
// configured plan id. The plan carries a fixed ARS price set at creation
// time, so no exchange conversion happens here.
func (s *Service) CreateSubscription(ctx context.Context, user *models.User, plan enums.Plan) (*PreapprovalResult, error) {
	if err := validatePaidPlan(plan); err != nil {
		return nil, err
	}
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user required")
	}
	if s.mp == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "mercadopago is not configured")
	}
	planID, ok := s.catalog.MercadoPagoPlanForPlan(plan)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "no mercadopago plan configured")
	}

	preapproval, err := s.mp.CreatePreapproval(ctx, &mercadopago.PreapprovalRequest{
		PreapprovalPlanID: planID,
		PayerEmail:        user.Email,
		ExternalReference: "user:" + user.ID.String(),
		Reason:            planTitle(plan),
		BackURL:           s.mpCfg.BackURL,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create mercadopago preapproval")
	}

	if err := s.upsertPending(ctx, user.ID, plan, enums.PaymentGatewayMercadoPago, func(sub *models.Subscription) {
		sub.IsRecurring = true
		sub.MercadoPagoSubscriptionID = &preapproval.ID
		sub.MercadoPagoPlanID = &planID
	}); err != nil {
		return nil, err
	}

	return &PreapprovalResult{
		PreapprovalID: preapproval.ID,
		InitPoint:     preapproval.InitPoint,
		Plan:          string(plan),
	}, nil
}

// CheckPayment is the Mercado Pago pull reconciliation. It refreshes a
// pending record from the provider and auto-expires non-recurring records
// whose window has closed; expiration has no webhook, so this path and the
// cron job are the only ways out.
func (s *Service) CheckPayment(ctx context.Context, userID uuid.UUID) (*subscriptions.CheckResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}

	stored, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup subscription")
	}
	now := time.Now().UTC()
	if stored == nil {
		return subscriptions.ResultFromRecord(nil, now), nil
	}

	if stored.Status == enums.SubscriptionStatusPending && stored.MercadoPagoPaymentID != nil && s.mp != nil {
		if err := s.refreshFromPayment(ctx, stored); err != nil {
			// Pull failure is tolerable; the webhook remains authoritative.
			s.logg.Error(s.logg.WithUserID(ctx, userID.String()), "mercadopago payment refresh failed", err)
		}
	}

	if expired := s.autoExpire(ctx, stored, now); expired {
		s.notifier.Notify(ctx, userID, enums.NotificationTypeSubscriptionExpired, enums.NotificationSeverityWarning,
			"Suscripción vencida", "Tu plan venció. Renovalo para seguir generando planes de comida.")
	}

	return subscriptions.ResultFromRecord(stored, now), nil
}

func (s *Service) refreshFromPayment(ctx context.Context, stored *models.Subscription) error {
	payment, err := s.mp.GetPayment(ctx, *stored.MercadoPagoPaymentID)
	if err != nil {
		return err
	}
	switch payment.Status {
	case mercadopago.PaymentStatusApproved:
		now := time.Now().UTC()
		end := now.AddDate(0, 0, stored.Plan.HorizonDays())
		stored.Status = enums.SubscriptionStatusActive
		stored.CurrentPeriodStart = &now
		stored.CurrentPeriodEnd = &end
		// Fresh paid window, re-arm the expiring-soon warning.
		stored.ExpirationNotified = false
	case mercadopago.PaymentStatusRejected, mercadopago.PaymentStatusCancelled:
		stored.Status = enums.SubscriptionStatusCanceled
		stored.Plan = enums.PlanFree
	default:
		return nil
	}
	return s.repo.Update(ctx, stored)
}

// autoExpire flips a lapsed non-recurring record to canceled/free.
func (s *Service) autoExpire(ctx context.Context, stored *models.Subscription, now time.Time) bool {
	if stored.IsRecurring || stored.Status != enums.SubscriptionStatusActive {
		return false
	}
	if stored.CurrentPeriodEnd == nil || !stored.CurrentPeriodEnd.Before(now) {
		return false
	}
	stored.Status = enums.SubscriptionStatusCanceled
	stored.Plan = enums.PlanFree
	if err := s.repo.Update(ctx, stored); err != nil {
		s.logg.Error(ctx, "auto-expire subscription", err)
		return false
	}
	return true
}

func (s *Service) upsertPending(ctx context.Context, userID uuid.UUID, plan enums.Plan, gateway enums.PaymentGateway, mutate func(*models.Subscription)) error {
	stored, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup subscription")
	}
	target := stored
	if target == nil {
		target = &models.Subscription{UserID: userID}
	}

	// An already-active subscription is not downgraded by opening a new
	// checkout; only the new purchase's identifiers are staged. Status,
	// plan, the paid window and renewal mode stay untouched until the
	// provider confirms payment, otherwise an abandoned checkout would
	// move the entitlement window without a payment behind it.
	if target.Status == enums.SubscriptionStatusActive {
		periodStart, periodEnd := target.CurrentPeriodStart, target.CurrentPeriodEnd
		recurring := target.IsRecurring
		mutate(target)
		target.CurrentPeriodStart, target.CurrentPeriodEnd = periodStart, periodEnd
		target.IsRecurring = recurring
	} else {
		target.Status = enums.SubscriptionStatusPending
		target.Plan = plan
		mutate(target)
	}
	target.PaymentGateway = &gateway

	if err := s.repo.Upsert(ctx, target); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist pending subscription")
	}
	return nil
}

func validatePaidPlan(plan enums.Plan) error {
	if !plan.IsPaid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "plan must be weekly or monthly")
	}
	return nil
}

func planTitle(plan enums.Plan) string {
	switch plan {
	case enums.PlanWeekly:
		return "NutriPlan semanal"
	case enums.PlanMonthly:
		return "NutriPlan mensual"
	default:
		return "NutriPlan"
	}
}

func backURLs(base string) *mercadopago.BackURLs {
	if base == "" {
		return nil
	}
	return &mercadopago.BackURLs{Success: base, Pending: base, Failure: base}
}
