package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/nutriplanhq/nutriplan-backend/internal/billingevents"
	"github.com/nutriplanhq/nutriplan-backend/internal/notifications"
	"github.com/nutriplanhq/nutriplan-backend/internal/subscriptions"
	"github.com/nutriplanhq/nutriplan-backend/pkg/db/models"
	"github.com/nutriplanhq/nutriplan-backend/pkg/enums"
	pkgerrors "github.com/nutriplanhq/nutriplan-backend/pkg/errors"
	"github.com/nutriplanhq/nutriplan-backend/pkg/logger"
)

type userFinder interface {
	FindByStripeCustomerID(ctx context.Context, customerID string) (*models.User, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	SubscriptionRepo  subscriptions.Repository
	UserRepo          userFinder
	StripeClient      subscriptions.StripeSubscriptionClient
	Catalog           *subscriptions.Catalog
	Ledger            billingevents.Ledger
	Notifier          *notifications.Notifier
	TransactionRunner txRunner
	Logger            *logger.Logger
}

type Service struct {
	subRepo  subscriptions.Repository
	users    userFinder
	stripe   subscriptions.StripeSubscriptionClient
	catalog  *subscriptions.Catalog
	ledger   billingevents.Ledger
	notifier *notifications.Notifier
	txRunner txRunner
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.SubscriptionRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "subscription repo required")
	}
	if params.UserRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "user repo required")
	}
	if params.Catalog == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "plan catalog required")
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
		users:    params.UserRepo,
		stripe:   params.StripeClient,
		catalog:  params.Catalog,
		ledger:   params.Ledger,
		notifier: params.Notifier,
		txRunner: params.TransactionRunner,
		logg:     params.Logger,
	}, nil
}

// HandleEvent records the event in the durable ledger before any side effect.
// A duplicate delivery short-circuits; a processing failure releases the
// ledger entry so Stripe's retry can land.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	if event.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event id required")
	}

	ctx = s.logg.WithEventID(ctx, event.ID)
	duplicate, err := s.ledger.MarkProcessed(ctx, billingevents.Event{
		EventID:   event.ID,
		Gateway:   enums.PaymentGatewayStripe,
		EventType: string(event.Type),
		Payload:   event.Data.Raw,
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record webhook event")
	}
	if duplicate {
		s.logg.Info(ctx, "duplicate stripe event skipped")
		return nil
	}

	if err := s.process(ctx, event); err != nil {
		if forgetErr := s.ledger.Forget(ctx, event.ID); forgetErr != nil {
			s.logg.Error(ctx, "release ledger entry after failure", forgetErr)
		}
		return err
	}
	return nil
}

func (s *Service) process(ctx context.Context, event *stripe.Event) error {
	switch event.Type {
	case stripe.EventTypeCustomerSubscriptionCreated,
		stripe.EventTypeCustomerSubscriptionUpdated,
		stripe.EventTypeCustomerSubscriptionDeleted:
		var stripeSub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &stripeSub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode subscription event")
		}
		return s.syncSubscription(ctx, &stripeSub, event.Type == stripe.EventTypeCustomerSubscriptionDeleted)
	case stripe.EventTypeInvoicePaymentSucceeded, stripe.EventTypeInvoicePaid:
		return s.handleInvoicePaid(ctx, event)
	case stripe.EventTypeInvoicePaymentFailed:
		return s.handleInvoiceFailed(ctx, event)
	case stripe.EventTypeCustomerSubscriptionTrialWillEnd:
		return s.handleTrialWillEnd(ctx, event)
	default:
		// Unhandled types are acknowledged so Stripe stops retrying them.
		return nil
	}
}

func (s *Service) syncSubscription(ctx context.Context, stripeSub *stripe.Subscription, deleted bool) error {
	if stripeSub == nil || stripeSub.ID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription payload required")
	}
	customerID := customerIDOf(stripeSub)
	if customerID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id missing on subscription")
	}

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.subRepo.WithTx(tx)

		stored, err := repo.FindByStripeCustomerID(ctx, customerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup subscription by customer")
		}

		userID, err := s.resolveUserID(ctx, stored, customerID)
		if err != nil {
			return err
		}
		if userID == uuid.Nil {
			// Event for a customer we never issued; acknowledge and move on.
			s.logg.Warn(s.logg.WithGateway(ctx, "stripe"), "stripe event for unknown customer dropped")
			return nil
		}

		plan := s.resolvePlan(stripeSub)
		target := stored
		if target == nil {
			target = &models.Subscription{UserID: userID}
		}
		if err := subscriptions.ApplyStripe(target, customerID, stripeSub, plan); err != nil {
			return err
		}
		if err := repo.Upsert(ctx, target); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist subscription")
		}

		if deleted || target.Status == enums.SubscriptionStatusCanceled {
			s.notifier.Notify(ctx, userID, enums.NotificationTypeSubscriptionCanceled, enums.NotificationSeverityInfo,
				"Suscripción finalizada", "Tu suscripción terminó. Renovala para seguir generando planes.")
		}
		return nil
	})
}

func (s *Service) handleInvoicePaid(ctx context.Context, event *stripe.Event) error {
	customerID := event.GetObjectValue("customer")
	if customerID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id missing on invoice")
	}

	// A paid invoice means a fresh period; pull the live subscription so the
	// stored window moves forward.
	if subscriptionID := event.GetObjectValue("subscription"); subscriptionID != "" && s.stripe != nil {
		stripeSub, err := s.stripe.Get(ctx, subscriptionID, &stripe.SubscriptionParams{})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "fetch stripe subscription")
		}
		if err := s.syncSubscription(ctx, stripeSub, false); err != nil {
			return err
		}
	}

	user, err := s.users.FindByStripeCustomerID(ctx, customerID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve invoice user")
	}
	if user != nil {
		s.notifier.Notify(ctx, user.ID, enums.NotificationTypePaymentSucceeded, enums.NotificationSeverityInfo,
			"Pago recibido", "Tu pago fue procesado y la suscripción sigue activa.")
	}
	return nil
}

func (s *Service) handleInvoiceFailed(ctx context.Context, event *stripe.Event) error {
	customerID := event.GetObjectValue("customer")
	if customerID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id missing on invoice")
	}

	return s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.subRepo.WithTx(tx)
		stored, err := repo.FindByStripeCustomerID(ctx, customerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup subscription by customer")
		}
		if stored == nil {
			s.logg.Warn(ctx, "invoice failure for unknown customer dropped")
			return nil
		}

		stored.Status = enums.SubscriptionStatusPastDue
		if err := repo.Update(ctx, stored); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark subscription past due")
		}

		s.notifier.Notify(ctx, stored.UserID, enums.NotificationTypePaymentFailed, enums.NotificationSeverityError,
			"Pago rechazado", "No pudimos procesar tu pago. Actualizá tu medio de pago para no perder el acceso.")
		return nil
	})
}

func (s *Service) handleTrialWillEnd(ctx context.Context, event *stripe.Event) error {
	customerID := event.GetObjectValue("customer")
	if customerID == "" {
		return nil
	}
	user, err := s.users.FindByStripeCustomerID(ctx, customerID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve trial user")
	}
	if user == nil {
		return nil
	}
	s.notifier.Notify(ctx, user.ID, enums.NotificationTypeTrialEnding, enums.NotificationSeverityWarning,
		"Tu prueba termina pronto", "Tu período de prueba está por terminar. Elegí un plan para continuar.")
	return nil
}

func (s *Service) resolveUserID(ctx context.Context, stored *models.Subscription, customerID string) (uuid.UUID, error) {
	if stored != nil {
		return stored.UserID, nil
	}
	user, err := s.users.FindByStripeCustomerID(ctx, customerID)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "resolve event user")
	}
	if user == nil {
		return uuid.Nil, nil
	}
	return user.ID, nil
}

func (s *Service) resolvePlan(stripeSub *stripe.Subscription) enums.Plan {
	if stripeSub.Items != nil && len(stripeSub.Items.Data) > 0 && stripeSub.Items.Data[0].Price != nil {
		if plan, ok := s.catalog.PlanForStripePrice(stripeSub.Items.Data[0].Price.ID); ok {
			return plan
		}
	}
	return enums.PlanFree
}

func customerIDOf(stripeSub *stripe.Subscription) string {
	if stripeSub.Customer == nil {
		return ""
	}
	return stripeSub.Customer.ID
}
