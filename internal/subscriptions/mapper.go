package subscriptions

import (
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/nutriplanhq/nutriplan-backend/pkg/db/models"
	"github.com/nutriplanhq/nutriplan-backend/pkg/enums"
	pkgerrors "github.com/nutriplanhq/nutriplan-backend/pkg/errors"
)

// Normalize recomputes the derived subscribed flag. It runs on every write so
// the stored flag can never drift from status+plan.
func Normalize(sub *models.Subscription) {
	if sub == nil {
		return
	}
	sub.Subscribed = sub.Status == enums.SubscriptionStatusActive && sub.Plan.IsPaid()
}

// MapStripeStatus folds Stripe's status vocabulary onto the canonical one.
func MapStripeStatus(status stripe.SubscriptionStatus) enums.SubscriptionStatus {
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return enums.SubscriptionStatusActive
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid, stripe.SubscriptionStatusPaused:
		return enums.SubscriptionStatusPastDue
	case stripe.SubscriptionStatusIncomplete:
		return enums.SubscriptionStatusPending
	default:
		return enums.SubscriptionStatusCanceled
	}
}

// BuildFromStripe maps a live Stripe subscription onto a fresh record for the
// given user.
func BuildFromStripe(userID uuid.UUID, customerID string, stripeSub *stripe.Subscription, plan enums.Plan) (*models.Subscription, error) {
	if stripeSub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe subscription is nil")
	}
	sub := &models.Subscription{UserID: userID}
	if err := ApplyStripe(sub, customerID, stripeSub, plan); err != nil {
		return nil, err
	}
	return sub, nil
}

// ApplyStripe overwrites the record with the Stripe snapshot. The Mercado
// Pago identifier group is cleared: only one gateway owns the row at a time.
func ApplyStripe(target *models.Subscription, customerID string, stripeSub *stripe.Subscription, plan enums.Plan) error {
	if target == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "target subscription is nil")
	}
	if stripeSub == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "stripe subscription is nil")
	}

	status := MapStripeStatus(stripeSub.Status)
	gateway := enums.PaymentGatewayStripe

	target.Plan = plan
	target.Status = status
	target.PaymentGateway = &gateway
	target.StripeCustomerID = trimmedPtr(customerID)
	target.StripeSubscriptionID = trimmedPtr(stripeSub.ID)
	if stripeSub.LatestInvoice != nil {
		target.LatestInvoiceID = trimmedPtr(stripeSub.LatestInvoice.ID)
	}

	start, end := periodFromStripe(stripeSub)
	// A moved period end is a new billing period; re-arm the expiring-soon
	// warning. Events that leave the period alone keep the flag, so the
	// warning still fires at most once per period.
	if end != nil && (target.CurrentPeriodEnd == nil || !end.Equal(*target.CurrentPeriodEnd)) {
		target.ExpirationNotified = false
	}
	target.CurrentPeriodStart = start
	target.CurrentPeriodEnd = end
	target.IsRecurring = true
	target.CancelAtPeriodEnd = stripeSub.CancelAtPeriodEnd
	target.CanceledAt = unixPtr(stripeSub.CanceledAt)

	// Terminal states drop back to the free tier.
	if status == enums.SubscriptionStatusCanceled || status == enums.SubscriptionStatusExpired {
		target.Plan = enums.PlanFree
	}

	target.MercadoPagoSubscriptionID = nil
	target.MercadoPagoPreferenceID = nil
	target.MercadoPagoPlanID = nil
	target.MercadoPagoPaymentID = nil

	Normalize(target)
	return nil
}

// DaysUntilExpiration reports whole days remaining in the entitlement window,
// never negative. Records without a period end report zero.
func DaysUntilExpiration(sub *models.Subscription, now time.Time) int {
	if sub == nil || sub.CurrentPeriodEnd == nil {
		return 0
	}
	remaining := sub.CurrentPeriodEnd.Sub(now)
	if remaining <= 0 {
		return 0
	}
	return int(remaining.Hours() / 24)
}

// Period bounds live on the subscription item since stripe-go v79.
func periodFromStripe(stripeSub *stripe.Subscription) (*time.Time, *time.Time) {
	if stripeSub.Items == nil || len(stripeSub.Items.Data) == 0 {
		return nil, nil
	}
	item := stripeSub.Items.Data[0]
	return unixPtr(item.CurrentPeriodStart), unixPtr(item.CurrentPeriodEnd)
}

func unixPtr(ts int64) *time.Time {
	if ts <= 0 {
		return nil
	}
	t := time.Unix(ts, 0).UTC()
	return &t
}

func trimmedPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
