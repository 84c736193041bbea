package checkout

import (
	"context"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"

	pkgstripe "github.com/nutriplanhq/nutriplan-backend/pkg/stripe"
)

// StripeSessionClient creates hosted checkout sessions.
type StripeSessionClient interface {
	CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type stripeSessionWrapper struct{}

// NewStripeSessionClient returns a session client backed by the configured
// Stripe API key, or nil when Stripe is not configured.
func NewStripeSessionClient(api *pkgstripe.Client) StripeSessionClient {
	if api == nil {
		return nil
	}
	return &stripeSessionWrapper{}
}

func (w *stripeSessionWrapper) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if params == nil {
		params = &stripe.CheckoutSessionParams{}
	}
	params.Context = ctx
	return session.New(params)
}
