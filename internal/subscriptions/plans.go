package subscriptions

import (
	"github.com/shopspring/decimal"

	"github.com/nutriplanhq/nutriplan-backend/pkg/config"
	"github.com/nutriplanhq/nutriplan-backend/pkg/enums"
)

// Catalog maps provider identifiers onto billing tiers and carries the USD
// list prices the checkout flows convert from.
type Catalog struct {
	stripePriceToPlan map[string]enums.Plan
	planToStripePrice map[enums.Plan]string
	mpPlanToPlan      map[string]enums.Plan
	planToMPPlan      map[enums.Plan]string
	priceUSD          map[enums.Plan]decimal.Decimal
}

// NewCatalog builds the plan catalog from configuration.
func NewCatalog(stripe config.StripeConfig, mp config.MercadoPagoConfig, plans config.PlansConfig) *Catalog {
	c := &Catalog{
		stripePriceToPlan: map[string]enums.Plan{},
		planToStripePrice: map[enums.Plan]string{},
		mpPlanToPlan:      map[string]enums.Plan{},
		planToMPPlan:      map[enums.Plan]string{},
		priceUSD: map[enums.Plan]decimal.Decimal{
			enums.PlanWeekly:  decimal.NewFromFloat(plans.WeeklyPriceUSD),
			enums.PlanMonthly: decimal.NewFromFloat(plans.MonthlyPriceUSD),
		},
	}
	if stripe.WeeklyPriceID != "" {
		c.stripePriceToPlan[stripe.WeeklyPriceID] = enums.PlanWeekly
		c.planToStripePrice[enums.PlanWeekly] = stripe.WeeklyPriceID
	}
	if stripe.MonthlyPriceID != "" {
		c.stripePriceToPlan[stripe.MonthlyPriceID] = enums.PlanMonthly
		c.planToStripePrice[enums.PlanMonthly] = stripe.MonthlyPriceID
	}
	if mp.WeeklyPlanID != "" {
		c.mpPlanToPlan[mp.WeeklyPlanID] = enums.PlanWeekly
		c.planToMPPlan[enums.PlanWeekly] = mp.WeeklyPlanID
	}
	if mp.MonthlyPlanID != "" {
		c.mpPlanToPlan[mp.MonthlyPlanID] = enums.PlanMonthly
		c.planToMPPlan[enums.PlanMonthly] = mp.MonthlyPlanID
	}
	return c
}

// PlanForStripePrice resolves a Stripe price id to a billing tier.
func (c *Catalog) PlanForStripePrice(priceID string) (enums.Plan, bool) {
	plan, ok := c.stripePriceToPlan[priceID]
	return plan, ok
}

// StripePriceForPlan resolves a billing tier to its Stripe price id.
func (c *Catalog) StripePriceForPlan(plan enums.Plan) (string, bool) {
	id, ok := c.planToStripePrice[plan]
	return id, ok
}

// PlanForMercadoPagoPlan resolves a preapproval plan id to a billing tier.
func (c *Catalog) PlanForMercadoPagoPlan(planID string) (enums.Plan, bool) {
	plan, ok := c.mpPlanToPlan[planID]
	return plan, ok
}

// MercadoPagoPlanForPlan resolves a billing tier to its preapproval plan id.
func (c *Catalog) MercadoPagoPlanForPlan(plan enums.Plan) (string, bool) {
	id, ok := c.planToMPPlan[plan]
	return id, ok
}

// PriceUSD returns the USD list price for a paid tier.
func (c *Catalog) PriceUSD(plan enums.Plan) (decimal.Decimal, bool) {
	price, ok := c.priceUSD[plan]
	return price, ok
}
