package subscriptions

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/nutriplanhq/nutriplan-backend/pkg/db/models"
	"github.com/nutriplanhq/nutriplan-backend/pkg/enums"
)

func TestMapStripeStatus(t *testing.T) {
	cases := []struct {
		in   stripe.SubscriptionStatus
		want enums.SubscriptionStatus
	}{
		{stripe.SubscriptionStatusActive, enums.SubscriptionStatusActive},
		{stripe.SubscriptionStatusTrialing, enums.SubscriptionStatusActive},
		{stripe.SubscriptionStatusPastDue, enums.SubscriptionStatusPastDue},
		{stripe.SubscriptionStatusUnpaid, enums.SubscriptionStatusPastDue},
		{stripe.SubscriptionStatusPaused, enums.SubscriptionStatusPastDue},
		{stripe.SubscriptionStatusIncomplete, enums.SubscriptionStatusPending},
		{stripe.SubscriptionStatusCanceled, enums.SubscriptionStatusCanceled},
		{stripe.SubscriptionStatusIncompleteExpired, enums.SubscriptionStatusCanceled},
	}
	for _, tc := range cases {
		if got := MapStripeStatus(tc.in); got != tc.want {
			t.Fatalf("MapStripeStatus(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestNormalizeDerivesSubscribed(t *testing.T) {
	sub := &models.Subscription{Plan: enums.PlanMonthly, Status: enums.SubscriptionStatusActive}
	Normalize(sub)
	if !sub.Subscribed {
		t.Fatal("active paid plan must be subscribed")
	}

	sub.Status = enums.SubscriptionStatusPastDue
	Normalize(sub)
	if sub.Subscribed {
		t.Fatal("past_due must not be subscribed")
	}

	sub.Status = enums.SubscriptionStatusActive
	sub.Plan = enums.PlanFree
	Normalize(sub)
	if sub.Subscribed {
		t.Fatal("free plan must not be subscribed")
	}
}

func TestApplyStripeMapsSnapshot(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	stripeSub := &stripe.Subscription{
		ID:            "sub_1",
		Status:        stripe.SubscriptionStatusActive,
		LatestInvoice: &stripe.Invoice{ID: "in_1"},
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{{
				Price:              &stripe.Price{ID: "price_monthly"},
				CurrentPeriodStart: start.Unix(),
				CurrentPeriodEnd:   end.Unix(),
			}},
		},
	}

	target := &models.Subscription{UserID: uuid.New()}
	if err := ApplyStripe(target, "cus_1", stripeSub, enums.PlanMonthly); err != nil {
		t.Fatalf("ApplyStripe: %v", err)
	}

	if target.Plan != enums.PlanMonthly || target.Status != enums.SubscriptionStatusActive {
		t.Fatalf("unexpected plan/status: %s/%s", target.Plan, target.Status)
	}
	if target.PaymentGateway == nil || *target.PaymentGateway != enums.PaymentGatewayStripe {
		t.Fatal("expected stripe gateway")
	}
	if target.StripeSubscriptionID == nil || *target.StripeSubscriptionID != "sub_1" {
		t.Fatal("expected stripe subscription id")
	}
	if target.LatestInvoiceID == nil || *target.LatestInvoiceID != "in_1" {
		t.Fatal("expected latest invoice id")
	}
	if target.CurrentPeriodStart == nil || !target.CurrentPeriodStart.Equal(start) {
		t.Fatalf("unexpected period start: %v", target.CurrentPeriodStart)
	}
	if target.CurrentPeriodEnd == nil || !target.CurrentPeriodEnd.Equal(end) {
		t.Fatalf("unexpected period end: %v", target.CurrentPeriodEnd)
	}
	if !target.IsRecurring {
		t.Fatal("stripe subscriptions are recurring")
	}
	if !target.Subscribed {
		t.Fatal("expected derived subscribed flag")
	}
}

func TestApplyStripeTerminalStatusDropsToFree(t *testing.T) {
	stripeSub := &stripe.Subscription{
		ID:     "sub_1",
		Status: stripe.SubscriptionStatusCanceled,
	}
	target := &models.Subscription{UserID: uuid.New(), Plan: enums.PlanMonthly}
	if err := ApplyStripe(target, "cus_1", stripeSub, enums.PlanMonthly); err != nil {
		t.Fatalf("ApplyStripe: %v", err)
	}
	if target.Plan != enums.PlanFree {
		t.Fatalf("expected free plan on terminal status, got %s", target.Plan)
	}
	if target.Subscribed {
		t.Fatal("canceled record must not be subscribed")
	}
}

func TestApplyStripeClearsMercadoPagoIdentifiers(t *testing.T) {
	mpSub := "preapproval_1"
	mpPlan := "mp_plan_1"
	target := &models.Subscription{
		UserID:                    uuid.New(),
		MercadoPagoSubscriptionID: &mpSub,
		MercadoPagoPlanID:         &mpPlan,
	}
	stripeSub := &stripe.Subscription{ID: "sub_1", Status: stripe.SubscriptionStatusActive}
	if err := ApplyStripe(target, "cus_1", stripeSub, enums.PlanWeekly); err != nil {
		t.Fatalf("ApplyStripe: %v", err)
	}
	if target.MercadoPagoSubscriptionID != nil || target.MercadoPagoPlanID != nil {
		t.Fatal("stripe snapshot must clear mercadopago identifiers")
	}
}

func TestDaysUntilExpiration(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	if got := DaysUntilExpiration(nil, now); got != 0 {
		t.Fatalf("nil record: got %d", got)
	}
	if got := DaysUntilExpiration(&models.Subscription{}, now); got != 0 {
		t.Fatalf("missing period end: got %d", got)
	}

	end := now.Add(72 * time.Hour)
	if got := DaysUntilExpiration(&models.Subscription{CurrentPeriodEnd: &end}, now); got != 3 {
		t.Fatalf("expected 3 days, got %d", got)
	}

	past := now.Add(-time.Hour)
	if got := DaysUntilExpiration(&models.Subscription{CurrentPeriodEnd: &past}, now); got != 0 {
		t.Fatalf("expired record must report zero, got %d", got)
	}
}

func TestApplyStripeReArmsExpirationNoticeOnRenewal(t *testing.T) {
	oldEnd := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	newEnd := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	snapshot := func(end time.Time) *stripe.Subscription {
		return &stripe.Subscription{
			ID:     "sub_1",
			Status: stripe.SubscriptionStatusActive,
			Items: &stripe.SubscriptionItemList{
				Data: []*stripe.SubscriptionItem{{
					CurrentPeriodStart: end.AddDate(0, -1, 0).Unix(),
					CurrentPeriodEnd:   end.Unix(),
				}},
			},
		}
	}

	target := &models.Subscription{
		UserID:             uuid.New(),
		CurrentPeriodEnd:   &oldEnd,
		ExpirationNotified: true,
	}

	// Same period, the warning already fired and must stay fired.
	if err := ApplyStripe(target, "cus_1", snapshot(oldEnd), enums.PlanMonthly); err != nil {
		t.Fatalf("ApplyStripe: %v", err)
	}
	if !target.ExpirationNotified {
		t.Fatal("unchanged period must keep the notified flag")
	}

	// Renewal moves the period end, the warning re-arms.
	if err := ApplyStripe(target, "cus_1", snapshot(newEnd), enums.PlanMonthly); err != nil {
		t.Fatalf("ApplyStripe: %v", err)
	}
	if target.ExpirationNotified {
		t.Fatal("new period must re-arm the notified flag")
	}
}
