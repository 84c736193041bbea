package mpwebhook

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/nutriplanhq/nutriplan-backend/internal/billingevents"
	"github.com/nutriplanhq/nutriplan-backend/internal/notifications"
	"github.com/nutriplanhq/nutriplan-backend/internal/subscriptions"
	"github.com/nutriplanhq/nutriplan-backend/pkg/db/models"
	"github.com/nutriplanhq/nutriplan-backend/pkg/enums"
	"github.com/nutriplanhq/nutriplan-backend/pkg/logger"
	"github.com/nutriplanhq/nutriplan-backend/pkg/mercadopago"
)

type stubSubRepo struct {
	stored   *models.Subscription
	upserted *models.Subscription
}

func (s *stubSubRepo) WithTx(tx *gorm.DB) subscriptions.Repository { return s }

func (s *stubSubRepo) Upsert(ctx context.Context, sub *models.Subscription) error {
	subscriptions.Normalize(sub)
	s.upserted = sub
	return nil
}

func (s *stubSubRepo) Update(ctx context.Context, sub *models.Subscription) error {
	subscriptions.Normalize(sub)
	return nil
}

func (s *stubSubRepo) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Subscription, error) {
	return s.stored, nil
}

func (s *stubSubRepo) FindByStripeCustomerID(ctx context.Context, customerID string) (*models.Subscription, error) {
	return nil, nil
}

func (s *stubSubRepo) ListExpired(ctx context.Context, gateway enums.PaymentGateway, now time.Time) ([]models.Subscription, error) {
	return nil, nil
}

func (s *stubSubRepo) ListExpiringBetween(ctx context.Context, gateway enums.PaymentGateway, from, to time.Time) ([]models.Subscription, error) {
	return nil, nil
}

func (s *stubSubRepo) SetExpirationNotified(ctx context.Context, id uuid.UUID) error { return nil }

type stubLedger struct {
	marked    []billingevents.Event
	forgotten []string
	duplicate bool
}

func (s *stubLedger) MarkProcessed(ctx context.Context, event billingevents.Event) (bool, error) {
	s.marked = append(s.marked, event)
	return s.duplicate, nil
}

func (s *stubLedger) Forget(ctx context.Context, eventID string) error {
	s.forgotten = append(s.forgotten, eventID)
	return nil
}

type stubPayments struct {
	payment *mercadopago.Payment
	err     error
}

func (s *stubPayments) GetPayment(ctx context.Context, paymentID string) (*mercadopago.Payment, error) {
	return s.payment, s.err
}

type stubTxRunner struct{}

func (s *stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type captureCreator struct {
	created []*models.Notification
}

func (c *captureCreator) Create(ctx context.Context, notification *models.Notification) error {
	c.created = append(c.created, notification)
	return nil
}

type fixture struct {
	service       *Service
	subRepo       *stubSubRepo
	ledger        *stubLedger
	notifications *captureCreator
}

func newFixture(t *testing.T, subRepo *stubSubRepo, payments *stubPayments) *fixture {
	t.Helper()
	logg := logger.New(logger.Options{Output: io.Discard})
	ledger := &stubLedger{}
	creator := &captureCreator{}
	service, err := NewService(ServiceParams{
		SubscriptionRepo:  subRepo,
		MercadoPago:       payments,
		Ledger:            ledger,
		Notifier:          notifications.NewNotifier(creator, logg),
		TransactionRunner: &stubTxRunner{},
		Logger:            logg,
	})
	if err != nil {
		t.Fatalf("setup service: %v", err)
	}
	return &fixture{service: service, subRepo: subRepo, ledger: ledger, notifications: creator}
}

func paymentNotification(paymentID string) *mercadopago.WebhookNotification {
	return &mercadopago.WebhookNotification{
		Type:   "payment",
		Action: "payment.updated",
		Data:   mercadopago.WebhookData{ID: paymentID},
	}
}

func approvedPayment(userID uuid.UUID, plan string) *mercadopago.Payment {
	return &mercadopago.Payment{
		ID:           123,
		Status:       mercadopago.PaymentStatusApproved,
		DateCreated:  "2025-06-01T10:00:00Z",
		DateApproved: "2025-06-01T10:01:00Z",
		Metadata:     map[string]any{"user_id": userID.String(), "plan": plan},
	}
}

func TestApprovedPaymentActivatesSubscription(t *testing.T) {
	userID := uuid.New()
	subRepo := &stubSubRepo{}
	fx := newFixture(t, subRepo, &stubPayments{payment: approvedPayment(userID, "monthly")})

	if err := fx.service.HandleNotification(context.Background(), paymentNotification("123")); err != nil {
		t.Fatalf("handle notification: %v", err)
	}

	if len(fx.ledger.marked) != 1 {
		t.Fatal("expected ledger mark")
	}
	wantEventID := "payment.updated_123_2025-06-01T10:00:00Z"
	if fx.ledger.marked[0].EventID != wantEventID {
		t.Fatalf("expected synthesized event id %q, got %q", wantEventID, fx.ledger.marked[0].EventID)
	}

	sub := subRepo.upserted
	if sub == nil {
		t.Fatal("expected upsert")
	}
	if sub.UserID != userID {
		t.Fatal("expected user resolved from metadata")
	}
	if sub.Plan != enums.PlanMonthly || sub.Status != enums.SubscriptionStatusActive {
		t.Fatalf("unexpected plan/status: %s/%s", sub.Plan, sub.Status)
	}
	if !sub.Subscribed {
		t.Fatal("expected subscribed record")
	}
	if sub.CurrentPeriodStart == nil || sub.CurrentPeriodEnd == nil {
		t.Fatal("expected period bounds")
	}
	if got := sub.CurrentPeriodEnd.Sub(*sub.CurrentPeriodStart); got != 30*24*time.Hour {
		t.Fatalf("expected 30 day window, got %v", got)
	}
	if sub.MercadoPagoPaymentID == nil || *sub.MercadoPagoPaymentID != "123" {
		t.Fatal("expected payment id recorded")
	}
	if len(fx.notifications.created) != 1 || fx.notifications.created[0].Type != enums.NotificationTypePaymentSucceeded {
		t.Fatal("expected payment succeeded notification")
	}
}

func TestApprovedPaymentHonorsMetadataPeriodEnd(t *testing.T) {
	userID := uuid.New()
	payment := approvedPayment(userID, "monthly")
	payment.Metadata["period_end"] = "2025-08-01"
	subRepo := &stubSubRepo{}
	fx := newFixture(t, subRepo, &stubPayments{payment: payment})

	if err := fx.service.HandleNotification(context.Background(), paymentNotification("123")); err != nil {
		t.Fatalf("handle notification: %v", err)
	}

	sub := subRepo.upserted
	if sub == nil || sub.CurrentPeriodEnd == nil {
		t.Fatal("expected period end")
	}
	want := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
	if !sub.CurrentPeriodEnd.Equal(want) {
		t.Fatalf("expected pinned period end %v, got %v", want, sub.CurrentPeriodEnd)
	}
}

func TestRejectedPaymentDropsToFree(t *testing.T) {
	userID := uuid.New()
	gateway := enums.PaymentGatewayMercadoPago
	subRepo := &stubSubRepo{stored: &models.Subscription{
		UserID:         userID,
		Plan:           enums.PlanWeekly,
		Status:         enums.SubscriptionStatusActive,
		PaymentGateway: &gateway,
	}}
	payment := approvedPayment(userID, "weekly")
	payment.Status = mercadopago.PaymentStatusRejected
	fx := newFixture(t, subRepo, &stubPayments{payment: payment})

	if err := fx.service.HandleNotification(context.Background(), paymentNotification("123")); err != nil {
		t.Fatalf("handle notification: %v", err)
	}

	sub := subRepo.upserted
	if sub == nil || sub.Status != enums.SubscriptionStatusCanceled || sub.Plan != enums.PlanFree {
		t.Fatalf("expected canceled free record, got %+v", sub)
	}
	if len(fx.notifications.created) != 1 || fx.notifications.created[0].Type != enums.NotificationTypePaymentFailed {
		t.Fatal("expected payment failed notification")
	}
}

func TestPendingPaymentKeepsRecordPending(t *testing.T) {
	userID := uuid.New()
	payment := approvedPayment(userID, "weekly")
	payment.Status = mercadopago.PaymentStatusPending
	subRepo := &stubSubRepo{}
	fx := newFixture(t, subRepo, &stubPayments{payment: payment})

	if err := fx.service.HandleNotification(context.Background(), paymentNotification("123")); err != nil {
		t.Fatalf("handle notification: %v", err)
	}

	sub := subRepo.upserted
	if sub == nil || sub.Status != enums.SubscriptionStatusPending {
		t.Fatalf("expected pending record, got %+v", sub)
	}
	if sub.Subscribed {
		t.Fatal("pending record must not be subscribed")
	}
	if len(fx.notifications.created) != 0 {
		t.Fatal("pending payments produce no notification")
	}
}

func TestDuplicateNotificationSkipsSideEffects(t *testing.T) {
	userID := uuid.New()
	subRepo := &stubSubRepo{}
	fx := newFixture(t, subRepo, &stubPayments{payment: approvedPayment(userID, "weekly")})
	fx.ledger.duplicate = true

	if err := fx.service.HandleNotification(context.Background(), paymentNotification("123")); err != nil {
		t.Fatalf("handle notification: %v", err)
	}
	if subRepo.upserted != nil {
		t.Fatal("duplicate delivery must not touch the database")
	}
}

func TestNonPaymentTopicAcknowledged(t *testing.T) {
	fx := newFixture(t, &stubSubRepo{}, &stubPayments{err: errors.New("must not be called")})
	err := fx.service.HandleNotification(context.Background(), &mercadopago.WebhookNotification{Type: "merchant_order"})
	if err != nil {
		t.Fatalf("handle notification: %v", err)
	}
	if len(fx.ledger.marked) != 0 {
		t.Fatal("non-payment topics must not reach the ledger")
	}
}

func TestUserFromExternalReference(t *testing.T) {
	userID := uuid.New()
	payment := &mercadopago.Payment{
		ID:                123,
		Status:            mercadopago.PaymentStatusApproved,
		DateCreated:       "2025-06-01T10:00:00Z",
		ExternalReference: "user:" + userID.String(),
		Metadata:          map[string]any{"plan": "weekly"},
	}
	subRepo := &stubSubRepo{}
	fx := newFixture(t, subRepo, &stubPayments{payment: payment})

	if err := fx.service.HandleNotification(context.Background(), paymentNotification("123")); err != nil {
		t.Fatalf("handle notification: %v", err)
	}
	if subRepo.upserted == nil || subRepo.upserted.UserID != userID {
		t.Fatal("expected user resolved from external reference")
	}
}

func TestUnattributedPaymentAcknowledged(t *testing.T) {
	payment := &mercadopago.Payment{
		ID:          123,
		Status:      mercadopago.PaymentStatusApproved,
		DateCreated: "2025-06-01T10:00:00Z",
	}
	subRepo := &stubSubRepo{}
	fx := newFixture(t, subRepo, &stubPayments{payment: payment})

	if err := fx.service.HandleNotification(context.Background(), paymentNotification("123")); err != nil {
		t.Fatalf("handle notification: %v", err)
	}
	if subRepo.upserted != nil {
		t.Fatal("unattributed payment must not write")
	}
	if len(fx.ledger.forgotten) != 0 {
		t.Fatal("acknowledged payments keep their ledger entry")
	}
}

func TestApprovedPaymentTakesOverStripeRecord(t *testing.T) {
	userID := uuid.New()
	gateway := enums.PaymentGatewayStripe
	customerID := "cus_123"
	subscriptionID := "sub_123"
	invoiceID := "in_123"
	subRepo := &stubSubRepo{stored: &models.Subscription{
		UserID:               userID,
		Plan:                 enums.PlanMonthly,
		Status:               enums.SubscriptionStatusActive,
		PaymentGateway:       &gateway,
		StripeCustomerID:     &customerID,
		StripeSubscriptionID: &subscriptionID,
		LatestInvoiceID:      &invoiceID,
		ExpirationNotified:   true,
	}}
	fx := newFixture(t, subRepo, &stubPayments{payment: approvedPayment(userID, "monthly")})

	if err := fx.service.HandleNotification(context.Background(), paymentNotification("123")); err != nil {
		t.Fatalf("handle notification: %v", err)
	}

	sub := subRepo.upserted
	if sub == nil {
		t.Fatal("expected upsert")
	}
	if sub.PaymentGateway == nil || *sub.PaymentGateway != enums.PaymentGatewayMercadoPago {
		t.Fatal("expected mercadopago ownership")
	}
	// Only one gateway's identifiers may survive a handover; a later Stripe
	// event for the stale customer must not find this record.
	if sub.StripeCustomerID != nil || sub.StripeSubscriptionID != nil || sub.LatestInvoiceID != nil {
		t.Fatalf("stale stripe identifiers kept: %+v", sub)
	}
	if sub.ExpirationNotified {
		t.Fatal("expiring-soon warning not re-armed for the new period")
	}
}
