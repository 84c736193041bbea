package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/nutriplanhq/nutriplan-backend/pkg/enums"
)

// Subscription is the single billing row per user. It is upserted on the
// user_id key and overwritten in place as the gateway state changes, never
// deleted.
type Subscription struct {
	ID     uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`

	Plan           enums.Plan               `gorm:"column:plan;not null;default:'free'"`
	Status         enums.SubscriptionStatus `gorm:"column:status;not null;default:'pending'"`
	PaymentGateway *enums.PaymentGateway    `gorm:"column:payment_gateway"`

	StripeCustomerID     *string `gorm:"column:stripe_customer_id;index"`
	StripeSubscriptionID *string `gorm:"column:stripe_subscription_id"`
	LatestInvoiceID      *string `gorm:"column:latest_invoice_id"`

	MercadoPagoSubscriptionID *string `gorm:"column:mercadopago_subscription_id"`
	MercadoPagoPreferenceID   *string `gorm:"column:mercadopago_preference_id"`
	MercadoPagoPlanID         *string `gorm:"column:mercadopago_plan_id"`
	MercadoPagoPaymentID      *string `gorm:"column:mercadopago_payment_id"`

	CurrentPeriodStart *time.Time `gorm:"column:current_period_start"`
	CurrentPeriodEnd   *time.Time `gorm:"column:current_period_end;index"`

	IsRecurring       bool       `gorm:"column:is_recurring;not null;default:false"`
	CancelAtPeriodEnd bool       `gorm:"column:cancel_at_period_end;not null;default:false"`
	CanceledAt        *time.Time `gorm:"column:canceled_at"`

	// Subscribed is stored for API compatibility but recomputed from
	// status+plan on every write.
	Subscribed          bool `gorm:"column:subscribed;not null;default:false"`
	ExpirationNotified  bool `gorm:"column:expiration_notified;not null;default:false"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
