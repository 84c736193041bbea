package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/nutriplanhq/nutriplan-backend/pkg/enums"
)

// SubscriptionEvent is the append-only webhook idempotency ledger. EventID is
// the provider event id for Stripe, or a synthesized action/payment/date key
// for Mercado Pago which has no stable one.
type SubscriptionEvent struct {
	ID        uuid.UUID            `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	EventID   string               `gorm:"column:event_id;not null;uniqueIndex"`
	Gateway   enums.PaymentGateway `gorm:"column:gateway;not null"`
	EventType string               `gorm:"column:event_type;not null"`
	UserID    *uuid.UUID           `gorm:"column:user_id;type:uuid;index"`
	Payload   []byte               `gorm:"column:payload;type:jsonb"`
	CreatedAt time.Time            `gorm:"column:created_at;autoCreateTime"`
}
