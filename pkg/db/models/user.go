package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents the canonical identity entity. Authentication is handled
// upstream; this row mirrors the claims the token carries plus the Stripe
// customer linkage used to resolve webhook events.
type User struct {
	ID               uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email            string     `gorm:"type:text;not null;uniqueIndex"`
	FullName         string     `gorm:"column:full_name;not null"`
	Country          *string    `gorm:"column:country"`
	StripeCustomerID *string    `gorm:"column:stripe_customer_id;uniqueIndex"`
	IsActive         bool       `gorm:"column:is_active;not null;default:true"`
	LastLoginAt      *time.Time `gorm:"column:last_login_at"`
	CreatedAt        time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
