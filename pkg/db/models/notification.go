package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/nutriplanhq/nutriplan-backend/pkg/enums"
)

// Notification stores in-app notification payloads scoped to users.
type Notification struct {
	ID        uuid.UUID                  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID                  `gorm:"type:uuid;not null;index"`
	Type      enums.NotificationType     `gorm:"column:type;not null"`
	Severity  enums.NotificationSeverity `gorm:"column:severity;not null;default:'info'"`
	Title     string                     `gorm:"type:text;not null"`
	Message   string                     `gorm:"type:text;not null"`
	ReadAt    *time.Time                 `gorm:"column:read_at"`
	CreatedAt time.Time                  `gorm:"column:created_at;autoCreateTime"`
}
