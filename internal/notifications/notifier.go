package notifications

import (
	"context"

	"github.com/google/uuid"

	"github.com/nutriplanhq/nutriplan-backend/pkg/db/models"
	"github.com/nutriplanhq/nutriplan-backend/pkg/enums"
	"github.com/nutriplanhq/nutriplan-backend/pkg/logger"
)

type creator interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// Notifier creates billing notifications as a side effect of state
// transitions. Failures are logged and swallowed; a missed notification must
// never fail the triggering request.
type Notifier struct {
	repo creator
	logg *logger.Logger
}

// NewNotifier wires the fire-and-forget notification helper.
func NewNotifier(repo creator, logg *logger.Logger) *Notifier {
	return &Notifier{repo: repo, logg: logg}
}

// Notify persists a notification row, logging on failure.
func (n *Notifier) Notify(ctx context.Context, userID uuid.UUID, typ enums.NotificationType, severity enums.NotificationSeverity, title, message string) {
	if n == nil || n.repo == nil || userID == uuid.Nil {
		return
	}
	notification := &models.Notification{
		UserID:   userID,
		Type:     typ,
		Severity: severity,
		Title:    title,
		Message:  message,
	}
	if err := n.repo.Create(ctx, notification); err != nil && n.logg != nil {
		fields := map[string]any{
			"notification_type": string(typ),
		}
		n.logg.Error(n.logg.WithFields(ctx, fields), "creating notification", err)
	}
}
