package billingevents

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nutriplanhq/nutriplan-backend/pkg/db/models"
	"github.com/nutriplanhq/nutriplan-backend/pkg/enums"
	pkgerrors "github.com/nutriplanhq/nutriplan-backend/pkg/errors"
)

// Event describes one provider webhook delivery to be recorded.
type Event struct {
	EventID   string
	Gateway   enums.PaymentGateway
	EventType string
	UserID    *uuid.UUID
	Payload   []byte
}

// Ledger is the append-only idempotency record for webhook deliveries.
// Providers redeliver events; the ledger decides exactly once whether a
// delivery is first or repeated.
type Ledger interface {
	// MarkProcessed records the event and reports whether it was already
	// present. The insert is a single atomic statement, so two concurrent
	// deliveries of the same event cannot both observe "first".
	MarkProcessed(ctx context.Context, event Event) (duplicate bool, err error)
	// Forget removes a ledger row so a failed handler can be retried by the
	// provider's next delivery.
	Forget(ctx context.Context, eventID string) error
}

type ledger struct {
	db *gorm.DB
}

// NewLedger binds the ledger to the provided database handle.
func NewLedger(db *gorm.DB) (Ledger, error) {
	if db == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "billing events db handle required")
	}
	return &ledger{db: db}, nil
}

func (l *ledger) MarkProcessed(ctx context.Context, event Event) (bool, error) {
	if event.EventID == "" {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "event id required")
	}
	if !event.Gateway.IsValid() {
		return false, pkgerrors.New(pkgerrors.CodeValidation, "payment gateway required")
	}

	row := models.SubscriptionEvent{
		EventID:   event.EventID,
		Gateway:   event.Gateway,
		EventType: event.EventType,
		UserID:    event.UserID,
		Payload:   event.Payload,
	}

	result := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}},
			DoNothing: true,
		}).
		Create(&row)
	if result.Error != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "recording billing event")
	}
	return result.RowsAffected == 0, nil
}

func (l *ledger) Forget(ctx context.Context, eventID string) error {
	if eventID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "event id required")
	}
	result := l.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Delete(&models.SubscriptionEvent{})
	if result.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, result.Error, "forgetting billing event")
	}
	return nil
}

// MercadoPagoEventID synthesizes a stable idempotency key for a payment
// notification, since Mercado Pago does not ship one on the webhook itself.
func MercadoPagoEventID(action, paymentID, dateCreated string) string {
	return fmt.Sprintf("%s_%s_%s", action, paymentID, dateCreated)
}
