package webhooks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/nutriplanhq/nutriplan-backend/pkg/logger"
	"github.com/nutriplanhq/nutriplan-backend/pkg/mercadopago"
)

type MercadoPagoWebhookService interface {
	HandleNotification(ctx context.Context, notification *mercadopago.WebhookNotification) error
}

type mercadoPagoAck struct {
	Received bool   `json:"received"`
	Error    string `json:"error,omitempty"`
}

// MercadoPagoWebhook handles Mercado Pago payment notifications. The
// endpoint always answers 200: Mercado Pago retries on any other status
// and a permanently failing notification would hammer us forever. Failures
// travel in the body for log correlation on their side.
func MercadoPagoWebhook(svc MercadoPagoWebhookService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		ack := func(errMsg string) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_ = json.NewEncoder(w).Encode(mercadoPagoAck{Received: true, Error: errMsg})
		}

		if svc == nil {
			ack("webhook service unavailable")
			return
		}

		notification, err := decodeNotification(r)
		if err != nil {
			if logg != nil {
				logg.Error(ctx, "mercadopago notification rejected", err)
			}
			ack(err.Error())
			return
		}

		if logg != nil {
			ctx = logg.WithGateway(ctx, "mercadopago")
			if notification.Data.ID != "" {
				ctx = logg.WithEventID(ctx, notification.Data.ID)
			}
		}

		if err := svc.HandleNotification(ctx, notification); err != nil {
			if logg != nil {
				logg.Error(ctx, "mercadopago notification failed", err)
			}
			ack("processing failed")
			return
		}

		if logg != nil {
			logg.Info(ctx, fmt.Sprintf("mercadopago %s notification processed", notification.Type))
		}
		ack("")
	}
}

// decodeNotification accepts both delivery shapes Mercado Pago uses: the
// JSON body of the webhooks v2 format and the older query-string form
// (?topic=payment&id=123).
func decodeNotification(r *http.Request) (*mercadopago.WebhookNotification, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var notification mercadopago.WebhookNotification
	if len(body) > 0 {
		if err := json.Unmarshal(body, &notification); err != nil {
			return nil, fmt.Errorf("decode body: %w", err)
		}
	}

	query := r.URL.Query()
	if notification.Type == "" {
		notification.Type = query.Get("type")
	}
	if notification.Type == "" {
		notification.Type = query.Get("topic")
	}
	if notification.Data.ID == "" {
		notification.Data.ID = query.Get("data.id")
	}
	if notification.Data.ID == "" {
		notification.Data.ID = query.Get("id")
	}

	if notification.Type == "" {
		return nil, fmt.Errorf("notification type missing")
	}
	return &notification, nil
}
