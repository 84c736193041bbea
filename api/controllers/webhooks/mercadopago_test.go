package webhooks

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/nutriplanhq/nutriplan-backend/pkg/logger"
	"github.com/nutriplanhq/nutriplan-backend/pkg/mercadopago"
)

type stubMercadoPagoService struct {
	got *mercadopago.WebhookNotification
	err error
}

func (s *stubMercadoPagoService) HandleNotification(_ context.Context, notification *mercadopago.WebhookNotification) error {
	s.got = notification
	return s.err
}

func mpTestLogger() *logger.Logger {
	return logger.New(logger.Options{Output: io.Discard})
}

func TestMercadoPagoWebhookBodyNotification(t *testing.T) {
	svc := &stubMercadoPagoService{}
	handler := MercadoPagoWebhook(svc, mpTestLogger())

	body := `{"id":101,"type":"payment","action":"payment.updated","data":{"id":"555"}}`
	r := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/mercadopago", strings.NewReader(body))
	w := httptest.NewRecorder()
	handler(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if svc.got == nil || svc.got.Type != "payment" || svc.got.Data.ID != "555" {
		t.Fatalf("notification = %+v", svc.got)
	}
	if !strings.Contains(w.Body.String(), `"received":true`) {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestMercadoPagoWebhookQueryStringForm(t *testing.T) {
	svc := &stubMercadoPagoService{}
	handler := MercadoPagoWebhook(svc, mpTestLogger())

	r := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/mercadopago?topic=payment&id=777", nil)
	w := httptest.NewRecorder()
	handler(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if svc.got == nil || svc.got.Type != "payment" || svc.got.Data.ID != "777" {
		t.Fatalf("notification = %+v", svc.got)
	}
}

func TestMercadoPagoWebhookFailureStillAnswers200(t *testing.T) {
	svc := &stubMercadoPagoService{err: errors.New("payment fetch blew up")}
	handler := MercadoPagoWebhook(svc, mpTestLogger())

	body := `{"type":"payment","data":{"id":"555"}}`
	r := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/mercadopago", strings.NewReader(body))
	w := httptest.NewRecorder()
	handler(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 even on failure", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"error":"processing failed"`) {
		t.Fatalf("body = %s", w.Body.String())
	}
	if strings.Contains(w.Body.String(), "blew up") {
		t.Fatalf("internal error leaked: %s", w.Body.String())
	}
}

func TestMercadoPagoWebhookMissingTypeRejected(t *testing.T) {
	svc := &stubMercadoPagoService{}
	handler := MercadoPagoWebhook(svc, mpTestLogger())

	r := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/mercadopago", nil)
	w := httptest.NewRecorder()
	handler(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if svc.got != nil {
		t.Fatal("service must not run without a notification type")
	}
	if !strings.Contains(w.Body.String(), "notification type missing") {
		t.Fatalf("body = %s", w.Body.String())
	}
}
